// Package journal implements the temporal store that makes every
// architectural mutation performed by the CPU and its devices
// reversible. It does not know anything about RISC-V: it just records
// typed undo records in the order they were produced and can replay
// them backwards.
package journal

import (
	"errors"
	"fmt"
)

// Kind identifies what an UndoRecord reverts.
type Kind uint8

const (
	// Reg reverts a general purpose register write.
	Reg Kind = iota
	// CSR reverts a control/status register write.
	CSR
	// Mem reverts a physical memory store.
	Mem
	// UartRHRPop reverts a guest read of the UART's RHR register,
	// which pops a byte off the head of the RX FIFO.
	UartRHRPop
	// UartTxPush reverts a guest write to THR, which appended a byte
	// to the TX FIFO.
	UartTxPush
	// UartRxPush reverts a host-originated push onto the RX FIFO.
	UartRxPush
	// UartRxDrop reverts the FIFO dropping its oldest byte to make
	// room for a host-originated push.
	UartRxDrop
	// DevShadow reverts a device's internal shadow register (LCR,
	// FCR, IER, divisor latch, the power device's halt flag, ...).
	DevShadow
	// PC reverts an out-of-step program counter write (the GDB query
	// surface writing register 32 while the machine is Paused). Normal
	// step-boundary PC changes never use this; they are carried by the
	// enclosing Frame's PCBefore/PCAfter instead.
	PC
)

// UndoRecord is a single typed inverse of one architectural mutation.
// Only the fields relevant to Kind are populated; the rest are zero.
type UndoRecord struct {
	Kind     Kind
	Index    uint32 // register index (Reg)
	Addr     uint32 // CSR address (CSR) or region-local offset (Mem, DevShadow)
	Old      uint32 // displaced scalar value (Reg, CSR, DevShadow)
	OldBytes []byte // displaced bytes (Mem)
	Slot     string // device-local shadow slot name (DevShadow)
	Byte     byte   // byte value involved (UartRHRPop, UartRxPush, UartRxDrop)
	Position int    // FIFO position the byte is restored to (UartRHRPop, UartRxDrop)
}

// Trap records the architectural exception, if any, that a step ended
// with. It is informational only; the CSR/PC mutations it caused are
// separately present as ordinary undo records in the same frame.
type Trap struct {
	Cause uint32
	Tval  uint32
}

// Frame is the journal entry for one completed instruction step.
type Frame struct {
	StepIndex uint64
	PCBefore  uint32
	PCAfter   uint32
	Records   []UndoRecord
	Trap      *Trap
}

// Target is implemented by whatever owns the architectural state
// (registers, CSRs, memory, devices) so the journal can ask it to
// apply or undo a record without the journal needing to know what a
// register file or a UART looks like.
type Target interface {
	UndoReg(index uint32, old uint32)
	UndoCSR(addr uint32, old uint32)
	UndoMem(addr uint32, old []byte) error
	UndoUartRHRPop(b byte, position int) error
	UndoUartTxPush() error
	UndoUartRxPush() error
	UndoUartRxDrop(b byte, position int) error
	UndoDevShadow(addr uint32, slot string, old uint32) error
	SetPC(pc uint32)
}

// Errors returned by Journal operations.
var (
	// ErrNoHistory indicates a reverse-step attempted to go past the
	// oldest retained frame.
	ErrNoHistory = errors.New("journal: no history retained before this step")
	// ErrNoOpenFrame indicates Record/Commit/Abort was called without
	// a matching BeginFrame.
	ErrNoOpenFrame = errors.New("journal: no open frame")
	// ErrFrameOpen indicates BeginFrame was called while a frame was
	// already open.
	ErrFrameOpen = errors.New("journal: a frame is already open")
)

// logEntry is one slot in the journal's single ordered log: either a
// committed step Frame, or a host input event that happened between
// steps. Keeping both kinds in one ordered slice keeps host input and
// steps in their original order: reverting always pops host input
// entries off the tail first, undoing them, then the frame beneath them.
type logEntry struct {
	isHostInput bool
	frame       Frame
	hostInput   []UndoRecord
}

// Journal is the append-only (ring-bounded) sequence of frames plus
// interleaved host-input events, and the cursor into it.
type Journal struct {
	log []logEntry

	// baseStep is the step index of the first entry still retained in
	// log (i.e. the step a fully-reverted journal would be at once
	// every retained frame has been undone). It only moves forward
	// when the ring buffer evicts frames.
	baseStep uint64
	// stepsInLog is the number of Frame entries currently in log.
	stepsInLog uint64

	// maxFrames bounds stepsInLog; 0 means unbounded.
	maxFrames int

	open    *Frame
	pending []UndoRecord // records accumulated for the open frame
}

// New creates a Journal. maxFrames bounds retained step frames; 0
// means unbounded growth.
func New(maxFrames int) *Journal {
	return &Journal{maxFrames: maxFrames}
}

// CurrentStep is the number of committed frames: baseStep plus the
// frames retained in the log. It equals the step the CPU is about to
// execute next when not in the middle of a reverse walk.
func (j *Journal) CurrentStep() uint64 {
	return j.baseStep + j.stepsInLog
}

// Len reports how many frames exist after the oldest retained one,
// i.e. the number of steps revert_one can still walk back through.
func (j *Journal) Len() uint64 {
	return j.stepsInLog
}

// OldestRetainedStep is the lowest step index revert_one can still
// reach; reverting below it fails with ErrNoHistory.
func (j *Journal) OldestRetainedStep() uint64 {
	return j.baseStep
}

// Stats summarizes journal capacity for operator-facing status lines.
type Stats struct {
	CurrentStep        uint64
	RetainedFrames     uint64
	OldestRetainedStep uint64
	MaxFrames          int
}

// Stats returns a snapshot of the journal's bookkeeping state.
func (j *Journal) Stats() Stats {
	return Stats{
		CurrentStep:        j.CurrentStep(),
		RetainedFrames:     j.stepsInLog,
		OldestRetainedStep: j.baseStep,
		MaxFrames:          j.maxFrames,
	}
}

// BeginFrame opens a fresh frame for the step about to execute.
func (j *Journal) BeginFrame(pcBefore uint32) error {
	if j.open != nil {
		return ErrFrameOpen
	}
	j.open = &Frame{StepIndex: j.CurrentStep(), PCBefore: pcBefore}
	j.pending = nil
	return nil
}

// Record appends an undo record to the currently open frame.
func (j *Journal) Record(rec UndoRecord) error {
	if j.open == nil {
		return ErrNoOpenFrame
	}
	j.pending = append(j.pending, rec)
	return nil
}

// SetTrap attaches trap info to the currently open frame.
func (j *Journal) SetTrap(t Trap) error {
	if j.open == nil {
		return ErrNoOpenFrame
	}
	j.open.Trap = &t
	return nil
}

// Commit closes the open frame, appends it to the log, and advances
// current_step by one. It evicts the oldest retained frame (and any
// host-input entries preceding it) if maxFrames is exceeded.
func (j *Journal) Commit(pcAfter uint32) error {
	if j.open == nil {
		return ErrNoOpenFrame
	}
	frame := *j.open
	frame.PCAfter = pcAfter
	frame.Records = j.pending
	j.log = append(j.log, logEntry{frame: frame})
	j.stepsInLog++
	j.open = nil
	j.pending = nil
	j.evictIfNeeded()
	return nil
}

// Abort discards the open frame. Any mutations already applied
// through the bus/CPU for the in-progress step must be undone by the
// caller (in reverse record order) before calling Abort; Abort itself
// only drops the bookkeeping so step count is left untouched.
func (j *Journal) Abort() {
	j.open = nil
	j.pending = nil
}

// PendingRecords returns the undo records accumulated so far for the
// open frame, oldest first. Used by Abort callers that need to walk
// them in reverse before discarding the frame.
func (j *Journal) PendingRecords() []UndoRecord {
	return j.pending
}

// RecordHostInput appends a host-input event (not a step) carrying
// the undo records needed to reverse it. It sits between whatever
// frame was last committed and the next one.
func (j *Journal) RecordHostInput(records []UndoRecord) {
	j.log = append(j.log, logEntry{isHostInput: true, hostInput: records})
}

func (j *Journal) evictIfNeeded() {
	if j.maxFrames <= 0 {
		return
	}
	for j.stepsInLog > uint64(j.maxFrames) && len(j.log) > 0 {
		head := j.log[0]
		j.log = j.log[1:]
		if head.isHostInput {
			continue
		}
		j.baseStep++
		j.stepsInLog--
	}
}

// RevertOne pops entries off the tail of the log until (and
// including) the most recent Frame, applying every undo record
// encountered — in reverse insertion order within each entry — via
// target. Any host-input entries sitting on top of that frame are
// undone first and dropped from the log, newest first, so a single
// reverse-step also takes back the host input that followed the step;
// that input is not re-applied afterwards. Returns ErrNoHistory
// if current_step is already at the oldest retained step.
func (j *Journal) RevertOne(target Target) error {
	if j.open != nil {
		return errors.New("journal: cannot revert while a frame is open")
	}
	if j.stepsInLog == 0 {
		return ErrNoHistory
	}
	for {
		if len(j.log) == 0 {
			return fmt.Errorf("journal: log exhausted before finding a frame to revert")
		}
		entry := j.log[len(j.log)-1]
		j.log = j.log[:len(j.log)-1]
		if entry.isHostInput {
			applyReverse(target, entry.hostInput)
			continue
		}
		applyReverse(target, entry.frame.Records)
		target.SetPC(entry.frame.PCBefore)
		j.stepsInLog--
		return nil
	}
}

func applyReverse(target Target, records []UndoRecord) {
	for i := len(records) - 1; i >= 0; i-- {
		applyOne(target, records[i])
	}
}

func applyOne(target Target, rec UndoRecord) {
	switch rec.Kind {
	case Reg:
		target.UndoReg(rec.Index, rec.Old)
	case CSR:
		target.UndoCSR(rec.Addr, rec.Old)
	case Mem:
		_ = target.UndoMem(rec.Addr, rec.OldBytes)
	case UartRHRPop:
		_ = target.UndoUartRHRPop(rec.Byte, rec.Position)
	case UartTxPush:
		_ = target.UndoUartTxPush()
	case UartRxPush:
		_ = target.UndoUartRxPush()
	case UartRxDrop:
		_ = target.UndoUartRxDrop(rec.Byte, rec.Position)
	case DevShadow:
		_ = target.UndoDevShadow(rec.Addr, rec.Slot, rec.Old)
	case PC:
		target.SetPC(rec.Old)
	}
}

// TruncateFuture is the delete-future operation. The log never holds
// anything beyond current_step in this design (entries are only
// appended forward and popped on revert), so it leaves the log as it
// is and is trivially idempotent.
func (j *Journal) TruncateFuture() {
	// Entries after current_step never exist in this representation:
	// a reverse walk pops and discards them as it goes rather than
	// leaving them in place for a possible redo. TruncateFuture is
	// therefore a no-op, kept so callers don't need to special-case it.
}

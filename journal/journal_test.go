package journal

import "testing"

// recorder is a minimal Target that tracks exactly what was undone, so
// tests can assert ordering without needing a real CPU/devices stack.
type recorder struct {
	regs map[uint32]uint32
	csrs map[uint32]uint32
	pc   uint32
	log  []string
}

func newRecorder() *recorder {
	return &recorder{regs: map[uint32]uint32{}, csrs: map[uint32]uint32{}}
}

func (r *recorder) UndoReg(index, old uint32) {
	r.regs[index] = old
	r.log = append(r.log, "reg")
}
func (r *recorder) UndoCSR(addr, old uint32) {
	r.csrs[addr] = old
	r.log = append(r.log, "csr")
}
func (r *recorder) UndoMem(addr uint32, old []byte) error {
	r.log = append(r.log, "mem")
	return nil
}
func (r *recorder) UndoUartRHRPop(b byte, position int) error {
	r.log = append(r.log, "rhr")
	return nil
}
func (r *recorder) UndoUartTxPush() error {
	r.log = append(r.log, "tx")
	return nil
}
func (r *recorder) UndoUartRxPush() error {
	r.log = append(r.log, "rxpush")
	return nil
}
func (r *recorder) UndoUartRxDrop(b byte, position int) error {
	r.log = append(r.log, "rxdrop")
	return nil
}
func (r *recorder) UndoDevShadow(addr uint32, slot string, old uint32) error {
	r.log = append(r.log, "shadow")
	return nil
}
func (r *recorder) SetPC(pc uint32) {
	r.pc = pc
}

func TestRevertOneAppliesInReverseInsertionOrder(t *testing.T) {
	j := New(0)
	r := newRecorder()

	if err := j.BeginFrame(0x1000); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	_ = j.Record(UndoRecord{Kind: Reg, Index: 1, Old: 0})
	_ = j.Record(UndoRecord{Kind: CSR, Addr: 0x340, Old: 0})
	if err := j.Commit(0x1004); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := j.RevertOne(r); err != nil {
		t.Fatalf("RevertOne: %v", err)
	}
	if len(r.log) != 2 || r.log[0] != "csr" || r.log[1] != "reg" {
		t.Fatalf("undo order = %v, want [csr reg]", r.log)
	}
	if r.pc != 0x1000 {
		t.Fatalf("pc after revert = 0x%x, want 0x1000", r.pc)
	}
}

func TestCurrentStepAdvancesOnCommit(t *testing.T) {
	j := New(0)
	if j.CurrentStep() != 0 {
		t.Fatalf("CurrentStep = %d, want 0", j.CurrentStep())
	}
	_ = j.BeginFrame(0)
	_ = j.Commit(4)
	if j.CurrentStep() != 1 {
		t.Fatalf("CurrentStep = %d, want 1", j.CurrentStep())
	}
}

func TestRevertPastOldestRetainedFrameFails(t *testing.T) {
	j := New(0)
	r := newRecorder()
	if err := j.RevertOne(r); err != ErrNoHistory {
		t.Fatalf("RevertOne on empty journal = %v, want ErrNoHistory", err)
	}
}

func TestRingBufferEvictsOldestFrames(t *testing.T) {
	j := New(2)
	r := newRecorder()
	for i := 0; i < 5; i++ {
		_ = j.BeginFrame(uint32(i))
		_ = j.Commit(uint32(i + 1))
	}
	if j.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (ring-bounded)", j.Len())
	}
	if j.CurrentStep() != 5 {
		t.Fatalf("CurrentStep = %d, want 5 (unaffected by eviction)", j.CurrentStep())
	}
	if err := j.RevertOne(r); err != nil {
		t.Fatalf("RevertOne: %v", err)
	}
	if err := j.RevertOne(r); err != nil {
		t.Fatalf("RevertOne: %v", err)
	}
	if err := j.RevertOne(r); err != ErrNoHistory {
		t.Fatalf("RevertOne past retained horizon = %v, want ErrNoHistory", err)
	}
}

func TestHostInputIsUndoneWithPrecedingFrameOnRevert(t *testing.T) {
	j := New(0)
	r := newRecorder()

	_ = j.BeginFrame(0)
	_ = j.Commit(4)
	j.RecordHostInput([]UndoRecord{{Kind: UartRxPush, Byte: 'x'}})

	if err := j.RevertOne(r); err != nil {
		t.Fatalf("RevertOne: %v", err)
	}
	if len(r.log) != 1 || r.log[0] != "rxpush" {
		t.Fatalf("expected the host-input undo to be applied, got %v", r.log)
	}
	if r.pc != 0 {
		t.Fatalf("pc after single RevertOne = 0x%x, want 0 (frame popped along with host input)", r.pc)
	}
}

func TestCommitWithoutBeginFrameErrors(t *testing.T) {
	j := New(0)
	if err := j.Commit(0); err != ErrNoOpenFrame {
		t.Fatalf("Commit without BeginFrame = %v, want ErrNoOpenFrame", err)
	}
}

func TestBeginFrameTwiceErrors(t *testing.T) {
	j := New(0)
	_ = j.BeginFrame(0)
	if err := j.BeginFrame(4); err != ErrFrameOpen {
		t.Fatalf("nested BeginFrame = %v, want ErrFrameOpen", err)
	}
}

func TestAbortDropsFrameWithoutAdvancingStep(t *testing.T) {
	j := New(0)
	_ = j.BeginFrame(0)
	_ = j.Record(UndoRecord{Kind: Reg, Index: 1, Old: 0})
	j.Abort()
	if j.CurrentStep() != 0 {
		t.Fatalf("CurrentStep after Abort = %d, want 0", j.CurrentStep())
	}
	// A fresh frame can be opened immediately afterward.
	if err := j.BeginFrame(0); err != nil {
		t.Fatalf("BeginFrame after Abort: %v", err)
	}
}

func TestTruncateFutureIsIdempotent(t *testing.T) {
	j := New(0)
	_ = j.BeginFrame(0)
	_ = j.Commit(4)
	before := j.CurrentStep()
	j.TruncateFuture()
	j.TruncateFuture()
	if j.CurrentStep() != before {
		t.Fatalf("CurrentStep changed across repeated TruncateFuture: %d -> %d", before, j.CurrentStep())
	}
}

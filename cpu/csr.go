package cpu

// CSR addresses implemented by this core: the Zicsr + RV32I
// machine-mode set required for compliance, plus the unprivileged
// counter shadows. Anything else traps as an illegal instruction on
// read or write.
const (
	CSRMstatus  uint32 = 0x300
	CSRMisa     uint32 = 0x301
	CSRMie      uint32 = 0x304
	CSRMtvec    uint32 = 0x305
	CSRMscratch uint32 = 0x340
	CSRMepc     uint32 = 0x341
	CSRMcause   uint32 = 0x342
	CSRMtval    uint32 = 0x343
	CSRMip      uint32 = 0x344
	CSRMvendorid uint32 = 0xF11
	CSRMarchid   uint32 = 0xF12
	CSRMimpid    uint32 = 0xF13
	CSRMhartid   uint32 = 0xF14
	CSRCycle    uint32 = 0xC00
	CSRTime     uint32 = 0xC01
	CSRInstret  uint32 = 0xC02
	CSRCycleh   uint32 = 0xC80
	CSRTimeh    uint32 = 0xC81
	CSRInstreth uint32 = 0xC82
)

// mstatus bits this core actually implements: MIE (global interrupt
// enable), MPIE (prior MIE, saved across traps), MPP (previous
// privilege — pinned to machine mode, but the field is still
// read/write so firmware that pokes at it doesn't fault). Every other
// bit (S-mode, FS/XS, SUM/MXR, ...) is hardwired zero: this core has
// no S-mode and no FPU.
const mstatusMask uint32 = (1 << 3) | (1 << 7) | (3 << 11)

// misa is fixed: MXL=1 (XLEN=32), extension bit I only. It is
// read-only: a CSR instruction that would write it raises an illegal
// instruction trap, like every other read-only CSR.
const misaValue uint32 = (1 << 30) | (1 << ('I' - 'A'))

// mepc's low two bits are hardwired zero: this core has no compressed
// extension, so all valid instruction addresses are 4-byte aligned.
const mepcMask uint32 = 0xFFFFFFFC

type csrDesc struct {
	name     string
	writable bool
	resetVal uint32
}

var csrTable = map[uint32]csrDesc{
	CSRMstatus:   {"mstatus", true, 0},
	CSRMisa:      {"misa", false, misaValue},
	CSRMie:       {"mie", true, 0},
	CSRMtvec:     {"mtvec", true, 0},
	CSRMscratch:  {"mscratch", true, 0},
	CSRMepc:      {"mepc", true, 0},
	CSRMcause:    {"mcause", true, 0},
	CSRMtval:     {"mtval", true, 0},
	CSRMip:       {"mip", true, 0},
	CSRMvendorid: {"mvendorid", false, 0},
	CSRMarchid:   {"marchid", false, 0},
	CSRMimpid:    {"mimpid", false, 0},
	CSRMhartid:   {"mhartid", false, 0},
	CSRCycle:     {"cycle", false, 0},
	CSRTime:      {"time", false, 0},
	CSRInstret:   {"instret", false, 0},
	CSRCycleh:    {"cycleh", false, 0},
	CSRTimeh:     {"timeh", false, 0},
	CSRInstreth:  {"instreth", false, 0},
}

// CSRFile is the sparse CSR register file.
type CSRFile struct {
	values map[uint32]uint32
}

// NewCSRFile creates a CSR file with every implemented CSR at its
// reset value.
func NewCSRFile() *CSRFile {
	f := &CSRFile{values: make(map[uint32]uint32, len(csrTable))}
	for addr, desc := range csrTable {
		f.values[addr] = desc.resetVal
	}
	return f
}

// Implemented reports whether addr names a CSR this core knows about.
func Implemented(addr uint32) bool {
	_, ok := csrTable[addr]
	return ok
}

// Writable reports whether addr names a CSR that accepts writes.
func Writable(addr uint32) bool {
	d, ok := csrTable[addr]
	return ok && d.writable
}

// Read returns the current value of an implemented CSR. The caller
// must check Implemented first; Read on an unimplemented address
// returns 0.
func (f *CSRFile) Read(addr uint32) uint32 {
	return f.values[addr]
}

// Set stores a raw value for addr, applying no masking. Used to
// restore CSR state on journal undo, where the recorded Old value is
// already the exact pre-image.
func (f *CSRFile) Set(addr, value uint32) {
	f.values[addr] = value
}

// Write applies a CSR write with the masking this implementation
// chose for mstatus/mepc, and returns the old value for
// journaling. The caller must have already verified Writable(addr).
func (f *CSRFile) Write(addr, value uint32) (old uint32) {
	old = f.values[addr]
	switch addr {
	case CSRMstatus:
		f.values[addr] = (old &^ mstatusMask) | (value & mstatusMask)
	case CSRMepc:
		f.values[addr] = value & mepcMask
	default:
		f.values[addr] = value
	}
	return old
}

// Dump returns a copy of every implemented CSR's current value, keyed
// by address, for snapshot/diagnostic use (never consulted by Step
// itself).
func (f *CSRFile) Dump() map[uint32]uint32 {
	out := make(map[uint32]uint32, len(f.values))
	for addr, v := range f.values {
		out[addr] = v
	}
	return out
}

// CSRDelta is one (address, pre-image) pair produced by a CSR write,
// for the caller to journal.
type CSRDelta struct {
	Addr uint32
	Old  uint32
}

// IncrementCounters advances cycle/instret (and their -h halves) by
// one, called once per committed step. time/timeh are
// wall-clock in real hardware; this core has no timing model (a
// Non-goal), so it advances time in lockstep with cycle, which keeps
// it monotonic and deterministic for replay. Returns the pre-image of
// every CSR word it touched so the CPU can journal them like any
// other CSR write — the counters are architectural state too, and
// must revert cleanly like any other architectural mutation.
func (f *CSRFile) IncrementCounters() []CSRDelta {
	var deltas []CSRDelta
	deltas = append(deltas, f.incr64(CSRCycle, CSRCycleh)...)
	deltas = append(deltas, f.incr64(CSRTime, CSRTimeh)...)
	deltas = append(deltas, f.incr64(CSRInstret, CSRInstreth)...)
	return deltas
}

func (f *CSRFile) incr64(lo, hi uint32) []CSRDelta {
	oldLo, oldHi := f.values[lo], f.values[hi]
	v := uint64(oldHi)<<32 | uint64(oldLo)
	v++
	f.values[lo] = uint32(v)
	f.values[hi] = uint32(v >> 32)
	return []CSRDelta{{lo, oldLo}, {hi, oldHi}}
}

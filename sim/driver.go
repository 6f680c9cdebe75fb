package sim

import (
	"errors"

	"redplanet/cpu"
)

// SetBreakpoint arms a software breakpoint at a physical address.
func (m *Machine) SetBreakpoint(addr uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakpoints[addr] = struct{}{}
}

// ClearBreakpoint disarms a breakpoint. Clearing an address that has
// none set is a no-op.
func (m *Machine) ClearBreakpoint(addr uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakpoints, addr)
}

// Breakpoints returns the currently armed breakpoint addresses.
// Breakpoints are debugger-session state, not journal state: they are
// never journaled and survive every reverse/forward transition.
func (m *Machine) Breakpoints() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint32, 0, len(m.breakpoints))
	for a := range m.breakpoints {
		out = append(out, a)
	}
	return out
}

func (m *Machine) atBreakpoint() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.breakpoints[m.CPU.PC]
	return ok
}

// Pause requests that a Continue/ReverseContinue in progress stop at
// the next step boundary. It is safe to call from another goroutine:
// the flag is only checked between steps.
func (m *Machine) Pause() {
	m.mu.Lock()
	m.pauseReq = true
	m.mu.Unlock()
}

func (m *Machine) consumePauseRequest() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pauseReq {
		m.pauseReq = false
		return true
	}
	return false
}

// Step executes exactly one instruction attempt while Paused, the way
// the `s / step` interactive command does. It does not consult
// breakpoints; those only gate Continue/ReverseContinue.
func (m *Machine) Step() (*cpu.Trap, error) {
	if m.Power.Halted() {
		m.setState(Halted)
		return nil, ErrHalted
	}
	trap, err := m.CPU.Step()
	if err != nil {
		return nil, err
	}
	if m.Power.Halted() {
		m.setState(Halted)
	}
	m.logf("step -> pc=0x%08x halted=%v", m.CPU.PC, m.Power.Halted())
	return trap, nil
}

// Continue runs forward until a breakpoint is hit (checked before
// fetch), the machine halts, or Pause is requested. It always leaves
// the driver in Paused or Halted, never Running, by the time it
// returns — the Running state is only observable mid-call to a
// concurrent State() caller.
func (m *Machine) Continue() error {
	m.setState(Running)
	for {
		if m.Power.Halted() {
			m.setState(Halted)
			return nil
		}
		if m.atBreakpoint() {
			m.setState(Paused)
			return nil
		}
		if m.consumePauseRequest() {
			m.setState(Paused)
			return nil
		}
		if _, err := m.Step(); err != nil {
			if errors.Is(err, ErrHalted) {
				return nil
			}
			return err
		}
	}
}

// ReverseStep reverts exactly one step, the way `rs / reverse-step`
// does. Reverting out of a halted state re-enters Paused (S3: "Reverse
// restores Running-eligible Paused with prior pc").
func (m *Machine) ReverseStep() error {
	if err := m.Journal.RevertOne(m); err != nil {
		return err
	}
	if m.State() == Halted {
		m.setState(Paused)
	}
	m.logf("reverse-step -> pc=0x%08x", m.CPU.PC)
	return nil
}

// ReverseContinue reverts steps until a breakpoint address is reached
// (checked after each revert, so reverse-continue stops at the same pc
// a forward continue would have stopped before executing), the journal
// runs out of history, or Pause is requested.
func (m *Machine) ReverseContinue() error {
	m.setState(ReverseRunning)
	for {
		if err := m.Journal.RevertOne(m); err != nil {
			if errors.Is(err, ErrNoHistory) {
				m.setState(Paused)
				return nil
			}
			return err
		}
		if m.State() == Halted {
			m.setState(Paused)
		}
		if m.atBreakpoint() {
			m.setState(Paused)
			return nil
		}
		if m.consumePauseRequest() {
			m.setState(Paused)
			return nil
		}
	}
}

// Goto moves the machine to an absolute step index: reverse-stepping
// if target is behind current_step, or forward-stepping (discarding
// any prior future, per the rewrite-history rule) if ahead. Returns
// ErrDivergentGoto if the program halts strictly before reaching
// target on the way forward.
func (m *Machine) Goto(target uint64) error {
	cur := m.Journal.CurrentStep()
	if target == cur {
		return nil
	}
	if target < cur {
		for m.Journal.CurrentStep() > target {
			if err := m.ReverseStep(); err != nil {
				return err
			}
		}
		return nil
	}
	for m.Journal.CurrentStep() < target {
		if m.Power.Halted() {
			return ErrDivergentGoto
		}
		if _, err := m.Step(); err != nil {
			if errors.Is(err, ErrHalted) {
				return ErrDivergentGoto
			}
			return err
		}
	}
	return nil
}

// DeleteFuture discards any journal entries beyond current_step. In
// this journal's representation there never are any (RevertOne pops
// and drops as it goes rather than keeping a redo tail), so this call
// exists for API completeness and is trivially idempotent.
func (m *Machine) DeleteFuture() {
	m.Journal.TruncateFuture()
}

// Quit transitions the driver to its terminal state. No further
// stepping is possible afterward.
func (m *Machine) Quit() {
	m.setState(Terminal)
}

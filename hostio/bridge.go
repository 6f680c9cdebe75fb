// Package hostio is the host <-> guest UART byte bridge. Host input
// crosses the simulation thread's boundary through one buffered byte
// channel, fed by the ReadLoop goroutine and drained by Pump. There is
// no channel in the other direction: Pump writes the UART's TX bytes to
// the host writer itself, on the simulation goroutine. The UART device
// and the journal are only ever touched from the simulation goroutine
// that calls Pump between steps, never from the reader goroutine.
//
// RawMode's raw unix.Termios / unix.IoctlGetTermios / unix.IoctlSetTermios
// plumbing is the standard way an interactive terminal front-end
// disables line buffering so individual keystrokes reach the guest
// UART immediately, aimed at the host tty.
package hostio

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"redplanet/devices"
	"redplanet/journal"
)

// rxQueueCapacity bounds the host->guest channel so a burst of pasted
// input can't block the reader goroutine forever; it is independent
// of (and much larger than) the UART's own 16-byte RX FIFO, which has
// its own drop-oldest policy once bytes reach the guest side.
const rxQueueCapacity = 256

// Recorder is the narrow surface Pump needs from the simulation driver
// to make a host keystroke reversible: record it as a between-steps
// event, not a step. *journal.Journal satisfies this directly.
type Recorder interface {
	RecordHostInput(records []journal.UndoRecord)
}

// Bridge couples a UART device to host input/output streams. ReadLoop
// runs in its own goroutine, reading raw bytes from in and enqueuing
// them; Pump, called from the simulation goroutine between steps,
// drains that queue into the UART (journaling each push) and flushes
// the UART's TX FIFO out to out.
type Bridge struct {
	uart *devices.UART
	in   io.Reader
	out  io.Writer

	rx chan byte
}

// New creates a Bridge over an already-constructed UART. in/out are
// typically a raw-mode host tty fd wrapped as io.Reader/io.Writer, but
// any stream works (tests use bytes.Buffer / io.Pipe).
func New(uart *devices.UART, in io.Reader, out io.Writer) *Bridge {
	return &Bridge{uart: uart, in: in, out: out, rx: make(chan byte, rxQueueCapacity)}
}

// ReadLoop blocks reading single bytes from the host input stream and
// enqueuing each one for the next Pump call, until the reader returns
// an error (typically io.EOF on quit). Intended to run in its own
// goroutine, independent of the stepping loop.
func (b *Bridge) ReadLoop() error {
	buf := make([]byte, 1)
	for {
		n, err := b.in.Read(buf)
		if n > 0 {
			b.rx <- buf[0]
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("hostio: read loop: %w", err)
		}
	}
}

// Pump is the simulation thread's suspension-point hook, called
// between steps. It drains every byte currently queued from ReadLoop
// into the UART's RX FIFO (journaling each as a host-input event via
// rec) and writes every byte currently queued in the UART's TX FIFO
// out to the host. It never blocks: both directions only move what is
// already available.
func (b *Bridge) Pump(rec Recorder) error {
	for {
		select {
		case by := <-b.rx:
			if undo := b.uart.PushRX(by); len(undo) > 0 {
				rec.RecordHostInput(undo)
			}
		default:
			return b.drainTX()
		}
	}
}

func (b *Bridge) drainTX() error {
	out := b.uart.DrainTX()
	if len(out) == 0 {
		return nil
	}
	_, err := b.out.Write(out)
	return err
}

// RawMode puts fd (typically an open /dev/tty or os.Stdin.Fd()) into
// non-canonical, non-echoing mode so individual keystrokes reach
// ReadLoop without waiting for a newline, and returns a function that
// restores the terminal's original settings.
func RawMode(fd int) (restore func() error, err error) {
	orig, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, fmt.Errorf("hostio: get termios: %w", err)
	}

	raw := *orig
	raw.Lflag &^= unix.ECHO | unix.ICANON | unix.ISIG
	raw.Iflag &^= unix.IXON | unix.ICRNL
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &raw); err != nil {
		return nil, fmt.Errorf("hostio: set termios: %w", err)
	}

	return func() error {
		return unix.IoctlSetTermios(fd, ioctlSetTermios, orig)
	}, nil
}

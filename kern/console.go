// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"github.com/hashicorp/go-hclog"

	"github.com/pi5hack/pi5os/bcm2712"
)

// A Console is the kernel driver for the PL011 serial port, which is
// the system console. Output leaves through Write, and keyboard input
// arrives through ServiceIRQ when the UART raises its interrupt line.
//
// The receive side does canonical line discipline inside the handler:
// printable bytes are echoed and gathered into a partial line,
// backspace erases, and CR or LF completes the line. Completed lines
// queue up for ReadLine, which the shell polls from the main loop.
// The handler itself never blocks and never interprets a command.
type Console struct {
	log  hclog.Logger
	bus  *bcm2712.Bus
	base uint64

	Sig *Signals // delivery target for ^C, wired by the kernel

	line []byte   // partial input line
	done []string // completed lines waiting for ReadLine

	Overrun uint64 // bytes dropped because the line buffer was full
}

// NewConsole returns a console driver for m's UART.
func NewConsole(log hclog.Logger, m *bcm2712.Machine) *Console {
	return &Console{
		log:  log.Named("cons"),
		bus:  m.Bus,
		base: m.Board.UARTBase,
	}
}

// Write sends p to the serial port, expanding each LF to CRLF.
// It implements io.Writer, so kernel code prints to the console
// with fmt.Fprintf.
func (co *Console) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			co.putb('\r')
		}
		co.putb(b)
	}
	return len(p), nil
}

// putb spins until the transmit FIFO has room, then writes one byte.
func (co *Console) putb(b byte) {
	for co.bus.Read32(co.base+bcm2712.UARTFR)&bcm2712.FRTXFF != 0 {
	}
	co.bus.Write32(co.base+bcm2712.UARTDR, uint32(b))
}

// ServiceIRQ drains the receive FIFO through the line discipline.
// It is registered with the interrupt controller as the reaction for
// the UART's interrupt line.
func (co *Console) ServiceIRQ() {
	for co.bus.Read32(co.base+bcm2712.UARTFR)&bcm2712.FRRXFE == 0 {
		co.feed(byte(co.bus.Read32(co.base + bcm2712.UARTDR)))
	}
}

func (co *Console) feed(b byte) {
	switch {
	case b == '\r' || b == '\n':
		co.Write([]byte("\n"))
		co.done = append(co.done, string(co.line))
		co.line = co.line[:0]

	case b == 0x03: /* ^C */
		co.Write([]byte("^C\n"))
		co.line = co.line[:0]
		if co.Sig != nil {
			co.Sig.Interrupt()
		}
		// an empty completed line makes the shell reprint its prompt
		co.done = append(co.done, "")

	case b == 0x08 || b == 0x7F:
		if len(co.line) > 0 {
			co.line = co.line[:len(co.line)-1]
			co.Write([]byte("\x08 \x08"))
		}

	case 0x20 <= b && b <= 0x7E:
		if len(co.line) >= CANBSIZ {
			co.Overrun++
			return
		}
		co.putb(b)
		co.line = append(co.line, b)
	}
}

// ReadLine returns the next completed input line, without its
// terminator, and reports whether one was ready. It never blocks.
func (co *Console) ReadLine() (string, bool) {
	if len(co.done) == 0 {
		return "", false
	}
	s := co.done[0]
	co.done = co.done[1:]
	return s, true
}

// Pending reports how many completed lines are waiting for ReadLine.
func (co *Console) Pending() int { return len(co.done) }

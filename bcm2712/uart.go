// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcm2712

import "io"

// PL011 register offsets and flag bits.
const (
	UARTDR = 0x00 // data register
	UARTFR = 0x18 // flag register

	FRRXFE = 1 << 4 // receive FIFO empty
	FRTXFF = 1 << 5 // transmit FIFO full
)

// A UART is the PL011 serial port reduced to the registers the kernel
// uses: the data register and the flag register. Transmitted bytes go
// to W; received bytes are queued by the host side with QueueInput,
// which also raises the UART's interrupt line. The transmit FIFO never
// fills, because the host writer is unbounded.
type UART struct {
	W io.Writer

	gic *GIC
	irq uint32
	rx  []byte
}

// NewUART returns a UART raising irq on gic and transmitting to w.
func NewUART(gic *GIC, irq uint32, w io.Writer) *UART {
	return &UART{W: w, gic: gic, irq: irq}
}

// QueueInput appends received bytes to the RX FIFO and raises the
// interrupt line.
func (u *UART) QueueInput(b []byte) {
	if len(b) == 0 {
		return
	}
	u.rx = append(u.rx, b...)
	u.gic.Assert(u.irq)
}

// Buffered reports how many received bytes are waiting to be read.
func (u *UART) Buffered() int { return len(u.rx) }

func (u *UART) Read32(off uint32) uint32 {
	switch off {
	case UARTDR:
		if len(u.rx) == 0 {
			return 0
		}
		c := u.rx[0]
		u.rx = u.rx[1:]
		if len(u.rx) == 0 {
			u.gic.Deassert(u.irq)
		}
		return uint32(c)
	case UARTFR:
		fr := uint32(0)
		if len(u.rx) == 0 {
			fr |= FRRXFE
		}
		return fr
	}
	return 0
}

func (u *UART) Write32(off uint32, val uint32) {
	if off == UARTDR && u.W != nil {
		u.W.Write([]byte{byte(val)})
	}
}

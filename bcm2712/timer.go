// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcm2712

// System timer register offsets.
const (
	TimerCS  = 0x00 // control/status: per-channel match flags, write-1-to-clear
	TimerCLO = 0x04 // counter bits 31:0
	TimerCHI = 0x08 // counter bits 63:32
	TimerC0  = 0x0C // compare channel 0
	TimerC1  = 0x10 // compare channel 1
	TimerC2  = 0x14 // compare channel 2
	TimerC3  = 0x18 // compare channel 3
)

// A Timer is the free-running 1 MHz system timer: a 64-bit counter
// readable as CLO/CHI plus four 32-bit compare channels. When CLO
// passes an armed channel's compare value the channel's CS flag is
// set and the timer interrupt line is raised; the flag (and the line)
// stay up until software writes 1 to the flag.
//
// The counter itself comes from the Now callback, so tests can drive
// virtual time and pi5run can use the wall clock.
type Timer struct {
	Now func() uint64 // counter value, microseconds

	gic   *GIC
	irq   uint32
	cs    uint32
	cmp   [4]uint32
	armed [4]bool
}

// NewTimer returns a Timer raising irq on gic, counting per now.
func NewTimer(gic *GIC, irq uint32, now func() uint64) *Timer {
	return &Timer{Now: now, gic: gic, irq: irq}
}

// Sync checks the compare channels against the counter, raising the
// interrupt line for any newly matched channel. Device polling
// happens here rather than on a background clock so that delivery
// only occurs at the instruction boundaries the caller chooses.
func (t *Timer) Sync() {
	clo := uint32(t.Now())
	for i := range t.cmp {
		// Matched when CLO has reached or passed the compare
		// value, in 32-bit wraparound order.
		if t.armed[i] && int32(clo-t.cmp[i]) >= 0 {
			t.armed[i] = false
			t.cs |= 1 << i
			t.gic.Assert(t.irq)
		}
	}
}

func (t *Timer) Read32(off uint32) uint32 {
	switch off {
	case TimerCS:
		return t.cs
	case TimerCLO:
		return uint32(t.Now())
	case TimerCHI:
		return uint32(t.Now() >> 32)
	case TimerC0, TimerC1, TimerC2, TimerC3:
		return t.cmp[(off-TimerC0)/4]
	}
	return 0
}

func (t *Timer) Write32(off uint32, val uint32) {
	switch off {
	case TimerCS:
		t.cs &^= val
		if t.cs == 0 {
			t.gic.Deassert(t.irq)
		}
	case TimerC0, TimerC1, TimerC2, TimerC3:
		i := (off - TimerC0) / 4
		t.cmp[i] = val
		t.armed[i] = true
	}
}

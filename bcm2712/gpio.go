// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcm2712

// RP1 GPIO register layout. Each pin has a STATUS/CTRL register pair
// in the io_bank0 window; the sys_rio0 window, SysRIOStride bytes
// above it, holds the software-I/O output, output-enable, and input
// registers, one bit per pin.
const (
	GPIOStatus = 0x0000 // per-pin, pin*8 + GPIOStatus
	GPIOCtrl   = 0x0004 // per-pin, pin*8 + GPIOCtrl

	SysRIOStride = 0x10000 // io_bank0 to sys_rio0 distance

	RIOIn     = 0x004 // pad input levels
	RIOOut    = 0x010 // output levels
	RIOOutSet = 0x014
	RIOOutClr = 0x018
	RIOOutXor = 0x01c
	RIOOE     = 0x020 // output enables
	RIOOESet  = 0x024
	RIOOEClr  = 0x028
	RIOOEXor  = 0x02c
)

// CTRL fields.
const (
	CtrlFuncselMask = 0x1F
	CtrlOutoverLSB  = 12
	CtrlOEoverLSB   = 14
	CtrlInoverLSB   = 16
)

// Pin function selects.
const (
	FuncSPI  = 1
	FuncUART = 2
	FuncI2C  = 3
	FuncPWM  = 4
	FuncSIO  = 5 // software controlled I/O
	FuncPIO  = 6
	FuncGPCK = 8
	FuncUSB  = 9
	FuncNull = 31
)

// STATUS bits.
const (
	StatusOutFromPeri = 1 << 8
	StatusOutToPad    = 1 << 9
	StatusOEFromPeri  = 1 << 12
	StatusOEToPad     = 1 << 13
	StatusInFromPad   = 1 << 17
	StatusInToPeri    = 1 << 18
)

// GPIOPins is the number of pins the block implements. The SIO
// registers cover the first 32 of them, one bit each.
const GPIOPins = 54

// A GPIO models the RP1 GPIO block: per-pin function/override control
// in io_bank0 and the bit-banked software I/O registers in sys_rio0.
// External pad levels are driven with SetInput, which also raises the
// block's interrupt line as a level-change event.
type GPIO struct {
	gic *GIC
	irq uint32

	ctrl [GPIOPins]uint32
	out  uint32 // SIO output latch, pins 0..31
	oe   uint32 // SIO output enables, pins 0..31
	in   uint32 // externally driven pad levels, pins 0..31
}

// NewGPIO returns a GPIO raising irq on gic. All pins reset to
// function 0 with outputs disabled.
func NewGPIO(gic *GIC, irq uint32) *GPIO {
	return new(GPIO).reset(gic, irq)
}

func (g *GPIO) reset(gic *GIC, irq uint32) *GPIO {
	g.gic = gic
	g.irq = irq
	return g
}

// SetInput drives the external pad level of pin and raises the GPIO
// interrupt line, modeling a level-change event from outside.
func (g *GPIO) SetInput(pin uint32, high bool) {
	if pin >= 32 {
		return
	}
	if high {
		g.in |= 1 << pin
	} else {
		g.in &^= 1 << pin
	}
	g.gic.Assert(g.irq)
}

// Level reports the pad level of pin: the driven output if the pin's
// output is enabled, the external input otherwise.
func (g *GPIO) Level(pin uint32) bool {
	return g.pad()&(1<<pin) != 0
}

// pad returns the resolved pad level of pins 0..31.
func (g *GPIO) pad() uint32 {
	return g.out&g.oe | g.in&^g.oe
}

// over applies a 2-bit override field to a signal bit: pass, invert,
// force low, force high.
func over(field uint32, signal bool) bool {
	switch field & 3 {
	case 1:
		return !signal
	case 2:
		return false
	case 3:
		return true
	}
	return signal
}

// status computes the STATUS register of pin from the control
// overrides, the SIO state, and the external pad level.
func (g *GPIO) status(pin uint32) uint32 {
	ctrl := g.ctrl[pin]
	bit := uint32(0)
	if pin < 32 {
		bit = 1 << pin
	}

	// Only the SIO function has a modeled peripheral behind it.
	periOut := ctrl&CtrlFuncselMask == FuncSIO && g.out&bit != 0
	periOE := ctrl&CtrlFuncselMask == FuncSIO && g.oe&bit != 0
	outToPad := over(ctrl>>CtrlOutoverLSB, periOut)
	oeToPad := over(ctrl>>CtrlOEoverLSB, periOE)

	pad := g.in&bit != 0
	if oeToPad {
		pad = outToPad
	}
	inToPeri := over(ctrl>>CtrlInoverLSB, pad)

	st := uint32(0)
	if periOut {
		st |= StatusOutFromPeri
	}
	if outToPad {
		st |= StatusOutToPad
	}
	if periOE {
		st |= StatusOEFromPeri
	}
	if oeToPad {
		st |= StatusOEToPad
	}
	if pad {
		st |= StatusInFromPad
	}
	if inToPeri {
		st |= StatusInToPeri
	}
	return st
}

// IOBank returns the Device view of the io_bank0 window.
func (g *GPIO) IOBank() Device { return (*gpioBank)(g) }

// SysRIO returns the Device view of the sys_rio0 window.
func (g *GPIO) SysRIO() Device { return (*gpioRIO)(g) }

type gpioBank GPIO

func (b *gpioBank) Read32(off uint32) uint32 {
	g := (*GPIO)(b)
	pin := off / 8
	if pin >= GPIOPins {
		return 0
	}
	if off%8 == GPIOCtrl {
		return g.ctrl[pin]
	}
	return g.status(pin)
}

func (b *gpioBank) Write32(off uint32, val uint32) {
	g := (*GPIO)(b)
	pin := off / 8
	if pin < GPIOPins && off%8 == GPIOCtrl {
		g.ctrl[pin] = val
	}
}

type gpioRIO GPIO

func (r *gpioRIO) Read32(off uint32) uint32 {
	g := (*GPIO)(r)
	switch off {
	case RIOIn:
		return g.pad()
	case RIOOut, RIOOutSet, RIOOutClr, RIOOutXor:
		return g.out
	case RIOOE, RIOOESet, RIOOEClr, RIOOEXor:
		return g.oe
	}
	return 0
}

func (r *gpioRIO) Write32(off uint32, val uint32) {
	g := (*GPIO)(r)
	switch off {
	case RIOOut:
		g.out = val
	case RIOOutSet:
		g.out |= val
	case RIOOutClr:
		g.out &^= val
	case RIOOutXor:
		g.out ^= val
	case RIOOE:
		g.oe = val
	case RIOOESet:
		g.oe |= val
	case RIOOEClr:
		g.oe &^= val
	case RIOOEXor:
		g.oe ^= val
	}
}

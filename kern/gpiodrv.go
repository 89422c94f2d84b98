// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/pi5hack/pi5os/bcm2712"
)

// Pin assignments on the Pi 5.
const (
	PinLEDAct = 29 /* activity LED, green */
	PinLEDPwr = 31 /* power LED, red */
	PinUARTTx = 14
	PinUARTRx = 15
)

// A GPIO is the kernel driver for the RP1 GPIO block. The per-pin
// CTRL registers in io_bank0 select each pin's peripheral function;
// pins claimed for software I/O are then driven one bit at a time
// through the sys_rio0 set/clear/xor registers, so no read-modify-write
// races with other pins.
//
// All entry points validate the pin number and ignore out-of-range
// pins rather than fault.
type GPIO struct {
	log  hclog.Logger
	bus  *bcm2712.Bus
	bank uint64 // io_bank0, per-pin STATUS/CTRL pairs
	rio  uint64 // sys_rio0, bit-banked software I/O
}

// NewGPIO returns a GPIO driver for m's RP1 block.
func NewGPIO(log hclog.Logger, m *bcm2712.Machine) *GPIO {
	return &GPIO{
		log:  log.Named("gpio"),
		bus:  m.Bus,
		bank: m.Board.GPIOBase,
		rio:  m.Board.GPIOBase + bcm2712.SysRIOStride,
	}
}

// Init probes the block and claims the console and LED pins: the UART
// pair keeps its UART function, the LEDs become software-controlled
// outputs driven low. A bus that reads back all ones means the RP1
// window is not mapped, and Init fails rather than let later pin
// writes scribble on an absent device.
func (g *GPIO) Init() error {
	if g.readPin(0, bcm2712.GPIOStatus) == bcm2712.OpenBus {
		return fmt.Errorf("gpio registers not accessible at %#x", g.bank)
	}

	g.SetFunc(PinUARTTx, bcm2712.FuncUART)
	g.SetFunc(PinUARTRx, bcm2712.FuncUART)

	g.SetFunc(PinLEDAct, bcm2712.FuncSIO)
	g.SetFunc(PinLEDPwr, bcm2712.FuncSIO)
	g.SetOutput(PinLEDAct, true)
	g.SetOutput(PinLEDPwr, true)
	g.SetLevel(PinLEDAct, false)
	g.SetLevel(PinLEDPwr, false)

	g.log.Info("rp1 gpio ready", "pins", bcm2712.GPIOPins)
	return nil
}

func (g *GPIO) readPin(pin, off uint32) uint32 {
	return g.bus.Read32(g.bank + uint64(pin)*8 + uint64(off))
}

func (g *GPIO) writePin(pin, off, val uint32) {
	g.bus.Write32(g.bank+uint64(pin)*8+uint64(off), val)
}

func (g *GPIO) readRIO(off uint32) uint32 {
	return g.bus.Read32(g.rio + uint64(off))
}

func (g *GPIO) writeRIO(off, val uint32) {
	g.bus.Write32(g.rio+uint64(off), val)
}

// SetFunc selects the peripheral function of pin, leaving the
// override fields of CTRL alone.
func (g *GPIO) SetFunc(pin, fn uint32) {
	if pin >= bcm2712.GPIOPins {
		return
	}
	ctrl := g.readPin(pin, bcm2712.GPIOCtrl)
	ctrl &^= bcm2712.CtrlFuncselMask
	ctrl |= fn & bcm2712.CtrlFuncselMask
	g.writePin(pin, bcm2712.GPIOCtrl, ctrl)
}

// SetOutput enables or disables the output driver of pin.
func (g *GPIO) SetOutput(pin uint32, output bool) {
	if pin >= bcm2712.GPIOPins {
		return
	}
	if output {
		g.writeRIO(bcm2712.RIOOESet, 1<<pin)
	} else {
		g.writeRIO(bcm2712.RIOOEClr, 1<<pin)
	}
}

// SetLevel drives pin high or low.
func (g *GPIO) SetLevel(pin uint32, high bool) {
	if pin >= bcm2712.GPIOPins {
		return
	}
	if high {
		g.writeRIO(bcm2712.RIOOutSet, 1<<pin)
	} else {
		g.writeRIO(bcm2712.RIOOutClr, 1<<pin)
	}
}

// Toggle inverts the driven level of pin.
func (g *GPIO) Toggle(pin uint32) {
	if pin >= bcm2712.GPIOPins {
		return
	}
	g.writeRIO(bcm2712.RIOOutXor, 1<<pin)
}

// Level reports the pad level of pin.
func (g *GPIO) Level(pin uint32) bool {
	if pin >= bcm2712.GPIOPins {
		return false
	}
	return g.readRIO(bcm2712.RIOIn)&(1<<pin) != 0
}

// Status returns the raw STATUS register of pin, for diagnostics.
func (g *GPIO) Status(pin uint32) uint32 {
	if pin >= bcm2712.GPIOPins {
		return 0
	}
	return g.readPin(pin, bcm2712.GPIOStatus)
}

// Ctrl returns the raw CTRL register of pin, for diagnostics.
func (g *GPIO) Ctrl(pin uint32) uint32 {
	if pin >= bcm2712.GPIOPins {
		return 0
	}
	return g.readPin(pin, bcm2712.GPIOCtrl)
}

// SetActivityLED drives the green activity LED.
func (g *GPIO) SetActivityLED(on bool) { g.SetLevel(PinLEDAct, on) }

// SetPowerLED drives the red power LED.
func (g *GPIO) SetPowerLED(on bool) { g.SetLevel(PinLEDPwr, on) }

// BlinkActivityLED inverts the activity LED.
func (g *GPIO) BlinkActivityLED() { g.Toggle(PinLEDAct) }

// BlinkPowerLED inverts the power LED.
func (g *GPIO) BlinkPowerLED() { g.Toggle(PinLEDPwr) }

// ServiceIRQ acknowledges a pad level-change event. It is registered
// with the interrupt controller as the reaction for the GPIO line.
func (g *GPIO) ServiceIRQ() {
	g.log.Debug("level change", "in", hclog.Fmt("%#08x", g.readRIO(bcm2712.RIOIn)))
}

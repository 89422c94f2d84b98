// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcm2712

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// A Board holds the physical layout of one board revision: where the
// peripheral register windows live, how their interrupt lines are
// routed, and how much memory is fitted. Profiles load from JSON so
// alternate revisions can be described without recompiling.
type Board struct {
	Name       string `json:"name"`
	Revision   string `json:"revision"`
	MemMB      uint64 `json:"mem_mb"`
	GICDBase   uint64 `json:"gicd_base"`
	GICCBase   uint64 `json:"gicc_base"`
	TimerBase  uint64 `json:"timer_base"`
	UARTBase   uint64 `json:"uart_base"`
	GPIOBase   uint64 `json:"gpio_base"`
	VectorBase uint64 `json:"vector_base"`
	IRQTimer   uint32 `json:"irq_timer"`
	IRQUART    uint32 `json:"irq_uart"`
	IRQGPIO    uint32 `json:"irq_gpio"`
}

// Pi5 returns the profile of a Raspberry Pi 5 Model B.
func Pi5() *Board {
	return &Board{
		Name:       "Raspberry Pi 5 Model B",
		Revision:   "d04170",
		MemMB:      8192,
		GICDBase:   0x2000_1000,
		GICCBase:   0x2000_2000,
		TimerBase:  0xFE00_3000,
		UARTBase:   0x10_7D00_1000,
		GPIOBase:   0x1F_000D_0000,
		VectorBase: 0x80800,
		IRQTimer:   64,
		IRQUART:    153,
		IRQGPIO:    113,
	}
}

// LoadBoard reads a JSON board profile from path. Fields not present
// in the file keep their Pi 5 defaults.
func LoadBoard(path string) (*Board, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b := Pi5()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(b); err != nil {
		return nil, fmt.Errorf("board profile %s: %v", path, err)
	}
	return b, nil
}

// A Machine is one assembled board: the core, the bus, and every
// peripheral mapped at the addresses the profile names. The console
// writer receives UART transmit bytes; now supplies the system timer
// counter in microseconds (nil means wall-clock time since assembly).
type Machine struct {
	Board *Board
	Bus   *Bus
	Core  *Core
	GIC   *GIC
	Timer *Timer
	UART  *UART
	GPIO  *GPIO
}

// NewMachine assembles a Machine for the given board profile.
// The core comes up with IRQs masked, as out of reset.
func NewMachine(b *Board, console io.Writer, now func() uint64) *Machine {
	if now == nil {
		epoch := time.Now()
		now = func() uint64 { return uint64(time.Since(epoch).Microseconds()) }
	}

	bus := new(Bus)
	gic := NewGIC()
	tm := NewTimer(gic, b.IRQTimer, now)
	uart := NewUART(gic, b.IRQUART, console)
	gpio := NewGPIO(gic, b.IRQGPIO)

	bus.Map(b.GICDBase, 0x1000, gic.Distributor())
	bus.Map(b.GICCBase, 0x1000, gic.CPUInterface())
	bus.Map(b.TimerBase, 0x1C, tm)
	bus.Map(b.UARTBase, 0x90, uart)
	bus.Map(b.GPIOBase, GPIOPins*8, gpio.IOBank())
	bus.Map(b.GPIOBase+SysRIOStride, 0x30, gpio.SysRIO())

	core := &Core{Bus: bus}
	core.MaskIRQ()

	return &Machine{Board: b, Bus: bus, Core: core, GIC: gic, Timer: tm, UART: uart, GPIO: gpio}
}

// Sync gives the peripherals that watch the passage of time a chance
// to raise their interrupt lines.
func (m *Machine) Sync() {
	m.Timer.Sync()
}

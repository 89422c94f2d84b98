// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/pi5hack/pi5os/bcm2712"
)

// IntrCtl drives the GIC-400 through its memory-mapped distributor
// and CPU interface windows. All mutable interrupt state lives in the
// hardware registers; the driver itself holds only the base addresses
// and the table of per-line reactions.
type IntrCtl struct {
	log   hclog.Logger
	bus   *bcm2712.Bus
	core  *bcm2712.Core
	board *bcm2712.Board
	dist  uint64 /* distributor base */
	cpu   uint64 /* cpu interface base */
	lines uint32 /* implemented lines, from the type register */

	reactions [bcm2712.GICLines]func()

	// Spurious counts acknowledge reads that returned no interrupt.
	// A spurious acknowledge must not be followed by an EOI write.
	Spurious uint64
}

func NewIntrCtl(log hclog.Logger, m *bcm2712.Machine) *IntrCtl {
	return &IntrCtl{
		log:   log.Named("gic"),
		bus:   m.Bus,
		core:  m.Core,
		board: m.Board,
		dist:  m.Board.GICDBase,
		cpu:   m.Board.GICCBase,
	}
}

func (ic *IntrCtl) readDist(off uint32) uint32       { return ic.bus.Read32(ic.dist + uint64(off)) }
func (ic *IntrCtl) writeDist(off uint32, val uint32) { ic.bus.Write32(ic.dist+uint64(off), val) }
func (ic *IntrCtl) readCPU(off uint32) uint32        { return ic.bus.Read32(ic.cpu + uint64(off)) }
func (ic *IntrCtl) writeCPU(off uint32, val uint32)  { ic.bus.Write32(ic.cpu+uint64(off), val) }

// Init brings up the distributor and the CPU interface, enables the
// board's timer, UART, and GPIO lines, installs the exception vector
// table, and only then unmasks IRQs at the core.
//
// It fails only if the distributor registers are not readable at the
// configured base, which is fatal to boot.
func (ic *IntrCtl) Init() error {
	ic.log.Info("initializing gic-400")
	if err := ic.initDistributor(); err != nil {
		return err
	}
	ic.initCPUInterface()

	ic.Enable(ic.board.IRQTimer)
	ic.Enable(ic.board.IRQUART)
	ic.Enable(ic.board.IRQGPIO)

	ic.installVectors()
	ic.core.UnmaskIRQ()
	ic.log.Info("gic-400 ready", "lines", ic.lines)
	return nil
}

func (ic *IntrCtl) initDistributor() error {
	ic.writeDist(bcm2712.GICDCtlr, 0)

	typer := ic.readDist(bcm2712.GICDTyper)
	if typer == bcm2712.OpenBus {
		return fmt.Errorf("gic distributor not accessible at %#x", ic.dist)
	}
	ic.lines = ((typer & 0x1F) + 1) * 32

	// mask and clear-pending every line
	for i := uint32(0); i < ic.lines; i += 32 {
		ic.writeDist(bcm2712.GICDIcenabler+i/8, 0xFFFFFFFF)
	}
	for i := uint32(0); i < ic.lines; i += 32 {
		ic.writeDist(bcm2712.GICDIcpendr+i/8, 0xFFFFFFFF)
	}

	// one priority byte per line, lower value is higher priority
	for i := uint32(0); i < ic.lines; i += 4 {
		ic.writeDist(bcm2712.GICDIpriority+i, 0xA0A0A0A0)
	}

	// route every shared line to CPU0
	for i := uint32(32); i < ic.lines; i += 4 {
		ic.writeDist(bcm2712.GICDItargetsr+i, 0x01010101)
	}

	ic.writeDist(bcm2712.GICDCtlr, 1)
	return nil
}

func (ic *IntrCtl) initCPUInterface() {
	ic.writeCPU(bcm2712.GICCPmr, 0xFF)
	ic.writeCPU(bcm2712.GICCCtlr, 1)
}

// Enable unmasks one interrupt line at the distributor.
func (ic *IntrCtl) Enable(irq uint32) {
	off := bcm2712.GICDIsenabler + (irq/32)*4
	cur := ic.readDist(off)
	ic.writeDist(off, cur|1<<(irq%32))
}

// Disable masks one interrupt line at the distributor.
func (ic *IntrCtl) Disable(irq uint32) {
	off := bcm2712.GICDIcenabler + (irq/32)*4
	ic.writeDist(off, 1<<(irq%32))
}

// Register attaches the kernel reaction for one interrupt line.
func (ic *IntrCtl) Register(irq uint32, f func()) {
	if irq < bcm2712.GICLines {
		ic.reactions[irq] = f
	}
}

// HandleInterrupt services one interrupt: it reads the acknowledge
// register, runs the registered reaction, and writes the same
// acknowledge value back to the end-of-interrupt register. Skipping
// that last write would leave the line masked at the CPU interface
// forever, so it happens even when no reaction is registered.
//
// Acknowledge values of 1020 and up are spurious: there is nothing to
// service and nothing to EOI.
func (ic *IntrCtl) HandleInterrupt() (uint32, bool) {
	iar := ic.readCPU(bcm2712.GICCIar)
	irq := iar & 0x3FF
	if irq >= 1020 {
		ic.Spurious++
		return 0, false
	}

	if f := ic.reactions[irq]; f != nil {
		f()
	} else {
		ic.log.Warn("unhandled interrupt", "irq", irq)
	}

	ic.writeCPU(bcm2712.GICCEoir, iar)
	return irq, true
}

// installVectors builds the sixteen-slot exception vector table. The
// four IRQ slots all funnel into HandleInterrupt; every other slot is
// an unexpected exception and halts the core with a diagnosis.
func (ic *IntrCtl) installVectors() {
	var table [bcm2712.NumVec]func(*bcm2712.Core)
	for v := bcm2712.VecSlot(0); v < bcm2712.NumVec; v++ {
		switch v {
		case bcm2712.VecSP0IRQ, bcm2712.VecSPxIRQ, bcm2712.VecLower64IRQ, bcm2712.VecLower32IRQ:
			table[v] = func(*bcm2712.Core) { ic.HandleInterrupt() }
		default:
			v := v
			table[v] = func(c *bcm2712.Core) {
				c.Halt(fmt.Sprintf("unexpected exception: %v", v))
			}
		}
	}
	ic.core.InstallVectors(ic.board.VectorBase, table)
}

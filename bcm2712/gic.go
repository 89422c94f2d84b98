// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcm2712

// GIC-400 register offsets, relative to the distributor and CPU
// interface windows.
const (
	GICDCtlr      = 0x000 // distributor control
	GICDTyper     = 0x004 // controller type
	GICDIsenabler = 0x100 // set-enable, 8 words
	GICDIcenabler = 0x180 // clear-enable, 8 words
	GICDIspendr   = 0x200 // set-pending, 8 words
	GICDIcpendr   = 0x280 // clear-pending, 8 words
	GICDIpriority = 0x400 // priority, one byte per line
	GICDItargetsr = 0x800 // target CPUs, one byte per line

	GICCCtlr = 0x000 // CPU interface control
	GICCPmr  = 0x004 // priority mask
	GICCIar  = 0x00C // interrupt acknowledge
	GICCEoir = 0x010 // end of interrupt
)

// GICLines is the number of interrupt lines the model implements.
// The type register advertises it as ITLinesNumber = GICLines/32 - 1.
const GICLines = 256

// Spurious is the acknowledge value returned when no interrupt
// qualifies for delivery.
const Spurious = 1023

// A GIC is a register-level model of the GIC-400 (GICv2) as seen by a
// single core: one distributor plus one CPU interface. Lines are
// asserted by the device models through Assert and claimed by software
// through the acknowledge/EOI registers.
//
// The model keeps GICv2's running-priority rule: while a line is
// active (acknowledged, not yet EOId), only strictly higher-priority
// lines are signaled to the core.
type GIC struct {
	dctlr  uint32 // distributor enable
	cctlr  uint32 // CPU interface enable
	pmr    uint32 // priority mask; only prio < pmr is signaled
	enable [GICLines / 32]uint32
	pend   [GICLines / 32]uint32
	active [GICLines / 32]uint32
	prio   [GICLines]uint8
	target [GICLines]uint8

	// BadEOI counts end-of-interrupt writes that named no active
	// line. Such writes are dropped by the hardware; the count is
	// kept so tests can detect unbalanced acknowledge/EOI pairs.
	BadEOI int
}

// NewGIC returns a GIC with every line disabled and idle.
func NewGIC() *GIC {
	return new(GIC)
}

// Assert marks irq pending, as a device raising its interrupt line.
// Out-of-range lines are ignored.
func (g *GIC) Assert(irq uint32) {
	if irq < GICLines {
		g.pend[irq/32] |= 1 << (irq % 32)
	}
}

// Deassert clears a pending irq that has not been acknowledged yet,
// as a level-triggered device dropping its line.
func (g *GIC) Deassert(irq uint32) {
	if irq < GICLines {
		g.pend[irq/32] &^= 1 << (irq % 32)
	}
}

// IRQAsserted reports whether the CPU interface is signaling an
// interrupt to the core, honoring enables, the priority mask, and the
// running priority of any active interrupt.
func (g *GIC) IRQAsserted() bool {
	_, ok := g.best()
	return ok
}

// best returns the lowest-numbered highest-priority line that is
// pending, enabled, unmasked, and able to preempt the running
// priority.
func (g *GIC) best() (uint32, bool) {
	if g.dctlr&1 == 0 || g.cctlr&1 == 0 {
		return Spurious, false
	}
	run := uint32(0x100) // idle running priority, lower than any line
	for irq := uint32(0); irq < GICLines; irq++ {
		if g.active[irq/32]&(1<<(irq%32)) != 0 && uint32(g.prio[irq]) < run {
			run = uint32(g.prio[irq])
		}
	}
	bestIRQ, bestPrio, ok := uint32(0), uint32(0), false
	for irq := uint32(0); irq < GICLines; irq++ {
		bit := uint32(1) << (irq % 32)
		if g.pend[irq/32]&g.enable[irq/32]&bit == 0 {
			continue
		}
		p := uint32(g.prio[irq])
		if p >= g.pmr || p >= run {
			continue
		}
		if !ok || p < bestPrio {
			bestIRQ, bestPrio, ok = irq, p, true
		}
	}
	return bestIRQ, ok
}

// acknowledge implements a read of the interrupt acknowledge register:
// it claims the best pending line, moving it pending->active, or
// returns Spurious.
func (g *GIC) acknowledge() uint32 {
	irq, ok := g.best()
	if !ok {
		return Spurious
	}
	bit := uint32(1) << (irq % 32)
	g.pend[irq/32] &^= bit
	g.active[irq/32] |= bit
	return irq
}

// eoi implements a write of the end-of-interrupt register,
// deactivating the named line. Writes naming a line that is not
// active are dropped and counted in BadEOI.
func (g *GIC) eoi(val uint32) {
	irq := val & 0x3FF
	if irq < GICLines && g.active[irq/32]&(1<<(irq%32)) != 0 {
		g.active[irq/32] &^= 1 << (irq % 32)
		return
	}
	g.BadEOI++
}

// Distributor returns the Device view of the distributor register
// window.
func (g *GIC) Distributor() Device { return (*gicDist)(g) }

// CPUInterface returns the Device view of the CPU interface register
// window.
func (g *GIC) CPUInterface() Device { return (*gicCPU)(g) }

type gicDist GIC

func (d *gicDist) Read32(off uint32) uint32 {
	g := (*GIC)(d)
	switch {
	case off == GICDCtlr:
		return g.dctlr
	case off == GICDTyper:
		return GICLines/32 - 1
	case off >= GICDIsenabler && off < GICDIsenabler+GICLines/8:
		return g.enable[(off-GICDIsenabler)/4]
	case off >= GICDIcenabler && off < GICDIcenabler+GICLines/8:
		return g.enable[(off-GICDIcenabler)/4]
	case off >= GICDIspendr && off < GICDIspendr+GICLines/8:
		return g.pend[(off-GICDIspendr)/4]
	case off >= GICDIcpendr && off < GICDIcpendr+GICLines/8:
		return g.pend[(off-GICDIcpendr)/4]
	case off >= GICDIpriority && off < GICDIpriority+GICLines:
		irq := (off - GICDIpriority) &^ 3
		return uint32(g.prio[irq]) | uint32(g.prio[irq+1])<<8 |
			uint32(g.prio[irq+2])<<16 | uint32(g.prio[irq+3])<<24
	case off >= GICDItargetsr && off < GICDItargetsr+GICLines:
		irq := (off - GICDItargetsr) &^ 3
		return uint32(g.target[irq]) | uint32(g.target[irq+1])<<8 |
			uint32(g.target[irq+2])<<16 | uint32(g.target[irq+3])<<24
	}
	return 0
}

func (d *gicDist) Write32(off uint32, val uint32) {
	g := (*GIC)(d)
	switch {
	case off == GICDCtlr:
		g.dctlr = val & 1
	case off >= GICDIsenabler && off < GICDIsenabler+GICLines/8:
		g.enable[(off-GICDIsenabler)/4] |= val
	case off >= GICDIcenabler && off < GICDIcenabler+GICLines/8:
		g.enable[(off-GICDIcenabler)/4] &^= val
	case off >= GICDIspendr && off < GICDIspendr+GICLines/8:
		g.pend[(off-GICDIspendr)/4] |= val
	case off >= GICDIcpendr && off < GICDIcpendr+GICLines/8:
		g.pend[(off-GICDIcpendr)/4] &^= val
	case off >= GICDIpriority && off < GICDIpriority+GICLines:
		irq := (off - GICDIpriority) &^ 3
		for k := uint32(0); k < 4; k++ {
			g.prio[irq+k] = uint8(val >> (8 * k))
		}
	case off >= GICDItargetsr && off < GICDItargetsr+GICLines:
		// Targets for SGIs and PPIs (lines 0..31) are read-only.
		irq := (off - GICDItargetsr) &^ 3
		for k := uint32(0); k < 4; k++ {
			if irq+k >= 32 {
				g.target[irq+k] = uint8(val >> (8 * k))
			}
		}
	}
}

type gicCPU GIC

func (c *gicCPU) Read32(off uint32) uint32 {
	g := (*GIC)(c)
	switch off {
	case GICCCtlr:
		return g.cctlr
	case GICCPmr:
		return g.pmr
	case GICCIar:
		return g.acknowledge()
	}
	return 0
}

func (c *gicCPU) Write32(off uint32, val uint32) {
	g := (*GIC)(c)
	switch off {
	case GICCCtlr:
		g.cctlr = val & 1
	case GICCPmr:
		g.pmr = val & 0xFF
	case GICCEoir:
		g.eoi(val)
	}
}

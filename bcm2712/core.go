// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcm2712

import "fmt"

// DAIF exception mask bits, in the immediate layout used by
// "msr daifset" and "msr daifclr".
const (
	DAIFF = 1 << 0 // FIQ
	DAIFI = 1 << 1 // IRQ
	DAIFA = 1 << 2 // SError
	DAIFD = 1 << 3 // debug
)

// A VecSlot names one of the sixteen exception vector slots: four
// exception classes (taking-EL stack choice and originating EL) by
// four exception kinds. In the hardware table each slot is 0x80 bytes
// and the whole table is 0x800-aligned.
type VecSlot int

const (
	VecSP0Sync VecSlot = iota // current EL, SP_EL0
	VecSP0IRQ
	VecSP0FIQ
	VecSP0SError
	VecSPxSync // current EL, SP_ELx
	VecSPxIRQ
	VecSPxFIQ
	VecSPxSError
	VecLower64Sync // lower EL, AArch64
	VecLower64IRQ
	VecLower64FIQ
	VecLower64SError
	VecLower32Sync // lower EL, AArch32
	VecLower32IRQ
	VecLower32FIQ
	VecLower32SError

	NumVec
)

// VecSlotBytes is the architectural spacing of vector slots.
const VecSlotBytes = 0x80

var vecNames = [NumVec]string{
	"sync_sp0", "irq_sp0", "fiq_sp0", "serror_sp0",
	"sync_spx", "irq_spx", "fiq_spx", "serror_spx",
	"sync_aarch64", "irq_aarch64", "fiq_aarch64", "serror_aarch64",
	"sync_aarch32", "irq_aarch32", "fiq_aarch32", "serror_aarch32",
}

func (v VecSlot) String() string {
	if 0 <= v && v < NumVec {
		return vecNames[v]
	}
	return fmt.Sprintf("VecSlot(%d)", int(v))
}

// Addr returns the entry address of slot v in a table based at base.
func (v VecSlot) Addr(base uint64) uint64 {
	return base + uint64(v)*VecSlotBytes
}

// kind returns 0 for sync, 1 for IRQ, 2 for FIQ, 3 for SError.
func (v VecSlot) kind() int { return int(v) & 3 }

// A Core is the exception-visible state of one Cortex-A76 core: the
// general-purpose register file, the stack pointer, the DAIF exception
// masks, and the vector base register. There is no instruction stream;
// exceptions are delivered at the call sites that model instruction
// boundaries.
type Core struct {
	X    [31]uint64 // x0..x30
	SP   uint64
	DAIF uint32
	VBAR uint64

	Bus *Bus

	// Halted is set when an exception lands in a slot whose handler
	// diagnoses an unrecoverable condition. A halted core delivers
	// nothing further.
	Halted     bool
	HaltReason string

	vectors [NumVec]func(*Core)
}

// InstallVectors loads the vector base register and attaches the
// handler table. The low 11 bits of base are reserved and forced to
// zero, matching the hardware's 0x800 alignment requirement.
func (c *Core) InstallVectors(base uint64, table [NumVec]func(*Core)) {
	c.VBAR = base &^ 0x7FF
	c.vectors = table
}

// MaskIRQ models "msr daifset, #2".
func (c *Core) MaskIRQ() { c.DAIF |= DAIFI }

// UnmaskIRQ models "msr daifclr, #2".
func (c *Core) UnmaskIRQ() { c.DAIF &^= DAIFI }

// IRQMasked reports whether IRQ delivery is masked.
func (c *Core) IRQMasked() bool { return c.DAIF&DAIFI != 0 }

// Halt stops the core with a diagnostic reason. The first reason wins.
func (c *Core) Halt(reason string) {
	if !c.Halted {
		c.Halted = true
		c.HaltReason = reason
	}
}

// maskFor returns the DAIF bit that gates delivery of slot v, or 0
// for synchronous exceptions, which cannot be masked.
func maskFor(v VecSlot) uint32 {
	switch v.kind() {
	case 1:
		return DAIFI
	case 2:
		return DAIFF
	case 3:
		return DAIFA
	}
	return 0
}

// Take models exception entry through slot v: if the slot's exception
// kind is unmasked and a table is installed, the register file is
// saved, the kind's DAIF bit is set for the handler's duration, the
// slot handler runs, and the register file and masks are restored as
// by eret. It reports whether the exception was delivered.
//
// A core with no installed table halts: there is nowhere to vector to.
func (c *Core) Take(v VecSlot) bool {
	if c.Halted {
		return false
	}
	if m := maskFor(v); m != 0 && c.DAIF&m != 0 {
		return false
	}
	h := c.vectors[v]
	if h == nil {
		c.Halt(fmt.Sprintf("exception %v with no vector installed", v))
		return false
	}
	savedX := c.X
	savedSP := c.SP
	savedDAIF := c.DAIF
	if m := maskFor(v); m != 0 {
		c.DAIF |= m
	}
	h(c)
	c.X = savedX
	c.SP = savedSP
	c.DAIF = savedDAIF
	return true
}

// TakeIRQ delivers a current-EL/SPx IRQ exception, the slot the
// kernel actually services interrupts through.
func (c *Core) TakeIRQ() bool {
	return c.Take(VecSPxIRQ)
}

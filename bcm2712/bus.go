// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bcm2712 models the slice of a Raspberry Pi 5 (BCM2712 SoC
// plus RP1 south bridge) that the kernel in ../kern programs: one
// Cortex-A76 core's exception state, the GIC-400 interrupt controller,
// the system timer, the PL011 UART, and the RP1 GPIO block, all
// reachable through 32-bit MMIO on a shared bus.
package bcm2712

// A Device is a memory-mapped peripheral with 32-bit registers.
// Offsets are relative to the device's bus window.
type Device interface {
	Read32(off uint32) uint32
	Write32(off uint32, val uint32)
}

// OpenBus is the value returned by 32-bit reads of unmapped addresses.
const OpenBus = 0xFFFFFFFF

// A Bus routes 32-bit register accesses to mapped devices.
// Reads of unmapped addresses return OpenBus; writes to unmapped
// addresses are dropped. There is no sub-word access: every register
// in the modeled peripherals is a 32-bit word.
type Bus struct {
	windows []window
}

type window struct {
	base uint64
	size uint64
	dev  Device
}

// Map attaches dev to the size bytes of address space starting at base.
// Later mappings shadow earlier ones.
func (b *Bus) Map(base, size uint64, dev Device) {
	b.windows = append([]window{{base, size, dev}}, b.windows...)
}

// Read32 returns the register word at addr, or OpenBus if no device
// is mapped there.
func (b *Bus) Read32(addr uint64) uint32 {
	for _, w := range b.windows {
		if w.base <= addr && addr-w.base < w.size {
			return w.dev.Read32(uint32(addr - w.base))
		}
	}
	return OpenBus
}

// Write32 writes the register word at addr, dropping the write if no
// device is mapped there.
func (b *Bus) Write32(addr uint64, val uint32) {
	for _, w := range b.windows {
		if w.base <= addr && addr-w.base < w.size {
			w.dev.Write32(uint32(addr-w.base), val)
			return
		}
	}
}

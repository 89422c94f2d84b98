// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"github.com/hashicorp/go-hclog"

	"github.com/pi5hack/pi5os/bcm2712"
)

const tickus = 1000000 / HZ /* compare interval, microseconds */

// Clock drives the free-running 1 MHz system timer: microsecond
// uptime for /proc and the shell, spin delays, and the scheduler tick
// on compare channel 1.
type Clock struct {
	log  hclog.Logger
	bus  *bcm2712.Bus
	base uint64

	// Tick runs once per timer interrupt.
	Tick func()
}

func NewClock(log hclog.Logger, m *bcm2712.Machine) *Clock {
	return &Clock{log: log.Named("clock"), bus: m.Bus, base: m.Board.TimerBase}
}

func (ck *Clock) read(off uint32) uint32       { return ck.bus.Read32(ck.base + uint64(off)) }
func (ck *Clock) write(off uint32, val uint32) { ck.bus.Write32(ck.base+uint64(off), val) }

// Start arms the first scheduler tick on compare channel 1.
func (ck *Clock) Start() {
	ck.rearm()
	ck.log.Debug("tick source armed", "interval_us", tickus)
}

// ServiceIRQ is the timer line reaction: acknowledge the channel 1
// match, arm the next tick, then run the kernel tick hook.
func (ck *Clock) ServiceIRQ() {
	ck.write(bcm2712.TimerCS, 1<<1)
	ck.rearm()
	if ck.Tick != nil {
		ck.Tick()
	}
}

func (ck *Clock) rearm() {
	clo := ck.read(bcm2712.TimerCLO)
	ck.write(bcm2712.TimerC1, clo+tickus)
}

// Micros returns the 64-bit counter value.
func (ck *Clock) Micros() uint64 {
	lo := ck.read(bcm2712.TimerCLO)
	hi := ck.read(bcm2712.TimerCHI)
	return uint64(hi)<<32 | uint64(lo)
}

// UptimeSeconds returns whole seconds since the counter started.
func (ck *Clock) UptimeSeconds() uint32 {
	return uint32(ck.Micros() / 1000000)
}

// DelayUS spins on the counter for at least us microseconds.
func (ck *Clock) DelayUS(us uint32) {
	start := ck.Micros()
	for ck.Micros()-start < uint64(us) {
	}
}

// DelayMS spins on the counter for at least ms milliseconds.
func (ck *Clock) DelayMS(ms uint32) {
	ck.DelayUS(ms * 1000)
}

// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/pi5hack/pi5os/bcm2712"
)

func testMachine() (*bcm2712.Machine, *bytes.Buffer, *uint64) {
	var now uint64
	out := new(bytes.Buffer)
	m := bcm2712.NewMachine(bcm2712.Pi5(), out, func() uint64 { now += 97; return now })
	return m, out, &now
}

func TestIntrCtlInit(t *testing.T) {
	m, _, _ := testMachine()
	ic := NewIntrCtl(hclog.NewNullLogger(), m)
	if err := ic.Init(); err != nil {
		t.Fatal(err)
	}
	if ic.lines != bcm2712.GICLines {
		t.Errorf("lines = %d, want %d", ic.lines, bcm2712.GICLines)
	}
	if m.Core.IRQMasked() {
		t.Errorf("core still masked after Init")
	}
	if m.Core.VBAR != m.Board.VectorBase&^0x7FF {
		t.Errorf("VBAR = %#x, want %#x", m.Core.VBAR, m.Board.VectorBase&^0x7FF)
	}

	// The board lines are enabled at the distributor: asserting the
	// timer line must reach the CPU interface.
	m.GIC.Assert(m.Board.IRQTimer)
	if !m.GIC.IRQAsserted() {
		t.Errorf("timer line not signaled after Init enabled it")
	}
}

func TestIntrCtlInitBadBase(t *testing.T) {
	m, _, _ := testMachine()
	ic := NewIntrCtl(hclog.NewNullLogger(), m)
	ic.dist = 0xDEAD0000
	err := ic.Init()
	if err == nil || !strings.Contains(err.Error(), "not accessible") {
		t.Fatalf("Init with open-bus distributor = %v, want error", err)
	}
}

func TestHandleInterrupt(t *testing.T) {
	m, _, _ := testMachine()
	ic := NewIntrCtl(hclog.NewNullLogger(), m)
	if err := ic.Init(); err != nil {
		t.Fatal(err)
	}

	served := 0
	ic.Register(m.Board.IRQTimer, func() { served++ })

	m.GIC.Assert(m.Board.IRQTimer)
	irq, ok := ic.HandleInterrupt()
	if !ok || irq != m.Board.IRQTimer {
		t.Fatalf("HandleInterrupt() = %d, %v, want %d, true", irq, ok, m.Board.IRQTimer)
	}
	if served != 1 {
		t.Fatalf("reaction ran %d times, want 1", served)
	}

	// Acknowledge and EOI must pair up: after service the line is
	// deactivated and the controller is quiet.
	if m.GIC.IRQAsserted() {
		t.Errorf("line still asserted after EOI")
	}

	// Nothing pending: the acknowledge is spurious and gets no EOI.
	if _, ok := ic.HandleInterrupt(); ok {
		t.Errorf("HandleInterrupt() with nothing pending claims service")
	}
	if ic.Spurious != 1 {
		t.Errorf("Spurious = %d, want 1", ic.Spurious)
	}
}

func TestHandleInterruptUnregistered(t *testing.T) {
	m, _, _ := testMachine()
	ic := NewIntrCtl(hclog.NewNullLogger(), m)
	if err := ic.Init(); err != nil {
		t.Fatal(err)
	}

	// A line with no reaction still gets its EOI; otherwise the CPU
	// interface would stay blocked forever.
	m.GIC.Assert(m.Board.IRQGPIO)
	if irq, ok := ic.HandleInterrupt(); !ok || irq != m.Board.IRQGPIO {
		t.Fatalf("HandleInterrupt() = %d, %v, want %d, true", irq, ok, m.Board.IRQGPIO)
	}
	if m.GIC.IRQAsserted() {
		t.Errorf("unregistered line still asserted after EOI")
	}
}

func TestEnableDisable(t *testing.T) {
	m, _, _ := testMachine()
	ic := NewIntrCtl(hclog.NewNullLogger(), m)
	if err := ic.Init(); err != nil {
		t.Fatal(err)
	}

	ic.Disable(m.Board.IRQUART)
	m.GIC.Assert(m.Board.IRQUART)
	if m.GIC.IRQAsserted() {
		t.Errorf("disabled line signaled the CPU interface")
	}

	// Re-enabling lets the already-pending assert through.
	ic.Enable(m.Board.IRQUART)
	if !m.GIC.IRQAsserted() {
		t.Errorf("pending line not signaled after re-enable")
	}
}

func TestVectorsHaltOnUnexpected(t *testing.T) {
	m, _, _ := testMachine()
	ic := NewIntrCtl(hclog.NewNullLogger(), m)
	if err := ic.Init(); err != nil {
		t.Fatal(err)
	}

	if ok := m.Core.Take(bcm2712.VecSPxSync); !ok {
		t.Fatalf("sync exception not delivered")
	}
	if !m.Core.Halted {
		t.Fatalf("core not halted after unexpected sync exception")
	}
	if !strings.Contains(m.Core.HaltReason, "sync_spx") {
		t.Errorf("halt reason = %q, want the slot name in it", m.Core.HaltReason)
	}
}

// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
)

// testSignals builds a two-process table with pid 2 holding the cpu,
// so that fatal deliveries to it are not blocked by init's immunity.
func testSignals(t *testing.T) (*Signals, *ProcTable, *bytes.Buffer) {
	t.Helper()
	pt := testProcTable(t, 2)
	pt.SetState(1, SSLEEP)
	if pid, ok := pt.Schedule(); !ok || pid != 2 {
		t.Fatalf("Schedule() = %d, %v, want 2, true", pid, ok)
	}
	out := new(bytes.Buffer)
	return NewSignals(hclog.NewNullLogger(), pt, out), pt, out
}

func TestSignalBadArgs(t *testing.T) {
	sg, _, _ := testSignals(t)

	for _, sig := range []int{0, -1, NSIG + 1} {
		if err := sg.Send(2, sig, 1); err != EINVAL {
			t.Errorf("Send sig %d = %v, want %v", sig, err, EINVAL)
		}
		if err := sg.Block(sig); err != EINVAL {
			t.Errorf("Block sig %d = %v, want %v", sig, err, EINVAL)
		}
	}
	for _, sig := range []int{SIGKILL, SIGSTOP} {
		if err := sg.SetHandler(sig, Disposition{Act: ActIgnore}); err != EINVAL {
			t.Errorf("SetHandler %s = %v, want %v", SigName(sig), err, EINVAL)
		}
		if err := sg.Block(sig); err != EINVAL {
			t.Errorf("Block %s = %v, want %v", SigName(sig), err, EINVAL)
		}
	}
}

func TestSignalDefaultTerminate(t *testing.T) {
	sg, pt, _ := testSignals(t)
	if err := sg.Send(2, SIGTERM, 1); err != nil {
		t.Fatal(err)
	}
	if p := pt.Lookup(2); p.State != STERM {
		t.Errorf("state after SIGTERM = %s, want TERM", StateName(p.State))
	}
}

func TestSignalMaskQueues(t *testing.T) {
	sg, pt, _ := testSignals(t)
	if err := sg.Block(SIGTERM); err != nil {
		t.Fatal(err)
	}
	if err := sg.Send(2, SIGTERM, 1); err != nil {
		t.Fatal(err)
	}
	if p := pt.Lookup(2); p.State != SRUN {
		t.Fatalf("blocked SIGTERM delivered anyway, state %s", StateName(p.State))
	}
	if sg.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", sg.Pending())
	}

	// SIGKILL ignores the mask even if the bit is somehow set.
	sg.mask |= sigbit(SIGKILL)
	if err := sg.Send(2, SIGKILL, 1); err != nil {
		t.Fatal(err)
	}
	if p := pt.Lookup(2); p.State != STERM {
		t.Errorf("state after SIGKILL = %s, want TERM", StateName(p.State))
	}
	// The corpse took its backlog with it.
	if sg.Pending() != 0 {
		t.Errorf("Pending() after death = %d, want 0", sg.Pending())
	}
}

func TestSignalUnblockDrainOrder(t *testing.T) {
	sg, pt, _ := testSignals(t)
	sg.Block(SIGTSTP)
	sg.Block(SIGCONT)
	sg.Send(2, SIGTSTP, 1)
	sg.Send(2, SIGCONT, 1)
	if sg.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", sg.Pending())
	}

	// Unblocking SIGCONT drains only it; the stop stays queued.
	sg.Unblock(SIGCONT)
	if p := pt.Lookup(2); p.State != SREADY {
		t.Fatalf("state after CONT = %s, want READY", StateName(p.State))
	}
	if sg.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", sg.Pending())
	}

	sg.Unblock(SIGTSTP)
	if p := pt.Lookup(2); p.State != SSLEEP {
		t.Fatalf("state after TSTP = %s, want SLEEP", StateName(p.State))
	}
	if sg.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", sg.Pending())
	}
}

func TestSignalQueueFull(t *testing.T) {
	sg, _, _ := testSignals(t)
	sg.Block(SIGUSR1)
	for i := 0; i < NSIGQ; i++ {
		if err := sg.Send(2, SIGUSR1, 1); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	if err := sg.Send(2, SIGUSR1, 1); err != EAGAIN {
		t.Fatalf("Send beyond NSIGQ = %v, want %v", err, EAGAIN)
	}
}

func TestSignalIgnoreAndCustom(t *testing.T) {
	sg, pt, _ := testSignals(t)
	sg.SetHandler(SIGTERM, Disposition{Act: ActIgnore})
	sg.Send(2, SIGTERM, 1)
	if p := pt.Lookup(2); p.State != SRUN {
		t.Errorf("ignored SIGTERM changed state to %s", StateName(p.State))
	}

	// A custom handler is recorded and reported, never jumped to.
	sg.SetHandler(SIGUSR1, Disposition{Act: ActCustom, Handler: 0x81000})
	sg.Send(2, SIGUSR1, 1)
	if p := pt.Lookup(2); p.State != SRUN {
		t.Errorf("custom SIGUSR1 changed state to %s", StateName(p.State))
	}
	if d := sg.Disp(SIGUSR1); d.Act != ActCustom || d.Handler != 0x81000 {
		t.Errorf("Disp(SIGUSR1) = %+v", d)
	}
}

func TestSignalCoreDump(t *testing.T) {
	sg, pt, out := testSignals(t)
	if err := sg.Send(2, SIGSEGV, 1); err != nil {
		t.Fatal(err)
	}
	if p := pt.Lookup(2); p.State != STERM {
		t.Fatalf("state after SIGSEGV = %s, want TERM", StateName(p.State))
	}
	if !strings.Contains(out.String(), "core dump: pid 2") {
		t.Errorf("no core dump record in output: %q", out.String())
	}
}

func TestSignalChldIgnoredByDefault(t *testing.T) {
	sg, pt, _ := testSignals(t)
	sg.Send(2, SIGCHLD, 1)
	if p := pt.Lookup(2); p.State != SRUN {
		t.Errorf("SIGCHLD changed state to %s", StateName(p.State))
	}
}

func TestSignalStopContinue(t *testing.T) {
	sg, pt, _ := testSignals(t)
	sg.Send(2, SIGTSTP, 1)
	if p := pt.Lookup(2); p.State != SSLEEP {
		t.Fatalf("state after SIGTSTP = %s, want SLEEP", StateName(p.State))
	}
	sg.Send(2, SIGCONT, 1)
	if p := pt.Lookup(2); p.State != SREADY {
		t.Fatalf("state after SIGCONT = %s, want READY", StateName(p.State))
	}
}

func TestSignalExit(t *testing.T) {
	sg, pt, _ := testSignals(t)
	sg.Block(SIGUSR1)
	sg.Send(2, SIGUSR1, 1)

	if err := sg.Exit(2); err != nil {
		t.Fatal(err)
	}
	if p := pt.Lookup(2); p.State != STERM {
		t.Errorf("state after Exit = %s, want TERM", StateName(p.State))
	}
	if sg.Pending() != 0 {
		t.Errorf("Pending() after Exit = %d, want 0", sg.Pending())
	}

	if err := sg.Exit(1); err != EPERM {
		t.Errorf("Exit(1) = %v, want %v", err, EPERM)
	}
}

func TestSignalInterrupt(t *testing.T) {
	sg, pt, _ := testSignals(t)
	sg.Interrupt()
	if p := pt.Lookup(2); p.State != STERM {
		t.Errorf("state after ^C = %s, want TERM", StateName(p.State))
	}
}

func TestSigNames(t *testing.T) {
	if SigName(SIGKILL) != "SIGKILL" {
		t.Errorf("SigName(SIGKILL) = %q", SigName(SIGKILL))
	}
	if SigName(40) != "SIG40" {
		t.Errorf("SigName(40) = %q", SigName(40))
	}
	if SigNum("SIGHUP") != SIGHUP || SigNum("HUP") != SIGHUP {
		t.Errorf("SigNum(SIGHUP) = %d, %d", SigNum("SIGHUP"), SigNum("HUP"))
	}
	if SigNum("SIGNOPE") != 0 {
		t.Errorf("SigNum(SIGNOPE) = %d, want 0", SigNum("SIGNOPE"))
	}
}

// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
)

// An Action is the effect a delivered signal has on its target.
type Action int8

const (
	ActDefault Action = iota /* the signal's built-in disposition */
	ActIgnore
	ActTerminate
	ActStop
	ActContinue
	ActCore   /* dump the process record, then terminate */
	ActCustom /* handler address recorded, never jumped to */
)

func (a Action) String() string {
	switch a {
	case ActDefault:
		return "default"
	case ActIgnore:
		return "ignore"
	case ActTerminate:
		return "terminate"
	case ActStop:
		return "stop"
	case ActContinue:
		return "continue"
	case ActCore:
		return "core"
	case ActCustom:
		return "custom"
	}
	return fmt.Sprintf("Action(%d)", int8(a))
}

// A Disposition is the configured reaction to one signal.
// Handler is only meaningful for ActCustom and is never executed;
// there is no user-mode trampoline in this kernel.
type Disposition struct {
	Act     Action
	Handler uint64
}

type pendingSig struct {
	sig    int
	sender int32
}

// Signals is the signal delivery state machine. There is one instance
// per kernel and it represents the currently scheduled process: the
// mask, the dispositions, and the pending queue all belong to whoever
// the scheduler last promoted.
type Signals struct {
	log     hclog.Logger
	pt      *ProcTable
	w       io.Writer
	mask    uint32
	pending []pendingSig
	disp    [NSIG + 1]Disposition
}

func NewSignals(log hclog.Logger, pt *ProcTable, w io.Writer) *Signals {
	return &Signals{log: log.Named("sig"), pt: pt, w: w}
}

func sigbit(sig int) uint32 {
	return 1 << (sig - 1)
}

func uncatchable(sig int) bool {
	return sig == SIGKILL || sig == SIGSTOP
}

func defaultAction(sig int) Action {
	switch sig {
	case SIGCHLD, SIGURG, SIGWINCH:
		return ActIgnore
	case SIGSTOP, SIGTSTP, SIGTTIN, SIGTTOU:
		return ActStop
	case SIGCONT:
		return ActContinue
	}
	return ActTerminate
}

// Send delivers sig to the target process, or queues it if sig is
// currently blocked. The two uncatchable signals ignore the mask.
// A full pending queue is EAGAIN.
func (sg *Signals) Send(target int32, sig int, sender int32) error {
	if sig <= 0 || sig > NSIG {
		return EINVAL
	}
	if sg.mask&sigbit(sig) != 0 && !uncatchable(sig) {
		if len(sg.pending) >= NSIGQ {
			return EAGAIN
		}
		sg.pending = append(sg.pending, pendingSig{sig, sender})
		sg.log.Debug("signal blocked, queued", "sig", SigName(sig), "pid", target, "sender", sender)
		return nil
	}
	return sg.deliver(target, sig, sender)
}

func (sg *Signals) deliver(target int32, sig int, sender int32) error {
	act := sg.disp[sig].Act
	if act == ActDefault {
		act = defaultAction(sig)
	}
	sg.log.Debug("delivering signal", "sig", SigName(sig), "pid", target, "action", act, "sender", sender)

	switch act {
	case ActIgnore:
		return nil
	case ActStop:
		if !sg.pt.SetState(target, SSLEEP) {
			return ESRCH
		}
		return nil
	case ActContinue:
		if !sg.pt.SetState(target, SREADY) {
			return ESRCH
		}
		return nil
	case ActCore:
		if p := sg.pt.Lookup(target); p != nil {
			fmt.Fprintf(sg.w, "core dump: pid %d ppid %d state %s entry %#x sp %#x\n",
				p.Pid, p.Ppid, StateName(p.State), p.Entry, p.SP)
		}
		return sg.terminate(target)
	case ActCustom:
		sg.log.Info("custom handler recorded, not run", "sig", SigName(sig), "handler", sg.disp[sig].Handler)
		return nil
	}
	return sg.terminate(target)
}

func (sg *Signals) terminate(target int32) error {
	if err := sg.pt.Terminate(target); err != nil {
		return err
	}
	if target == sg.pt.CurrentPid() {
		// the dying process abandons its pending backlog
		sg.pending = sg.pending[:0]
	}
	return nil
}

// Exit retires pid outside of signal delivery, on behalf of the exit
// system call. The dying process abandons its pending backlog the
// same way a fatal signal does.
func (sg *Signals) Exit(pid int32) error {
	return sg.terminate(pid)
}

// SetHandler overwrites the disposition of sig.
// SIGKILL and SIGSTOP always keep their defaults.
func (sg *Signals) SetHandler(sig int, d Disposition) error {
	if sig <= 0 || sig > NSIG || uncatchable(sig) {
		return EINVAL
	}
	sg.disp[sig] = d
	sg.log.Debug("handler set", "sig", SigName(sig), "action", d.Act)
	return nil
}

// Disp returns the disposition of sig.
func (sg *Signals) Disp(sig int) Disposition {
	if sig <= 0 || sig > NSIG {
		return Disposition{}
	}
	return sg.disp[sig]
}

// Block adds sig to the mask. Blocking an uncatchable signal is
// rejected outright rather than silently dropped.
func (sg *Signals) Block(sig int) error {
	if sig <= 0 || sig > NSIG || uncatchable(sig) {
		return EINVAL
	}
	sg.mask |= sigbit(sig)
	return nil
}

// Unblock clears sig from the mask and then drains every pending
// entry that is no longer blocked, in arrival order, delivering each
// to the current process. Entries still blocked keep their order.
func (sg *Signals) Unblock(sig int) error {
	if sig <= 0 || sig > NSIG {
		return EINVAL
	}
	sg.mask &^= sigbit(sig)
	sg.runPending()
	return nil
}

func (sg *Signals) runPending() {
	i := 0
	for i < len(sg.pending) {
		ps := sg.pending[i]
		if sg.mask&sigbit(ps.sig) != 0 {
			i++
			continue
		}
		// dequeue first: delivery may terminate the current
		// process and abandon the rest of the queue
		copy(sg.pending[i:], sg.pending[i+1:])
		sg.pending = sg.pending[:len(sg.pending)-1]
		if err := sg.deliver(sg.pt.CurrentPid(), ps.sig, ps.sender); err != nil {
			sg.log.Warn("pending delivery failed", "sig", SigName(ps.sig), "err", err)
		}
	}
}

// Mask returns the blocked-signal bitmap.
func (sg *Signals) Mask() uint32 {
	return sg.mask
}

// Pending returns the number of queued signals.
func (sg *Signals) Pending() int {
	return len(sg.pending)
}

// Interrupt delivers SIGINT to the current process.
// The console calls it when ^C arrives on the wire.
func (sg *Signals) Interrupt() {
	pid := sg.pt.CurrentPid()
	if err := sg.Send(pid, SIGINT, 0); err != nil {
		sg.log.Warn("dropping keyboard interrupt", "pid", pid, "err", err)
	}
}

// SigName returns the symbolic name of a signal number.
func SigName(sig int) string {
	if 1 <= sig && sig <= NSIG {
		return signames[sig]
	}
	return fmt.Sprintf("SIG%d", sig)
}

// SigNum returns the signal number for a symbolic name like "SIGKILL"
// or "KILL", or 0 if the name is unknown.
func SigNum(name string) int {
	for i := 1; i <= NSIG; i++ {
		if signames[i] == name || signames[i][3:] == name {
			return i
		}
	}
	return 0
}

var signames = []string{
	"",
	"SIGHUP",
	"SIGINT",
	"SIGQUIT",
	"SIGILL",
	"SIGTRAP",
	"SIGABRT",
	"SIGBUS",
	"SIGFPE",
	"SIGKILL",
	"SIGUSR1",
	"SIGSEGV",
	"SIGUSR2",
	"SIGPIPE",
	"SIGALRM",
	"SIGTERM",
	"SIGSTKFLT",
	"SIGCHLD",
	"SIGCONT",
	"SIGSTOP",
	"SIGTSTP",
	"SIGTTIN",
	"SIGTTOU",
	"SIGURG",
	"SIGXCPU",
	"SIGXFSZ",
	"SIGVTALRM",
	"SIGPROF",
	"SIGWINCH",
	"SIGIO",
	"SIGPWR",
	"SIGSYS",
}

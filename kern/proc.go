// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"bytes"

	"github.com/hashicorp/go-hclog"
)

// A Proc is one entry in the process table.
// The pid is unique for the life of the system; slots of terminated
// processes are kept for ps until Reap is called.
type Proc struct {
	Pid   int32
	Ppid  int32  /* parent pid, re-parented to 1 when the parent dies */
	State int8   /* SREADY, SRUN, SSLEEP, STERM */
	SP    uint64 /* stack pointer, derived from pid */
	Entry uint64 /* nominal entry point */
	Pri   uint8  /* reserved, never consulted by the scheduler */
	Slice uint32 /* quantum in ticks */
	Used  uint32 /* ticks charged against the current quantum */

	Args [6]uint64 /* trap frame x0-x5, valid during dispatch */
	Ret  int64     /* value for x0 at exception return */

	Mem   []byte /* flat user arena backing pointer arguments */
	Dir   string /* current directory */
	Error Errno  /* error from the last system call */
}

func (p *Proc) base() uint64 {
	return USTACK + uint64(p.Pid)*USIZE
}

// str reads a NUL-terminated string from the process arena.
// On a bad address it sets p.Error to EFAULT and returns "".
func (p *Proc) str(addr uint64) string {
	off := addr - p.base()
	if off >= uint64(len(p.Mem)) {
		p.Error = EFAULT
		return ""
	}
	b, _, ok := bytes.Cut(p.Mem[off:], []byte("\x00"))
	if !ok {
		p.Error = EFAULT
		return ""
	}
	return string(b)
}

// mem returns count bytes of the process arena starting at addr.
// On a bad range it sets p.Error to EFAULT and returns nil.
func (p *Proc) mem(addr, count uint64) []byte {
	off := addr - p.base()
	if off >= uint64(len(p.Mem)) || count > uint64(len(p.Mem))-off {
		p.Error = EFAULT
		return nil
	}
	return p.Mem[off : off+count]
}

// A ProcTable owns every process and the round-robin scheduler state.
type ProcTable struct {
	log     hclog.Logger
	procs   []*Proc
	current int32 /* pid holding the cpu, 0 if none */
	nextPid int32
	ticks   uint64
}

func NewProcTable(log hclog.Logger) *ProcTable {
	return &ProcTable{log: log.Named("proc"), nextPid: 1}
}

func (pt *ProcTable) lookpid(pid int32) *Proc {
	for _, p := range pt.procs {
		if p.Pid == pid {
			return p
		}
	}
	return nil
}

// Lookup returns the process with the given pid, or nil.
func (pt *ProcTable) Lookup(pid int32) *Proc {
	return pt.lookpid(pid)
}

// Procs returns the table in creation order, terminated entries included.
func (pt *ProcTable) Procs() []*Proc {
	return pt.procs
}

// CurrentPid returns the pid holding the cpu, or 0 if none does.
func (pt *ProcTable) CurrentPid() int32 {
	return pt.current
}

// Current returns the process holding the cpu, or nil.
func (pt *ProcTable) Current() *Proc {
	return pt.lookpid(pt.current)
}

// Ticks returns the number of scheduler ticks since boot.
func (pt *ProcTable) Ticks() uint64 {
	return pt.ticks
}

func (pt *ProcTable) allocPid() int32 {
Retry:
	pid := pt.nextPid
	if pt.nextPid <= 0 {
		pt.nextPid = 1
		goto Retry
	}
	pt.nextPid++
	for _, op := range pt.procs {
		if op.Pid == pid {
			goto Retry
		}
	}
	return pid
}

// Create appends a new Ready process with a fresh pid.
// It returns ENOMEM when the table is full.
func (pt *ProcTable) Create(entry uint64, ppid int32) (*Proc, error) {
	if len(pt.procs) >= NPROC {
		return nil, ENOMEM
	}
	p := &Proc{
		Ppid:  ppid,
		State: SREADY,
		Entry: entry,
		Pri:   PRIDFLT,
		Slice: TSLICE,
		Dir:   "/",
	}
	p.Pid = pt.allocPid()
	p.SP = p.base()
	p.Mem = make([]byte, USIZE)
	pt.procs = append(pt.procs, p)
	pt.log.Debug("created process", "pid", p.Pid, "ppid", ppid)
	return p, nil
}

// CreateInit resets pid allocation and creates the root process.
// Every later orphan is re-parented to it.
func (pt *ProcTable) CreateInit(entry uint64) (*Proc, error) {
	pt.nextPid = 1
	return pt.Create(entry, 0)
}

// SetState overwrites the state of the given process.
// It returns false if the pid is not in the table.
func (pt *ProcTable) SetState(pid int32, state int8) bool {
	p := pt.lookpid(pid)
	if p == nil {
		return false
	}
	p.State = state
	return true
}

// Terminate marks the process dead and re-parents its children to init.
// The slot is kept so that ps still shows the corpse.
// Init itself cannot be terminated.
func (pt *ProcTable) Terminate(pid int32) error {
	p := pt.lookpid(pid)
	if p == nil {
		return ESRCH
	}
	if pid == 1 {
		return EPERM
	}
	p.State = STERM
	for _, c := range pt.procs {
		if c.Ppid == pid {
			c.Ppid = 1
		}
	}
	pt.log.Info("terminated process", "pid", pid)
	return nil
}

// Schedule advances one tick and picks the next process to run.
//
// The tick is charged to the process holding the cpu. If its quantum
// is not yet spent and it is still Running it keeps the cpu. Otherwise
// it is demoted to Ready and the table is scanned forward from its
// slot, wrapping, for the next Ready process, so that no second
// process is ever Running at once. The scan can come all the way back
// around to the demoted process itself if nothing else is runnable.
//
// Returns false if no process is ready; the caller idles.
func (pt *ProcTable) Schedule() (int32, bool) {
	pt.ticks++

	start := -1
	for i, p := range pt.procs {
		if p.Pid != pt.current {
			continue
		}
		start = i
		p.Used++
		if p.State == SRUN && p.Used < p.Slice {
			return p.Pid, true
		}
		if p.State == SRUN {
			p.State = SREADY
		}
		p.Used = 0
		break
	}

	for i, n := 1, len(pt.procs); i <= n; i++ {
		p := pt.procs[(start+i)%n]
		if p.State == SREADY {
			p.State = SRUN
			pt.current = p.Pid
			return p.Pid, true
		}
	}
	pt.current = 0
	return 0, false
}

// Reap removes terminated entries from the table, freeing their slots.
// Nothing calls it on a timer; it is for callers that need the
// bounded table back.
func (pt *ProcTable) Reap() int {
	kept := pt.procs[:0]
	n := 0
	for _, p := range pt.procs {
		if p.State == STERM {
			n++
			continue
		}
		kept = append(kept, p)
	}
	pt.procs = kept
	if n > 0 {
		pt.log.Debug("reaped processes", "count", n)
	}
	return n
}

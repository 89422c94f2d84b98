// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

func (sys *Sys) sysexit(p *Proc) {
	sys.log.Info("process exited", "pid", p.Pid, "status", int64(p.Args[0]))
	sys.ipc.CleanupProc(p.Pid)
	p.seterr(sys.sg.Exit(p.Pid))
}

func (sys *Sys) sysfork(p *Proc) {
	child, err := sys.pt.Create(p.Entry, p.Pid)
	if err != nil {
		p.seterr(err)
		return
	}
	child.Dir = p.Dir
	copy(child.Mem, p.Mem)
	p.Ret = int64(child.Pid)
}

func (sys *Sys) sysgetpid(p *Proc) {
	p.Ret = int64(p.Pid)
}

func (sys *Sys) sysgetppid(p *Proc) {
	// init reports itself as its own parent
	if p.Ppid == 0 {
		p.Ret = 1
		return
	}
	p.Ret = int64(p.Ppid)
}

func (sys *Sys) syskill(p *Proc) {
	target := int32(p.Args[0])
	sig := int(p.Args[1])
	if sys.pt.Lookup(target) == nil {
		p.Error = ESRCH
		return
	}
	if sig == 0 {
		return /* existence probe */
	}
	p.seterr(sys.sg.Send(target, sig, p.Pid))
}

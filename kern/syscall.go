// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Sys dispatches system calls against the kernel's tables.
// It holds no state of its own beyond the wiring.
type Sys struct {
	log  hclog.Logger
	pt   *ProcTable
	sg   *Signals
	fs   *FS
	fds  *FDTable
	ipc  *IPC
	cons io.Writer
}

func NewSys(log hclog.Logger, pt *ProcTable, sg *Signals, fs *FS, fds *FDTable, ipc *IPC, cons io.Writer) *Sys {
	return &Sys{log: log.Named("sys"), pt: pt, sg: sg, fs: fs, fds: fds, ipc: ipc, cons: cons}
}

// seterr records err, an Errno surfaced by one of the kernel tables,
// as the failure of the current system call.
func (p *Proc) seterr(err error) {
	if err == nil {
		return
	}
	if e, ok := err.(Errno); ok {
		p.Error = e
	} else {
		p.Error = EIO
	}
}

// Syscall dispatches one system call on behalf of the current
// process. The return value follows the convention for x0 at
// exception return: the result on success, the negated errno on
// failure. An unassigned number is ENOSYS and touches nothing.
func (sys *Sys) Syscall(num uint64, args [6]uint64) int64 {
	p := sys.pt.Current()
	if p == nil {
		return -int64(ESRCH)
	}
	if num >= uint64(len(sysent)) || sysent[num].impl == nil {
		sys.log.Debug("unassigned syscall", "num", num, "pid", p.Pid)
		return -int64(ENOSYS)
	}
	e := &sysent[num]
	p.Args = args
	p.Ret = 0

	var desc []byte
	if sys.log.IsTrace() {
		desc = sys.calldesc(e, p)
		sys.log.Trace("trap", "pid", p.Pid, "num", num, "args", hclog.Fmt("%#x", p.Args[:e.args]))
	}

	p.Error = 0
	e.impl(sys, p)
	ret := p.Ret
	if p.Error != 0 {
		ret = -int64(p.Error)
	}

	if sys.log.IsTrace() {
		desc = sys.retdesc(desc, e, p)
		sys.log.Trace(string(desc), "pid", p.Pid)
	}
	return ret
}

// calldesc expands the call half of the table's format, up to the
// closing paren. %d and %p take the next argument as a decimal or a
// pointer, %s as a string address, %a as a signal number, and %q as
// an address and count pair.
func (sys *Sys) calldesc(e *sysentry, p *Proc) []byte {
	var desc []byte
	arg := 0
	for i := 0; i < len(e.name); i++ {
		c := e.name[i]
		if c != '%' {
			desc = append(desc, c)
			if c == ')' {
				break
			}
			continue
		}
		i++
		switch c := e.name[i]; c {
		case 's':
			desc = fmt.Appendf(desc, "%q", p.str(p.Args[arg]))
			arg++
		case 'p':
			desc = fmt.Appendf(desc, "%#x", p.Args[arg])
			arg++
		case 'd':
			desc = fmt.Appendf(desc, "%d", int64(p.Args[arg]))
			arg++
		case 'a':
			desc = append(desc, SigName(int(p.Args[arg]))...)
			arg++
		case 'q':
			desc = fmt.Appendf(desc, "%q", p.mem(p.Args[arg], p.Args[arg+1]))
			arg += 2
		default:
			desc = append(desc, '%', c)
		}
	}
	return desc
}

// retdesc expands the result half of the format, after the closing
// paren. On failure the errno replaces it.
func (sys *Sys) retdesc(desc []byte, e *sysentry, p *Proc) []byte {
	if p.Error != 0 {
		return fmt.Appendf(desc, ": %v", p.Error)
	}
	i := strings.Index(e.name, ")")
	if i < 0 {
		return desc
	}
	for i++; i < len(e.name); i++ {
		c := e.name[i]
		if c != '%' {
			desc = append(desc, c)
			continue
		}
		i++
		switch c := e.name[i]; c {
		case 'd':
			desc = fmt.Appendf(desc, "%d", p.Ret)
		case 'q':
			desc = fmt.Appendf(desc, "%q", p.mem(p.Args[1], uint64(p.Ret)))
		default:
			desc = append(desc, '%', c)
		}
	}
	return desc
}

// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// The system call table is indexed by the immediate passed in x8.
// The numbers are the ones the boot image was built against and are
// sparse; unassigned slots report ENOSYS.
var sysent [256]sysentry

type sysentry struct {
	args uint16
	name string
	impl func(*Sys, *Proc)
}

func init() {
	sysent[21] = sysentry{2, "access(%s, %d)", (*Sys).sysaccess}      /*  21 = access */
	sysent[49] = sysentry{1, "chdir(%s)", (*Sys).syschdir}            /*  49 = chdir */
	sysent[56] = sysentry{3, "open(%s, %d) = %d", (*Sys).sysopen}     /*  56 = open */
	sysent[57] = sysentry{0, "fork() = %d", (*Sys).sysfork}           /*  57 = fork */
	sysent[63] = sysentry{3, "read(%d, %p, %d) = %q", (*Sys).sysread} /*  63 = read */
	sysent[64] = sysentry{3, "write(%d, %q) = %d", (*Sys).syswrite}   /*  64 = write */
	sysent[79] = sysentry{2, "getcwd(%p, %d) = %d", (*Sys).sysgetcwd} /*  79 = getcwd */
	sysent[83] = sysentry{2, "mkdir(%s, %d)", (*Sys).sysmkdir}        /*  83 = mkdir */
	sysent[87] = sysentry{1, "unlink(%s)", (*Sys).sysunlink}          /*  87 = unlink */
	sysent[93] = sysentry{1, "exit(%d)", (*Sys).sysexit}              /*  93 = exit */
	sysent[106] = sysentry{2, "stat(%s, %p)", (*Sys).sysstat}         /* 106 = stat */
	sysent[129] = sysentry{2, "kill(%d, %a)", (*Sys).syskill}         /* 129 = kill */
	sysent[172] = sysentry{0, "getpid() = %d", (*Sys).sysgetpid}      /* 172 = getpid */
	sysent[173] = sysentry{0, "getppid() = %d", (*Sys).sysgetppid}    /* 173 = getppid */
}

// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

/*
 * tunable variables
 */
const (
	NPROC   = 64   /* max number of processes */
	NOFILE  = 32   /* max open file descriptors */
	NFILE   = 32   /* max entries in the file table */
	FILSIZ  = 1024 /* max bytes per stored file */
	NPIPE   = 32   /* max simultaneous pipes */
	PIPESIZ = 4096 /* bytes buffered per pipe */
	NMSGQ   = 16   /* max message queues */
	NMSG    = 16   /* max messages per queue */
	MSGSIZ  = 1024 /* max bytes per message */
	NSHM    = 16   /* max shared memory segments */
	SHMSIZ  = 4096 /* max bytes per shared segment */
	NSHMAT  = 32   /* max attachments per segment */
	NSIGQ   = 32   /* max queued blocked signals */
	NUSER   = 32   /* max user records */
	NGROUP  = 16   /* max group records */
	CANBSIZ = 128  /* max size of console input line */
	HZ      = 100  /* scheduler ticks per second */
	TSLICE  = 10   /* quantum, in ticks */
)

/*
 * process address space
 * every process gets a fixed 1MB arena
 */
const (
	USTACK   = 0x400000  /* arena of pid n starts at USTACK + n*USIZE */
	USIZE    = 0x100000  /* bytes per process arena */
	UDATA    = 0x10000   /* heap data lives this far into the arena */
	ENTRYPC  = 0x80000   /* nominal entry point handed to new processes */
	PRIDFLT  = 128       /* priority assigned at creation, not yet scheduled on */
)

/*
 * signals
 * numbering follows linux arm64, dont change
 */
const (
	NSIG      = 31
	SIGHUP    = 1  /* hangup */
	SIGINT    = 2  /* interrupt */
	SIGQUIT   = 3  /* quit */
	SIGILL    = 4  /* illegal instruction */
	SIGTRAP   = 5  /* trace trap */
	SIGABRT   = 6  /* abort */
	SIGBUS    = 7  /* bus error */
	SIGFPE    = 8  /* floating point exception */
	SIGKILL   = 9  /* kill, uncatchable */
	SIGUSR1   = 10 /* user defined 1 */
	SIGSEGV   = 11 /* segmentation violation */
	SIGUSR2   = 12 /* user defined 2 */
	SIGPIPE   = 13 /* write on a broken pipe */
	SIGALRM   = 14 /* alarm clock */
	SIGTERM   = 15 /* software termination */
	SIGSTKFLT = 16 /* stack fault */
	SIGCHLD   = 17 /* child status change */
	SIGCONT   = 18 /* continue a stopped process */
	SIGSTOP   = 19 /* stop, uncatchable */
	SIGTSTP   = 20 /* stop from keyboard */
	SIGTTIN   = 21 /* background read from tty */
	SIGTTOU   = 22 /* background write to tty */
	SIGURG    = 23 /* urgent condition on socket */
	SIGXCPU   = 24 /* cpu time limit exceeded */
	SIGXFSZ   = 25 /* file size limit exceeded */
	SIGVTALRM = 26 /* virtual alarm clock */
	SIGPROF   = 27 /* profiling alarm clock */
	SIGWINCH  = 28 /* window size change */
	SIGIO     = 29 /* i/o now possible */
	SIGPWR    = 30 /* power failure */
	SIGSYS    = 31 /* bad system call */
)

const (
	/* process status codes */
	SREADY int8 = 1 /* runnable, waiting for the cpu */
	SRUN   int8 = 2 /* currently scheduled */
	SSLEEP int8 = 3 /* stopped or waiting */
	STERM  int8 = 4 /* terminated, slot not yet reused */
)

var stateNames = [...]string{
	SREADY: "READY",
	SRUN:   "RUN",
	SSLEEP: "SLEEP",
	STERM:  "TERM",
}

// StateName returns the ps-style name for a process status code.
func StateName(s int8) string {
	if int(s) < len(stateNames) && stateNames[s] != "" {
		return stateNames[s]
	}
	return "?"
}

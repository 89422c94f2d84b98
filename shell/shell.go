// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package shell is the interactive command interpreter that runs on
// the system console after boot.
//
// The shell is ordinary kernel-mode code: it polls completed lines
// from the console driver and operates on the kernel's tables through
// their exported interfaces. It never blocks inside the kernel; while
// no input is ready it hands control back to the host loop, which
// steps the machine and delivers interrupts.
package shell

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/pi5hack/pi5os/kern"
)

// NHIST is how many command lines history remembers.
const NHIST = 10

// A Shell is one interpreter session bound to a booted kernel.
type Shell struct {
	log  hclog.Logger
	k    *kern.Kernel
	wait func()

	user    string
	dir     string
	history []string
	running bool
}

// New returns a shell for k. The session starts as root in /home,
// which is where the boot transcript leaves the operator.
func New(k *kern.Kernel, log hclog.Logger) *Shell {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Shell{
		log:  log.Named("shell"),
		k:    k,
		user: "root",
		dir:  "/home",
	}
}

// Run reads and executes commands until exit. Between input polls it
// calls wait, which the host loop uses to step the machine. A nil
// wait gives up as soon as the console has no completed line; that is
// how tests drive a scripted session to completion.
func (sh *Shell) Run(wait func()) {
	sh.wait = wait
	sh.running = true
	sh.banner()
	for sh.running {
		sh.prompt()
		line, ok := sh.readLine()
		if !ok {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sh.remember(line)
		sh.execute(line)
	}
}

func (sh *Shell) banner() {
	sh.printf("\n")
	sh.printf("========================================\n")
	sh.printf("     Pi5 OS - UNIX Compatible Shell    \n")
	sh.printf("     Raspberry Pi 5 POSIX Environment  \n")
	sh.printf("========================================\n")
	sh.printf("Type 'help' for available commands.\n")
	sh.printf("UNIX features: syscalls, signals, IPC, users\n\n")
}

func (sh *Shell) prompt() {
	mark := "$"
	if sh.k.Users.IsRoot() {
		mark = "#"
	}
	sh.printf("%s@pi5os:%s%s ", sh.user, sh.dir, mark)
}

// readLine returns the next completed console line. The console
// driver assembles lines in its interrupt handler; this only has to
// wait for one to show up.
func (sh *Shell) readLine() (string, bool) {
	for {
		if line, ok := sh.k.Cons.ReadLine(); ok {
			return line, true
		}
		if sh.wait == nil {
			return "", false
		}
		sh.wait()
	}
}

func (sh *Shell) remember(line string) {
	if len(sh.history) >= NHIST {
		sh.history = sh.history[1:]
	}
	sh.history = append(sh.history, line)
}

func (sh *Shell) execute(line string) {
	args := strings.Fields(line)
	cmd := args[0]
	sh.log.Debug("execute", "cmd", cmd)
	if fn, ok := builtins[cmd]; ok {
		fn(sh, args[1:])
		return
	}
	sh.printf("%s: command not found\n", cmd)
	sh.printf("Type 'help' for available commands.\n")
}

func (sh *Shell) printf(format string, args ...any) {
	fmt.Fprintf(sh.k.Cons, format, args...)
}

// abs resolves a command-line path against the current directory.
// There is no dot or dot-dot handling; paths are plain strings to the
// file table.
func (sh *Shell) abs(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	if sh.dir == "/" {
		return "/" + path
	}
	return sh.dir + "/" + path
}

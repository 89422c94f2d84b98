// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Pi5run boots the kernel on a simulated BCM2712 and connects the
// caller's terminal to the serial console. Type exit (or ^\) to leave.
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/term"

	"github.com/pi5hack/pi5os/bcm2712"
	"github.com/pi5hack/pi5os/kern"
	"github.com/pi5hack/pi5os/shell"
)

var (
	board      = flag.String("board", "", "load board profile from JSON `file`")
	trace      = flag.Bool("trace", false, "log kernel activity to stderr")
	cpuprofile = flag.String("cpuprofile", "", "write cpuprofile to `file`")
)

func main() {
	log.SetPrefix("pi5run: ")
	log.SetFlags(0)
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	logger := hclog.NewNullLogger()
	if *trace {
		logger = hclog.New(&hclog.LoggerOptions{
			Name:   "pi5os",
			Level:  hclog.Debug,
			Output: os.Stderr,
		})
	}

	var b *bcm2712.Board
	if *board != "" {
		var err error
		b, err = bcm2712.LoadBoard(*board)
		if err != nil {
			log.Fatal(err)
		}
	}

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		panic(err)
	}
	fixup := func() { term.Restore(int(os.Stdin.Fd()), oldState) }
	defer fixup()

	k, err := kern.NewKernel(b, os.Stdout, nil, logger)
	if err != nil {
		log.Fatal(err)
	}
	if err := k.Boot(); err != nil {
		fixup()
		log.Fatal(err)
	}

	input := make(chan byte, 1000)
	go func() {
		buf := make([]byte, 100)
		defer close(input)
		for {
			n, err := os.Stdin.Read(buf)
			for _, c := range buf[:n] {
				if c == 0x1c {
					pprof.StopCPUProfile()
					fixup()
					os.Exit(0)
				}
				input <- c
			}
			if err == io.EOF {
				return
			} else if err != nil {
				log.Fatalf("reading stdin: %v", err)
			}
		}
	}()

	// The shell polls the console; between polls this loop feeds the
	// UART and lets the clock line fire so the scheduler keeps ticking.
	tick := time.Second / kern.HZ
	sh := shell.New(k, logger)
	sh.Run(func() {
		select {
		case c, ok := <-input:
			if !ok {
				// serial line dropped
				k.Shutdown()
				fixup()
				os.Exit(0)
			}
			k.Mach.UART.QueueInput([]byte{c})
		Loop:
			for {
				select {
				default:
					break Loop
				case c, ok := <-input:
					if !ok {
						break Loop
					}
					k.Mach.UART.QueueInput([]byte{c})
				}
			}
		case <-time.After(tick):
			// timer edge; Step will notice
		}
		k.Step()
	})
	k.Shutdown()
}

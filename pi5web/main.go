// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:generate cp $GOROOT/misc/wasm/wasm_exec.js .
//go:generate env GOOS=js GOARCH=wasm go build -o main.wasm

//go:build js && wasm

// Pi5web boots the kernel in a browser and renders the serial console
// into the page. Build it with go generate and serve the directory
// with serve.go.
package main

import (
	"fmt"
	"html"
	"log"
	"strings"
	"syscall/js"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/pi5hack/pi5os/kern"
	"github.com/pi5hack/pi5os/shell"
)

func fatal(err error) {
	log.Fatal(err)
}

var (
	doc    js.Value
	screen js.Value
	input  js.Value
	bottom js.Value
)

const cursor = "‸"

// A consoleWriter renders UART transmit bytes into the console pane.
// The only control sequence the shell emits is the clear-screen pair,
// which resets the pane.
type consoleWriter struct{}

func (consoleWriter) Write(b []byte) (int, error) {
	text := strings.ReplaceAll(string(b), "\r", "")
	inner := strings.TrimSuffix(screen.Get("innerHTML").String(), cursor)
	if i := strings.LastIndex(text, "\x1b[2J\x1b[H"); i >= 0 {
		inner = ""
		text = text[i+len("\x1b[2J\x1b[H"):]
	}
	screen.Set("innerHTML", js.ValueOf(inner+html.EscapeString(text)+cursor))
	bottom.Call("scrollIntoView", js.ValueOf(false))
	return len(b), nil
}

func main() {
	doc = js.Global().Get("document")
	screen = doc.Call("getElementById", "screen")
	input = doc.Call("getElementById", "input")
	bottom = doc.Call("getElementById", "bottom")

	k, err := kern.NewKernel(nil, consoleWriter{}, nil, hclog.NewNullLogger())
	if err != nil {
		fatal(err)
	}
	if err := k.Boot(); err != nil {
		fatal(err)
	}

	ready := make(chan bool, 1)

	wakeup := func() {
		select {
		case ready <- true:
		default:
		}
	}

	keydown := js.FuncOf(func(this js.Value, args []js.Value) any {
		e := args[0]
		e.Call("preventDefault")
		key := e.Get("key").String()
		ctrl := e.Get("ctrlKey").Bool()
		shift := e.Get("shiftKey").Bool()
		switch key {
		default:
			if len(key) > 1 {
				return nil
			}
		case "Enter":
			key = "\r"
		case "Backspace":
			key = "\b"
		case "Escape":
			key = "\033"
		case "Tab":
			key = "\t"
		}
		c := key[0]
		if (shift || ctrl) && 'a' <= c && c <= 'z' {
			c += ('A' - 'a') & 0o377
		}
		if ctrl && c >= '@' {
			c -= '@'
		}
		k.Mach.UART.QueueInput([]byte{c})
		wakeup()
		return nil
	})

	change := js.FuncOf(func(this js.Value, args []js.Value) any {
		v := input.Get("value").String()
		for _, b := range []byte(v) {
			k.Mach.UART.QueueInput([]byte{b})
			wakeup()
		}
		input.Set("value", "")
		return nil
	})

	input.Call("addEventListener", "keydown", keydown)
	input.Call("addEventListener", "input", change)
	doc.Get("body").Call("addEventListener", "click", js.FuncOf(func(this js.Value, args []js.Value) any {
		input.Call("focus")
		return nil
	}))
	input.Call("focus")

	fmt.Printf("started\n")

	var timer *time.Timer
	tick := time.Second / kern.HZ
	sh := shell.New(k, hclog.NewNullLogger())
	sh.Run(func() {
		if timer == nil {
			timer = time.AfterFunc(tick, wakeup)
		} else {
			timer.Reset(tick)
		}
		<-ready
		k.Step()
	})
	k.Shutdown()

	// keep the final transcript on screen
	select {}
}

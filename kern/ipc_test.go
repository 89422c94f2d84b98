// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"testing"

	"github.com/hashicorp/go-hclog"
)

func testIPC() *IPC {
	return NewIPC(hclog.NewNullLogger())
}

func TestPipeFIFO(t *testing.T) {
	ipc := testIPC()
	rfd, wfd, err := ipc.NewPipe(1)
	if err != nil {
		t.Fatal(err)
	}
	if rfd != 100 || wfd != 101 {
		t.Errorf("pipe fds = %d, %d, want 100, 101", rfd, wfd)
	}

	if n, err := ipc.PipeWrite(wfd, []byte("one ")); n != 4 || err != nil {
		t.Fatalf("write = %d, %v", n, err)
	}
	if n, err := ipc.PipeWrite(wfd, []byte("two")); n != 3 || err != nil {
		t.Fatalf("write = %d, %v", n, err)
	}

	buf := make([]byte, 4)
	if n, err := ipc.PipeRead(rfd, buf); n != 4 || err != nil || string(buf) != "one " {
		t.Fatalf("read = %d, %v, %q", n, err, buf)
	}
	buf = make([]byte, 16)
	if n, err := ipc.PipeRead(rfd, buf); n != 3 || err != nil || string(buf[:n]) != "two" {
		t.Fatalf("read = %d, %v, %q", n, err, buf[:n])
	}

	// Empty with a writer attached: try again later.
	if _, err := ipc.PipeRead(rfd, buf); err != EAGAIN {
		t.Fatalf("read empty = %v, want %v", err, EAGAIN)
	}
}

func TestPipeEOFAndBroken(t *testing.T) {
	ipc := testIPC()
	rfd, wfd, err := ipc.NewPipe(1)
	if err != nil {
		t.Fatal(err)
	}
	ipc.PipeWrite(wfd, []byte("bye"))

	if err := ipc.ClosePipe(wfd); err != nil {
		t.Fatal(err)
	}
	// Buffered data drains first, then clean EOF.
	buf := make([]byte, 16)
	if n, err := ipc.PipeRead(rfd, buf); n != 3 || err != nil {
		t.Fatalf("read = %d, %v, want 3, nil", n, err)
	}
	if n, err := ipc.PipeRead(rfd, buf); n != 0 || err != nil {
		t.Fatalf("read at EOF = %d, %v, want 0, nil", n, err)
	}

	// The mirror image: writing with no readers breaks the pipe.
	rfd2, wfd2, err := ipc.NewPipe(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := ipc.ClosePipe(rfd2); err != nil {
		t.Fatal(err)
	}
	if _, err := ipc.PipeWrite(wfd2, []byte("x")); err != EPIPE {
		t.Fatalf("write without readers = %v, want %v", err, EPIPE)
	}
}

func TestPipeShortWrite(t *testing.T) {
	ipc := testIPC()
	rfd, wfd, err := ipc.NewPipe(1)
	if err != nil {
		t.Fatal(err)
	}

	big := make([]byte, PIPESIZ+100)
	n, err := ipc.PipeWrite(wfd, big)
	if n != PIPESIZ || err != nil {
		t.Fatalf("write = %d, %v, want %d, nil", n, err, PIPESIZ)
	}
	// Full: nothing more fits until a read drains it.
	if n, _ := ipc.PipeWrite(wfd, []byte("x")); n != 0 {
		t.Fatalf("write to full pipe = %d, want 0", n)
	}
	buf := make([]byte, 100)
	if n, err := ipc.PipeRead(rfd, buf); n != 100 || err != nil {
		t.Fatalf("read = %d, %v", n, err)
	}
	if n, err := ipc.PipeWrite(wfd, []byte("x")); n != 1 || err != nil {
		t.Fatalf("write after drain = %d, %v", n, err)
	}
}

func TestPipeBadFD(t *testing.T) {
	ipc := testIPC()
	if _, err := ipc.PipeRead(42, make([]byte, 1)); err != EBADF {
		t.Errorf("read bad fd = %v, want %v", err, EBADF)
	}
	if _, err := ipc.PipeWrite(42, []byte("x")); err != EBADF {
		t.Errorf("write bad fd = %v, want %v", err, EBADF)
	}
	if err := ipc.ClosePipe(42); err != EBADF {
		t.Errorf("close bad fd = %v, want %v", err, EBADF)
	}
}

func TestPipeLimit(t *testing.T) {
	ipc := testIPC()
	for i := 0; i < NPIPE; i++ {
		if _, _, err := ipc.NewPipe(1); err != nil {
			t.Fatalf("pipe %d: %v", i, err)
		}
	}
	if _, _, err := ipc.NewPipe(1); err != ENFILE {
		t.Fatalf("pipe beyond NPIPE = %v, want %v", err, ENFILE)
	}
}

func TestMsgQueue(t *testing.T) {
	ipc := testIPC()
	id, err := ipc.NewMsgQueue(7, 0o600, 1)
	if err != nil {
		t.Fatal(err)
	}
	if id != 1000 {
		t.Errorf("queue id = %d, want 1000", id)
	}

	ipc.Send(id, 1, []byte("first"))
	ipc.Send(id, 2, []byte("second"))
	ipc.Send(id, 1, []byte("third"))

	// Typed receive takes the first match, not the head.
	m, err := ipc.Receive(id, 2)
	if err != nil || string(m.Data) != "second" {
		t.Fatalf("Receive(2) = %q, %v", m.Data, err)
	}

	// Type 0 takes the head.
	m, err = ipc.Receive(id, 0)
	if err != nil || string(m.Data) != "first" {
		t.Fatalf("Receive(0) = %q, %v", m.Data, err)
	}
	if ipc.MsgCount(id) != 1 {
		t.Errorf("MsgCount = %d, want 1", ipc.MsgCount(id))
	}

	if _, err := ipc.Receive(id, 9); err != ENOMSG {
		t.Errorf("Receive no match = %v, want %v", err, ENOMSG)
	}
	if err := ipc.Send(99, 1, nil); err != EINVAL {
		t.Errorf("Send unknown queue = %v, want %v", err, EINVAL)
	}
	if err := ipc.Send(id, 1, make([]byte, MSGSIZ+1)); err != EINVAL {
		t.Errorf("oversized Send = %v, want %v", err, EINVAL)
	}
}

func TestMsgQueueFull(t *testing.T) {
	ipc := testIPC()
	id, err := ipc.NewMsgQueue(1, 0o600, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < NMSG; i++ {
		if err := ipc.Send(id, 1, []byte("m")); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := ipc.Send(id, 1, []byte("m")); err != EAGAIN {
		t.Fatalf("send beyond NMSG = %v, want %v", err, EAGAIN)
	}
}

func TestShm(t *testing.T) {
	ipc := testIPC()
	id, err := ipc.NewSegment(3, 100, 0o600, 1)
	if err != nil {
		t.Fatal(err)
	}
	if id != 10000 {
		t.Errorf("segment id = %d, want 10000", id)
	}

	if err := ipc.Attach(id, 1); err != nil {
		t.Fatal(err)
	}
	if err := ipc.Attach(id, 1); err != EBUSY {
		t.Errorf("double attach = %v, want %v", err, EBUSY)
	}
	if err := ipc.Attach(99, 1); err != EINVAL {
		t.Errorf("attach unknown = %v, want %v", err, EINVAL)
	}

	if n, err := ipc.SegWrite(id, 10, []byte("hello")); n != 5 || err != nil {
		t.Fatalf("SegWrite = %d, %v", n, err)
	}
	buf := make([]byte, 5)
	if n, err := ipc.SegRead(id, 10, buf); n != 5 || err != nil || string(buf) != "hello" {
		t.Fatalf("SegRead = %d, %v, %q", n, err, buf)
	}

	// Reads stop at the written extent; writes clip at the size.
	if n, _ := ipc.SegRead(id, 15, buf); n != 0 {
		t.Errorf("read past extent = %d, want 0", n)
	}
	if n, err := ipc.SegWrite(id, 95, []byte("0123456789")); n != 5 || err != nil {
		t.Errorf("clipped write = %d, %v, want 5", n, err)
	}
	if _, err := ipc.SegWrite(id, 200, []byte("x")); err != EINVAL {
		t.Errorf("write past size = %v, want %v", err, EINVAL)
	}

	if err := ipc.Detach(id, 1); err != nil {
		t.Fatal(err)
	}
	if ipc.Attached(id) != 0 {
		t.Errorf("Attached = %d, want 0", ipc.Attached(id))
	}
}

func TestShmOversized(t *testing.T) {
	ipc := testIPC()
	id, err := ipc.NewSegment(4, SHMSIZ*2, 0o600, 1)
	if err != nil {
		t.Fatal(err)
	}
	// Requests beyond SHMSIZ are clamped, not rejected.
	if n, err := ipc.SegWrite(id, SHMSIZ-1, []byte("ab")); n != 1 || err != nil {
		t.Errorf("write at clamped end = %d, %v, want 1", n, err)
	}
}

func TestIPCCleanup(t *testing.T) {
	ipc := testIPC()
	rfd, wfd, err := ipc.NewPipe(2)
	if err != nil {
		t.Fatal(err)
	}
	orfd, owfd, err := ipc.NewPipe(1)
	if err != nil {
		t.Fatal(err)
	}
	sid, err := ipc.NewSegment(5, 64, 0o600, 2)
	if err != nil {
		t.Fatal(err)
	}
	ipc.Attach(sid, 2)
	ipc.Attach(sid, 1)

	ipc.CleanupProc(2)

	// Pid 2's pipe is gone; pid 1's survives.
	if _, err := ipc.PipeWrite(wfd, []byte("x")); err != EBADF {
		t.Errorf("dead owner's pipe write = %v, want %v", err, EBADF)
	}
	if _, err := ipc.PipeRead(rfd, make([]byte, 1)); err != EBADF {
		t.Errorf("dead owner's pipe read = %v, want %v", err, EBADF)
	}
	if _, err := ipc.PipeWrite(owfd, []byte("x")); err != nil {
		t.Errorf("survivor pipe write = %v", err)
	}
	if _, err := ipc.PipeRead(orfd, make([]byte, 1)); err != EAGAIN {
		t.Errorf("survivor pipe read = %v, want %v", err, EAGAIN)
	}

	// The segment stays but pid 2's attachment is gone.
	if ipc.Attached(sid) != 1 {
		t.Errorf("Attached = %d, want 1", ipc.Attached(sid))
	}
}

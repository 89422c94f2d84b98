// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import "github.com/hashicorp/go-hclog"

// A Pipe is a bounded one-way byte channel. Its two ends are named by
// consecutive ids from the pipe range; each end carries a reference
// count, and the pipe deactivates when both reach zero.
type Pipe struct {
	ReadFD  int32
	WriteFD int32
	Owner   int32 /* creating pid, released on exit */
	Readers int
	Writers int
	Active  bool

	buf []byte
}

// A Msg is one queued message: a type tag and its payload.
type Msg struct {
	Type int32
	Data []byte
}

// A MsgQueue holds typed messages in arrival order.
type MsgQueue struct {
	ID      int32
	Perm    uint32
	Creator int32

	msgs []Msg
}

// A Segment is a shared-memory segment. Its backing store grows as it
// is written, up to Size; reads stop at the written extent.
type Segment struct {
	ID      int32
	Size    int
	Perm    uint32
	Creator int32

	data     []byte
	attached []int32
}

// An IPC owns the kernel's pipes, message queues, and shared-memory
// segments. The three kinds draw ids from widely separated ranges so
// that an id passed to the wrong call fails lookup instead of
// aliasing another object.
type IPC struct {
	log    hclog.Logger
	pipes  []*Pipe
	queues []*MsgQueue
	segs   []*Segment

	nextPipe int32
	nextMsgq int32
	nextShm  int32
}

// NewIPC returns an empty IPC registry.
func NewIPC(log hclog.Logger) *IPC {
	return &IPC{
		log:      log.Named("ipc"),
		nextPipe: 100,
		nextMsgq: 1000,
		nextShm:  10000,
	}
}

// NewPipe allocates a pipe owned by pid and returns its read and
// write ids.
func (ipc *IPC) NewPipe(owner int32) (rfd, wfd int32, err error) {
	if len(ipc.pipes) >= NPIPE {
		return 0, 0, ENFILE
	}
	rfd = ipc.nextPipe
	wfd = ipc.nextPipe + 1
	ipc.nextPipe += 2
	ipc.pipes = append(ipc.pipes, &Pipe{
		ReadFD:  rfd,
		WriteFD: wfd,
		Owner:   owner,
		Readers: 1,
		Writers: 1,
		Active:  true,
	})
	ipc.log.Debug("pipe created", "read", rfd, "write", wfd, "owner", owner)
	return rfd, wfd, nil
}

func (ipc *IPC) pipeByFD(fd int32) *Pipe {
	for _, p := range ipc.pipes {
		if p.ReadFD == fd || p.WriteFD == fd {
			return p
		}
	}
	return nil
}

// PipeWrite appends data to the pipe named by its write id. A full
// buffer gives a short write; a pipe with no read end left is broken.
func (ipc *IPC) PipeWrite(fd int32, data []byte) (int, error) {
	p := ipc.pipeByFD(fd)
	if p == nil || p.WriteFD != fd || !p.Active {
		return 0, EBADF
	}
	if p.Readers == 0 {
		return 0, EPIPE
	}
	n := min(len(data), PIPESIZ-len(p.buf))
	p.buf = append(p.buf, data[:n]...)
	return n, nil
}

// PipeRead drains up to len(b) bytes from the pipe named by its read
// id. An empty pipe reads as EOF (0 bytes) once the write side is
// gone, and as EAGAIN while writers remain.
func (ipc *IPC) PipeRead(fd int32, b []byte) (int, error) {
	p := ipc.pipeByFD(fd)
	if p == nil || p.ReadFD != fd || !p.Active {
		return 0, EBADF
	}
	n := copy(b, p.buf)
	m := copy(p.buf, p.buf[n:])
	p.buf = p.buf[:m]
	if n == 0 && p.Writers > 0 {
		return 0, EAGAIN
	}
	return n, nil
}

// ClosePipe releases the pipe end named by fd. When both ends are
// gone the pipe deactivates and its buffer is dropped.
func (ipc *IPC) ClosePipe(fd int32) error {
	p := ipc.pipeByFD(fd)
	if p == nil {
		return EBADF
	}
	if p.ReadFD == fd && p.Readers > 0 {
		p.Readers--
	}
	if p.WriteFD == fd && p.Writers > 0 {
		p.Writers--
	}
	if p.Readers == 0 && p.Writers == 0 {
		p.Active = false
		p.buf = nil
	}
	return nil
}

// NewMsgQueue allocates a message queue. The key is advisory.
func (ipc *IPC) NewMsgQueue(key int32, perm uint32, creator int32) (int32, error) {
	if len(ipc.queues) >= NMSGQ {
		return 0, ENOSPC
	}
	id := ipc.nextMsgq
	ipc.nextMsgq++
	ipc.queues = append(ipc.queues, &MsgQueue{ID: id, Perm: perm, Creator: creator})
	ipc.log.Debug("msgq created", "id", id, "key", key, "creator", creator)
	return id, nil
}

func (ipc *IPC) queueByID(id int32) *MsgQueue {
	for _, q := range ipc.queues {
		if q.ID == id {
			return q
		}
	}
	return nil
}

// Send appends a message to the queue named by id.
func (ipc *IPC) Send(id, typ int32, data []byte) error {
	q := ipc.queueByID(id)
	if q == nil {
		return EINVAL
	}
	if len(data) > MSGSIZ {
		return EINVAL
	}
	if len(q.msgs) >= NMSG {
		return EAGAIN
	}
	q.msgs = append(q.msgs, Msg{Type: typ, Data: append([]byte(nil), data...)})
	return nil
}

// Receive removes and returns the oldest message of the given type;
// type 0 matches any message.
func (ipc *IPC) Receive(id, typ int32) (Msg, error) {
	q := ipc.queueByID(id)
	if q == nil {
		return Msg{}, EINVAL
	}
	for i, m := range q.msgs {
		if typ == 0 || m.Type == typ {
			q.msgs = append(q.msgs[:i], q.msgs[i+1:]...)
			return m, nil
		}
	}
	return Msg{}, ENOMSG
}

// MsgCount reports how many messages wait in the queue named by id.
func (ipc *IPC) MsgCount(id int32) int {
	if q := ipc.queueByID(id); q != nil {
		return len(q.msgs)
	}
	return 0
}

// NewSegment allocates a shared-memory segment of at most SHMSIZ
// bytes; larger requests are capped, not refused.
func (ipc *IPC) NewSegment(key int32, size int, perm uint32, creator int32) (int32, error) {
	if len(ipc.segs) >= NSHM {
		return 0, ENOSPC
	}
	id := ipc.nextShm
	ipc.nextShm++
	ipc.segs = append(ipc.segs, &Segment{
		ID:      id,
		Size:    min(size, SHMSIZ),
		Perm:    perm,
		Creator: creator,
	})
	ipc.log.Debug("shm created", "id", id, "key", key, "size", min(size, SHMSIZ))
	return id, nil
}

func (ipc *IPC) segByID(id int32) *Segment {
	for _, s := range ipc.segs {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Attach records pid against the segment named by id. A pid attaches
// at most once.
func (ipc *IPC) Attach(id, pid int32) error {
	s := ipc.segByID(id)
	if s == nil {
		return EINVAL
	}
	if len(s.attached) >= NSHMAT {
		return EMFILE
	}
	for _, a := range s.attached {
		if a == pid {
			return EBUSY
		}
	}
	s.attached = append(s.attached, pid)
	return nil
}

// Detach removes pid from the segment named by id.
func (ipc *IPC) Detach(id, pid int32) error {
	s := ipc.segByID(id)
	if s == nil {
		return EINVAL
	}
	for i, a := range s.attached {
		if a == pid {
			s.attached = append(s.attached[:i], s.attached[i+1:]...)
			return nil
		}
	}
	return EINVAL
}

// Attached reports how many processes are attached to the segment.
func (ipc *IPC) Attached(id int32) int {
	if s := ipc.segByID(id); s != nil {
		return len(s.attached)
	}
	return 0
}

// SegWrite copies data into the segment at offset, zero-extending the
// written extent as needed. Writes past Size are clipped short.
func (ipc *IPC) SegWrite(id int32, offset int, data []byte) (int, error) {
	s := ipc.segByID(id)
	if s == nil {
		return 0, EINVAL
	}
	if offset < 0 || offset >= s.Size {
		return 0, EINVAL
	}
	n := min(len(data), s.Size-offset)
	if end := offset + n; len(s.data) < end {
		s.data = append(s.data, make([]byte, end-len(s.data))...)
	}
	copy(s.data[offset:], data[:n])
	return n, nil
}

// SegRead copies from the segment at offset into b. Reads stop at the
// written extent, so a fresh segment reads as empty.
func (ipc *IPC) SegRead(id int32, offset int, b []byte) (int, error) {
	s := ipc.segByID(id)
	if s == nil {
		return 0, EINVAL
	}
	if offset < 0 || offset >= s.Size {
		return 0, EINVAL
	}
	if offset >= len(s.data) {
		return 0, nil
	}
	return copy(b, s.data[offset:min(len(s.data), s.Size)]), nil
}

// CleanupProc releases everything pid held: both ends of every pipe
// it created and all of its shared-memory attachments.
func (ipc *IPC) CleanupProc(pid int32) {
	for _, p := range ipc.pipes {
		if p.Owner != pid || !p.Active {
			continue
		}
		if p.Readers > 0 {
			p.Readers--
		}
		if p.Writers > 0 {
			p.Writers--
		}
		if p.Readers == 0 && p.Writers == 0 {
			p.Active = false
			p.buf = nil
		}
	}
	for _, s := range ipc.segs {
		for i, a := range s.attached {
			if a == pid {
				s.attached = append(s.attached[:i], s.attached[i+1:]...)
				break
			}
		}
	}
	ipc.log.Debug("ipc released", "pid", pid)
}

// Stats reports how many pipes, message queues, and segments exist,
// active or not.
func (ipc *IPC) Stats() (pipes, queues, segs int) {
	return len(ipc.pipes), len(ipc.queues), len(ipc.segs)
}

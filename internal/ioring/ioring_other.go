//go:build !linux

// Package ioring's non-Linux build provides the same submission/queue API
// as the real io_uring binding, implemented with one goroutine per
// submitted operation and mutex-guarded pending/completed queues. It
// exists so the engine package compiles and is testable off Linux; it is
// not the load-bearing implementation the design centers on.
package ioring

import (
	"fmt"
	"net"
	"sync"
	"unsafe"
)

const (
	OpAccept uint8 = iota
	OpRecv
	OpSend
	OpClose
)

type submission struct {
	opcode   uint8
	sockFD   int32
	addr     unsafe.Pointer
	length   uint32
	userData uint64
}

// Completion mirrors the Linux binding's result shape.
type Completion struct {
	UserData uint64
	Res      int32
}

// Ring emulates the kernel ring with an in-process queue: Push enqueues,
// Submit starts one goroutine per queued entry, PopCompletion drains
// whatever has finished. The fds table resolves the synthetic sockFD values the
// engine hands it back to *net.TCPConn/*net.TCPListener, since this build
// has no raw file descriptors to operate on directly.
type Ring struct {
	mu       sync.Mutex
	pending  []submission
	done     []Completion
	fds      *fdTable
	capacity uint32
}

func New(entries uint32) (*Ring, error) {
	if entries == 0 {
		return nil, fmt.Errorf("ioring: entries must be positive")
	}
	return &Ring{capacity: entries, fds: newFDTable()}, nil
}

func (r *Ring) Push(opcode uint8, sockFD int32, addr unsafe.Pointer, length uint32, userData uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if uint32(len(r.pending)) >= r.capacity {
		return false
	}
	r.pending = append(r.pending, submission{opcode, sockFD, addr, length, userData})
	return true
}

// Submit hands every queued operation to its own goroutine against the
// registered net.Conn/net.Listener and returns immediately; each
// goroutine appends its result for PopCompletion once the blocking
// Accept/Read/Write call returns. A synchronous run here would block the
// single poll loop on whichever op (commonly a Recv with no data yet)
// happened to be submitted first, starving every other session and the
// accept loop along with it — exactly the stall the real completion ring
// exists to avoid. Running one goroutine per in-flight op reproduces the
// same "submit now, poll completions later" shape without that stall.
func (r *Ring) Submit() (int, error) {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, s := range batch {
		go func(s submission) {
			res := r.run(s)
			r.mu.Lock()
			r.done = append(r.done, res)
			r.mu.Unlock()
		}(s)
	}
	return len(batch), nil
}

func (r *Ring) run(s submission) Completion {
	switch s.opcode {
	case OpAccept:
		ln := r.fds.listener(s.sockFD)
		if ln == nil {
			return Completion{UserData: s.userData, Res: -1}
		}
		conn, err := ln.Accept()
		if err != nil {
			return Completion{UserData: s.userData, Res: -1}
		}
		fd := r.fds.register(conn)
		return Completion{UserData: s.userData, Res: fd}
	case OpRecv:
		conn := r.fds.conn(s.sockFD)
		if conn == nil {
			return Completion{UserData: s.userData, Res: -1}
		}
		buf := unsafe.Slice((*byte)(s.addr), int(s.length))
		n, err := conn.Read(buf)
		if err != nil && n == 0 {
			return Completion{UserData: s.userData, Res: -1}
		}
		return Completion{UserData: s.userData, Res: int32(n)}
	case OpSend:
		conn := r.fds.conn(s.sockFD)
		if conn == nil {
			return Completion{UserData: s.userData, Res: -1}
		}
		buf := unsafe.Slice((*byte)(s.addr), int(s.length))
		n, err := conn.Write(buf)
		if err != nil && n == 0 {
			return Completion{UserData: s.userData, Res: -1}
		}
		return Completion{UserData: s.userData, Res: int32(n)}
	case OpClose:
		r.fds.close(s.sockFD)
		return Completion{UserData: s.userData, Res: 0}
	default:
		return Completion{UserData: s.userData, Res: -1}
	}
}

func (r *Ring) PopCompletion() (Completion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.done) == 0 {
		return Completion{}, false
	}
	c := r.done[0]
	r.done = r.done[1:]
	return c, true
}

func (r *Ring) Close() error {
	return nil
}

// RegisterListener exposes a synthetic fd for a listener so the engine can
// queue accepts against it without touching raw descriptors.
func (r *Ring) RegisterListener(ln net.Listener) int32 { return r.fds.registerListener(ln) }

// OpenListener opens a TCP listener bound to addr (host:port) and returns
// a synthetic fd the engine can queue OpAccept operations against.
func (r *Ring) OpenListener(addr string) (int32, error) {
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return 0, fmt.Errorf("ioring: listen %q: %w", addr, err)
	}
	return r.fds.registerListener(ln), nil
}

type fdTable struct {
	mu        sync.Mutex
	listeners map[int32]net.Listener
	conns     map[int32]net.Conn
	next      int32
}

func newFDTable() *fdTable {
	return &fdTable{listeners: map[int32]net.Listener{}, conns: map[int32]net.Conn{}, next: 3}
}

func (t *fdTable) registerListener(ln net.Listener) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.next
	t.next++
	t.listeners[fd] = ln
	return fd
}

func (t *fdTable) register(conn net.Conn) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.next
	t.next++
	t.conns[fd] = conn
	return fd
}

func (t *fdTable) listener(fd int32) net.Listener {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listeners[fd]
}

func (t *fdTable) conn(fd int32) net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[fd]
}

func (t *fdTable) close(fd int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[fd]; ok {
		c.Close()
		delete(t.conns, fd)
	}
	if l, ok := t.listeners[fd]; ok {
		l.Close()
		delete(t.listeners, fd)
	}
}

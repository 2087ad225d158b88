//go:build linux

// Package ioring is the submission/completion ring binding behind the I/O
// engine. It wraps the Linux io_uring syscall interface: one mmap'd
// submission queue, one mmap'd completion queue, and a separate mmap'd
// SQE array.
//
// The kernel ABI (struct io_uring_params/io_uring_sqe/io_uring_cqe, the
// IORING_OP_* opcode numbers, and the io_uring_setup/io_uring_enter
// syscall numbers) is hand-rolled here rather than taken from a
// higher-level wrapper, the same way the raw io_uring bindings retrieved
// alongside this package do it: define the struct layouts and syscall
// numbers locally and drive them with golang.org/x/sys/unix's generic
// Syscall/Syscall6/Mmap primitives.
package ioring

import (
	"fmt"
	"net"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	sysIoUringSetup    = 425
	sysIoUringEnter    = 426
	sysIoUringRegister = 427
)

// Opcodes actually used by the engine's verb set, numbered per the kernel's
// io_uring.h (IORING_OP_ACCEPT=13, IORING_OP_CLOSE=19, IORING_OP_SEND=26,
// IORING_OP_RECV=27).
const (
	OpAccept uint8 = 13
	OpClose  uint8 = 19
	OpSend   uint8 = 26
	OpRecv   uint8 = 27
)

const ioringFeatSingleMmap = 1 << 0

const (
	ioringOffSQRing int64 = 0
	ioringOffCQRing int64 = 0x8000000
	ioringOffSQEs   int64 = 0x10000000
)

// sqringOffsets mirrors struct io_uring_sqring_offsets.
type sqringOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Flags       uint32
	Dropped     uint32
	Array       uint32
	Resv1       uint32
	UserAddr    uint64
}

// cqringOffsets mirrors struct io_uring_cqring_offsets.
type cqringOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Overflow    uint32
	Cqes        uint32
	Flags       uint32
	Resv1       uint32
	UserAddr    uint64
}

// ioUringParams mirrors struct io_uring_params: 120 bytes, used both as
// setup input (Flags/SQThreadCPU/SQThreadIdle) and output (Features, the
// SQ/CQ ring offsets the kernel chose).
type ioUringParams struct {
	SQEntries    uint32
	CQEntries    uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle uint32
	Features     uint32
	WQFd         uint32
	Resv         [3]uint32
	SQOff        sqringOffsets
	CQOff        cqringOffsets
}

// sqe mirrors struct io_uring_sqe: 64 bytes. The buffer/sockaddr pointer
// for RECV/SEND/ACCEPT lives in the addr union at offset 16, distinct
// from the off/addr2 union at offset 8 used for file-offset ops.
type sqe struct {
	Opcode      uint8
	Flags       uint8
	Ioprio      uint16
	Fd          int32
	Off         uint64 // off/addr2 union
	Addr        uint64 // addr/splice_off_in union
	Len         uint32
	OpFlags     uint32 // accept_flags/msg_flags/rw_flags/... union
	UserData    uint64
	BufIndex    uint16 // buf_index/buf_group union
	Personality uint16
	SpliceFdIn  int32 // splice_fd_in/file_index union
	Addr3       uint64
	pad2        uint64
}

// cqe mirrors struct io_uring_cqe: 16 bytes.
type cqe struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

func ioUringSetup(entries uint32, p *ioUringParams) (int, error) {
	fd, _, errno := unix.Syscall(sysIoUringSetup, uintptr(entries), uintptr(unsafe.Pointer(p)), 0)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

func ioUringEnter(fd int, toSubmit, minComplete, flags uint32) (int, error) {
	n, _, errno := unix.Syscall6(sysIoUringEnter, uintptr(fd), uintptr(toSubmit), uintptr(minComplete), uintptr(flags), 0, 0)
	if errno != 0 {
		return int(n), errno
	}
	return int(n), nil
}

// Ring is one submission/completion ring pair plus its listener-independent
// bookkeeping. One Ring backs one engine instance.
type Ring struct {
	fd int

	sqRing []byte
	cqRing []byte
	sqes   []sqe

	sqHead, sqTail, sqMask, sqArray *uint32
	cqHead, cqTail, cqMask          *uint32
	cqes                            []cqe

	entries uint32
}

// New creates a ring with room for `entries` (rounded up to a power of two
// by the kernel) in-flight submissions.
func New(entries uint32) (*Ring, error) {
	var params ioUringParams
	fd, err := ioUringSetup(entries, &params)
	if err != nil {
		return nil, fmt.Errorf("ioring: io_uring_setup: %w", err)
	}

	if params.Features&ioringFeatSingleMmap == 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("ioring: kernel lacks IORING_FEAT_SINGLE_MMAP (needs Linux 5.4+)")
	}

	r := &Ring{fd: fd, entries: params.SQEntries}

	sqRingSize := params.SQOff.Array + params.SQEntries*4
	cqRingSize := params.CQOff.Cqes + params.CQEntries*uint32(unsafe.Sizeof(cqe{}))
	ringSize := sqRingSize
	if cqRingSize > ringSize {
		ringSize = cqRingSize
	}

	sqRing, err := unix.Mmap(fd, ioringOffSQRing, int(ringSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ioring: mmap sq/cq ring: %w", err)
	}
	r.sqRing = sqRing
	r.cqRing = sqRing // IORING_FEAT_SINGLE_MMAP: same mapping backs both rings

	sqeBytes := int(params.SQEntries) * int(unsafe.Sizeof(sqe{}))
	sqeMem, err := unix.Mmap(fd, ioringOffSQEs, sqeBytes,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Munmap(r.sqRing)
		unix.Close(fd)
		return nil, fmt.Errorf("ioring: mmap sqes: %w", err)
	}
	r.sqes = unsafe.Slice((*sqe)(unsafe.Pointer(&sqeMem[0])), params.SQEntries)

	base := unsafe.Pointer(&r.sqRing[0])
	r.sqHead = (*uint32)(unsafe.Add(base, params.SQOff.Head))
	r.sqTail = (*uint32)(unsafe.Add(base, params.SQOff.Tail))
	sqMask := *(*uint32)(unsafe.Add(base, params.SQOff.RingMask))
	r.sqMask = &sqMask
	r.sqArray = (*uint32)(unsafe.Add(base, params.SQOff.Array))

	r.cqHead = (*uint32)(unsafe.Add(base, params.CQOff.Head))
	r.cqTail = (*uint32)(unsafe.Add(base, params.CQOff.Tail))
	cqMask := *(*uint32)(unsafe.Add(base, params.CQOff.RingMask))
	r.cqMask = &cqMask
	cqesPtr := unsafe.Add(base, params.CQOff.Cqes)
	r.cqes = unsafe.Slice((*cqe)(cqesPtr), params.CQEntries)

	return r, nil
}

// Push reserves the next submission slot, fills it for the given opcode,
// fd and user data, and returns whether there was room. The caller must
// call Submit to make it visible to the kernel: every verb enqueues,
// submit is always a separate explicit step.
func (r *Ring) Push(opcode uint8, sockFD int32, addr unsafe.Pointer, length uint32, userData uint64) bool {
	tail := atomic.LoadUint32(r.sqTail)
	head := atomic.LoadUint32(r.sqHead)
	if tail-head >= r.entries {
		return false
	}
	idx := tail & *r.sqMask
	s := &r.sqes[idx]
	*s = sqe{}
	s.Opcode = opcode
	s.Fd = sockFD
	s.Addr = uint64(uintptr(addr))
	s.Len = length
	s.UserData = userData

	arrayPtr := (*uint32)(unsafe.Pointer(uintptr(unsafe.Pointer(r.sqArray)) + uintptr(idx)*4))
	*arrayPtr = idx

	atomic.AddUint32(r.sqTail, 1)
	return true
}

// Submit tells the kernel about every pushed-but-unsubmitted entry and
// returns how many it accepted. It never blocks waiting for completions
// (minComplete=0), matching the engine's single checkpoint design.
func (r *Ring) Submit() (int, error) {
	toSubmit := atomic.LoadUint32(r.sqTail) - atomic.LoadUint32(r.sqHead)
	if toSubmit == 0 {
		return 0, nil
	}
	return ioUringEnter(r.fd, toSubmit, 0, 0)
}

// Completion is one drained CQE: the frame-pool index the engine attached
// as user data, and the kernel result (negative errno, 0, or bytes/fd).
type Completion struct {
	UserData uint64
	Res      int32
}

// PopCompletion drains one ready completion without blocking. ok is false
// if the completion queue is currently empty.
func (r *Ring) PopCompletion() (Completion, bool) {
	head := atomic.LoadUint32(r.cqHead)
	tail := atomic.LoadUint32(r.cqTail)
	if head == tail {
		return Completion{}, false
	}
	c := &r.cqes[head&*r.cqMask]
	out := Completion{UserData: c.UserData, Res: c.Res}
	atomic.AddUint32(r.cqHead, 1)
	return out, true
}

// OpenListener creates a non-blocking TCP listening socket bound to addr
// (host:port) and returns its raw file descriptor, ready to be queued
// with OpAccept. The receiver is unused on Linux (the kernel fd doubles
// as its own handle) but kept for API symmetry with the portable build.
func (r *Ring) OpenListener(addr string) (int32, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return 0, fmt.Errorf("ioring: resolve %q: %w", addr, err)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		return 0, fmt.Errorf("ioring: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("ioring: setsockopt SO_REUSEADDR: %w", err)
	}
	var sa unix.SockaddrInet4
	sa.Port = tcpAddr.Port
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := unix.Bind(fd, &sa); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("ioring: bind %q: %w", addr, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("ioring: listen: %w", err)
	}
	return int32(fd), nil
}

// Close unmaps the rings and closes the io_uring file descriptor.
func (r *Ring) Close() error {
	var firstErr error
	if r.sqes != nil {
		sqeMem := unsafe.Slice((*byte)(unsafe.Pointer(&r.sqes[0])), len(r.sqes)*int(unsafe.Sizeof(sqe{})))
		if err := unix.Munmap(sqeMem); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.sqRing != nil {
		if err := unix.Munmap(r.sqRing); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := unix.Close(r.fd); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

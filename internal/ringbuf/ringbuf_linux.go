//go:build linux

package ringbuf

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func osPageSize() int { return os.Getpagesize() }

// mmapRing is the genuine double (n+1) mapping: a single memfd-backed
// region of size bytes is mapped contiguously mirrorCount+1 times, so any linear access
// of up to `size` bytes starting in the first window reads or writes the
// same physical memory regardless of where it wraps.
type mmapRing struct {
	region []byte // the full reserved virtual range, length size*(mirrors+1)
	fd     int
}

func newImpl(size int, mirrorCount int) (ringImpl, error) {
	fd, err := unix.MemfdCreate("classicd-ringbuf", 0)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ftruncate: %w", err)
	}

	total := size * (mirrorCount + 1)

	// Reserve a contiguous virtual range with no backing, so every
	// subsequent MAP_FIXED window lands inside address space we own and
	// nothing else can race into it first.
	base, err := unix.Mmap(-1, 0, total, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reserve: %w", err)
	}
	baseAddr := uintptr(unsafe.Pointer(&base[0]))

	mapped := 0
	cleanup := func() {
		for i := 0; i < mapped; i++ {
			addr := baseAddr + uintptr(i*size)
			unix.RawSyscall(unix.SYS_MUNMAP, addr, uintptr(size), 0)
		}
		unix.Munmap(base)
		unix.Close(fd)
	}

	for i := 0; i <= mirrorCount; i++ {
		addr := baseAddr + uintptr(i*size)
		_, _, errno := unix.Syscall6(
			unix.SYS_MMAP,
			addr,
			uintptr(size),
			uintptr(unix.PROT_READ|unix.PROT_WRITE),
			uintptr(unix.MAP_SHARED|unix.MAP_FIXED),
			uintptr(fd),
			0,
		)
		if errno != 0 {
			cleanup()
			return nil, fmt.Errorf("mmap window %d: %w", i, errno)
		}
		mapped++
	}

	region := unsafe.Slice((*byte)(unsafe.Pointer(baseAddr)), total)
	return &mmapRing{region: region, fd: fd}, nil
}

func (m *mmapRing) data() []byte { return m.region }

// commit is a no-op: the windows are the same physical page, so a write
// anywhere is already visible through every mirror.
func (m *mmapRing) commit(offset, n int) {}

func (m *mmapRing) close() error {
	if err := unix.Munmap(m.region); err != nil {
		unix.Close(m.fd)
		return err
	}
	return unix.Close(m.fd)
}

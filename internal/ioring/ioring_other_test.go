//go:build !linux

package ioring

import (
	"net"
	"testing"
	"time"
	"unsafe"
)

// waitCompletion polls PopCompletion until one is ready or the deadline
// passes: Submit now hands work to goroutines and returns immediately, so
// a completion is not guaranteed to be queued the instant Submit returns.
func waitCompletion(t *testing.T, r *Ring) Completion {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c, ok := r.PopCompletion(); ok {
			return c
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for completion")
	return Completion{}
}

func TestOpenListenerAndAccept(t *testing.T) {
	r, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	fd, err := r.OpenListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("OpenListener: %v", err)
	}

	dialDone := make(chan struct{})
	go func() {
		ln := r.fds.listener(fd)
		conn, dialErr := net.Dial("tcp4", ln.Addr().String())
		if dialErr != nil {
			t.Errorf("dial: %v", dialErr)
			return
		}
		defer conn.Close()
		close(dialDone)
	}()

	if !r.Push(OpAccept, fd, nil, 0, 42) {
		t.Fatalf("push accept failed")
	}
	<-dialDone
	if _, err := r.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}

	c := waitCompletion(t, r)
	if c.UserData != 42 {
		t.Fatalf("expected user data 42, got %d", c.UserData)
	}
	if c.Res < 0 {
		t.Fatalf("expected a non-negative accepted fd, got %d", c.Res)
	}
}

func TestSendAndRecvRoundTrip(t *testing.T) {
	r, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	fd, err := r.OpenListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("OpenListener: %v", err)
	}
	ln := r.fds.listener(fd)

	clientDone := make(chan net.Conn, 1)
	go func() {
		conn, dialErr := net.Dial("tcp4", ln.Addr().String())
		if dialErr != nil {
			t.Errorf("dial: %v", dialErr)
			return
		}
		clientDone <- conn
	}()

	r.Push(OpAccept, fd, nil, 0, 1)
	r.Submit()
	client := <-clientDone
	defer client.Close()

	c := waitCompletion(t, r)
	if c.Res < 0 {
		t.Fatalf("accept completion failed: %+v", c)
	}
	serverFD := c.Res

	payload := []byte("hello")
	if _, err := client.Write(payload); err != nil {
		t.Fatalf("client write: %v", err)
	}

	buf := make([]byte, 16)
	r.Push(OpRecv, serverFD, unsafe.Pointer(&buf[0]), uint32(len(buf)), 2)
	r.Submit()
	rc := waitCompletion(t, r)
	if rc.Res != int32(len(payload)) {
		t.Fatalf("expected %d bytes, got %d", len(payload), rc.Res)
	}
	if string(buf[:rc.Res]) != "hello" {
		t.Fatalf("unexpected recv content: %q", buf[:rc.Res])
	}

	r.Push(OpSend, serverFD, unsafe.Pointer(&payload[0]), uint32(len(payload)), 3)
	r.Submit()
	sc := waitCompletion(t, r)
	if sc.Res != int32(len(payload)) {
		t.Fatalf("expected send completion of %d bytes, got %+v", len(payload), sc)
	}

	echoed := make([]byte, len(payload))
	if _, err := client.Read(echoed); err != nil {
		t.Fatalf("client read: %v", err)
	}
	if string(echoed) != "hello" {
		t.Fatalf("unexpected echo: %q", echoed)
	}
}

func TestPushRejectsWhenCapacityExceeded(t *testing.T) {
	r, err := New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if !r.Push(OpClose, 0, nil, 0, 1) {
		t.Fatalf("expected first push to succeed")
	}
	if r.Push(OpClose, 0, nil, 0, 2) {
		t.Fatalf("expected second push to be rejected at capacity")
	}
}

func TestCloseReleasesFD(t *testing.T) {
	r, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	fd, err := r.OpenListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("OpenListener: %v", err)
	}

	r.Push(OpClose, fd, nil, 0, 9)
	r.Submit()
	c := waitCompletion(t, r)
	if c.Res != 0 {
		t.Fatalf("expected clean close completion, got %+v", c)
	}
	if r.fds.listener(fd) != nil {
		t.Fatalf("expected listener to be removed from table after close")
	}
}

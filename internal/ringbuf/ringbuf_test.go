package ringbuf

import "testing"

func TestAliasingAcrossMirrors(t *testing.T) {
	r, err := New(4096, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	data := r.Data()
	size := r.Size()
	if len(data) != size*(r.MirrorCount()+1) {
		t.Fatalf("Data length %d, want %d", len(data), size*(r.MirrorCount()+1))
	}

	offsets := []int{0, 1, size - 1, size / 2}
	for _, o := range offsets {
		want := byte(0xA5 ^ o)
		data[o] = want
		r.Commit(o, 1)
		for k := 0; k <= r.MirrorCount(); k++ {
			got := data[o+k*size]
			if got != want {
				t.Fatalf("offset %d mirror %d: want %#x, got %#x", o, k, want, got)
			}
		}
	}
}

func TestWrapStraddlingWrite(t *testing.T) {
	r, err := New(4096, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	size := r.Size()
	data := r.Data()

	msg := []byte("handshake-tail")
	start := size - 3 // straddles the wrap boundary
	n := copy(data[start:start+size], msg)
	r.Commit(start, n)

	// The linear write at `start` must be fully readable starting at
	// `start` without any manual wrap logic, because the mirror aliases
	// back to offset 0.
	got := data[start : start+len(msg)]
	if string(got) != string(msg) {
		t.Fatalf("linear read across wrap: want %q, got %q", msg, got)
	}
}

func TestPageSizeRounding(t *testing.T) {
	r, err := New(1, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	if r.Size()%osPageSize() != 0 {
		t.Fatalf("Size() %d not a multiple of page size %d", r.Size(), osPageSize())
	}
}

func TestRejectsBadParams(t *testing.T) {
	if _, err := New(0, 1); err == nil {
		t.Fatal("want error for zero size")
	}
	if _, err := New(4096, 0); err == nil {
		t.Fatal("want error for zero mirror count")
	}
}

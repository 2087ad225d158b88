package session

import "testing"

func TestAcquireReleaseLifecycle(t *testing.T) {
	tbl, err := NewTable(2)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	idx, ok, err := tbl.Acquire(7)
	if err != nil || !ok {
		t.Fatalf("Acquire: ok=%v err=%v", ok, err)
	}
	slot := tbl.Get(idx)
	if slot.State != StateHandshaking {
		t.Fatalf("new slot state: want Handshaking, got %v", slot.State)
	}
	if slot.Ring == nil {
		t.Fatal("new slot has no ring buffer")
	}

	if err := tbl.Release(idx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !tbl.Get(idx).vacant() {
		t.Fatal("slot still occupied after Release")
	}
}

func TestCapacityExhaustion(t *testing.T) {
	tbl, err := NewTable(1)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if _, ok, err := tbl.Acquire(1); err != nil || !ok {
		t.Fatalf("first acquire should succeed: ok=%v err=%v", ok, err)
	}
	if _, ok, err := tbl.Acquire(2); err != nil || ok {
		t.Fatalf("second acquire on full table should fail cleanly: ok=%v err=%v", ok, err)
	}
}

func TestCursorInvariants(t *testing.T) {
	tbl, _ := NewTable(1)
	idx, _, _ := tbl.Acquire(1)
	slot := tbl.Get(idx)

	n := copy(slot.WritePtr(), []byte("hello"))
	slot.AdvanceWrite(uint64(n))
	if slot.Readable() != uint64(n) {
		t.Fatalf("Readable: want %d, got %d", n, slot.Readable())
	}

	got := string(slot.ReadPtr())
	if got != "hello" {
		t.Fatalf("ReadPtr: want %q, got %q", "hello", got)
	}

	slot.AdvanceRead(uint64(n))
	if slot.Readable() != 0 {
		t.Fatalf("Readable after full drain: want 0, got %d", slot.Readable())
	}
}

func TestReleaseTwiceFails(t *testing.T) {
	tbl, _ := NewTable(1)
	idx, _, _ := tbl.Acquire(1)
	if err := tbl.Release(idx); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := tbl.Release(idx); err == nil {
		t.Fatal("second release on an already-vacant slot should error")
	}
}

func TestStaleForDetectsVacantAndReusedSlots(t *testing.T) {
	tbl, _ := NewTable(1)
	idx, _, _ := tbl.Acquire(7)
	slot := tbl.Get(idx)

	if slot.StaleFor(7) {
		t.Fatal("freshly acquired slot should not be stale for its own fd")
	}
	if !slot.StaleFor(8) {
		t.Fatal("slot should be stale for an fd it was never acquired with")
	}

	tbl.Release(idx)
	if !slot.StaleFor(7) {
		t.Fatal("released slot should be stale for its former fd")
	}

	idx2, _, _ := tbl.Acquire(9)
	if idx2 != idx {
		t.Fatalf("expected reacquire to reuse slot %d, got %d", idx, idx2)
	}
	if !slot.StaleFor(7) {
		t.Fatal("slot reused by a different fd should be stale for the old fd")
	}
	if slot.StaleFor(9) {
		t.Fatal("slot should not be stale for its current fd")
	}
}

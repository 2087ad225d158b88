package framepool

import "testing"

type scratch struct {
	tag int
}

func TestExhaustionAndReuse(t *testing.T) {
	const n = 8
	p, err := New[scratch](n)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var idxs []int32
	for i := 0; i < n; i++ {
		idx, ok := p.Alloc()
		if !ok {
			t.Fatalf("alloc %d: pool exhausted early", i)
		}
		p.Get(idx).tag = i
		idxs = append(idxs, idx)
	}

	if _, ok := p.Alloc(); ok {
		t.Fatal("alloc after capacity exhausted: want failure")
	}

	for _, idx := range idxs {
		p.Free(idx)
	}

	for i := 0; i < n; i++ {
		idx, ok := p.Alloc()
		if !ok {
			t.Fatalf("alloc %d after freeing all: want success", i)
		}
		if p.Get(idx).tag != 0 {
			t.Fatalf("slot %d not reset on free: tag=%d", idx, p.Get(idx).tag)
		}
	}
}

func TestSlotsDoNotOverlap(t *testing.T) {
	const n = 4
	p, err := New[scratch](n)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	seen := map[int32]bool{}
	for i := 0; i < n; i++ {
		idx, ok := p.Alloc()
		if !ok {
			t.Fatalf("alloc %d failed", i)
		}
		if seen[idx] {
			t.Fatalf("index %d allocated twice concurrently", idx)
		}
		seen[idx] = true
		p.Get(idx).tag = 100 + i
	}
	for i := 0; i < n; i++ {
		if p.Get(int32(i)).tag < 100 {
			t.Fatalf("slot %d overwritten by a different allocation", i)
		}
	}
}

func TestRejectsNonPositiveCapacity(t *testing.T) {
	if _, err := New[scratch](0); err == nil {
		t.Fatal("want error for zero capacity")
	}
}

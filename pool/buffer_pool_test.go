package pool

import "testing"

func TestBufferPoolGetSizesResult(t *testing.T) {
	bp := NewBufferPool()

	buf := bp.Get(100)
	if len(buf) != 100 {
		t.Errorf("len(buf) = %d, want 100", len(buf))
	}
	if cap(buf) != smallBufferSize {
		t.Errorf("cap(buf) = %d, want %d (small tier)", cap(buf), smallBufferSize)
	}
}

func TestBufferPoolGetTierSelection(t *testing.T) {
	bp := NewBufferPool()

	cases := []struct {
		size     int
		wantCap  int
	}{
		{1, smallBufferSize},
		{smallBufferSize, smallBufferSize},
		{smallBufferSize + 1, mediumBufferSize},
		{mediumBufferSize, mediumBufferSize},
		{mediumBufferSize + 1, largeBufferSize},
	}
	for _, c := range cases {
		buf := bp.Get(c.size)
		if cap(buf) != c.wantCap {
			t.Errorf("Get(%d) cap = %d, want %d", c.size, cap(buf), c.wantCap)
		}
	}
}

func TestBufferPoolGetOversizedFallsBackToAlloc(t *testing.T) {
	bp := NewBufferPool()
	buf := bp.Get(largeBufferSize + 1)
	if len(buf) != largeBufferSize+1 {
		t.Errorf("len(buf) = %d, want %d", len(buf), largeBufferSize+1)
	}
}

func TestBufferPoolPutReuse(t *testing.T) {
	bp := NewBufferPool()
	buf := bp.Get(100)
	buf[0] = 0xAB
	bp.Put(buf)

	reused := bp.Get(100)
	// The pool is not guaranteed to hand back the exact same backing
	// array, but a reused small-tier buffer should at minimum carry the
	// small-tier capacity.
	if cap(reused) != smallBufferSize {
		t.Errorf("cap(reused) = %d, want %d", cap(reused), smallBufferSize)
	}
}

func TestBufferPoolPutNilIsNoop(t *testing.T) {
	bp := NewBufferPool()
	bp.Put(nil) // must not panic
}

func TestBufferPoolPutNonMatchingCapacityIsDropped(t *testing.T) {
	bp := NewBufferPool()
	// A slice whose capacity matches none of the three tiers is simply
	// dropped rather than pooled; this just exercises the code path
	// without panicking.
	bp.Put(make([]byte, 7))
}

func TestGlobalBufferPoolHelpers(t *testing.T) {
	buf := Get(50)
	if len(buf) != 50 {
		t.Errorf("len(buf) = %d, want 50", len(buf))
	}
	Put(buf)
}

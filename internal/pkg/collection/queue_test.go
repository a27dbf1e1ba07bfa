package collection

import (
	"testing"
)

func TestQueuePushPop(t *testing.T) {
	t.Parallel()

	q := NewQueue[int]()
	if q.Len() != 0 {
		t.Errorf("new queue should be empty, got length %d", q.Len())
	}

	q.Push(1)
	q.Push(2)
	q.Push(3)
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}

	for want := 1; want <= 3; want++ {
		if got := q.Pop(); got != want {
			t.Errorf("Pop() = %d, want %d", got, want)
		}
	}
	if q.Len() != 0 {
		t.Errorf("drained queue should be empty, got length %d", q.Len())
	}

	// Popping an empty queue yields the zero value.
	if got := q.Pop(); got != 0 {
		t.Errorf("Pop() on empty queue = %d, want 0", got)
	}
}

func TestQueueDrainAllowsPushback(t *testing.T) {
	t.Parallel()

	q := NewQueue[int]()
	q.Push(1)
	q.Push(2)

	var seen []int
	q.Drain(func(v int) bool {
		seen = append(seen, v)
		if v == 1 {
			q.Push(3)
		}
		return true
	})

	want := []int{1, 2, 3}
	if len(seen) != len(want) {
		t.Fatalf("drained %d elements, want %d", len(seen), len(want))
	}
	for i, v := range want {
		if seen[i] != v {
			t.Errorf("element %d = %d, want %d", i, seen[i], v)
		}
	}
}

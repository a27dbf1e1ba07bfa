// Package collection provides utility data structures.
package collection

import (
	"container/list"
)

// Queue is a FIFO worklist.
type Queue[T any] struct {
	data list.List
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Push(v T) {
	q.data.PushBack(v)
}

func (q *Queue[T]) Pop() T {
	e := q.data.Front()
	if e == nil {
		var zero T
		return zero
	}

	q.data.Remove(e)
	return e.Value.(T)
}

func (q *Queue[T]) Len() int {
	return q.data.Len()
}

// Drain removes and yields elements until the queue is empty, including any
// pushed back while draining.
func (q *Queue[T]) Drain(yield func(T) bool) {
	for e := q.data.Front(); e != nil; e = q.data.Front() {
		q.data.Remove(e)

		if !yield(e.Value.(T)) {
			break
		}
	}
}

package playback

// fifo is a plain first-in first-out list. It is not safe for concurrent use.
type fifo[T any] struct {
	items []T
}

func newFIFO[T any]() *fifo[T] {
	return &fifo[T]{items: []T{}}
}

func (q *fifo[T]) Enqueue(item T) {
	q.items = append(q.items, item)
}

// Dequeue removes and returns the front element. ok is false if the queue was empty.
func (q *fifo[T]) Dequeue() (item T, ok bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

func (q *fifo[T]) Len() int {
	return len(q.items)
}

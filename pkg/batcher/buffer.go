package batcher

import (
	"fmt"
	"sync"
)

// Buffer is an ordered, append-only queue guarded by a mutex.
// Entries are never reordered; they leave only from the front via RemovePrefix.
type Buffer[T any] struct {
	mu       sync.Mutex
	items    []T
	onChange func(depth int)
}

// NewBuffer creates an empty Buffer. onChange, if set, receives the depth after every
// mutation while the buffer lock is held, so it must not call back into the buffer.
func NewBuffer[T any](onChange func(depth int)) *Buffer[T] {
	return &Buffer[T]{onChange: onChange}
}

// Append adds item to the end of the buffer and returns the new depth.
func (b *Buffer[T]) Append(item T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, item)
	b.notify()
	return len(b.items)
}

// Len returns the number of buffered items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Snapshot returns a copy of the items currently buffered.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// RemovePrefix drops the first n items. Items appended after a Snapshot stay in place.
func (b *Buffer[T]) RemovePrefix(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n < 0 || n > len(b.items) {
		return fmt.Errorf("remove prefix %d: buffer holds %d items", n, len(b.items))
	}

	rest := make([]T, len(b.items)-n)
	copy(rest, b.items[n:])
	b.items = rest
	b.notify()
	return nil
}

func (b *Buffer[T]) notify() {
	if b.onChange != nil {
		b.onChange(len(b.items))
	}
}

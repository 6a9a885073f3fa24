// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

// Ring is a fixed-capacity circular buffer that hands back what it evicts.
//
// # Description
//
// Push is O(1). Once full, each Push overwrites the oldest element and
// returns it so the caller can archive it.
//
// # Thread Safety
//
// NOT safe for concurrent use; History synchronizes access.
type Ring[T any] struct {
	data  []T
	head  int // next write position
	tail  int // oldest element
	count int
}

// NewRing creates a ring holding at most capacity elements. A non-positive
// capacity is treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Push appends item.
//
// # Outputs
//
//   - T: The element evicted to make room.
//   - bool: True when an element was evicted.
func (r *Ring[T]) Push(item T) (T, bool) {
	var evicted T
	full := r.count == len(r.data)
	if full {
		evicted = r.data[r.tail]
		r.tail = (r.tail + 1) % len(r.data)
	} else {
		r.count++
	}
	r.data[r.head] = item
	r.head = (r.head + 1) % len(r.data)
	return evicted, full
}

// At returns the i-th element counting from the oldest.
func (r *Ring[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= r.count {
		return zero, false
	}
	return r.data[(r.tail+i)%len(r.data)], true
}

// Newest returns the most recently pushed element.
func (r *Ring[T]) Newest() (T, bool) { return r.At(r.count - 1) }

// Oldest returns the oldest retained element.
func (r *Ring[T]) Oldest() (T, bool) { return r.At(0) }

// Last returns up to n of the newest elements, oldest first.
func (r *Ring[T]) Last(n int) []T {
	if n <= 0 || r.count == 0 {
		return nil
	}
	if n > r.count {
		n = r.count
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i], _ = r.At(r.count - n + i)
	}
	return out
}

// Scan calls fn from newest to oldest until it returns false.
func (r *Ring[T]) Scan(fn func(item T) bool) {
	for i := r.count - 1; i >= 0; i-- {
		item, _ := r.At(i)
		if !fn(item) {
			return
		}
	}
}

// Len returns the number of retained elements.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the capacity.
func (r *Ring[T]) Cap() int { return len(r.data) }

// Clear drops every element and releases references.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.head, r.tail, r.count = 0, 0, 0
}

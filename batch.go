package main

import "iter"

// Batch is a scheduling unit of addresses. Seq starts at 1.
type Batch struct {
	Seq       int
	Addresses []Address
}

// Full reports whether the batch reached size.
func (b Batch) Full(size int) bool {
	return len(b.Addresses) >= size
}

// Batches groups addrs into batches of size, preserving order. A batch is
// emitted as soon as it is full; a trailing partial batch is emitted once
// addrs is exhausted. Sizes below 1 are treated as 1.
func Batches(addrs iter.Seq[Address], size int) iter.Seq[Batch] {
	if size < 1 {
		size = 1
	}
	return func(yield func(Batch) bool) {
		seq := 0
		buf := make([]Address, 0, size)
		for addr := range addrs {
			buf = append(buf, addr)
			if len(buf) < size {
				continue
			}
			seq++
			if !yield(Batch{Seq: seq, Addresses: buf}) {
				return
			}
			buf = make([]Address, 0, size)
		}
		if len(buf) > 0 {
			yield(Batch{Seq: seq + 1, Addresses: buf})
		}
	}
}

// Package alloc implements the fixed-block arena allocator and the
// variable-size boundary-tag allocator that back every Memory capability's
// storage.
package alloc

import "fmt"

// Arena is a fixed-size-block allocator over a fixed number of equally sized
// blocks. It threads a free list through a side table of indices rather than
// through the blocks' own bytes -- Go has no raw pointers to thread a list
// through arbitrary memory, so the free list here is an array of next-block
// indices parallel to a free bitmap, which gives the same O(N) worst-case
// contiguous-run search spec.md describes without unsafe pointer code.
type Arena struct {
	blockSize int
	numBlocks int

	free []bool  // free[i] is true if block i is on the free list.
	next []int32 // next[i] is the successor of block i in the free list, or noBlock.
	head int32    // index of the first free block, or noBlock.

	data []byte // backing storage; block i occupies data[i*blockSize:(i+1)*blockSize].
}

// noBlock is the sentinel for "no block", playing the role of a null pointer.
const noBlock int32 = -1

// NewArena creates an arena of numBlocks blocks of blockSize bytes each, all
// initially free.
func NewArena(numBlocks, blockSize int) *Arena {
	if numBlocks <= 0 || blockSize <= 0 {
		panic("alloc: invalid arena dimensions")
	}

	a := &Arena{
		blockSize: blockSize,
		numBlocks: numBlocks,
		free:      make([]bool, numBlocks),
		next:      make([]int32, numBlocks),
		data:      make([]byte, numBlocks*blockSize),
		head:      noBlock,
	}

	for i := numBlocks - 1; i >= 0; i-- {
		a.free[i] = true
		a.next[i] = a.head
		a.head = int32(i)
	}

	return a
}

// NumBlocks returns the total number of blocks the arena manages.
func (a *Arena) NumBlocks() int { return a.numBlocks }

// BlockSize returns the size in bytes of a single block.
func (a *Arena) BlockSize() int { return a.blockSize }

// Block returns the backing bytes for block index i. The caller must not
// retain the slice past a Free of the same index.
func (a *Arena) Block(i int) []byte {
	a.checkIndex(i)
	return a.data[i*a.blockSize : (i+1)*a.blockSize]
}

func (a *Arena) checkIndex(i int) {
	if i < 0 || i >= a.numBlocks {
		panic(fmt.Sprintf("alloc: block index %d out of range [0,%d)", i, a.numBlocks))
	}
}

// AllocOne pops the head of the free list. It returns false if the arena is
// exhausted.
func (a *Arena) AllocOne() (int, bool) {
	if a.head == noBlock {
		return 0, false
	}

	idx := int(a.head)
	a.head = a.next[idx]
	a.free[idx] = false

	return idx, true
}

// AllocMany finds a run of k physically contiguous free blocks, removes them
// from the free list and returns the index of the first block in the run. It
// returns false if no such run exists. This is used for page allocation,
// where physical contiguity matters.
func (a *Arena) AllocMany(k int) (int, bool) {
	if k <= 0 {
		panic("alloc: AllocMany requires k > 0")
	}

	run := 0

	for i := 0; i < a.numBlocks; i++ {
		if !a.free[i] {
			run = 0
			continue
		}

		run++

		if run == k {
			start := i - k + 1
			for j := start; j <= i; j++ {
				a.unlink(j)
			}

			return start, true
		}
	}

	return 0, false
}

// unlink removes block j from the free list without touching neighboring
// blocks' free status.
func (a *Arena) unlink(j int) {
	if int(a.head) == j {
		a.head = a.next[j]
	} else {
		p := a.head
		for p != noBlock && int(a.next[p]) != j {
			p = a.next[p]
		}

		if p == noBlock {
			panic("alloc: free block missing from free list")
		}

		a.next[p] = a.next[j]
	}

	a.free[j] = false
}

// FreeOne returns block i to the head of the free list. Double-freeing a
// block is undefined behavior, as in spec.md: the allocator does not detect
// it.
func (a *Arena) FreeOne(i int) {
	a.checkIndex(i)
	a.free[i] = true
	a.next[i] = a.head
	a.head = int32(i)
}

// FreeMany returns k contiguous blocks starting at idx to the free list.
func (a *Arena) FreeMany(idx, k int) {
	for i := idx; i < idx+k; i++ {
		a.FreeOne(i)
	}
}

// Available reports how many blocks are currently free. It is intended for
// tests and diagnostics, not for the hot allocation path.
func (a *Arena) Available() int {
	n := 0

	for _, f := range a.free {
		if f {
			n++
		}
	}

	return n
}

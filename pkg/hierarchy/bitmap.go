package hierarchy

import (
	"sync/atomic"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Bitmap is a validity bitmap in Arrow layout (LSB-ordered bits), allocated
// from the shared memory pool. Bits are set with atomic word operations so
// that parallel passes can mark disjoint rows without coordination; each row
// address is owned by exactly one node, but neighboring rows share words.
type Bitmap struct {
	buf   []byte
	words []uint32
	bits  int
}

// NewBitmap allocates an all-null bitmap for n rows.
func NewBitmap(mem memory.Allocator, n int) *Bitmap {
	nbytes := int(bitutil.BytesForBits(int64(n)))
	// Round the allocation up to whole words for the atomic view.
	alloc := (nbytes + 3) &^ 3
	if alloc == 0 {
		alloc = 4
	}
	buf := mem.Allocate(alloc)
	for i := range buf {
		buf[i] = 0
	}
	return &Bitmap{
		buf:   buf,
		words: unsafe.Slice((*uint32)(unsafe.Pointer(&buf[0])), len(buf)/4),
		bits:  n,
	}
}

// Set marks row i valid. Safe for concurrent use on distinct rows.
func (b *Bitmap) Set(i int) {
	atomic.OrUint32(&b.words[i>>5], 1<<(uint(i)&31))
}

// Get reports whether row i is valid. Only safe after the pass that sets
// bits has been joined.
func (b *Bitmap) Get(i int) bool {
	return b.buf[i>>3]&(1<<(uint(i)&7)) != 0
}

// Len returns the number of rows covered.
func (b *Bitmap) Len() int { return b.bits }

// CountSet returns the number of valid rows.
func (b *Bitmap) CountSet() int {
	if b.bits == 0 {
		return 0
	}
	return bitutil.CountSetBits(b.buf, 0, b.bits)
}

// Bytes exposes the underlying Arrow-layout buffer.
func (b *Bitmap) Bytes() []byte { return b.buf }

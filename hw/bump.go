package hw

import "fmt"

// Bump is a never-freeing physical allocator over [next, limit).
type Bump struct {
	next  uint32
	limit uint32
}

func NewBump(start, limit uint32) *Bump {
	return &Bump{next: start, limit: limit}
}

// Alloc returns an address aligned to align (a power of two, or 0 for none).
func (b *Bump) Alloc(size, align uint32) (uint32, error) {
	addr := b.next
	if align > 1 {
		if align&(align-1) != 0 {
			return 0, fmt.Errorf("hw: alignment %#x is not a power of two", align)
		}
		addr = (addr + align - 1) &^ (align - 1)
	}
	if addr < b.next || uint64(addr)+uint64(size) > uint64(b.limit) {
		return 0, fmt.Errorf("%w: %#x bytes at %#x (limit %#x)", ErrOutOfMemory, size, addr, b.limit)
	}
	b.next = addr + size
	return addr, nil
}

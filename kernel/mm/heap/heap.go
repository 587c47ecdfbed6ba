// Package heap implements the kernel's slab-style general purpose allocator.
// Requests are rounded up to a power-of-two size class; each class draws
// whole pages from the page allocator and carves them into fixed-size blocks
// linked on an intrusive free list. Requests larger than the largest class
// are served directly by a run of pages ("big blocks").
package heap

import (
	"unsafe"

	"pintgo/kernel"
	"pintgo/kernel/kfmt"
	"pintgo/kernel/mm"
	"pintgo/kernel/mm/pmm"
	"pintgo/kernel/sync"
)

const (
	// arenaMagic is stamped into every arena header; a mismatch on
	// dereference indicates memory corruption and is fatal.
	arenaMagic = 0x9a548eed

	// arenaHeaderSize is the arena header footprint at the start of each
	// arena page. The header struct is smaller; it is padded so the first
	// block keeps the minimum block alignment.
	arenaHeaderSize = 16

	// minBlockSize is the smallest size class.
	minBlockSize = 16

	// numClasses is the number of size classes: log2(PageSize/32), i.e.
	// power-of-two block sizes from 16 bytes up to just under half a
	// page.
	numClasses = 7

	// bigBlockClass marks an arena that backs a single oversized
	// allocation instead of size-classed blocks.
	bigBlockClass = -1

	// poisonByte is written over freed blocks when poisoning is enabled.
	poisonByte = 0xCC
)

var (
	errAlreadyInitialized = &kernel.Error{Module: "heap", Message: "heap allocator already initialized"}
	errZeroSize           = &kernel.Error{Module: "heap", Message: "zero-size allocation"}
	errNilPointer         = &kernel.Error{Module: "heap", Message: "deallocate of nil pointer"}
	errCorruptArena       = &kernel.Error{Module: "heap", Message: "arena magic mismatch (memory corruption)"}
	errCorruptFreeList    = &kernel.Error{Module: "heap", Message: "free list lost track of arena blocks"}
	errBadLayout          = &kernel.Error{Module: "heap", Message: "deallocate size exceeds block size"}
)

// arenaHeader occupies the start of every page (or multi-page big block)
// owned by the heap allocator.
type arenaHeader struct {
	magic uint32

	// class holds the descriptor index for size-classed arenas or
	// bigBlockClass for big blocks. An integer handle is used instead of
	// a descriptor pointer so the header stays a plain value in raw
	// memory.
	class int32

	// free counts the free blocks of a size-classed arena; for big
	// blocks the field is repurposed to store the page count.
	free uint32
}

// arenaAt overlays an arenaHeader on the memory at addr.
func arenaAt(addr uintptr) *arenaHeader {
	return (*arenaHeader)(unsafe.Pointer(addr))
}

// check validates the header magic. Proceeding past a mismatch would let the
// allocator scribble over unrelated memory, so it is fatal.
func (h *arenaHeader) check() {
	if h.magic != arenaMagic {
		kfmt.Panic(errCorruptArena)
	}
}

// descriptor carries the per-size-class allocator state.
type descriptor struct {
	// lock guards the free list and the free counters of every arena
	// belonging to this class. It is held across the whole
	// carve-and-seed sequence so no caller can observe a half-populated
	// arena.
	lock sync.Spinlock

	// blockSize is the size of each allocatable block in bytes.
	blockSize uintptr

	// blocksPerArena is the number of blocks carved out of one page
	// after the arena header.
	blocksPerArena uint32

	free freeList
}

// Allocator is the kernel heap. It is constructed by the boot code and
// initialized exactly once, after the page allocator.
type Allocator struct {
	initialized bool

	// poison controls overwriting freed blocks with poisonByte.
	poison bool

	pages *pmm.Allocator
	descs [numClasses]descriptor
}

// SetPoison toggles poisoning of freed blocks.
func (a *Allocator) SetPoison(on bool) {
	a.poison = on
}

// Init computes the size class table: block sizes double from 16 bytes and
// each class fits (PageSize - header) / blockSize blocks per arena. Init must
// run exactly once, after the supplied page allocator has been initialized.
func (a *Allocator) Init(pages *pmm.Allocator) {
	if a.initialized {
		kfmt.Panic(errAlreadyInitialized)
	}

	blockSize := uintptr(minBlockSize)
	for i := range a.descs {
		a.descs[i].blockSize = blockSize
		a.descs[i].blocksPerArena = uint32((mm.PageSize - arenaHeaderSize) / blockSize)
		blockSize *= 2
	}

	a.pages = pages
	a.initialized = true
}

// Allocate services an allocation of the given size and returns the block
// address, or 0 if the backing pages cannot be reserved. Zero-size requests
// are a caller bug and are fatal. Alignment up to the platform word size is
// satisfied implicitly by block-size rounding; larger alignments are not
// implemented.
func (a *Allocator) Allocate(size, align uintptr) uintptr {
	if size == 0 {
		kfmt.Panic(errZeroSize)
	}

	for i := range a.descs {
		if a.descs[i].blockSize >= size {
			return a.allocateBlock(int32(i))
		}
	}

	return a.allocateBigBlock(size)
}

// allocateBlock pops a block from the class free list, carving a fresh arena
// out of a new page first when the list is empty.
func (a *Allocator) allocateBlock(class int32) uintptr {
	d := &a.descs[class]

	d.lock.Acquire()
	defer d.lock.Release()

	if d.free.size == 0 {
		pageAddr, err := a.pages.GetPages(0, 1)
		if err != nil {
			return 0
		}

		page := uintptr(pageAddr.Raw())
		hdr := arenaAt(page)
		hdr.magic = arenaMagic
		hdr.class = class
		hdr.free = d.blocksPerArena

		// Seed the free list in address order.
		for off := uintptr(arenaHeaderSize); off+d.blockSize <= mm.PageSize; off += d.blockSize {
			d.free.pushBack(page + off)
		}
	}

	block := d.free.popFront()
	hdr := arenaAt(block &^ uintptr(mm.PageOffsetMask))
	hdr.check()
	hdr.free--

	return block
}

// allocateBigBlock reserves ceil((size + header) / PageSize) pages, stamps an
// arena header with the page count and returns the address right past the
// header.
func (a *Allocator) allocateBigBlock(size uintptr) uintptr {
	pageCount := int((size + arenaHeaderSize + mm.PageSize - 1) / mm.PageSize)

	pageAddr, err := a.pages.GetPages(0, pageCount)
	if err != nil {
		return 0
	}

	base := uintptr(pageAddr.Raw())
	hdr := arenaAt(base)
	hdr.magic = arenaMagic
	hdr.class = bigBlockClass
	hdr.free = uint32(pageCount)

	return base + arenaHeaderSize
}

// Deallocate returns the block at ptr to its arena. The owning arena is
// recovered by rounding ptr down to its page boundary; a corrupted arena
// magic is fatal. When the release makes a size-classed arena fully free,
// every block of that arena is unlinked from the class free list and the
// backing page is handed back to the page allocator; big blocks free their
// recorded page range directly. The size and align arguments mirror the
// allocation; size is validated against the class block size.
func (a *Allocator) Deallocate(ptr, size, align uintptr) {
	if ptr == 0 {
		kfmt.Panic(errNilPointer)
	}

	page := ptr &^ uintptr(mm.PageOffsetMask)
	hdr := arenaAt(page)
	hdr.check()

	if hdr.class == bigBlockClass {
		a.pages.FreePages(mm.VirtualAddress(page), int(hdr.free))
		return
	}

	if hdr.class < 0 || hdr.class >= numClasses {
		kfmt.Panic(errCorruptArena)
	}

	d := &a.descs[hdr.class]
	if size > d.blockSize {
		kfmt.Panic(errBadLayout)
	}

	d.lock.Acquire()

	if a.poison {
		kernel.Memset(ptr, poisonByte, d.blockSize)
	}

	d.free.pushFront(ptr)
	hdr.free++

	if hdr.free == d.blocksPerArena {
		// The arena is fully free: pull its blocks off the free list
		// and hand the backing page to the page allocator. Skipping
		// this would leak one page per emptied arena.
		removed := d.free.removePageBlocks(page)
		d.lock.Release()

		if removed != int(d.blocksPerArena) {
			kfmt.Panic(errCorruptFreeList)
		}

		a.pages.FreePages(mm.VirtualAddress(page), 1)
		return
	}

	d.lock.Release()
}

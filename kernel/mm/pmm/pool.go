package pmm

import (
	"pintgo/kernel"
	"pintgo/kernel/kfmt"
	"pintgo/kernel/mm"
	"pintgo/kernel/sync"
)

var errBitmapWontFit = &kernel.Error{Module: "pmm", Message: "pool too small to hold its own bitmap"}

// pool describes one page allocation domain (kernel or user). The pool's
// used-page bitmap is carved out of the pool's own leading pages; base points
// at the first allocatable page past the bitmap.
type pool struct {
	name string

	// lock guards base and used. A reservation or release holds it for
	// the full scan-and-flip (or clear) so no two callers can claim
	// overlapping runs.
	lock sync.Spinlock

	// base is the virtual address of the first allocatable page.
	base mm.VirtualAddress

	// numPages is the number of allocatable pages tracked by used.
	numPages uint64

	used usedMap
}

// init overlays the pool's bitmap on its leading pages and exposes the
// remaining pages as allocatable. A pool whose bitmap cannot fit within its
// own page budget is a fatal configuration error.
func (p *pool) init(base mm.VirtualAddress, numPages uint64, name string) {
	bitmapPages := (usedMapBytes(numPages) + mm.PageSize - 1) / mm.PageSize
	if bitmapPages > numPages {
		kfmt.Panic(errBitmapWontFit)
	}

	p.name = name
	p.numPages = numPages - bitmapPages
	p.used = overlayUsedMap(uintptr(base.Raw()), p.numPages)
	p.base = base + mm.VirtualAddress(bitmapPages*mm.PageSize)

	kfmt.Printf("[pmm] %d pages available in %s\n", p.numPages, name)
}

// contains returns whether the supplied page address falls inside the pool's
// allocatable range. The bitmap pages themselves are not part of that range.
func (p *pool) contains(page mm.VirtualAddress) bool {
	pageNum := page.PageNum()
	startPage := p.base.PageNum()

	return pageNum >= startPage && pageNum < startPage+p.numPages
}

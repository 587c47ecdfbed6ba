// Package pmm implements the kernel's page-frame allocator. Physical memory
// past the legacy 1 MiB boundary is split into two disjoint pools (kernel and
// user); each pool tracks page occupancy with a first-fit bitmap stored in
// its own leading pages.
package pmm

import (
	"pintgo/kernel"
	"pintgo/kernel/kfmt"
	"pintgo/kernel/mm"
)

// Flag describes capability flags accepted by GetPages.
type Flag uint32

const (
	// FlagZero causes the returned pages to be zero-filled before they
	// are handed to the caller.
	FlagZero Flag = 1 << iota

	// FlagUser draws pages from the user pool instead of the kernel pool.
	FlagUser
)

const (
	// freeBase is the fixed physical offset into the usable region below
	// which boot and legacy memory is never touched.
	freeBase = 1 << 20

	// poisonByte is written over freed page ranges when poisoning is
	// enabled to surface use-after-free bugs.
	poisonByte = 0xCC
)

var (
	errAlreadyInitialized = &kernel.Error{Module: "pmm", Message: "page allocator already initialized"}
	errRegionTooSmall     = &kernel.Error{Module: "pmm", Message: "usable region ends below the free memory base"}
	errOutOfMemory        = &kernel.Error{Module: "pmm", Message: "out of memory"}
	errBadPageCount       = &kernel.Error{Module: "pmm", Message: "negative page count"}
	errUnalignedAddress   = &kernel.Error{Module: "pmm", Message: "freed address is not page-aligned"}
	errUnknownPool        = &kernel.Error{Module: "pmm", Message: "freed range belongs to neither pool"}
)

// Allocator reserves and releases whole 4 KiB page frames from the kernel and
// user pools. It is constructed by the boot code and initialized exactly once
// after the memory info service.
type Allocator struct {
	initialized bool

	// poison controls overwriting freed page ranges with poisonByte
	// before their bitmap bits are cleared.
	poison bool

	kernelPool pool
	userPool   pool
}

// SetPoison toggles poisoning of freed page ranges. The boot code enables it
// for debug builds.
func (a *Allocator) SetPoison(on bool) {
	a.poison = on
}

// Init computes the free page range from the fixed 1 MiB offset into the
// usable region through its end and splits it into a user pool capped at
// min(freePages/2, userPageLimit) pages and a kernel pool holding the
// remainder. The kernel pool occupies the lower addresses. Init must run
// exactly once, after the memory info service has been initialized.
func (a *Allocator) Init(info mm.MemoryInfo, userPageLimit uint64) {
	if a.initialized {
		kfmt.Panic(errAlreadyInitialized)
	}
	if info.Size < freeBase {
		kfmt.Panic(errRegionTooSmall)
	}

	freeStart := info.ToKernelVirtual(info.Physical(freeBase))
	freeEnd := info.ToKernelVirtual(info.Physical(info.Size))
	freePages := (freeEnd.Raw() - freeStart.Raw()) / mm.PageSize

	userPages := freePages / 2
	if userPageLimit < userPages {
		userPages = userPageLimit
	}
	kernelPages := freePages - userPages

	a.kernelPool.init(freeStart, kernelPages, "kernel pool")
	a.userPool.init(freeStart+mm.VirtualAddress(kernelPages*mm.PageSize), userPages, "user pool")
	a.initialized = true
}

// GetPages reserves a run of count consecutive free pages and returns the
// virtual address of its first page. The pool is selected by FlagUser and
// scanned first-fit from index 0, so the leftmost sufficient run always wins.
// A count of 0 returns no allocation (address 0, nil error); exhaustion
// returns an out-of-memory error and never panics. When FlagZero is set the
// reserved range is zero-filled after the pool lock has been released; the
// range is not reachable by any other caller at that point.
func (a *Allocator) GetPages(flags Flag, count int) (mm.VirtualAddress, *kernel.Error) {
	if count < 0 {
		kfmt.Panic(errBadPageCount)
	}
	if count == 0 {
		return 0, nil
	}

	pool := &a.kernelPool
	if flags&FlagUser != 0 {
		pool = &a.userPool
	}

	pool.lock.Acquire()
	pageIndex, ok := pool.used.scanAndSet(0, uint64(count))
	pool.lock.Release()

	if !ok {
		return 0, errOutOfMemory
	}

	addr := pool.base + mm.VirtualAddress(pageIndex*mm.PageSize)
	if flags&FlagZero != 0 {
		kernel.Memset(uintptr(addr.Raw()), 0, uintptr(count)*mm.PageSize)
	}

	return addr, nil
}

// FreePages releases the count pages starting at addr back to their owning
// pool. The address must be page-aligned and the whole range must belong to
// one of the two pools; anything else indicates a caller bug and is fatal. A
// count of 0 is a no-op. When poisoning is enabled the freed range is
// overwritten before its bits are cleared; the range is not claimable by
// anyone else until the bitmap is updated.
func (a *Allocator) FreePages(addr mm.VirtualAddress, count int) {
	if addr.PageOffset() != 0 {
		kfmt.Panic(errUnalignedAddress)
	}
	if count < 0 {
		kfmt.Panic(errBadPageCount)
	}
	if count == 0 {
		return
	}

	lastPage := addr + mm.VirtualAddress(uint64(count-1)*mm.PageSize)

	var owner *pool
	switch {
	case a.kernelPool.contains(addr) && a.kernelPool.contains(lastPage):
		owner = &a.kernelPool
	case a.userPool.contains(addr) && a.userPool.contains(lastPage):
		owner = &a.userPool
	default:
		kfmt.Panic(errUnknownPool)
	}

	pageIndex := addr.PageNum() - owner.base.PageNum()

	if a.poison {
		kernel.Memset(uintptr(addr.Raw()), poisonByte, uintptr(count)*mm.PageSize)
	}

	owner.lock.Acquire()
	owner.used.clearRange(pageIndex, uint64(count))
	owner.lock.Release()
}

// KernelPages returns the number of allocatable pages in the kernel pool.
func (a *Allocator) KernelPages() uint64 {
	return a.kernelPool.numPages
}

// UserPages returns the number of allocatable pages in the user pool.
func (a *Allocator) UserPages() uint64 {
	return a.userPool.numPages
}

package mm

import (
	"pintgo/kernel"
	"pintgo/kernel/hal/bootinfo"
	"pintgo/kernel/kfmt"
	"pintgo/kernel/sync"
)

var (
	errInfoAlreadyInitialized = &kernel.Error{Module: "mm", Message: "memory info already initialized"}
	errInfoNotInitialized     = &kernel.Error{Module: "mm", Message: "memory info not initialized"}
	errNotKernelAddress       = &kernel.Error{Module: "mm", Message: "address does not belong to kernel space"}
)

// MemoryInfo describes the single usable physical memory region selected at
// boot and the offset at which the boot loader mapped physical memory into
// the kernel's virtual space.
type MemoryInfo struct {
	// BaseAddress is the physical address where the usable region starts.
	BaseAddress uint64

	// Size is the length of the usable region in bytes.
	Size uint64

	// BaseVirtual is the physical memory mapping offset supplied by the
	// boot loader (0 if none was supplied).
	BaseVirtual uint64
}

// NumPages returns the amount of physical memory in the usable region as a
// count of 4 KiB pages.
func (i MemoryInfo) NumPages() uint64 {
	return i.Size / PageSize
}

// Physical constructs a physical address relative to the start of the usable
// memory region.
func (i MemoryInfo) Physical(offset uint64) PhysicalAddress {
	return PhysicalAddress(i.BaseAddress + offset)
}

// IsKernel returns whether the supplied virtual address belongs to kernel
// space, i.e. lies at or above the physical memory mapping base.
func (i MemoryInfo) IsKernel(v VirtualAddress) bool {
	return uint64(v) >= i.BaseVirtual+PhysBase
}

// IsUser returns whether the supplied virtual address belongs to user space.
func (i MemoryInfo) IsUser(v VirtualAddress) bool {
	return !i.IsKernel(v)
}

// ToKernelVirtual returns the kernel virtual address that maps the supplied
// physical address. It is the exact inverse of ToKernelPhysical.
func (i MemoryInfo) ToKernelVirtual(p PhysicalAddress) VirtualAddress {
	return VirtualAddress(uint64(p) + i.BaseVirtual + PhysBase)
}

// ToKernelPhysical returns the physical address that the supplied kernel
// virtual address maps. Passing a non-kernel address is a caller bug and is
// fatal.
func (i MemoryInfo) ToKernelPhysical(v VirtualAddress) PhysicalAddress {
	if !i.IsKernel(v) {
		kfmt.Panic(errNotKernelAddress)
	}

	return PhysicalAddress(uint64(v) - i.BaseVirtual - PhysBase)
}

// Service is the singleton owner of the global memory info record. It is
// constructed by the boot code, initialized exactly once from the boot
// loader's memory map and read-mostly afterwards. All reads and the one-time
// write happen under the service spinlock so no partial update is ever
// observable.
type Service struct {
	lock        sync.Spinlock
	initialized bool
	info        MemoryInfo
}

// Init scans the boot-supplied memory map, selects the first region marked
// usable and records its base and size together with the virtual mapping
// offset supplied by the boot loader. Init must be called exactly once before
// any address conversion or page allocation; calling it a second time is
// fatal.
func (s *Service) Init(bi *bootinfo.BootInfo) {
	s.lock.Acquire()
	defer s.lock.Release()

	if s.initialized {
		kfmt.Panic(errInfoAlreadyInitialized)
	}

	var info MemoryInfo
	bi.VisitRegions(func(region *bootinfo.MemoryRegion) bool {
		if region.Kind != bootinfo.KindUsable {
			return true
		}

		info.BaseAddress = region.Start
		info.Size = region.Length()
		return false
	})

	if bi.HasPhysMemOffset {
		info.BaseVirtual = bi.PhysMemOffset
	}

	s.info = info
	s.initialized = true
}

// Get returns a copy of the current memory info record. Calling Get before
// Init is fatal.
func (s *Service) Get() MemoryInfo {
	s.lock.Acquire()
	defer s.lock.Release()

	if !s.initialized {
		kfmt.Panic(errInfoNotInitialized)
	}

	return s.info
}

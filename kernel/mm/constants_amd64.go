package mm

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for this architecture is defined as (1 << PointerShift).
	PointerShift = 3

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert an address to a page number (shift right by
	// PageShift) and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = 1 << PageShift

	// PageOffsetMask selects the offset bits of an address within its
	// page.
	PageOffsetMask = PageSize - 1

	// PhysBase is the virtual address where the kernel's identity mapping
	// of physical memory begins. Addresses at or above the mapping base
	// belong to kernel space; everything below it is user space.
	PhysBase = 0xc0000000
)

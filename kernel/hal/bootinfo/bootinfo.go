// Package bootinfo describes the information handed to the kernel by the
// boot loader: the physical memory map, the optional physical memory mapping
// offset and the kernel command line.
package bootinfo

// RegionKind defines the classification of a memory region.
type RegionKind uint32

const (
	// KindUsable indicates that the memory region is available for use.
	KindUsable RegionKind = iota + 1

	// KindReserved indicates that the memory region is not available for use.
	KindReserved

	// KindACPIReclaimable indicates a memory region that holds ACPI info
	// that can be reused by the OS.
	KindACPIReclaimable

	// KindNVS indicates memory that must be preserved when hibernating.
	KindNVS
)

// String implements fmt.Stringer for RegionKind.
func (k RegionKind) String() string {
	switch k {
	case KindUsable:
		return "usable"
	case KindReserved:
		return "reserved"
	case KindACPIReclaimable:
		return "ACPI (reclaimable)"
	case KindNVS:
		return "NVS"
	default:
		return "unknown"
	}
}

// MemoryRegion describes one physical memory region reported by the boot
// loader: its start address, its exclusive end address and its kind.
type MemoryRegion struct {
	Start uint64
	End   uint64
	Kind  RegionKind
}

// Length returns the region size in bytes.
func (r *MemoryRegion) Length() uint64 {
	return r.End - r.Start
}

// BootInfo carries the boot loader payload consumed by the kernel init
// sequence. It is populated by the loader hand-off code before Kmain runs.
type BootInfo struct {
	// MemoryRegions lists the physical memory regions in ascending
	// address order.
	MemoryRegions []MemoryRegion

	// PhysMemOffset contains the offset at which the boot loader mapped
	// physical memory into the kernel's virtual space. HasPhysMemOffset
	// indicates whether the loader supplied a value; when it did not, the
	// kernel assumes an offset of 0.
	PhysMemOffset    uint64
	HasPhysMemOffset bool

	// CmdLine contains the kernel command line arguments embedded in the
	// boot sector by the host-side disk tooling.
	CmdLine []string
}

// RegionVisitor defines a visitor function that gets invoked by VisitRegions
// for each memory region provided by the boot loader. The visitor must return
// true to continue or false to abort the scan.
type RegionVisitor func(region *MemoryRegion) bool

// VisitRegions invokes the supplied visitor for each memory region in the
// boot info payload.
func (bi *BootInfo) VisitRegions(visitor RegionVisitor) {
	for i := range bi.MemoryRegions {
		if !visitor(&bi.MemoryRegions[i]) {
			return
		}
	}
}

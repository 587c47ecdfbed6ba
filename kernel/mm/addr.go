// Package mm implements the kernel's memory model: the physical and virtual
// address types, the global memory info record supplied by the boot loader
// and the conversions between the two address spaces.
package mm

// PhysicalAddress describes a location in physical RAM.
type PhysicalAddress uint64

// Raw returns the raw address value.
func (p PhysicalAddress) Raw() uint64 {
	return uint64(p)
}

// VirtualAddress describes a location in the kernel's identity-mapped
// virtual space.
type VirtualAddress uint64

// Raw returns the raw address value.
func (v VirtualAddress) Raw() uint64 {
	return uint64(v)
}

// PageOffset returns the offset of this address within its page.
func (v VirtualAddress) PageOffset() uint64 {
	return uint64(v) & PageOffsetMask
}

// PageNum returns the number of the page that contains this address.
func (v VirtualAddress) PageNum() uint64 {
	return uint64(v) >> PageShift
}

// PageRoundDown rounds the address down to the nearest page boundary.
func (v VirtualAddress) PageRoundDown() VirtualAddress {
	return v &^ PageOffsetMask
}

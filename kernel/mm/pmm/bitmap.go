package pmm

import "unsafe"

// wordBits is the number of bits tracked by each word of a usedMap.
const wordBits = 64

// usedMap is a bitmap marking page-frame occupancy within a pool. Bit i
// corresponds to the page frame at (pool base + i*PageSize); a set bit marks
// the frame as used. The words backing the map are overlaid on the pool's own
// reserved leading pages.
type usedMap struct {
	words []uint64
	nbits uint64
}

// usedMapBytes returns the number of bytes required to store a map of nbits
// bits, rounded up to whole uint64 words.
func usedMapBytes(nbits uint64) uint64 {
	return ((nbits + wordBits - 1) / wordBits) * 8
}

// overlayUsedMap overlays a usedMap covering nbits bits on the memory region
// starting at addr and clears all of its bits. The pool that owns the region
// guarantees it stays valid for the lifetime of the map.
func overlayUsedMap(addr uintptr, nbits uint64) usedMap {
	numWords := (nbits + wordBits - 1) / wordBits

	m := usedMap{nbits: nbits}
	if numWords != 0 {
		m.words = unsafe.Slice((*uint64)(unsafe.Pointer(addr)), numWords)
	}

	for i := range m.words {
		m.words[i] = 0
	}

	return m
}

// testBit returns true if bit index is set.
func (m *usedMap) testBit(index uint64) bool {
	return m.words[index/wordBits]&(1<<(index%wordBits)) != 0
}

// setRange marks count consecutive bits starting at start as used.
func (m *usedMap) setRange(start, count uint64) {
	for index := start; index < start+count; index++ {
		m.words[index/wordBits] |= 1 << (index % wordBits)
	}
}

// clearRange marks count consecutive bits starting at start as free.
func (m *usedMap) clearRange(start, count uint64) {
	for index := start; index < start+count; index++ {
		m.words[index/wordBits] &^= 1 << (index % wordBits)
	}
}

// scan performs a first-fit search for the leftmost run of count consecutive
// clear bits at or after start. It returns the index of the first bit in the
// run and true, or false if no sufficient run exists. The cost is
// proportional to the map length times the run length in the worst case;
// page-granularity requests are infrequent relative to heap-block requests so
// no incremental free index is maintained.
func (m *usedMap) scan(start, count uint64) (uint64, bool) {
	if count == 0 || start >= m.nbits || count > m.nbits-start {
		return 0, false
	}

	for index := start; index+count <= m.nbits; index++ {
		run := uint64(0)
		for ; run < count; run++ {
			if m.testBit(index + run) {
				break
			}
		}

		if run == count {
			return index, true
		}

		// No shorter run starting inside [index, index+run] can
		// succeed; resume just past the used bit.
		index += run
	}

	return 0, false
}

// scanAndSet performs a first-fit scan and atomically (with respect to the
// pool lock held by the caller) marks the discovered run as used.
func (m *usedMap) scanAndSet(start, count uint64) (uint64, bool) {
	index, ok := m.scan(start, count)
	if !ok {
		return 0, false
	}

	m.setRange(index, count)
	return index, true
}

package kmain

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pintgo/kernel/driver/pit"
	"pintgo/kernel/hal/bootinfo"
	"pintgo/kernel/irq"
	"pintgo/kernel/kfmt"
	"pintgo/kernel/mm"
	"pintgo/kernel/port"
)

// installReadyBus fakes an I/O bus whose serial transmitter is always ready,
// so console output through the UART sink completes.
func installReadyBus(t *testing.T) {
	t.Helper()
	prevIn, prevOut := port.SetBackend(
		func(uint16) uint8 { return 0xFF },
		func(uint16, uint8) {},
	)
	t.Cleanup(func() { port.SetBackend(prevIn, prevOut) })
}

// newBootInfo fabricates a loader payload whose usable region maps onto a
// page-aligned host buffer, so the allocators operate on real memory.
func newBootInfo(t *testing.T, totalPages uint64) (*bootinfo.BootInfo, []byte) {
	t.Helper()

	buf := make([]byte, (totalPages+1)*mm.PageSize)
	raw := uintptr(unsafe.Pointer(&buf[0]))
	base := (raw + mm.PageSize - 1) &^ uintptr(mm.PageOffsetMask)

	size := uint64(1<<20) + totalPages*mm.PageSize
	bi := &bootinfo.BootInfo{
		MemoryRegions: []bootinfo.MemoryRegion{
			{Start: 0, End: 0x9fc00, Kind: bootinfo.KindReserved},
			{Start: 0x100000, End: 0x100000 + size, Kind: bootinfo.KindUsable},
		},
		PhysMemOffset:    uint64(base) - mm.PhysBase - (1 << 20) - 0x100000,
		HasPhysMemOffset: true,
	}
	return bi, buf
}

func TestBootstrapInitOrderAndWiring(t *testing.T) {
	installReadyBus(t)
	prevSink := kfmt.GetOutputSink()
	defer kfmt.SetOutputSink(prevSink)

	bi, keep := newBootInfo(t, 32)
	defer func() { _ = keep }()
	bi.CmdLine = []string{"ul=4"}

	k := Bootstrap(bi)

	// The page allocator honors the command-line user pool cap; the
	// pool's leading page holds its bitmap.
	assert.Equal(t, uint64(3), k.Pages.UserPages())

	// The heap is live on top of the page allocator.
	block := k.Heap.Allocate(64, 8)
	require.NotZero(t, block)
	k.Heap.Deallocate(block, 64, 8)

	// The timer is wired into the interrupt service and interrupts are on.
	assert.True(t, k.Ints.Enabled())
	k.Ints.Dispatch(pit.Vector, &irq.Frame{})
	assert.Equal(t, uint64(1), k.Timer.Ticks())

	// A second bootstrap of the same services is fatal.
	assert.Panics(t, func() { k.Mem.Init(bi) })
}

func TestBootstrapPrintsMemoryMap(t *testing.T) {
	installReadyBus(t)

	var out bytes.Buffer
	prevSink := kfmt.GetOutputSink()
	kfmt.SetOutputSink(&out)
	defer kfmt.SetOutputSink(prevSink)

	bi, keep := newBootInfo(t, 16)
	defer func() { _ = keep }()

	Bootstrap(bi)

	assert.Contains(t, out.String(), "system memory map:")
	assert.Contains(t, out.String(), "type: reserved")
	assert.Contains(t, out.String(), "type: usable")
	assert.Contains(t, out.String(), "free memory:")
}

func TestUserPageLimitOption(t *testing.T) {
	specs := []struct {
		cmdLine []string
		exp     uint64
	}{
		{nil, ^uint64(0)},
		{[]string{"foo", "bar"}, ^uint64(0)},
		{[]string{"ul=0"}, 0},
		{[]string{"foo", "ul=128"}, 128},
		{[]string{"ul=bogus", "ul=7"}, 7},
	}

	for _, spec := range specs {
		assert.Equal(t, spec.exp, userPageLimit(spec.cmdLine), "cmdline %v", spec.cmdLine)
	}
}

// Package kmain wires the kernel subsystems together at boot.
package kmain

import (
	"strconv"
	"strings"

	"pintgo/kernel"
	"pintgo/kernel/driver/pit"
	"pintgo/kernel/driver/uart"
	"pintgo/kernel/hal/bootinfo"
	"pintgo/kernel/irq"
	"pintgo/kernel/kfmt"
	"pintgo/kernel/mm"
	"pintgo/kernel/mm/heap"
	"pintgo/kernel/mm/pmm"
)

var errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

// Kernel aggregates the subsystem singletons constructed at boot. Each
// subsystem is initialized exactly once, in dependency order, and a second
// initialization of any of them is fatal.
type Kernel struct {
	Mem    *mm.Service
	Pages  *pmm.Allocator
	Heap   *heap.Allocator
	Ints   *irq.Service
	Serial *uart.Device
	Timer  *pit.Device
}

// Bootstrap constructs and initializes every kernel subsystem in dependency
// order: memory info, page allocator, heap, interrupts, serial console and
// timer. Initialization failures panic; the boot environment cannot recover
// from a half-initialized kernel.
func Bootstrap(bi *bootinfo.BootInfo) *Kernel {
	k := &Kernel{
		Mem:    new(mm.Service),
		Pages:  new(pmm.Allocator),
		Heap:   new(heap.Allocator),
		Ints:   new(irq.Service),
		Serial: uart.NewDevice(uart.COM1),
		Timer:  new(pit.Device),
	}

	k.Mem.Init(bi)
	info := k.Mem.Get()

	printMemoryMap(bi)

	k.Pages.Init(info, userPageLimit(bi.CmdLine))
	k.Heap.Init(k.Pages)
	k.Ints.Init()

	k.Serial.Init()
	kfmt.SetOutputSink(k.Serial)

	k.Timer.Init(k.Ints)
	k.Ints.Enable()

	return k
}

// Kmain is the kernel entry point invoked by the loader hand-off code after
// it has populated the boot info payload. It is not expected to return; if
// it does, the caller halts the CPU.
func Kmain(bi *bootinfo.BootInfo) {
	Bootstrap(bi)

	kfmt.Panic(errKmainReturned)
}

// printMemoryMap prints the memory map reported by the boot loader.
func printMemoryMap(bi *bootinfo.BootInfo) {
	kfmt.Printf("[kmain] system memory map:\n")
	var totalFree uint64
	bi.VisitRegions(func(region *bootinfo.MemoryRegion) bool {
		kfmt.Printf("\t[0x%010x - 0x%010x], size: %10d, type: %s\n", region.Start, region.End, region.Length(), region.Kind)

		if region.Kind == bootinfo.KindUsable {
			totalFree += region.Length()
		}
		return true
	})
	kfmt.Printf("[kmain] free memory: %dKb\n", totalFree/uint64(mm.Kb))
}

// userPageLimit extracts the user pool page cap from the kernel command
// line ("ul=N"). Without the option the user pool takes its default half
// share of free memory.
func userPageLimit(cmdLine []string) uint64 {
	for _, arg := range cmdLine {
		val, ok := strings.CutPrefix(arg, "ul=")
		if !ok {
			continue
		}
		limit, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			kfmt.Printf("[kmain] ignoring malformed option %q\n", arg)
			continue
		}
		return limit
	}
	return ^uint64(0)
}

package irq

import "pintgo/kernel/kfmt"

// Regs contains a snapshot of the register values when an interrupt occurred.
type Regs struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64
}

// Print outputs a dump of the register values to the active output sink.
func (r *Regs) Print() {
	kfmt.Printf("RAX = %016x RBX = %016x\n", r.RAX, r.RBX)
	kfmt.Printf("RCX = %016x RDX = %016x\n", r.RCX, r.RDX)
	kfmt.Printf("RSI = %016x RDI = %016x\n", r.RSI, r.RDI)
	kfmt.Printf("RBP = %016x\n", r.RBP)
	kfmt.Printf("R8  = %016x R9  = %016x\n", r.R8, r.R9)
	kfmt.Printf("R10 = %016x R11 = %016x\n", r.R10, r.R11)
	kfmt.Printf("R12 = %016x R13 = %016x\n", r.R12, r.R13)
	kfmt.Printf("R14 = %016x R15 = %016x\n", r.R14, r.R15)
}

// Frame describes the exception frame that is automatically pushed by the CPU
// to the stack when an interrupt occurs.
type Frame struct {
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// Print outputs a dump of the exception frame to the active output sink.
func (f *Frame) Print() {
	kfmt.Printf("RIP = %016x CS  = %016x\n", f.RIP, f.CS)
	kfmt.Printf("RSP = %016x SS  = %016x\n", f.RSP, f.SS)
	kfmt.Printf("RFL = %016x\n", f.RFlags)
}

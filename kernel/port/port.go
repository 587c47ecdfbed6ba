// Package port provides typed access to x86 I/O ports. The in/out
// instructions live behind a pluggable backend so drivers can be exercised
// against a recording fake.
package port

// InFunc reads a byte from an I/O port.
type InFunc func(port uint16) uint8

// OutFunc writes a byte to an I/O port.
type OutFunc func(port uint16, val uint8)

var (
	inFn  InFunc = func(uint16) uint8 { return 0 }
	outFn OutFunc = func(uint16, uint8) {}
)

// SetBackend installs the functions backing port reads and writes and
// returns the previously installed pair. The platform setup code installs
// the real in/out instructions; tests install fakes.
func SetBackend(in InFunc, out OutFunc) (InFunc, OutFunc) {
	prevIn, prevOut := inFn, outFn
	inFn, outFn = in, out
	return prevIn, prevOut
}

// Port is an x86 I/O port number.
type Port uint16

// In reads a byte from the port.
func (p Port) In() uint8 {
	return inFn(uint16(p))
}

// Out writes a byte to the port.
func (p Port) Out(val uint8) {
	outFn(uint16(p), val)
}

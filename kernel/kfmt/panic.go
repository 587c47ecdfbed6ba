package kfmt

import "pintgo/kernel"

var (
	// haltFn is invoked after the panic banner has been printed. The boot
	// code replaces it with a routine that halts the CPU; the default
	// raises a Go panic so fatal paths remain observable by tests.
	haltFn = defaultHalt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic outputs the supplied error (if not nil) to the active output sink and
// halts the system. Calls to Panic never return. Panic is reserved for
// invariant violations (corruption, programmer error); resource exhaustion is
// reported through error values instead.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	default:
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	haltFn(err)
}

func defaultHalt(err *kernel.Error) {
	panic(err)
}

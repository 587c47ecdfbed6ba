// Package irq maintains the interrupt vector table and the CPU interrupt
// enable state. The actual vector table load and the interrupt flag
// manipulation are delegated to arch hooks so the registration and dispatch
// logic stays independent of the boot environment.
package irq

import (
	"pintgo/kernel"
	"pintgo/kernel/kfmt"
	"pintgo/kernel/sync"
)

// NumVectors is the size of the interrupt vector table.
const NumVectors = 256

var (
	errAlreadyInitialized = &kernel.Error{Module: "irq", Message: "interrupt state already initialized"}
	errNotInitialized     = &kernel.Error{Module: "irq", Message: "interrupt state not initialized"}

	// Arch hooks installed by the platform setup code. The defaults keep
	// the software state machine working without touching hardware.
	loadVectorTableFn  = func() {}
	setInterruptFlagFn = func(enabled bool) {}
)

// HandlerFunc is invoked with the exception frame when its registered vector
// fires.
type HandlerFunc func(*Frame)

type registration struct {
	handler HandlerFunc
	name    string
}

// Service dispatches interrupt vectors to registered handlers and tracks the
// interrupt enable level.
type Service struct {
	lock        sync.Spinlock
	initialized bool
	enabled     bool
	handlers    [NumVectors]registration
}

// Init loads the vector table and arms the dispatcher. The hardware vector
// stubs funnel into a single entry point so Init must run exactly once;
// calling it again triggers a kernel panic.
func (s *Service) Init() {
	s.lock.Acquire()
	if s.initialized {
		s.lock.Release()
		kfmt.Panic(errAlreadyInitialized)
	}
	s.initialized = true
	s.lock.Release()

	loadVectorTableFn()
}

// Register installs a handler for the given vector, replacing any previous
// registration. The name is used when reporting dispatch activity.
func (s *Service) Register(vector uint8, handler HandlerFunc, name string) {
	s.lock.Acquire()
	s.handlers[vector] = registration{handler: handler, name: name}
	s.lock.Release()
}

// Dispatch routes an interrupt to its registered handler. Unhandled vectors
// get their frame dumped to the active output sink. The CPU masks interrupts
// before entering the vector stub so the handler runs with interrupts off.
func (s *Service) Dispatch(vector uint8, frame *Frame) {
	s.lock.Acquire()
	if !s.initialized {
		s.lock.Release()
		kfmt.Panic(errNotInitialized)
	}
	reg := s.handlers[vector]
	s.lock.Release()

	if reg.handler == nil {
		kfmt.Printf("[irq] unhandled interrupt %d\n", vector)
		frame.Print()
		return
	}

	reg.handler(frame)
}

// Enabled returns the current interrupt enable level.
func (s *Service) Enabled() bool {
	s.lock.Acquire()
	enabled := s.enabled
	s.lock.Release()
	return enabled
}

// Enable turns interrupts on and returns the previous level.
func (s *Service) Enable() bool {
	return s.setLevel(true)
}

// Disable turns interrupts off and returns the previous level. The typical
// pattern brackets a critical section with Disable and a deferred SetLevel
// of the returned value.
func (s *Service) Disable() bool {
	return s.setLevel(false)
}

// SetLevel sets the interrupt enable level and returns the previous one.
func (s *Service) SetLevel(enabled bool) bool {
	return s.setLevel(enabled)
}

func (s *Service) setLevel(enabled bool) bool {
	s.lock.Acquire()
	prev := s.enabled
	s.enabled = enabled
	s.lock.Release()

	setInterruptFlagFn(enabled)
	return prev
}

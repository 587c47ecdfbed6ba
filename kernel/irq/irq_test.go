package irq

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pintgo/kernel/kfmt"
)

func TestInitIsOneShot(t *testing.T) {
	defer func(orig func()) { loadVectorTableFn = orig }(loadVectorTableFn)

	loads := 0
	loadVectorTableFn = func() { loads++ }

	var svc Service
	svc.Init()
	assert.Equal(t, 1, loads)

	assert.Panics(t, func() { svc.Init() })
	assert.Equal(t, 1, loads, "a failed re-init must not reload the vector table")
}

func TestDispatchBeforeInitIsFatal(t *testing.T) {
	var svc Service
	assert.Panics(t, func() { svc.Dispatch(0x20, &Frame{}) })
}

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	defer func(orig func()) { loadVectorTableFn = orig }(loadVectorTableFn)
	loadVectorTableFn = func() {}

	var svc Service
	svc.Init()

	var gotFrame *Frame
	svc.Register(0x20, func(f *Frame) { gotFrame = f }, "8254 timer")

	frame := &Frame{RIP: 0xc0001000}
	svc.Dispatch(0x20, frame)
	require.NotNil(t, gotFrame)
	assert.Equal(t, frame, gotFrame)

	// A later registration for the same vector replaces the handler.
	replaced := false
	svc.Register(0x20, func(*Frame) { replaced = true }, "other")
	svc.Dispatch(0x20, frame)
	assert.True(t, replaced)
}

func TestDispatchUnhandledVectorDumpsFrame(t *testing.T) {
	defer func(orig func()) { loadVectorTableFn = orig }(loadVectorTableFn)
	loadVectorTableFn = func() {}

	var out bytes.Buffer
	prev := kfmt.GetOutputSink()
	kfmt.SetOutputSink(&out)
	defer kfmt.SetOutputSink(prev)

	var svc Service
	svc.Init()
	svc.Dispatch(0x21, &Frame{RIP: 0xdead})

	assert.Contains(t, out.String(), "unhandled interrupt 33")
	assert.Contains(t, out.String(), "RIP = 000000000000dead")
}

func TestInterruptLevelTransitions(t *testing.T) {
	defer func(orig func(bool)) { setInterruptFlagFn = orig }(setInterruptFlagFn)

	var flagWrites []bool
	setInterruptFlagFn = func(enabled bool) { flagWrites = append(flagWrites, enabled) }

	var svc Service
	assert.False(t, svc.Enabled())

	assert.False(t, svc.Enable(), "previous level was off")
	assert.True(t, svc.Enabled())

	assert.True(t, svc.Disable(), "previous level was on")
	assert.False(t, svc.Disable(), "disable is idempotent")

	// Restoring a saved level round-trips.
	saved := svc.Disable()
	assert.False(t, svc.SetLevel(saved))
	assert.False(t, svc.Enabled())

	assert.Equal(t, []bool{true, false, false, false, false}, flagWrites)
}

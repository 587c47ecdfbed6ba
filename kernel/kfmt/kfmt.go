// Package kfmt provides formatted output for kernel code. Output is sent to
// the currently registered output sink; any output emitted before a sink is
// registered (e.g. before the serial driver is brought up) accumulates in a
// ring buffer and is flushed to the sink once one becomes available.
package kfmt

import (
	"fmt"
	"io"
)

var (
	// earlyPrintBuffer is a ring buffer that stores Printf output before
	// an output sink is registered.
	earlyPrintBuffer ringBuffer

	// outputSink is an io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	// Re-registering the early print buffer (as returned by GetOutputSink
	// before any sink exists) clears the sink instead of flushing the
	// buffer into itself.
	if w == &earlyPrintBuffer {
		w = nil
	}

	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// GetOutputSink returns the currently active output sink. If no sink has been
// registered yet, the early print ring buffer is returned instead.
func GetOutputSink() io.Writer {
	if outputSink != nil {
		return outputSink
	}

	return &earlyPrintBuffer
}

// Printf formats its arguments and writes the result to the active output
// sink.
func Printf(format string, args ...interface{}) {
	Fprintf(GetOutputSink(), format, args...)
}

// Fprintf formats its arguments and writes the result to the supplied writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}

// Package pit drives the 8254 programmable interval timer and maintains the
// tick count since boot.
package pit

import (
	"pintgo/kernel/irq"
	"pintgo/kernel/port"
	"pintgo/kernel/sync"
)

// Freq is the timer interrupt rate in Hz.
const Freq = 100

// Vector is the interrupt vector the timer fires on.
const Vector = 0x20

const (
	// pitHz is the 8254 input clock rate.
	pitHz = 1193180

	controlPort  = port.Port(0x43)
	channel0Port = port.Port(0x40)

	// Control word: channel in bits 6-7, lobyte/hibyte access (0x30),
	// mode in bits 1-3.
	channel0 = 0
	mode2    = 2
)

// Device is the system timer. Ticks counts timer interrupts since Init.
type Device struct {
	lock  sync.Spinlock
	ticks uint64
}

// Init programs channel 0 to fire Freq times per second in rate-generator
// mode and registers the tick handler with the interrupt service.
func (d *Device) Init(ints *irq.Service) {
	configureChannel(ints, channel0, channel0Port, mode2, Freq)
	ints.Register(Vector, d.onInterrupt, "8254 timer")
}

// Ticks returns the number of timer interrupts since Init.
func (d *Device) Ticks() uint64 {
	d.lock.Acquire()
	ticks := d.ticks
	d.lock.Release()
	return ticks
}

func (d *Device) onInterrupt(*irq.Frame) {
	d.lock.Acquire()
	d.ticks++
	d.lock.Release()
}

// divisorFor converts a requested interrupt rate to an 8254 counter value.
// A zero counter is interpreted by the chip as 65536, the slowest rate it
// can produce (about 18.2 Hz).
func divisorFor(frequency uint32) uint16 {
	switch {
	case frequency < 19:
		return 0
	case frequency > pitHz:
		return 2
	default:
		return uint16((pitHz + frequency/2) / frequency)
	}
}

// configureChannel programs a counter channel. The two-byte counter write
// must not be interleaved with other timer accesses, so interrupts are
// masked around the sequence.
func configureChannel(ints *irq.Service, channel uint8, counter port.Port, mode uint8, frequency uint32) {
	count := divisorFor(frequency)

	prev := ints.Disable()
	controlPort.Out(channel<<6 | 0x30 | mode<<1)
	counter.Out(uint8(count))
	counter.Out(uint8(count >> 8))
	ints.SetLevel(prev)
}

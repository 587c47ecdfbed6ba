// Package uart drives a 16550-compatible serial port. The kernel routes its
// console output through it by installing the device as the kfmt sink.
package uart

import "pintgo/kernel/port"

// COM1 is the base I/O port of the first serial device.
const COM1 = 0x3F8

const (
	lineStatusOutputEmpty = 1 << 5

	backspace = 0x08
	del       = 0x7F
)

// Device is a 16550 UART located at a base I/O port.
type Device struct {
	data      port.Port
	intEnable port.Port
	fifoCtrl  port.Port
	lineCtrl  port.Port
	modemCtrl port.Port
	lineSts   port.Port
}

// NewDevice returns a driver for the UART at the given base port. Init must
// be called before writing.
func NewDevice(base uint16) *Device {
	return &Device{
		data:      port.Port(base),
		intEnable: port.Port(base + 1),
		fifoCtrl:  port.Port(base + 2),
		lineCtrl:  port.Port(base + 3),
		modemCtrl: port.Port(base + 4),
		lineSts:   port.Port(base + 5),
	}
}

// Init programs the UART for 38400 bps, 8 data bits, no parity, one stop bit
// with FIFOs enabled.
func (d *Device) Init() {
	// Mask device interrupts while reprogramming.
	d.intEnable.Out(0x00)

	// Raise DLAB and set the divisor latch to 3 (38400 bps).
	d.lineCtrl.Out(0x80)
	d.data.Out(0x03)
	d.intEnable.Out(0x00)

	// Drop DLAB; 8 data bits, no parity, one stop bit.
	d.lineCtrl.Out(0x03)

	// Enable FIFOs, clear the TX/RX queues, watermark at 14 bytes.
	d.fifoCtrl.Out(0xC7)

	// Data terminal ready, request to send, aux output 2 (the IRQ line).
	d.modemCtrl.Out(0x0B)

	d.intEnable.Out(0x01)
}

func (d *Device) waitForTransmitter() {
	for d.lineSts.In()&lineStatusOutputEmpty == 0 {
	}
}

// WriteByte sends a single byte out the serial line, blocking until the
// transmitter holding register is empty. Backspace and DEL are expanded to
// the erase sequence terminals expect.
func (d *Device) WriteByte(b byte) error {
	switch b {
	case backspace, del:
		d.send(backspace)
		d.send(' ')
		d.send(backspace)
	default:
		d.send(b)
	}
	return nil
}

func (d *Device) send(b byte) {
	d.waitForTransmitter()
	d.data.Out(b)
}

// Write sends the buffer out the serial line. It never fails; the error
// return satisfies io.Writer.
func (d *Device) Write(p []byte) (int, error) {
	for _, b := range p {
		_ = d.WriteByte(b)
	}
	return len(p), nil
}

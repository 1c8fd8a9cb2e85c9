package serlcd

import (
	"fmt"
	"io"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
)

// transport is the device-facing byte sink. A Dev holds exactly one
// transport, so two simultaneously bound links are unrepresentable.
//
// Every command frame is bracketed by begin/end. transmit sends a single
// byte; a non-nil error aborts the frame and no further bytes are sent.
type transport interface {
	begin() error
	transmit(b byte) error
	end() error
	String() string
}

// i2cTransport talks to the display over I²C.
//
// The frame is buffered between begin and end and flushed as a single bus
// transaction, so addressing errors (device absent, NACK) surface from end.
type i2cTransport struct {
	dev i2c.Dev
	buf []byte
}

func (t *i2cTransport) begin() error {
	t.buf = t.buf[:0]
	return nil
}

func (t *i2cTransport) transmit(b byte) error {
	t.buf = append(t.buf, b)
	return nil
}

func (t *i2cTransport) end() error {
	if err := t.dev.Tx(t.buf, nil); err != nil {
		return fmt.Errorf("serlcd: i2c write: %w", err)
	}
	return nil
}

func (t *i2cTransport) String() string {
	return t.dev.String()
}

// streamTransport talks to the display over a raw byte stream, typically a
// UART opened with go.bug.st/serial. begin and end are no-ops.
type streamTransport struct {
	w io.Writer
}

func (t *streamTransport) begin() error {
	return nil
}

func (t *streamTransport) transmit(b byte) error {
	n, err := t.w.Write([]byte{b})
	if err != nil {
		return fmt.Errorf("serlcd: serial write: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("serlcd: serial write: %w", io.ErrShortWrite)
	}
	return nil
}

func (t *streamTransport) end() error {
	return nil
}

func (t *streamTransport) String() string {
	return "serial"
}

// spiTransport talks to the display over SPI with a manually driven chip
// select line. The display needs a settle delay after each CS transition.
type spiTransport struct {
	c  conn.Conn
	cs gpio.PinOut
}

func (t *spiTransport) begin() error {
	if err := t.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("serlcd: chip select: %w", err)
	}
	time.Sleep(csSettle)
	return nil
}

func (t *spiTransport) transmit(b byte) error {
	if err := t.c.Tx([]byte{b}, nil); err != nil {
		return fmt.Errorf("serlcd: spi write: %w", err)
	}
	return nil
}

func (t *spiTransport) end() error {
	if err := t.cs.Out(gpio.High); err != nil {
		return fmt.Errorf("serlcd: chip select: %w", err)
	}
	time.Sleep(csSettle)
	return nil
}

func (t *spiTransport) String() string {
	return t.c.String()
}

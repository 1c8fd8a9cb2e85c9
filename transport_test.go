package serlcd

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

func TestI2CTransportBuffersFrame(t *testing.T) {
	rec := &i2ctest.Record{}
	tr := &i2cTransport{dev: i2c.Dev{Bus: rec, Addr: DefaultAddress}}

	if err := tr.begin(); err != nil {
		t.Fatalf("begin() = %v", err)
	}
	for _, b := range []byte{settingCommand, clearCommand} {
		if err := tr.transmit(b); err != nil {
			t.Fatalf("transmit(%#x) = %v", b, err)
		}
	}
	// Nothing hits the bus until the frame is closed.
	if len(rec.Ops) != 0 {
		t.Fatalf("%d bus transactions before end, want 0", len(rec.Ops))
	}
	if err := tr.end(); err != nil {
		t.Fatalf("end() = %v", err)
	}

	if len(rec.Ops) != 1 {
		t.Fatalf("%d bus transactions, want 1", len(rec.Ops))
	}
	op := rec.Ops[0]
	if op.Addr != DefaultAddress {
		t.Errorf("addr = %#x, want %#x", op.Addr, DefaultAddress)
	}
	if want := []byte{settingCommand, clearCommand}; !bytes.Equal(op.W, want) {
		t.Errorf("wrote % X, want % X", op.W, want)
	}
	if len(op.R) != 0 {
		t.Errorf("read % X, want nothing", op.R)
	}
}

func TestNewI2C(t *testing.T) {
	rec := &i2ctest.Record{}
	d, err := NewI2C(rec, 0)
	if err != nil {
		t.Fatalf("NewI2C = %v", err)
	}
	d.sleep = func(time.Duration) {}

	if len(rec.Ops) != 1 {
		t.Fatalf("%d bus transactions during init, want 1", len(rec.Ops))
	}
	wantInit := []byte{
		specialCommand, lcdDisplayControl | lcdDisplayOn,
		specialCommand, lcdEntryModeSet | lcdEntryLeft,
		settingCommand, clearCommand,
	}
	if !bytes.Equal(rec.Ops[0].W, wantInit) {
		t.Errorf("init wrote % X, want % X", rec.Ops[0].W, wantInit)
	}
	if rec.Ops[0].Addr != DefaultAddress {
		t.Errorf("init addr = %#x, want %#x", rec.Ops[0].Addr, DefaultAddress)
	}
}

func TestSetAddressRetargetsI2C(t *testing.T) {
	rec := &i2ctest.Record{}
	d, err := NewI2C(rec, 0)
	if err != nil {
		t.Fatalf("NewI2C = %v", err)
	}
	d.sleep = func(time.Duration) {}

	if err := d.SetAddress(0x73); err != nil {
		t.Fatalf("SetAddress = %v", err)
	}
	if err := d.Clear(); err != nil {
		t.Fatalf("Clear = %v", err)
	}

	if len(rec.Ops) != 3 {
		t.Fatalf("%d bus transactions, want 3", len(rec.Ops))
	}
	// The address change itself goes to the old address.
	if rec.Ops[1].Addr != DefaultAddress {
		t.Errorf("SetAddress frame went to %#x, want %#x", rec.Ops[1].Addr, DefaultAddress)
	}
	if want := []byte{settingCommand, addressCommand, 0x73}; !bytes.Equal(rec.Ops[1].W, want) {
		t.Errorf("SetAddress wrote % X, want % X", rec.Ops[1].W, want)
	}
	// Subsequent commands target the new address.
	if rec.Ops[2].Addr != 0x73 {
		t.Errorf("Clear frame went to %#x, want 0x73", rec.Ops[2].Addr)
	}
}

func TestNewSerial(t *testing.T) {
	var buf bytes.Buffer
	d, err := NewSerial(&buf)
	if err != nil {
		t.Fatalf("NewSerial = %v", err)
	}
	d.sleep = func(time.Duration) {}

	wantInit := []byte{
		specialCommand, lcdDisplayControl | lcdDisplayOn,
		specialCommand, lcdEntryModeSet | lcdEntryLeft,
		settingCommand, clearCommand,
	}
	if !bytes.Equal(buf.Bytes(), wantInit) {
		t.Errorf("init wrote % X, want % X", buf.Bytes(), wantInit)
	}

	buf.Reset()
	if _, err := d.WriteString("ok"); err != nil {
		t.Fatalf("WriteString = %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte("ok")) {
		t.Errorf("wrote % X, want % X", buf.Bytes(), "ok")
	}
}

func TestNewSerialNil(t *testing.T) {
	if _, err := NewSerial(nil); err == nil {
		t.Error("NewSerial(nil) should fail")
	}
}

// shortWriter accepts writes but reports zero bytes written.
type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return 0, nil
}

func TestStreamTransportShortWrite(t *testing.T) {
	tr := &streamTransport{w: shortWriter{}}
	err := tr.transmit(0x7C)
	if !errors.Is(err, io.ErrShortWrite) {
		t.Errorf("transmit = %v, want io.ErrShortWrite", err)
	}
}

// spiConn is a fake spi.Conn that records every transfer.
type spiConn struct {
	tx  [][]byte
	err error
}

func (c *spiConn) String() string {
	return "fakespi"
}

func (c *spiConn) Tx(w, r []byte) error {
	if c.err != nil {
		return c.err
	}
	c.tx = append(c.tx, append([]byte(nil), w...))
	return nil
}

func (c *spiConn) TxPackets(p []spi.Packet) error {
	return errors.New("not implemented")
}

func (c *spiConn) Duplex() conn.Duplex {
	return conn.Half
}

// spiPort is a fake spi.Port that records the connection parameters.
type spiPort struct {
	c    *spiConn
	freq physic.Frequency
	mode spi.Mode
	bits int
}

func (p *spiPort) String() string {
	return "fakeport"
}

func (p *spiPort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	p.freq = f
	p.mode = mode
	p.bits = bits
	return p.c, nil
}

// csPin wraps gpiotest.Pin to record every level transition.
type csPin struct {
	gpiotest.Pin
	levels []gpio.Level
}

func (p *csPin) Out(l gpio.Level) error {
	p.levels = append(p.levels, l)
	return p.Pin.Out(l)
}

func TestSPITransportChipSelect(t *testing.T) {
	c := &spiConn{}
	cs := &csPin{Pin: gpiotest.Pin{N: "CS"}}
	tr := &spiTransport{c: c, cs: cs}

	if err := tr.begin(); err != nil {
		t.Fatalf("begin() = %v", err)
	}
	for _, b := range []byte{specialCommand, lcdReturnHome} {
		if err := tr.transmit(b); err != nil {
			t.Fatalf("transmit(%#x) = %v", b, err)
		}
	}
	if err := tr.end(); err != nil {
		t.Fatalf("end() = %v", err)
	}

	wantLevels := []gpio.Level{gpio.Low, gpio.High}
	if len(cs.levels) != len(wantLevels) {
		t.Fatalf("%d CS transitions, want %d", len(cs.levels), len(wantLevels))
	}
	for i, l := range wantLevels {
		if cs.levels[i] != l {
			t.Errorf("CS transition %d = %v, want %v", i, cs.levels[i], l)
		}
	}
	// One single-byte transfer per transmit.
	if len(c.tx) != 2 {
		t.Fatalf("%d SPI transfers, want 2", len(c.tx))
	}
	if !bytes.Equal(c.tx[0], []byte{specialCommand}) || !bytes.Equal(c.tx[1], []byte{lcdReturnHome}) {
		t.Errorf("transfers = % X, want FE then 02", c.tx)
	}
}

func TestNewSPI(t *testing.T) {
	port := &spiPort{c: &spiConn{}}
	cs := &csPin{Pin: gpiotest.Pin{N: "CS"}}
	d, err := NewSPI(port, cs)
	if err != nil {
		t.Fatalf("NewSPI = %v", err)
	}
	d.sleep = func(time.Duration) {}

	if port.freq != 100*physic.KiloHertz {
		t.Errorf("freq = %v, want 100kHz", port.freq)
	}
	if port.mode != spi.Mode0 {
		t.Errorf("mode = %v, want Mode0", port.mode)
	}
	if port.bits != 8 {
		t.Errorf("bits = %d, want 8", port.bits)
	}

	// Deselect before init, then one select/deselect around the frame.
	wantLevels := []gpio.Level{gpio.High, gpio.Low, gpio.High}
	if len(cs.levels) != len(wantLevels) {
		t.Fatalf("%d CS transitions, want %d", len(cs.levels), len(wantLevels))
	}
	for i, l := range wantLevels {
		if cs.levels[i] != l {
			t.Errorf("CS transition %d = %v, want %v", i, cs.levels[i], l)
		}
	}
	// Init frame is 6 bytes, one transfer each.
	if len(port.c.tx) != 6 {
		t.Errorf("%d SPI transfers during init, want 6", len(port.c.tx))
	}
}

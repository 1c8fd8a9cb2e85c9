// Package serlcd controls a SparkFun SerLCD (OpenLCD) character display
// over I²C, SPI or a serial byte stream.
//
// See the examples for how to use this package.
package serlcd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// DefaultAddress is the factory 7-bit I²C address of the OpenLCD.
const DefaultAddress uint16 = 0x72

// Display geometry limits of the OpenLCD controller.
const (
	MaxRows    = 4
	MaxColumns = 20
)

// Command markers. Every framed command starts with one of these.
const (
	settingCommand byte = 0x7C // '|', enters setting mode
	specialCommand byte = 0xFE // HD44780 instruction follows
)

// Setting-command opcodes.
const (
	clearCommand           byte = 0x2D // '-', clear display and return home
	contrastCommand        byte = 0x18 // next byte is the new contrast
	addressCommand         byte = 0x19 // next byte is the new I²C address
	setRGBCommand          byte = 0x2B // '+', next 3 bytes are R, G, B
	width20Command         byte = 0x03
	width16Command         byte = 0x04
	lines4Command          byte = 0x05
	lines2Command          byte = 0x06
	lines1Command          byte = 0x07
	splashToggleCommand    byte = 0x09
	splashSaveCommand      byte = 0x0A
	firmwareVersionCommand byte = 0x2C

	// Custom characters: settings 27-34 record glyph slots 0-7,
	// settings 35-42 display them.
	recordCustomCharBase  byte = 27
	displayCustomCharBase byte = 35
)

// Special-command opcodes, mirroring the HD44780 instruction set.
const (
	lcdReturnHome     byte = 0x02
	lcdEntryModeSet   byte = 0x04
	lcdDisplayControl byte = 0x08
	lcdCursorShift    byte = 0x10
	lcdSetDDRAMAddr   byte = 0x80
)

// Flags for lcdEntryModeSet.
const (
	lcdEntryLeft           byte = 0x02
	lcdEntryShiftIncrement byte = 0x01
)

// Flags for lcdDisplayControl.
const (
	lcdDisplayOn byte = 0x04
	lcdCursorOn  byte = 0x02
	lcdBlinkOn   byte = 0x01
)

// Flags for lcdCursorShift.
const (
	lcdDisplayMove byte = 0x08
	lcdMoveRight   byte = 0x04
)

// Hardware settle delays. The OpenLCD firmware processes commands between
// characters, so each frame is followed by a fixed wait. The values come
// from the device's documented timing and must not be shortened.
const (
	commandSettle        = 10 * time.Millisecond // generic setting command
	specialCommandSettle = 50 * time.Millisecond // HD44780 instruction
	initSettle           = 50 * time.Millisecond // after the init frame
	clearSettle          = 10 * time.Millisecond // extra, on top of commandSettle
	writeSettle          = 10 * time.Millisecond // after raw text
	csSettle             = 10 * time.Millisecond // after each SPI CS transition
)

// rowOffsets maps a row index to its DDRAM base address. The controller
// interleaves lines 0/2 and 1/3 in memory.
var rowOffsets = [MaxRows]byte{0x00, 0x40, 0x14, 0x54}

// Dev is the device handle for a SerLCD display.
//
// Dev is not safe for concurrent use; callers that share one display across
// goroutines must serialize access externally.
type Dev struct {
	t transport

	// Cached copies of the two HD44780 mode registers. Each toggle
	// mutates the byte in memory, then retransmits the whole field.
	displayControl byte
	displayMode    byte

	sleep func(time.Duration)
}

// NewI2C returns a Dev for a SerLCD on the given I²C bus.
//
// addr is the 7-bit device address; pass 0 to use DefaultAddress (0x72).
// The display is initialized before the function returns.
func NewI2C(bus i2c.Bus, addr uint16) (*Dev, error) {
	if addr == 0 {
		addr = DefaultAddress
	}
	d := newDev(&i2cTransport{dev: i2c.Dev{Bus: bus, Addr: addr}})
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewSerial returns a Dev for a SerLCD on a raw byte stream, typically a
// 9600 baud serial port. Writes go straight through with no framing.
func NewSerial(w io.Writer) (*Dev, error) {
	if w == nil {
		return nil, errors.New("serlcd: nil serial stream")
	}
	d := newDev(&streamTransport{w: w})
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewSPI returns a Dev for a SerLCD connected via SPI.
//
// The port is configured for 100kHz, Mode0 (CPOL=0, CPHA=0), 8-bit
// transfers, matching the OpenLCD firmware. cs is the chip select line,
// driven manually because the display needs a settle delay around each
// transition.
func NewSPI(p spi.Port, cs gpio.PinOut) (*Dev, error) {
	c, err := p.Connect(100*physic.KiloHertz, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}
	// Deselect the display, in case the line floated low at boot.
	if err := cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("serlcd: chip select: %w", err)
	}
	d := newDev(&spiTransport{c: c, cs: cs})
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func newDev(t transport) *Dev {
	return &Dev{
		t:              t,
		displayControl: lcdDisplayOn,
		displayMode:    lcdEntryLeft,
		sleep:          time.Sleep,
	}
}

// init puts the display into a known state: display control and entry mode
// from the cached registers, then a clear, all in one frame. The display
// may have been left mid-command by a previous user.
func (d *Dev) init() error {
	if err := d.send(
		specialCommand, lcdDisplayControl|d.displayControl,
		specialCommand, lcdEntryModeSet|d.displayMode,
		settingCommand, clearCommand,
	); err != nil {
		return fmt.Errorf("serlcd: init: %w", err)
	}
	d.sleep(initSettle)
	return nil
}

// send transmits one framed byte sequence. The frame aborts on the first
// failed byte; the remaining bytes are never sent and no settle delay is
// applied.
func (d *Dev) send(frame ...byte) error {
	if err := d.t.begin(); err != nil {
		return err
	}
	for _, b := range frame {
		if err := d.t.transmit(b); err != nil {
			return err
		}
	}
	return d.t.end()
}

// command sends a setting command (marker 0x7C).
func (d *Dev) command(cmd byte) error {
	if err := d.send(settingCommand, cmd); err != nil {
		return err
	}
	d.sleep(commandSettle)
	return nil
}

// special sends an HD44780 instruction (marker 0xFE).
func (d *Dev) special(cmd byte) error {
	if err := d.send(specialCommand, cmd); err != nil {
		return err
	}
	d.sleep(specialCommandSettle)
	return nil
}

// specialRepeated sends the same HD44780 instruction count times inside a
// single frame, with one settle delay at the end regardless of count.
func (d *Dev) specialRepeated(cmd byte, count uint8) error {
	if err := d.t.begin(); err != nil {
		return err
	}
	for i := uint8(0); i < count; i++ {
		if err := d.t.transmit(specialCommand); err != nil {
			return err
		}
		if err := d.t.transmit(cmd); err != nil {
			return err
		}
	}
	if err := d.t.end(); err != nil {
		return err
	}
	d.sleep(specialCommandSettle)
	return nil
}

// Clear erases the display and returns the cursor to the origin.
func (d *Dev) Clear() error {
	if err := d.command(clearCommand); err != nil {
		return err
	}
	d.sleep(clearSettle)
	return nil
}

// Home returns the cursor to the origin without clearing the display.
func (d *Dev) Home() error {
	return d.special(lcdReturnHome)
}

// SetCursor moves the cursor to the given column and row. col counts from
// 0 on the left, row from 0 at the top. Rows past the last line are clamped
// to the last line.
func (d *Dev) SetCursor(col, row byte) error {
	if row > MaxRows-1 {
		row = MaxRows - 1
	}
	return d.special(lcdSetDDRAMAddr | (col + rowOffsets[row]))
}

// CreateChar records an 8-byte glyph in one of the 8 custom character
// slots. Only the low 3 bits of slot are used.
func (d *Dev) CreateChar(slot byte, glyph [8]byte) error {
	slot &= 0x7
	frame := make([]byte, 0, 10)
	frame = append(frame, settingCommand, recordCustomCharBase+slot)
	frame = append(frame, glyph[:]...)
	if err := d.send(frame...); err != nil {
		return err
	}
	d.sleep(specialCommandSettle)
	return nil
}

// WriteChar prints the custom character recorded in the given slot at the
// cursor position. Only the low 3 bits of slot are used.
func (d *Dev) WriteChar(slot byte) error {
	slot &= 0x7
	return d.command(displayCustomCharBase + slot)
}

// Write prints raw text at the cursor position. It implements io.Writer.
//
// An empty slice issues no transmission. On a transport failure the
// returned count is the number of bytes actually sent.
func (d *Dev) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := d.t.begin(); err != nil {
		return 0, err
	}
	for i, b := range p {
		if err := d.t.transmit(b); err != nil {
			return i, err
		}
	}
	if err := d.t.end(); err != nil {
		return len(p), err
	}
	d.sleep(writeSettle)
	return len(p), nil
}

// WriteString prints a string at the cursor position.
func (d *Dev) WriteString(s string) (int, error) {
	return d.Write([]byte(s))
}

// WriteByte prints a single byte at the cursor position. It implements
// io.ByteWriter.
func (d *Dev) WriteByte(b byte) error {
	_, err := d.Write([]byte{b})
	return err
}

// Display turns the LCD panel on or off. The backlight and the display RAM
// are unaffected.
func (d *Dev) Display(on bool) error {
	if on {
		d.displayControl |= lcdDisplayOn
	} else {
		d.displayControl &^= lcdDisplayOn
	}
	return d.special(lcdDisplayControl | d.displayControl)
}

// Cursor shows or hides the underline cursor.
func (d *Dev) Cursor(on bool) error {
	if on {
		d.displayControl |= lcdCursorOn
	} else {
		d.displayControl &^= lcdCursorOn
	}
	return d.special(lcdDisplayControl | d.displayControl)
}

// Blink enables or disables the blinking block cursor.
func (d *Dev) Blink(on bool) error {
	if on {
		d.displayControl |= lcdBlinkOn
	} else {
		d.displayControl &^= lcdBlinkOn
	}
	return d.special(lcdDisplayControl | d.displayControl)
}

// ScrollLeft shifts the displayed text n characters to the left without
// changing the display RAM.
func (d *Dev) ScrollLeft(n uint8) error {
	return d.specialRepeated(lcdCursorShift|lcdDisplayMove, n)
}

// ScrollRight shifts the displayed text n characters to the right without
// changing the display RAM.
func (d *Dev) ScrollRight(n uint8) error {
	return d.specialRepeated(lcdCursorShift|lcdDisplayMove|lcdMoveRight, n)
}

// MoveCursorLeft moves the cursor n characters to the left.
func (d *Dev) MoveCursorLeft(n uint8) error {
	return d.specialRepeated(lcdCursorShift, n)
}

// MoveCursorRight moves the cursor n characters to the right.
func (d *Dev) MoveCursorRight(n uint8) error {
	return d.specialRepeated(lcdCursorShift|lcdMoveRight, n)
}

// SetBacklight sets the backlight color using the legacy per-channel
// protocol. Each 0-255 channel value maps onto a 30-step brightness band
// (red 128-157, green 158-187, blue 188-217). The display is switched off
// for the duration of the sequence to hide the firmware's confirmation
// messages, then switched back on.
//
// Prefer SetFastBacklight on firmware 1.1 or later; it does not blank the
// display.
func (d *Dev) SetBacklight(r, g, b byte) error {
	red := 128 + scale29(r)
	green := 158 + scale29(g)
	blue := 188 + scale29(b)

	if err := d.t.begin(); err != nil {
		return err
	}
	d.displayControl &^= lcdDisplayOn
	for _, v := range []byte{
		specialCommand, lcdDisplayControl | d.displayControl,
		settingCommand, red,
		settingCommand, green,
		settingCommand, blue,
	} {
		if err := d.t.transmit(v); err != nil {
			return err
		}
	}
	d.displayControl |= lcdDisplayOn
	if err := d.t.transmit(specialCommand); err != nil {
		return err
	}
	if err := d.t.transmit(lcdDisplayControl | d.displayControl); err != nil {
		return err
	}
	if err := d.t.end(); err != nil {
		return err
	}
	d.sleep(specialCommandSettle)
	return nil
}

// SetBacklightRGB is SetBacklight with a packed 0x00RRGGBB value.
func (d *Dev) SetBacklightRGB(rgb uint32) error {
	return d.SetBacklight(byte(rgb>>16), byte(rgb>>8), byte(rgb))
}

// SetFastBacklight sets the backlight color with the single-command RGB
// protocol introduced in OpenLCD firmware 1.1. Unlike SetBacklight it does
// not blank the display.
func (d *Dev) SetFastBacklight(r, g, b byte) error {
	if err := d.send(settingCommand, setRGBCommand, r, g, b); err != nil {
		return err
	}
	d.sleep(commandSettle)
	return nil
}

// SetFastBacklightRGB is SetFastBacklight with a packed 0x00RRGGBB value.
func (d *Dev) SetFastBacklightRGB(rgb uint32) error {
	return d.SetFastBacklight(byte(rgb>>16), byte(rgb>>8), byte(rgb))
}

// RGBBacklight implements display.DisplayRGBBacklight. Intensities are
// clamped to 0-255.
func (d *Dev) RGBBacklight(red, green, blue display.Intensity) error {
	return d.SetFastBacklight(clampIntensity(red), clampIntensity(green), clampIntensity(blue))
}

// LeftToRight makes text flow left to right from the cursor, the common
// direction for Western languages.
func (d *Dev) LeftToRight() error {
	d.displayMode |= lcdEntryLeft
	return d.special(lcdEntryModeSet | d.displayMode)
}

// RightToLeft makes text flow right to left from the cursor.
func (d *Dev) RightToLeft() error {
	d.displayMode &^= lcdEntryLeft
	return d.special(lcdEntryModeSet | d.displayMode)
}

// Autoscroll enables or disables autoscrolling, which right-justifies text
// from the cursor.
func (d *Dev) Autoscroll(on bool) error {
	if on {
		d.displayMode |= lcdEntryShiftIncrement
	} else {
		d.displayMode &^= lcdEntryShiftIncrement
	}
	return d.special(lcdEntryModeSet | d.displayMode)
}

// SetContrast sets the display contrast (0-255). The factory default
// is 120.
func (d *Dev) SetContrast(v byte) error {
	if err := d.send(settingCommand, contrastCommand, v); err != nil {
		return err
	}
	d.sleep(commandSettle)
	return nil
}

// SetAddress changes the display's I²C address. The change is stored in
// the device's EEPROM and survives power cycles; a botched address may
// require a hardware reset of the display. On success subsequent commands
// on an I²C binding target the new address.
func (d *Dev) SetAddress(addr byte) error {
	if err := d.send(settingCommand, addressCommand, addr); err != nil {
		return err
	}
	if t, ok := d.t.(*i2cTransport); ok {
		t.dev.Addr = uint16(addr)
	}
	d.sleep(initSettle)
	return nil
}

// SetWidth sets the display width in characters. The OpenLCD supports 16
// and 20 column panels. The setting is stored in EEPROM.
func (d *Dev) SetWidth(cols int) error {
	switch cols {
	case 20:
		return d.command(width20Command)
	case 16:
		return d.command(width16Command)
	}
	return fmt.Errorf("serlcd: unsupported width %d", cols)
}

// SetLines sets the number of display lines. The OpenLCD supports 1, 2 and
// 4 line panels. The setting is stored in EEPROM.
func (d *Dev) SetLines(rows int) error {
	switch rows {
	case 4:
		return d.command(lines4Command)
	case 2:
		return d.command(lines2Command)
	case 1:
		return d.command(lines1Command)
	}
	return fmt.Errorf("serlcd: unsupported line count %d", rows)
}

// ToggleSplash enables or disables the power-on splash screen. The setting
// is stored in EEPROM.
func (d *Dev) ToggleSplash() error {
	return d.command(splashToggleCommand)
}

// SaveSplash stores the currently displayed text as the power-on splash
// screen.
func (d *Dev) SaveSplash() error {
	return d.command(splashSaveCommand)
}

// baudCommands maps supported UART rates to their setting opcodes.
var baudCommands = map[int]byte{
	1200:    0x17,
	2400:    0x0B,
	4800:    0x0C,
	9600:    0x0D,
	14400:   0x0E,
	19200:   0x0F,
	38400:   0x10,
	57600:   0x11,
	115200:  0x12,
	230400:  0x13,
	460800:  0x14,
	921600:  0x15,
	1000000: 0x16,
}

// SetSerialBaud changes the baud rate of the display's UART interface. The
// setting is stored in EEPROM and takes effect immediately, so a serial
// binding must be reopened at the new rate afterwards.
func (d *Dev) SetSerialBaud(baud int) error {
	cmd, ok := baudCommands[baud]
	if !ok {
		return fmt.Errorf("serlcd: unsupported baud rate %d", baud)
	}
	return d.command(cmd)
}

// ShowFirmwareVersion makes the display print its OpenLCD firmware
// version.
func (d *Dev) ShowFirmwareVersion() error {
	return d.command(firmwareVersionCommand)
}

// Halt turns the display off. It implements conn.Resource.
func (d *Dev) Halt() error {
	return d.Display(false)
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("serlcd.Dev{%s}", d.t)
}

// scale29 maps a 0-255 channel value onto the 0-29 steps of a legacy
// backlight brightness band.
func scale29(v byte) byte {
	return byte(uint16(v) * 29 / 255)
}

func clampIntensity(i display.Intensity) byte {
	if i < 0 {
		return 0
	}
	if i > 255 {
		return 255
	}
	return byte(i)
}

var _ io.Writer = &Dev{}
var _ display.DisplayRGBBacklight = &Dev{}

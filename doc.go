// Package serlcd controls a SparkFun SerLCD (OpenLCD) character display.
//
// The SerLCD is an AVR-based controller board attached to an HD44780
// compatible character LCD. It accepts commands over I²C, SPI or a plain
// serial byte stream, and drives the panel plus an RGB backlight. Panels of
// 16x2, 20x2 and 20x4 characters are supported.
//
// # Wire Protocol
//
// Plain bytes are printed at the cursor position. Two marker bytes switch
// the firmware into command mode:
//
//	0x7C ('|') - setting command: clear, contrast, backlight, I²C address,
//	             width and line count, splash screen, baud rate, custom
//	             characters
//	0xFE       - special command: a raw HD44780 instruction follows (home,
//	             entry mode, display control, cursor/display shift, DDRAM
//	             address)
//
// The firmware needs a short settle delay after each command; the driver
// inserts them automatically.
//
// # Hardware Connection
//
// Over I²C (Qwiic):
//
//	Display Pin → System Pin
//	GND         → GND
//	RAW         → 3.3V-9V
//	SDA         → I²C SDA
//	SCL         → I²C SCL
//
// The factory I²C address is 0x72. Over SPI, connect SDO/SCK and a chip
// select GPIO; the bus runs at 100kHz Mode0. Over serial, connect RX at
// 9600 baud (factory default).
//
// # Basic Usage
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		"periph.io/x/conn/v3/i2c/i2creg"
//		"periph.io/x/devices/v3/serlcd"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		// Initialize periph.io
//		if _, err := host.Init(); err != nil {
//			log.Fatal(err)
//		}
//
//		// Open the default I²C bus
//		bus, err := i2creg.Open("")
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer bus.Close()
//
//		// Create the device at the factory address
//		dev, err := serlcd.NewI2C(bus, 0)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer dev.Halt()
//
//		dev.SetFastBacklight(0, 128, 255)
//		dev.SetCursor(0, 0)
//		fmt.Fprintf(dev, "Hello, %s!", "world")
//	}
//
// Dev implements io.Writer, so text can be printed with fmt.Fprintf and
// friends. It also implements display.DisplayRGBBacklight from
// periph.io/x/conn/v3/display.
//
// # Error Handling
//
// Every operation returns an error when a transport-level write fails. A
// multi-byte command aborts on the first failed byte; the remaining bytes
// are never sent and there is no retry. The device loses no state on a
// failed command, so the caller can simply reissue it or rebuild the
// device handle.
//
// Note that the cached display-control and entry-mode registers are
// updated in memory before the transmit attempt. After a failed toggle the
// cache is one step ahead of the hardware until the next successful toggle
// retransmits the whole field.
//
// # Concurrency
//
// Dev is not safe for concurrent use. Wrap it in a mutex if multiple
// goroutines share one display.
//
// # Persistent Settings
//
// SetAddress, SetWidth, SetLines, SetSerialBaud, ToggleSplash and
// SaveSplash write to the controller's EEPROM and survive power cycles. A
// misconfigured address or baud rate may require the display's hardware
// reset procedure (RX tied to ground at power-up).
//
// # Datasheet
//
// OpenLCD firmware and command set:
// https://github.com/sparkfun/OpenLCD
package serlcd

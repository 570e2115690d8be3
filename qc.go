// Package qc defines high level interfaces and types for negotiating output
// voltage with a Quick Charge 2.0 power source over the D+/D- lines of a USB
// port.
package qc

import (
	"errors"
	"time"
)

// Level is a voltage level which can be requested from the power source.
type Level uint8

// Levels recognised by a QC 2.0 (and QC 3.0 for Continuous) power source.
const (
	Five   Level = iota // 5V, the default and fallback level
	Nine                // 9V
	Twelve              // 12V
	Twenty              // 20V

	// Continuous is not a voltage. It puts the source into continuous mode
	// where it holds the present voltage and moves it up or down in small
	// steps on each pulse of the data lines.
	Continuous
)

func (l Level) String() string {
	switch l {
	case Five:
		return "5V"
	case Nine:
		return "9V"
	case Twelve:
		return "12V"
	case Twenty:
		return "20V"
	case Continuous:
		return "Continuous"
	default:
		return "INVALID"
	}
}

// Valid returns true if l is one of the defined levels.
func (l Level) Valid() bool {
	return l <= Continuous
}

// Drive is the analog level a data line is driven to.
type Drive uint8

// Data line drive levels. Drive0V6 falls within the 0.325V-2V window that the
// source treats as "high" during detection.
const (
	Drive0V  Drive = iota // 0V
	Drive0V6              // ~0.6V
	Drive3V3              // ~3.3V
)

func (d Drive) String() string {
	switch d {
	case Drive0V:
		return "0V"
	case Drive0V6:
		return "0.6V"
	case Drive3V3:
		return "3.3V"
	default:
		return "INVALID"
	}
}

// LineState is the drive level of both data lines.
type LineState struct {
	DPlus  Drive
	DMinus Drive
}

func (s LineState) String() string {
	return "D+=" + s.DPlus.String() + " D-=" + s.DMinus.String()
}

// Pin identifies a logical line of the port. Mapping of logical pins to
// physical ones is a property of the hardware revision.
type Pin uint8

// Each data line is driven through a resistor network by two outputs: the
// 0V6 output alone gives ~0.6V, both outputs together give ~3.3V.
const (
	PinDPlus0V6 Pin = iota
	PinDPlus3V3
	PinDMinus0V6
	PinDMinus3V3
	PinSelector0 // least significant selector bit
	PinSelector1
	PinSelector2
	PinButtonUp
	PinButtonDown
)

// SelectorPins lists the selector inputs from least to most significant bit.
var SelectorPins = [...]Pin{PinSelector0, PinSelector1, PinSelector2}

func (p Pin) String() string {
	switch p {
	case PinDPlus0V6:
		return "D+0.6V"
	case PinDPlus3V3:
		return "D+3.3V"
	case PinDMinus0V6:
		return "D-0.6V"
	case PinDMinus3V3:
		return "D-3.3V"
	case PinSelector0:
		return "SEL0"
	case PinSelector1:
		return "SEL1"
	case PinSelector2:
		return "SEL2"
	case PinButtonUp:
		return "UP"
	case PinButtonDown:
		return "DOWN"
	default:
		return "INVALID"
	}
}

// Port provides access to the digital lines of the device. Directions and
// pulls are expected to be configured by the time the port is handed over.
//
// Port is only ever used from a single goroutine and implementations need not
// be safe for concurrent use.
type Port interface {

	// Out drives an output pin high or low.
	Out(p Pin, high bool) error

	// In returns the raw level of an input pin. Polarity of the wiring is not
	// normalised at this layer.
	In(p Pin) (bool, error)
}

// Sleeper is the timing primitive used for all holds and poll intervals.
// Sleep must block for at least d.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleeperFunc is an adapter to allow the use of ordinary functions as Sleeper.
type SleeperFunc func(time.Duration)

// Sleep implements Sleeper interface.
func (f SleeperFunc) Sleep(d time.Duration) {
	f(d)
}

// SystemSleeper sleeps using time.Sleep.
var SystemSleeper Sleeper = SleeperFunc(time.Sleep)

var (
	// ErrUnknownPin is returned by a Port when asked for a pin it has no
	// mapping for.
	ErrUnknownPin = errors.New("qc: unknown pin")
)

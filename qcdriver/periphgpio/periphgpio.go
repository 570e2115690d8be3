// Package periphgpio implements GPIO backend for a QC sink on hosts
// supported by periph.io, such as Raspberry Pi.
package periphgpio

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/oxplot/go-qc"
	"github.com/oxplot/go-qc/qcdriver"
)

// ErrPinNotFound is returned by Open when a pin name is not known to the
// periph registry.
var ErrPinNotFound = errors.New("periphgpio: pin not found")

// Line is a single periph GPIO pin.
type Line struct {
	pin gpio.PinIO
}

// Out implements qcdriver.Line interface.
func (l Line) Out(high bool) error {
	return l.pin.Out(gpio.Level(high))
}

// In implements qcdriver.Line interface.
func (l Line) In() (bool, error) {
	return bool(l.pin.Read()), nil
}

// Pins names the periph pins backing each logical pin, e.g. "GPIO17".
type Pins map[qc.Pin]string

// Options controls how pins are configured.
type Options struct {

	// Pull applied to inputs. Switches and buttons pulling to ground need
	// gpio.PullUp.
	Pull gpio.Pull

	// InvertOutputs drives outputs low for a high level, for boards with
	// inverting drivers between the GPIO and the resistor network.
	InvertOutputs bool
}

// Open initializes periph host drivers, then configures and returns a port
// made of the named pins. Outputs are set low, inputs are given the pull in
// opts.
func Open(outputs, inputs Pins, opts Options) (*qcdriver.Port, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periphgpio: host init: %w", err)
	}
	lines := make(map[qc.Pin]qcdriver.Line, len(outputs)+len(inputs))
	for p, name := range outputs {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("%w: %s (%s)", ErrPinNotFound, name, p)
		}
		var l qcdriver.Line = Line{pin}
		if opts.InvertOutputs {
			l = qcdriver.Inverted(l)
		}
		if err := l.Out(false); err != nil {
			return nil, fmt.Errorf("periphgpio: configure %s as output: %w", name, err)
		}
		lines[p] = l
	}
	for p, name := range inputs {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("%w: %s (%s)", ErrPinNotFound, name, p)
		}
		if err := pin.In(opts.Pull, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("periphgpio: configure %s as input: %w", name, err)
		}
		lines[p] = Line{pin}
	}
	return qcdriver.NewPort(lines), nil
}

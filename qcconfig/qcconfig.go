// Package qcconfig describes hardware revisions of a QC sink board: which
// GPIO lines the data line drivers, selector and buttons are wired to, and
// the timings the board runs with.
package qcconfig

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oxplot/go-qc"
	"github.com/oxplot/go-qc/qcinput"
	"github.com/oxplot/go-qc/qcpe"
)

// Revision is the description of a single hardware revision.
type Revision struct {
	Name     string   `yaml:"name"`
	Outputs  Outputs  `yaml:"outputs"`
	Selector Selector `yaml:"selector"`
	Buttons  Buttons  `yaml:"buttons"`
	Timing   Timing   `yaml:"timing"`
}

// Outputs names the four lines driving the data line resistor networks.
type Outputs struct {
	DPlus0V6  string `yaml:"dplus_0v6"`
	DPlus3V3  string `yaml:"dplus_3v3"`
	DMinus0V6 string `yaml:"dminus_0v6"`
	DMinus3V3 string `yaml:"dminus_3v3"`
	Invert    bool   `yaml:"invert"`
}

// Selector describes the voltage selector switch.
type Selector struct {
	// Pins from least to most significant bit.
	Pins      []string `yaml:"pins"`
	ActiveLow bool     `yaml:"active_low"`
	// Codes maps selector codes to level names as accepted by ParseLevel.
	Codes map[uint8]string `yaml:"codes"`
}

// Buttons describes the continuous mode buttons. Both names are empty on
// boards without buttons.
type Buttons struct {
	Up        string `yaml:"up"`
	Down      string `yaml:"down"`
	ActiveLow bool   `yaml:"active_low"`
}

// Timing holds the engine timings of the board.
type Timing struct {
	PollInterval       Duration `yaml:"poll_interval"`
	HoldPollInterval   Duration `yaml:"hold_poll_interval"`
	SettleDelay        Duration `yaml:"settle_delay"`
	ReferenceHold      Duration `yaml:"reference_hold"`
	HandshakeDetect    Duration `yaml:"handshake_detect"`
	HandshakeDischarge Duration `yaml:"handshake_discharge"`
	RepeatThreshold    int      `yaml:"repeat_threshold"`
}

// Duration is a time.Duration written in YAML as a Go duration string such
// as "100ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler interface.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("qcconfig: line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler interface.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Timing limits.
const (
	MinPollInterval       = 50 * time.Millisecond
	MaxPollInterval       = 200 * time.Millisecond
	MinHandshakeDetect    = 1250 * time.Millisecond
	MinHandshakeDischarge = time.Millisecond
)

var (
	// ErrUnknownRevision is returned for revision names that are not built in.
	ErrUnknownRevision = errors.New("qcconfig: unknown revision")

	// ErrUnknownLevel is returned by ParseLevel for unrecognised names.
	ErrUnknownLevel = errors.New("qcconfig: unknown level")

	errMissingOutput      = errors.New("qcconfig: all four output pins must be named")
	errSelectorPins       = errors.New("qcconfig: selector must have 1 to 3 pins")
	errHalfButtons        = errors.New("qcconfig: either both or neither button must be named")
	errContinuousNoButton = errors.New("qcconfig: continuous mode requires buttons")
	errPollInterval       = fmt.Errorf("qcconfig: poll interval must be >= %v & <= %v", MinPollInterval, MaxPollInterval)
	errHandshakeDetect    = fmt.Errorf("qcconfig: handshake detect must be >= %v", MinHandshakeDetect)
	errHandshakeDischarge = fmt.Errorf("qcconfig: handshake discharge must be >= %v", MinHandshakeDischarge)
	errNegativeTiming     = errors.New("qcconfig: timings must not be negative")
	errRepeatThreshold    = errors.New("qcconfig: repeat threshold must be >= 1")
)

var builtins = map[string]Revision{

	// Original board: two position bits, no buttons.
	"a": {
		Name: "a",
		Outputs: Outputs{
			DPlus0V6:  "GPIO22",
			DPlus3V3:  "GPIO23",
			DMinus0V6: "GPIO17",
			DMinus3V3: "GPIO27",
		},
		Selector: Selector{
			Pins:      []string{"GPIO5", "GPIO6"},
			ActiveLow: true,
			Codes:     map[uint8]string{0: "5V", 1: "9V", 2: "12V", 3: "20V"},
		},
		Timing: Timing{
			PollInterval:       Duration(100 * time.Millisecond),
			HoldPollInterval:   Duration(5 * time.Millisecond),
			SettleDelay:        Duration(5 * time.Millisecond),
			ReferenceHold:      Duration(100 * time.Millisecond),
			HandshakeDetect:    Duration(1500 * time.Millisecond),
			HandshakeDischarge: Duration(50 * time.Millisecond),
			RepeatThreshold:    50,
		},
	},

	// Three position bits with continuous mode and up/down buttons.
	"b": {
		Name: "b",
		Outputs: Outputs{
			DPlus0V6:  "GPIO22",
			DPlus3V3:  "GPIO23",
			DMinus0V6: "GPIO17",
			DMinus3V3: "GPIO27",
		},
		Selector: Selector{
			Pins:      []string{"GPIO5", "GPIO6", "GPIO13"},
			ActiveLow: true,
			Codes:     map[uint8]string{0: "5V", 1: "9V", 2: "12V", 3: "20V", 4: "continuous"},
		},
		Buttons: Buttons{
			Up:        "GPIO19",
			Down:      "GPIO26",
			ActiveLow: true,
		},
		Timing: Timing{
			PollInterval:       Duration(50 * time.Millisecond),
			HoldPollInterval:   Duration(5 * time.Millisecond),
			SettleDelay:        Duration(5 * time.Millisecond),
			ReferenceHold:      Duration(100 * time.Millisecond),
			HandshakeDetect:    Duration(1500 * time.Millisecond),
			HandshakeDischarge: Duration(50 * time.Millisecond),
			RepeatThreshold:    50,
		},
	},
}

// DefaultRevision is the name of the revision used when none is given.
const DefaultRevision = "b"

// Names returns the names of the built in revisions.
func Names() []string {
	n := make([]string, 0, len(builtins))
	for k := range builtins {
		n = append(n, k)
	}
	sort.Strings(n)
	return n
}

// Builtin returns a copy of the named built in revision.
func Builtin(name string) (Revision, error) {
	r, ok := builtins[name]
	if !ok {
		return Revision{}, fmt.Errorf("%w: %q", ErrUnknownRevision, name)
	}
	return r.clone(), nil
}

func (r Revision) clone() Revision {
	r.Selector.Pins = append([]string(nil), r.Selector.Pins...)
	codes := make(map[uint8]string, len(r.Selector.Codes))
	for k, v := range r.Selector.Codes {
		codes[k] = v
	}
	r.Selector.Codes = codes
	return r
}

// Parse reads a revision from YAML. The document may name a built in
// revision in "base" (default DefaultRevision) and only list the fields that
// differ from it. Selector codes are merged into the base table. The result
// is validated.
func Parse(data []byte) (Revision, error) {
	var head struct {
		Base string `yaml:"base"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return Revision{}, fmt.Errorf("qcconfig: %w", err)
	}
	if head.Base == "" {
		head.Base = DefaultRevision
	}
	r, err := Builtin(head.Base)
	if err != nil {
		return Revision{}, err
	}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Revision{}, fmt.Errorf("qcconfig: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Revision{}, err
	}
	return r, nil
}

// Load reads a revision from a YAML file. See Parse.
func Load(path string) (Revision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Revision{}, err
	}
	return Parse(data)
}

// ParseLevel returns the level for a name such as "9V", "9" or "continuous".
func ParseLevel(s string) (qc.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "5v", "5":
		return qc.Five, nil
	case "9v", "9":
		return qc.Nine, nil
	case "12v", "12":
		return qc.Twelve, nil
	case "20v", "20":
		return qc.Twenty, nil
	case "continuous", "cont":
		return qc.Continuous, nil
	}
	return qc.Five, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// HasButtons returns true if the revision has continuous mode buttons.
func (r Revision) HasButtons() bool {
	return r.Buttons.Up != "" && r.Buttons.Down != ""
}

// Validate returns an error if the revision is incomplete or its timings are
// outside what the protocol allows.
func (r Revision) Validate() error {
	o := r.Outputs
	if o.DPlus0V6 == "" || o.DPlus3V3 == "" || o.DMinus0V6 == "" || o.DMinus3V3 == "" {
		return errMissingOutput
	}
	if len(r.Selector.Pins) == 0 || len(r.Selector.Pins) > len(qc.SelectorPins) {
		return errSelectorPins
	}
	for i, p := range r.Selector.Pins {
		if p == "" {
			return fmt.Errorf("qcconfig: selector pin %d is not named", i)
		}
	}
	table, err := r.CodeTable()
	if err != nil {
		return err
	}
	if (r.Buttons.Up == "") != (r.Buttons.Down == "") {
		return errHalfButtons
	}
	if !r.HasButtons() {
		for _, l := range table {
			if l == qc.Continuous {
				return errContinuousNoButton
			}
		}
	}

	t := r.Timing
	if d := time.Duration(t.PollInterval); d < MinPollInterval || d > MaxPollInterval {
		return errPollInterval
	}
	if time.Duration(t.HandshakeDetect) < MinHandshakeDetect {
		return errHandshakeDetect
	}
	if time.Duration(t.HandshakeDischarge) < MinHandshakeDischarge {
		return errHandshakeDischarge
	}
	if t.HoldPollInterval < 0 || t.SettleDelay < 0 || t.ReferenceHold < 0 {
		return errNegativeTiming
	}
	if t.RepeatThreshold < 1 {
		return errRepeatThreshold
	}
	return nil
}

// CodeTable returns the selector code table with level names resolved.
func (r Revision) CodeTable() (qcinput.CodeTable, error) {
	maxCode := uint8(1)<<len(r.Selector.Pins) - 1
	t := make(qcinput.CodeTable, len(r.Selector.Codes))
	for c, name := range r.Selector.Codes {
		if c > maxCode {
			return nil, fmt.Errorf("qcconfig: selector code %d needs more than %d pins", c, len(r.Selector.Pins))
		}
		l, err := ParseLevel(name)
		if err != nil {
			return nil, fmt.Errorf("qcconfig: selector code %d: %w", c, err)
		}
		t[c] = l
	}
	return t, nil
}

// OutputPins returns the names of the output lines by logical pin.
func (r Revision) OutputPins() map[qc.Pin]string {
	return map[qc.Pin]string{
		qc.PinDPlus0V6:  r.Outputs.DPlus0V6,
		qc.PinDPlus3V3:  r.Outputs.DPlus3V3,
		qc.PinDMinus0V6: r.Outputs.DMinus0V6,
		qc.PinDMinus3V3: r.Outputs.DMinus3V3,
	}
}

// InputPins returns the names of the input lines by logical pin.
func (r Revision) InputPins() map[qc.Pin]string {
	m := make(map[qc.Pin]string, len(r.Selector.Pins)+2)
	for i, name := range r.Selector.Pins {
		m[qc.SelectorPins[i]] = name
	}
	if r.HasButtons() {
		m[qc.PinButtonUp] = r.Buttons.Up
		m[qc.PinButtonDown] = r.Buttons.Down
	}
	return m
}

// SelectorPins returns the logical selector pins in use, least significant
// first.
func (r Revision) SelectorPins() []qc.Pin {
	return qc.SelectorPins[:len(r.Selector.Pins)]
}

// EngineConfig returns the engine timings of the revision.
func (r Revision) EngineConfig() qcpe.Config {
	t := r.Timing
	return qcpe.Config{
		PollInterval:       time.Duration(t.PollInterval),
		HoldPollInterval:   time.Duration(t.HoldPollInterval),
		SettleDelay:        time.Duration(t.SettleDelay),
		ReferenceHold:      time.Duration(t.ReferenceHold),
		HandshakeDetect:    time.Duration(t.HandshakeDetect),
		HandshakeDischarge: time.Duration(t.HandshakeDischarge),
		RepeatThreshold:    t.RepeatThreshold,
	}
}

package qcpe

import (
	"github.com/oxplot/go-qc"
	"github.com/oxplot/go-qc/qcinput"
)

// adjuster steps the voltage in continuous mode in response to the buttons.
type adjuster struct {
	e       *Engine
	buttons qcinput.ButtonReader
	hold    [2]int // consecutive held reads per button since the last step
}

// tick services the buttons until none is held. A button fires a step on
// the read it is first seen pressed, and again every RepeatThreshold reads
// while it stays pressed. Both buttons pressed together fire nothing.
func (a *adjuster) tick() error {
	cur := stateIdle
	for {
		up := a.buttons.Pressed(qcinput.ButtonUp)
		down := a.buttons.Pressed(qcinput.ButtonDown)

		next, err := cur.Process(a, up, down)
		for err == nil && next != nil {
			cur = next
			next = nil
			if cur.Enter != nil {
				next, err = cur.Enter(a)
			}
		}
		if err != nil {
			return err
		}
		if cur == stateIdle {
			return nil
		}
		a.e.sleeper.Sleep(a.e.cfg.HoldPollInterval)
	}
}

// pulse briefly drives the encoding of l and returns to continuous mode's.
func (a *adjuster) pulse(l qc.Level) error {
	if err := a.e.apply(l); err != nil {
		return err
	}
	a.e.sleeper.Sleep(a.e.cfg.SettleDelay)
	if err := a.e.apply(qc.Continuous); err != nil {
		return err
	}
	a.e.sleeper.Sleep(a.e.cfg.SettleDelay)
	return nil
}

func (a *adjuster) stepUp() error {
	if err := a.pulse(qc.Twenty); err != nil {
		return err
	}
	a.e.notifyEvent(EventStepUp, qc.Continuous)
	return nil
}

func (a *adjuster) stepDown() error {
	if err := a.pulse(qc.Twelve); err != nil {
		return err
	}
	a.e.notifyEvent(EventStepDown, qc.Continuous)
	return nil
}

// repeat counts a held read of b and fires step once the threshold is
// reached.
func (a *adjuster) repeat(b qcinput.Button, step func() error) error {
	a.hold[b]++
	if a.hold[b] < a.e.cfg.RepeatThreshold {
		return nil
	}
	a.hold[b] = 0
	return step()
}

// state represents a state of the continuous mode adjuster.
type state struct {
	Name string

	// Enter runs actions on entering the state. It may be nil. A non-nil
	// next state is entered immediately.
	Enter func(a *adjuster) (next *state, err error)

	// Process is called on every read of the buttons while in this state.
	Process func(a *adjuster, up, down bool) (next *state, err error)
}

var (
	stateIdle         *state
	stateIncrementing *state
	stateDecrementing *state
)

func init() {

	// Initializing is done here to avoid circular references between states
	// which are not allowed at the package level variable assignments.

	stateIdle = &state{
		Name: "idle",
		Enter: func(a *adjuster) (*state, error) {
			a.hold = [2]int{}
			return nil, nil
		},
		Process: func(a *adjuster, up, down bool) (*state, error) {
			switch {
			case up && !down:
				return stateIncrementing, nil
			case down && !up:
				return stateDecrementing, nil
			}
			return nil, nil
		},
	}

	stateIncrementing = &state{
		Name: "incrementing",
		Enter: func(a *adjuster) (*state, error) {
			a.hold[qcinput.ButtonUp] = 0
			return nil, a.stepUp()
		},
		Process: func(a *adjuster, up, down bool) (*state, error) {
			if !up || down {
				return stateIdle, nil
			}
			return nil, a.repeat(qcinput.ButtonUp, a.stepUp)
		},
	}

	stateDecrementing = &state{
		Name: "decrementing",
		Enter: func(a *adjuster) (*state, error) {
			a.hold[qcinput.ButtonDown] = 0
			return nil, a.stepDown()
		},
		Process: func(a *adjuster, up, down bool) (*state, error) {
			if !down || up {
				return stateIdle, nil
			}
			return nil, a.repeat(qcinput.ButtonDown, a.stepDown)
		},
	}

}

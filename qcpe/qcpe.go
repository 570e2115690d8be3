// Package qcpe provides an implementation of the Quick Charge 2.0 sink
// negotiation engine: the power-up handshake, selection of discrete levels
// and stepping of the voltage in continuous mode.
package qcpe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oxplot/go-qc"
	"github.com/oxplot/go-qc/qcinput"
	"github.com/oxplot/go-qc/qcline"
)

// Config holds the timings of the engine. Zero fields take the value from
// DefaultConfig.
type Config struct {

	// Interval between selector reads.
	PollInterval time.Duration

	// Interval between button reads while a button is held in continuous
	// mode.
	HoldPollInterval time.Duration

	// Wait after each write of a continuous mode pulse.
	SettleDelay time.Duration

	// Time 5V is held for when entering or leaving continuous mode.
	ReferenceHold time.Duration

	// Time D+ is held at 0.6V for the source to detect a QC sink. Must be at
	// least 1.25s.
	HandshakeDetect time.Duration

	// Time D- is held discharged after detection.
	HandshakeDischarge time.Duration

	// Number of held button reads after which a held button fires again.
	RepeatThreshold int
}

// DefaultConfig has the timings of the original board.
var DefaultConfig = Config{
	PollInterval:       100 * time.Millisecond,
	HoldPollInterval:   5 * time.Millisecond,
	SettleDelay:        5 * time.Millisecond,
	ReferenceHold:      100 * time.Millisecond,
	HandshakeDetect:    1500 * time.Millisecond,
	HandshakeDischarge: 50 * time.Millisecond,
	RepeatThreshold:    50,
}

func (c Config) withDefaults() Config {
	d := DefaultConfig
	if c.PollInterval == 0 {
		c.PollInterval = d.PollInterval
	}
	if c.HoldPollInterval == 0 {
		c.HoldPollInterval = d.HoldPollInterval
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = d.SettleDelay
	}
	if c.ReferenceHold == 0 {
		c.ReferenceHold = d.ReferenceHold
	}
	if c.HandshakeDetect == 0 {
		c.HandshakeDetect = d.HandshakeDetect
	}
	if c.HandshakeDischarge == 0 {
		c.HandshakeDischarge = d.HandshakeDischarge
	}
	if c.RepeatThreshold == 0 {
		c.RepeatThreshold = d.RepeatThreshold
	}
	return c
}

// LevelReader is an interface that wraps the method Read.
type LevelReader interface {
	// Read returns the level currently requested by the user.
	Read() qc.Level
}

// LevelReaderFunc is an adapter to allow the use of ordinary functions as
// LevelReader.
type LevelReaderFunc func() qc.Level

// Read implements LevelReader interface.
func (f LevelReaderFunc) Read() qc.Level {
	return f()
}

// Event is an engine event, delivered to the event handler along with the
// level it concerns.
type Event string

const (
	// EventHandshakeStarted is fired when D+ starts being held for detection.
	EventHandshakeStarted Event = "handshake_started"

	// EventHandshakeDone is fired once the handshake is complete and the
	// source accepts voltage requests.
	EventHandshakeDone Event = "handshake_done"

	// EventApplied is fired after a level's encoding is written to the lines.
	// This includes the intermediate writes of transitions and pulses.
	EventApplied Event = "applied"

	// EventStepUp is fired after a complete continuous mode increment pulse.
	EventStepUp Event = "step_up"

	// EventStepDown is fired after a complete continuous mode decrement pulse.
	EventStepDown Event = "step_down"
)

// EventHandler is an interface that wraps the method HandleEvent.
type EventHandler interface {
	// HandleEvent is called synchronously from the engine loop and must
	// return quickly.
	HandleEvent(Event, qc.Level)
}

// EventHandlerFunc is an adapter to allow the use of ordinary functions as
// EventHandler.
type EventHandlerFunc func(Event, qc.Level)

// HandleEvent implements EventHandler interface.
func (f EventHandlerFunc) HandleEvent(e Event, l qc.Level) {
	f(e, l)
}

var errNotInitialized = errors.New("qcpe: engine is not initialized")

// Engine negotiates the output voltage of a QC 2.0 source. It uses polling
// for all inputs and blocks the calling goroutine for all holds.
type Engine struct {
	enc     *qcline.Encoder
	sel     LevelReader
	sleeper qc.Sleeper
	cfg     Config
	adj     adjuster

	initialized bool
	requested   qc.Level // last level read from the selector
	applied     qc.Level // last level written to the lines

	callbacks struct {
		mu           sync.Mutex
		eventHandler EventHandler
	}
}

// New creates an engine driving port. Selector provides the requested level
// and buttons are only read while in continuous mode; a nil buttons reader
// means there are no buttons.
func New(port qc.Port, selector LevelReader, buttons qcinput.ButtonReader, s qc.Sleeper, cfg Config) *Engine {
	if buttons == nil {
		buttons = qcinput.NoButtons{}
	}
	if s == nil {
		s = qc.SystemSleeper
	}
	e := &Engine{
		enc:     qcline.New(port),
		sel:     selector,
		sleeper: s,
		cfg:     cfg.withDefaults(),
	}
	e.adj = adjuster{e: e, buttons: buttons}
	return e
}

// SetEventHandler sets the event handler to send events to. Pass nil to
// remove the existing handler.
func (e *Engine) SetEventHandler(h EventHandler) {
	e.callbacks.mu.Lock()
	e.callbacks.eventHandler = h
	e.callbacks.mu.Unlock()
}

func (e *Engine) notifyEvent(ev Event, l qc.Level) {
	e.callbacks.mu.Lock()
	defer e.callbacks.mu.Unlock()
	if e.callbacks.eventHandler != nil {
		e.callbacks.eventHandler.HandleEvent(ev, l)
	}
}

// Config returns the effective configuration of the engine.
func (e *Engine) Config() Config {
	return e.cfg
}

// Level returns the level last written to the lines.
func (e *Engine) Level() qc.Level {
	return e.applied
}

// Requested returns the level last read from the selector.
func (e *Engine) Requested() qc.Level {
	return e.requested
}

// Handshake performs the detection sequence a source requires before it
// honours any voltage request: D+ is held at 0.6V with D- at 0V, then D- is
// held discharged while D+ stays up.
func (e *Engine) Handshake() error {
	e.notifyEvent(EventHandshakeStarted, qc.Five)
	if err := e.enc.Drive(qc.LineState{DPlus: qc.Drive0V6, DMinus: qc.Drive0V}); err != nil {
		return fmt.Errorf("qcpe: handshake: %w", err)
	}
	e.sleeper.Sleep(e.cfg.HandshakeDetect)
	if err := e.enc.DriveDMinus(qc.Drive0V); err != nil {
		return fmt.Errorf("qcpe: handshake: %w", err)
	}
	e.sleeper.Sleep(e.cfg.HandshakeDischarge)
	e.notifyEvent(EventHandshakeDone, qc.Five)
	return nil
}

// Init performs the handshake and applies the level read from the selector.
// It must be called once before Poll.
func (e *Engine) Init() error {
	if err := e.Handshake(); err != nil {
		return err
	}
	l := e.sel.Read()
	e.requested = l
	if err := e.apply(l); err != nil {
		return err
	}
	e.applied = l
	e.initialized = true
	return nil
}

// Poll reads the selector once and applies any change. While in continuous
// mode, it then services the buttons, blocking for as long as one is held.
func (e *Engine) Poll() error {
	if !e.initialized {
		return errNotInitialized
	}
	l := e.sel.Read()
	e.requested = l
	if l != e.applied {
		if err := e.transition(e.applied, l); err != nil {
			return err
		}
		e.applied = l
	}
	if e.applied == qc.Continuous {
		return e.adj.tick()
	}
	return nil
}

// Run initializes the engine if needed, then polls until ctx is done or the
// port fails. Only one call to Run must be in progress at any given time.
func (e *Engine) Run(ctx context.Context) error {
	if !e.initialized {
		if err := e.Init(); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e.sleeper.Sleep(e.cfg.PollInterval)
		if err := e.Poll(); err != nil {
			return err
		}
	}
}

// transition moves the lines from one level to another. Continuous mode is
// only ever entered or left through 5V.
func (e *Engine) transition(from, to qc.Level) error {
	if from == qc.Continuous || to == qc.Continuous {
		if err := e.apply(qc.Five); err != nil {
			return err
		}
		e.sleeper.Sleep(e.cfg.ReferenceHold)
	}
	return e.apply(to)
}

func (e *Engine) apply(l qc.Level) error {
	if err := e.enc.Apply(l); err != nil {
		return fmt.Errorf("qcpe: apply %s: %w", l, err)
	}
	e.notifyEvent(EventApplied, l)
	return nil
}

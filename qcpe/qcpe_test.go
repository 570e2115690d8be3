package qcpe

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/oxplot/go-qc"
	"github.com/oxplot/go-qc/qcdriver/sim"
	"github.com/oxplot/go-qc/qcinput"
	"github.com/oxplot/go-qc/qcline"
)

var testConfig = Config{
	PollInterval:       100 * time.Millisecond,
	HoldPollInterval:   5 * time.Millisecond,
	SettleDelay:        7 * time.Millisecond,
	ReferenceHold:      110 * time.Millisecond,
	HandshakeDetect:    1500 * time.Millisecond,
	HandshakeDischarge: 50 * time.Millisecond,
	RepeatThreshold:    50,
}

type recorder struct {
	events  []Event
	applied []qc.Level
}

func (r *recorder) HandleEvent(e Event, l qc.Level) {
	r.events = append(r.events, e)
	if e == EventApplied {
		r.applied = append(r.applied, l)
	}
}

func (r *recorder) count(e Event) int {
	n := 0
	for _, v := range r.events {
		if v == e {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.events = nil
	r.applied = nil
}

type rig struct {
	port   *sim.Port
	level  qc.Level // level the selector reads
	sleeps []time.Duration
	rec    *recorder
	pe     *Engine
}

func newRig(initial qc.Level) *rig {
	r := &rig{port: sim.New(), level: initial, rec: &recorder{}}
	sel := LevelReaderFunc(func() qc.Level { return r.level })
	sleeper := qc.SleeperFunc(func(d time.Duration) { r.sleeps = append(r.sleeps, d) })
	r.pe = New(r.port, sel, qcinput.NewButtons(r.port, false), sleeper, testConfig)
	r.pe.SetEventHandler(r.rec)
	return r
}

func (r *rig) init(t *testing.T) {
	t.Helper()
	if err := r.pe.Init(); err != nil {
		t.Fatalf("Init() err=%v", err)
	}
}

func (r *rig) poll(t *testing.T) {
	t.Helper()
	if err := r.pe.Poll(); err != nil {
		t.Fatalf("Poll() err=%v", err)
	}
}

// hold scripts b to read pressed for n reads, then released.
func (r *rig) hold(b qc.Pin, n int) {
	s := make([]bool, n+1)
	for i := 0; i < n; i++ {
		s[i] = true
	}
	r.port.Script(b, s...)
}

func TestHandshake(t *testing.T) {
	p := sim.New()
	var states []qc.LineState
	var sleeps []time.Duration
	sleeper := qc.SleeperFunc(func(d time.Duration) {
		states = append(states, p.LineState())
		sleeps = append(sleeps, d)
	})
	pe := New(p, LevelReaderFunc(func() qc.Level { return qc.Five }), nil, sleeper, Config{})
	if err := pe.Handshake(); err != nil {
		t.Fatalf("Handshake() err=%v", err)
	}
	if len(sleeps) != 2 {
		t.Fatalf("handshake slept %d times, want 2", len(sleeps))
	}
	if sleeps[0] < 1250*time.Millisecond {
		t.Errorf("detection hold %v is shorter than 1.25s", sleeps[0])
	}
	if sleeps[1] < time.Millisecond {
		t.Errorf("discharge hold %v is shorter than 1ms", sleeps[1])
	}
	want := qc.LineState{DPlus: qc.Drive0V6, DMinus: qc.Drive0V}
	for i, s := range states {
		if s != want {
			t.Errorf("lines during hold %d are %s, want %s", i, s, want)
		}
	}
}

func TestInitAppliesSelectorOnce(t *testing.T) {
	r := newRig(qc.Nine)
	r.init(t)

	if !reflect.DeepEqual(r.rec.applied, []qc.Level{qc.Nine}) {
		t.Fatalf("applied %v, want [9V]", r.rec.applied)
	}
	if got := r.rec.events[:2]; !reflect.DeepEqual(got, []Event{EventHandshakeStarted, EventHandshakeDone}) {
		t.Fatalf("first events %v, want handshake", got)
	}
	want := qc.LineState{DPlus: qc.Drive3V3, DMinus: qc.Drive0V6}
	if got := r.port.LineState(); got != want {
		t.Fatalf("lines are %s, want %s", got, want)
	}
	if r.pe.Level() != qc.Nine || r.pe.Requested() != qc.Nine {
		t.Fatalf("Level()=%s Requested()=%s", r.pe.Level(), r.pe.Requested())
	}
}

func TestPollUnchangedSelectorDoesNotWrite(t *testing.T) {
	r := newRig(qc.Twelve)
	r.init(t)
	r.port.Reset()
	r.rec.reset()
	for i := 0; i < 5; i++ {
		r.poll(t)
	}
	if n := len(r.port.Writes()); n != 0 {
		t.Fatalf("%d writes on unchanged selector", n)
	}
	if len(r.rec.applied) != 0 {
		t.Fatalf("applied %v on unchanged selector", r.rec.applied)
	}
}

func TestApplySameLevelTwice(t *testing.T) {
	p := sim.New()
	e := qcline.New(p)
	if err := e.Apply(qc.Twenty); err != nil {
		t.Fatal(err)
	}
	first := p.Writes()
	p.Reset()
	if err := e.Apply(qc.Twenty); err != nil {
		t.Fatal(err)
	}
	if second := p.Writes(); !reflect.DeepEqual(first, second) {
		t.Fatalf("second apply wrote %v, first wrote %v", second, first)
	}
}

func TestTransitions(t *testing.T) {
	cases := []struct {
		name     string
		from, to qc.Level
		want     []qc.Level
	}{
		{"discrete", qc.Nine, qc.Twenty, []qc.Level{qc.Twenty}},
		{"discrete down", qc.Twenty, qc.Five, []qc.Level{qc.Five}},
		{"enter continuous", qc.Twelve, qc.Continuous, []qc.Level{qc.Five, qc.Continuous}},
		{"enter continuous from 5V", qc.Five, qc.Continuous, []qc.Level{qc.Five, qc.Continuous}},
		{"leave continuous", qc.Continuous, qc.Nine, []qc.Level{qc.Five, qc.Nine}},
		{"leave continuous to 5V", qc.Continuous, qc.Five, []qc.Level{qc.Five, qc.Five}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := newRig(c.from)
			r.init(t)
			r.rec.reset()
			r.sleeps = nil
			r.level = c.to
			r.poll(t)
			if !reflect.DeepEqual(r.rec.applied, c.want) {
				t.Fatalf("applied %v, want %v", r.rec.applied, c.want)
			}
			if got, want := r.port.LineState(), qcline.Encode(c.to); got != want {
				t.Fatalf("lines are %s, want %s", got, want)
			}
			if len(c.want) == 2 && (len(r.sleeps) == 0 || r.sleeps[0] != testConfig.ReferenceHold) {
				t.Fatalf("5V was not held before the target, sleeps %v", r.sleeps)
			}
			if r.pe.Level() != c.to {
				t.Fatalf("Level() = %s, want %s", r.pe.Level(), c.to)
			}
		})
	}
}

func TestScenarioTwelveToContinuous(t *testing.T) {
	r := newRig(qc.Twelve)
	r.init(t)
	r.level = qc.Continuous
	r.poll(t)
	want := []qc.Level{qc.Twelve, qc.Five, qc.Continuous}
	if !reflect.DeepEqual(r.rec.applied, want) {
		t.Fatalf("applied %v, want %v", r.rec.applied, want)
	}
}

func TestAutorepeat(t *testing.T) {
	cases := []struct {
		held  int
		steps int
	}{
		{1, 1},
		{49, 1},
		{50, 1},
		{51, 2},
		{100, 2},
		{101, 3},
		{300, 6},
	}
	for _, c := range cases {
		for _, b := range []qc.Pin{qc.PinButtonUp, qc.PinButtonDown} {
			r := newRig(qc.Continuous)
			r.init(t)
			r.rec.reset()
			r.hold(b, c.held)
			r.poll(t)
			ev := EventStepUp
			if b == qc.PinButtonDown {
				ev = EventStepDown
			}
			if n := r.rec.count(ev); n != c.steps {
				t.Errorf("%s held %d reads: %d steps, want %d", b, c.held, n, c.steps)
			}
			if got := r.port.Reads(b); got != c.held+1 {
				t.Errorf("%s held %d reads: read %d times, want %d", b, c.held, got, c.held+1)
			}
		}
	}
}

func TestScenarioHoldUpInContinuous(t *testing.T) {
	r := newRig(qc.Continuous)
	r.init(t)
	r.rec.reset()
	r.hold(qc.PinButtonUp, 300)
	r.poll(t)

	var want []qc.Level
	for i := 0; i < 6; i++ {
		want = append(want, qc.Twenty, qc.Continuous)
	}
	if !reflect.DeepEqual(r.rec.applied, want) {
		t.Fatalf("applied %v, want %v", r.rec.applied, want)
	}
	if got, want := r.port.LineState(), qcline.Encode(qc.Continuous); got != want {
		t.Fatalf("lines are %s after release, want %s", got, want)
	}
}

func TestDecrementPulsesTwelve(t *testing.T) {
	r := newRig(qc.Continuous)
	r.init(t)
	r.rec.reset()
	r.sleeps = nil
	r.hold(qc.PinButtonDown, 1)
	r.poll(t)
	if want := []qc.Level{qc.Twelve, qc.Continuous}; !reflect.DeepEqual(r.rec.applied, want) {
		t.Fatalf("applied %v, want %v", r.rec.applied, want)
	}
	if want := []time.Duration{testConfig.SettleDelay, testConfig.SettleDelay, testConfig.HoldPollInterval}; !reflect.DeepEqual(r.sleeps, want) {
		t.Fatalf("slept %v, want %v", r.sleeps, want)
	}
}

func TestBothButtonsPressedIsNoop(t *testing.T) {
	r := newRig(qc.Continuous)
	r.init(t)
	r.rec.reset()
	r.port.Script(qc.PinButtonUp, true, true, false)
	r.port.Script(qc.PinButtonDown, true, true, false)
	r.poll(t)
	r.poll(t)
	if len(r.rec.events) != 0 {
		t.Fatalf("events %v with both buttons pressed", r.rec.events)
	}
}

func TestSecondButtonStopsRepeat(t *testing.T) {
	r := newRig(qc.Continuous)
	r.init(t)
	r.rec.reset()
	up := make([]bool, 120)
	down := make([]bool, 120)
	for i := range up {
		up[i] = i < 100
		down[i] = i >= 30 && i < 100
	}
	r.port.Script(qc.PinButtonUp, up...)
	r.port.Script(qc.PinButtonDown, down...)
	r.poll(t)
	if n := r.rec.count(EventStepUp); n != 1 {
		t.Fatalf("%d steps up, want 1", n)
	}
	if n := r.rec.count(EventStepDown); n != 0 {
		t.Fatalf("%d steps down, want 0", n)
	}
}

func TestButtonsIgnoredOutsideContinuous(t *testing.T) {
	r := newRig(qc.Nine)
	r.init(t)
	r.rec.reset()
	r.port.SetInput(qc.PinButtonUp, true)
	r.poll(t)
	if len(r.rec.events) != 0 || r.port.Reads(qc.PinButtonUp) != 0 {
		t.Fatalf("buttons serviced outside continuous mode")
	}
}

func TestLeavingContinuousStopsButtons(t *testing.T) {
	r := newRig(qc.Continuous)
	r.init(t)
	r.level = qc.Twenty
	r.port.SetInput(qc.PinButtonUp, true)
	r.rec.reset()
	r.poll(t)
	if want := []qc.Level{qc.Five, qc.Twenty}; !reflect.DeepEqual(r.rec.applied, want) {
		t.Fatalf("applied %v, want %v", r.rec.applied, want)
	}
}

func TestPollBeforeInit(t *testing.T) {
	r := newRig(qc.Five)
	if err := r.pe.Poll(); !errors.Is(err, errNotInitialized) {
		t.Fatalf("Poll() err=%v, want %v", err, errNotInitialized)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	p := sim.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	polls := 0
	sleeper := qc.SleeperFunc(func(d time.Duration) {
		if d == testConfig.PollInterval {
			polls++
			if polls == 3 {
				cancel()
			}
		}
	})
	levels := []qc.Level{qc.Five, qc.Nine, qc.Twenty, qc.Twelve}
	reads := 0
	sel := LevelReaderFunc(func() qc.Level {
		l := levels[reads%len(levels)]
		reads++
		return l
	})
	rec := &recorder{}
	pe := New(p, sel, nil, sleeper, testConfig)
	pe.SetEventHandler(rec)
	if err := pe.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() err=%v, want context.Canceled", err)
	}
	if want := []qc.Level{qc.Five, qc.Nine, qc.Twenty, qc.Twelve}; !reflect.DeepEqual(rec.applied, want) {
		t.Fatalf("applied %v, want %v", rec.applied, want)
	}
}

type brokenPort struct{ *sim.Port }

var errBroken = errors.New("broken")

func (brokenPort) Out(qc.Pin, bool) error { return errBroken }

func TestPortErrorsPropagate(t *testing.T) {
	pe := New(brokenPort{sim.New()}, LevelReaderFunc(func() qc.Level { return qc.Nine }), nil, qc.SleeperFunc(func(time.Duration) {}), testConfig)
	if err := pe.Init(); !errors.Is(err, errBroken) {
		t.Fatalf("Init() err=%v, want %v", err, errBroken)
	}
	if err := pe.Run(context.Background()); !errors.Is(err, errBroken) {
		t.Fatalf("Run() err=%v, want %v", err, errBroken)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{PollInterval: 60 * time.Millisecond}.withDefaults()
	if c.PollInterval != 60*time.Millisecond {
		t.Fatalf("PollInterval overwritten: %v", c.PollInterval)
	}
	c.PollInterval = DefaultConfig.PollInterval
	if c != DefaultConfig {
		t.Fatalf("defaults %+v, want %+v", c, DefaultConfig)
	}
}

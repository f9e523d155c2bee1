package autoclicker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	start time.Time
	now   time.Time
	// onSleep runs after every advance with the elapsed time since start.
	onSleep func(elapsed time.Duration)
}

func newFakeClock() *fakeClock {
	start := time.Unix(1700000000, 0)
	return &fakeClock{start: start, now: start}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	if c.onSleep != nil {
		c.onSleep(c.elapsed())
	}
}

func (c *fakeClock) elapsed() time.Duration {
	return c.now.Sub(c.start)
}

type scriptedEvent struct {
	at   time.Duration
	kind TriggerKind
	err  error
}

type scriptedSource struct {
	path   string
	clock  *fakeClock
	script []scriptedEvent
	polls  int
}

func (s *scriptedSource) Path() string {
	return s.path
}

func (s *scriptedSource) Poll(KeyMap) (TriggerKind, error) {
	s.polls++
	if len(s.script) == 0 || s.script[0].at > s.clock.elapsed() {
		return TriggerNone, nil
	}
	next := s.script[0]
	s.script = s.script[1:]
	return next.kind, next.err
}

type recordingEmitter struct {
	mu         sync.Mutex
	clock      *fakeClock
	clicks     []time.Duration
	buttons    []Button
	attempts   int
	failFirst  int
	dispatches int
	closed     bool
}

func (e *recordingEmitter) Click(button Button) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts++
	if e.attempts <= e.failFirst {
		return errors.New("compositor went away")
	}
	e.clicks = append(e.clicks, e.clock.elapsed())
	e.buttons = append(e.buttons, button)
	return nil
}

func (e *recordingEmitter) DispatchPending() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dispatches++
	return nil
}

func (e *recordingEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type countingLogger struct {
	noopLogger
	warns []string
}

func (l *countingLogger) Warn(msg string, _ ...any) {
	l.warns = append(l.warns, msg)
}

func testSchedulerConfig(t *testing.T, clock *fakeClock, cps float64, mode Mode) Config {
	t.Helper()
	schedule, err := NewSchedule(cps, ButtonLeft)
	if err != nil {
		t.Fatalf("NewSchedule() error = %v", err)
	}
	return Config{
		Schedule: schedule,
		Mode:     mode,
		Quantum:  time.Millisecond,
		Now:      clock.Now,
		Sleep:    clock.Sleep,
	}
}

// stopAfter cancels the returned context once the fake clock passes d.
func stopAfter(clock *fakeClock, d time.Duration) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	clock.onSleep = func(elapsed time.Duration) {
		if elapsed >= d {
			cancel()
		}
	}
	return ctx
}

func TestNewSchedulerValidates(t *testing.T) {
	clock := newFakeClock()
	cfg := testSchedulerConfig(t, clock, 10, ModeHold)
	src := &scriptedSource{path: "kbd", clock: clock}
	emitter := &recordingEmitter{clock: clock}

	if _, err := NewScheduler(cfg, testKeys, nil, emitter, noopLogger{}); err == nil {
		t.Fatalf("expected error without sources")
	}
	if _, err := NewScheduler(cfg, testKeys, []Source{src}, nil, noopLogger{}); err == nil {
		t.Fatalf("expected error without emitter")
	}
	if _, err := NewScheduler(cfg, KeyMap{TriggerCode: 1, TerminateCode: 1}, []Source{src}, emitter, noopLogger{}); err == nil {
		t.Fatalf("expected error for identical trigger and terminate keys")
	}
	if _, err := NewScheduler(Config{}, testKeys, []Source{src}, emitter, noopLogger{}); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestHoldScenarioClicksOnlyWhileHeld(t *testing.T) {
	clock := newFakeClock()
	src := &scriptedSource{path: "kbd", clock: clock, script: []scriptedEvent{
		{at: 0, kind: TriggerPressed},
		{at: 1200 * time.Millisecond, kind: TriggerReleased},
	}}
	emitter := &recordingEmitter{clock: clock}

	scheduler, err := NewScheduler(testSchedulerConfig(t, clock, 5, ModeHold), testKeys, []Source{src}, emitter, noopLogger{})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	reason, err := scheduler.Run(stopAfter(clock, 3*time.Second))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reason != StopInterrupted {
		t.Fatalf("Run() reason = %v, want %v", reason, StopInterrupted)
	}

	want := []time.Duration{0, 200 * time.Millisecond, 400 * time.Millisecond, 600 * time.Millisecond, 800 * time.Millisecond, 1000 * time.Millisecond}
	if len(emitter.clicks) != len(want) {
		t.Fatalf("clicks = %v, want %v", emitter.clicks, want)
	}
	for i := range want {
		if emitter.clicks[i] != want[i] {
			t.Fatalf("click %d at %v, want %v", i, emitter.clicks[i], want[i])
		}
		if emitter.buttons[i] != ButtonLeft {
			t.Fatalf("click %d button = %v, want left", i, emitter.buttons[i])
		}
	}
	if scheduler.Active() {
		t.Fatalf("expected inactive after release")
	}
	if scheduler.ClickCount() != int64(len(want)) {
		t.Fatalf("ClickCount() = %d, want %d", scheduler.ClickCount(), len(want))
	}
}

func TestClickRateStaysWithinOneInterval(t *testing.T) {
	for _, cps := range []float64{3, 7, 10, 33, 250} {
		clock := newFakeClock()
		src := &scriptedSource{path: "kbd", clock: clock, script: []scriptedEvent{{at: 0, kind: TriggerPressed}}}
		emitter := &recordingEmitter{clock: clock}
		cfg := testSchedulerConfig(t, clock, cps, ModeToggle)

		scheduler, err := NewScheduler(cfg, testKeys, []Source{src}, emitter, noopLogger{})
		if err != nil {
			t.Fatalf("NewScheduler() error = %v", err)
		}

		duration := 2 * time.Second
		if _, err := scheduler.Run(stopAfter(clock, duration)); err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		expected := int(duration / cfg.Schedule.Interval)
		got := len(emitter.clicks)
		if got < expected-1 || got > expected+1 {
			t.Fatalf("cps=%v: clicks = %d, want %d±1", cps, got, expected)
		}
		for i := 1; i < got; i++ {
			if gap := emitter.clicks[i] - emitter.clicks[i-1]; gap < cfg.Schedule.Interval {
				t.Fatalf("cps=%v: gap %v shorter than interval %v", cps, gap, cfg.Schedule.Interval)
			}
		}
	}
}

func TestTerminateKeyStopsLoop(t *testing.T) {
	clock := newFakeClock()
	src := &scriptedSource{path: "kbd", clock: clock, script: []scriptedEvent{
		{at: 0, kind: TriggerPressed},
		{at: 50 * time.Millisecond, kind: TerminatePressed},
	}}
	emitter := &recordingEmitter{clock: clock}

	scheduler, err := NewScheduler(testSchedulerConfig(t, clock, 100, ModeHold), testKeys, []Source{src}, emitter, noopLogger{})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	reason, err := scheduler.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reason != StopTerminateKey {
		t.Fatalf("Run() reason = %v, want %v", reason, StopTerminateKey)
	}
	if clock.elapsed() != 50*time.Millisecond {
		t.Fatalf("stopped at %v, want 50ms", clock.elapsed())
	}
	if emitter.closed {
		t.Fatalf("scheduler must not close the emitter it does not own")
	}
}

func TestStopSignalIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	src := &scriptedSource{path: "kbd", clock: clock}
	emitter := &recordingEmitter{clock: clock}

	scheduler, err := NewScheduler(testSchedulerConfig(t, clock, 10, ModeHold), testKeys, []Source{src}, emitter, noopLogger{})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	clock.onSleep = func(elapsed time.Duration) {
		if elapsed >= 10*time.Millisecond {
			cancel()
			cancel()
		}
	}

	reason, err := scheduler.Run(ctx)
	if err != nil || reason != StopInterrupted {
		t.Fatalf("Run() = %v, %v; want %v, nil", reason, err, StopInterrupted)
	}
	if src.polls != 10 {
		t.Fatalf("polls = %d, want 10", src.polls)
	}

	cancel()
	pollsBefore := src.polls
	reason, err = scheduler.Run(ctx)
	if err != nil || reason != StopInterrupted {
		t.Fatalf("second Run() = %v, %v; want %v, nil", reason, err, StopInterrupted)
	}
	if src.polls != pollsBefore {
		t.Fatalf("loop ran after stop: polls %d -> %d", pollsBefore, src.polls)
	}
}

func TestEmitterFailureRetriesNextInterval(t *testing.T) {
	clock := newFakeClock()
	src := &scriptedSource{path: "kbd", clock: clock, script: []scriptedEvent{{at: 0, kind: TriggerPressed}}}
	emitter := &recordingEmitter{clock: clock, failFirst: 2}
	logger := &countingLogger{}

	scheduler, err := NewScheduler(testSchedulerConfig(t, clock, 10, ModeHold), testKeys, []Source{src}, emitter, logger)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	if _, err := scheduler.Run(stopAfter(clock, 450*time.Millisecond)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if emitter.attempts != 5 {
		t.Fatalf("attempts = %d, want 5", emitter.attempts)
	}
	want := []time.Duration{200 * time.Millisecond, 300 * time.Millisecond, 400 * time.Millisecond}
	if len(emitter.clicks) != len(want) {
		t.Fatalf("clicks = %v, want %v", emitter.clicks, want)
	}
	for i := range want {
		if emitter.clicks[i] != want[i] {
			t.Fatalf("click %d at %v, want %v", i, emitter.clicks[i], want[i])
		}
	}
	if len(logger.warns) != 2 {
		t.Fatalf("warns = %v, want 2 click failures", logger.warns)
	}
}

func TestReadErrorsDoNotStopPolling(t *testing.T) {
	clock := newFakeClock()
	broken := &scriptedSource{path: "broken", clock: clock, script: []scriptedEvent{
		{at: 0, err: errors.New("input/output error")},
		{at: 0, err: errors.New("input/output error")},
	}}
	healthy := &scriptedSource{path: "kbd", clock: clock, script: []scriptedEvent{{at: 5 * time.Millisecond, kind: TriggerPressed}}}
	emitter := &recordingEmitter{clock: clock}
	logger := &countingLogger{}

	scheduler, err := NewScheduler(testSchedulerConfig(t, clock, 10, ModeHold), testKeys, []Source{broken, healthy}, emitter, logger)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	if _, err := scheduler.Run(stopAfter(clock, 20*time.Millisecond)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(logger.warns) != 2 {
		t.Fatalf("warns = %v, want 2 read failures", logger.warns)
	}
	if broken.polls != 20 {
		t.Fatalf("broken source polls = %d, want 20", broken.polls)
	}
	if len(emitter.clicks) != 1 || emitter.clicks[0] != 5*time.Millisecond {
		t.Fatalf("clicks = %v, want one click at 5ms", emitter.clicks)
	}
}

func TestAnyDeviceActivatesAndDispatchRunsEveryTick(t *testing.T) {
	clock := newFakeClock()
	first := &scriptedSource{path: "kbd0", clock: clock}
	second := &scriptedSource{path: "kbd1", clock: clock, script: []scriptedEvent{{at: 3 * time.Millisecond, kind: TriggerPressed}}}
	emitter := &recordingEmitter{clock: clock}

	scheduler, err := NewScheduler(testSchedulerConfig(t, clock, 10, ModeToggle), testKeys, []Source{first, second}, emitter, noopLogger{})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	if _, err := scheduler.Run(stopAfter(clock, 10*time.Millisecond)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !scheduler.Active() {
		t.Fatalf("expected second device to activate clicking")
	}
	if emitter.dispatches != 10 {
		t.Fatalf("dispatches = %d, want 10", emitter.dispatches)
	}
}

package autoclicker

import (
	"context"
	"fmt"
	"time"
)

type Scheduler struct {
	cfg     Config
	keys    KeyMap
	sources []Source
	emitter Emitter
	logger  Logger

	now   func() time.Time
	sleep func(time.Duration)

	activation   Activation
	lastAttempt  time.Time
	attempted    bool
	clickCount   int64
	lastProgress time.Time
}

func NewScheduler(cfg Config, keys KeyMap, sources []Source, emitter Emitter, logger Logger) (*Scheduler, error) {
	if cfg.Schedule.Interval <= 0 {
		return nil, fmt.Errorf("click interval must be > 0")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no keyboard sources configured")
	}
	if keys.TriggerCode == keys.TerminateCode {
		return nil, fmt.Errorf("trigger and terminate keys must differ")
	}
	if emitter == nil {
		return nil, fmt.Errorf("emitter is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	if cfg.Quantum <= 0 {
		cfg.Quantum = DefaultQuantum
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	return &Scheduler{
		cfg:        cfg,
		keys:       keys,
		sources:    sources,
		emitter:    emitter,
		logger:     logger,
		now:        now,
		sleep:      sleep,
		activation: Activation{Mode: cfg.Mode},
	}, nil
}

// Run drives the poll/click loop until ctx is cancelled or a terminate key is read.
// Cancellation is observed at the top of every iteration, so shutdown latency is bounded
// by one quantum plus one round of polling.
func (s *Scheduler) Run(ctx context.Context) (StopReason, error) {
	for {
		if ctx.Err() != nil {
			return StopInterrupted, nil
		}

		if s.pollSources() {
			return StopTerminateKey, nil
		}

		if s.activation.Active {
			s.maybeClick()
		}

		if err := s.emitter.DispatchPending(); err != nil {
			s.logger.Warn("Dispatch failed", "err", err)
		}

		s.sleep(s.cfg.Quantum)
	}
}

func (s *Scheduler) Active() bool {
	return s.activation.Active
}

func (s *Scheduler) ClickCount() int64 {
	return s.clickCount
}

// pollSources reads one record from every source and reports whether the terminate key
// was seen.
func (s *Scheduler) pollSources() bool {
	for _, src := range s.sources {
		kind, err := src.Poll(s.keys)
		if err != nil {
			s.logger.Warn("Read failed", "path", src.Path(), "err", err)
			continue
		}
		switch kind {
		case TerminatePressed:
			s.logger.Info("Terminate key pressed", "path", src.Path())
			return true
		case TriggerPressed, TriggerReleased:
			if s.activation.Apply(kind) {
				s.logger.Debug("Clicking state changed", "active", s.activation.Active, "event", kind.String(), "path", src.Path())
			}
		}
	}
	return false
}

func (s *Scheduler) maybeClick() {
	now := s.now()
	if s.attempted && now.Sub(s.lastAttempt) < s.cfg.Schedule.Interval {
		return
	}
	s.attempted = true
	s.lastAttempt = now

	if err := s.emitter.Click(s.cfg.Schedule.Button); err != nil {
		s.logger.Warn("Failed to emit click", "button", s.cfg.Schedule.Button.String(), "err", err)
		return
	}
	s.clickCount++

	if now.Sub(s.lastProgress) >= time.Second {
		s.logger.Info("Clicks sent", "count", s.clickCount)
		s.lastProgress = now
	}
}

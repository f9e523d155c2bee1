package autoclicker

import (
	"fmt"
	"math"
	"time"
)

const (
	EventTypeSyn uint16 = 0x00
	EventTypeKey uint16 = 0x01

	SynReportCode uint16 = 0

	// Codes from the evdev button space.
	LeftButtonCode   uint16 = 0x110
	RightButtonCode  uint16 = 0x111
	MiddleButtonCode uint16 = 0x112

	KeyValueRelease int32 = 0
	KeyValuePress   int32 = 1
	KeyValueRepeat  int32 = 2
)

const (
	DefaultCPS     = 10.0
	MaxCPS         = 1000.0
	DefaultQuantum = time.Millisecond
)

type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

type TriggerKind int

const (
	TriggerNone TriggerKind = iota
	TriggerPressed
	TriggerReleased
	TerminatePressed
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerPressed:
		return "trigger-pressed"
	case TriggerReleased:
		return "trigger-released"
	case TerminatePressed:
		return "terminate-pressed"
	default:
		return "none"
	}
}

type Mode int

const (
	ModeHold Mode = iota
	ModeToggle
)

func (m Mode) String() string {
	if m == ModeToggle {
		return "toggle"
	}
	return "hold"
}

type Button uint16

const (
	ButtonLeft   Button = Button(LeftButtonCode)
	ButtonRight  Button = Button(RightButtonCode)
	ButtonMiddle Button = Button(MiddleButtonCode)
)

// ButtonFromIndex maps the CLI index (0 left, 1 right, 2 middle) to a button code.
func ButtonFromIndex(index int) (Button, error) {
	switch index {
	case 0:
		return ButtonLeft, nil
	case 1:
		return ButtonRight, nil
	case 2:
		return ButtonMiddle, nil
	default:
		return 0, fmt.Errorf("invalid button %d (expected 0=left, 1=right, 2=middle)", index)
	}
}

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	default:
		return fmt.Sprintf("button(0x%x)", uint16(b))
	}
}

// KeyMap names the two key codes the poller cares about.
type KeyMap struct {
	TriggerCode   uint16
	TerminateCode uint16
}

type Schedule struct {
	Interval time.Duration
	Button   Button
}

// NewSchedule derives the click interval from a clicks-per-second rate. Rates above MaxCPS
// are clamped so the interval never drops below the scheduler quantum.
func NewSchedule(cps float64, button Button) (Schedule, error) {
	if math.IsNaN(cps) || math.IsInf(cps, 0) || cps <= 0 {
		return Schedule{}, fmt.Errorf("clicks per second must be a finite value > 0, got %v", cps)
	}
	if cps > MaxCPS {
		cps = MaxCPS
	}
	return Schedule{
		Interval: time.Duration(float64(time.Second) / cps),
		Button:   button,
	}, nil
}

type Config struct {
	Schedule Schedule
	Mode     Mode

	// Quantum is the per-iteration sleep. Zero means DefaultQuantum.
	Quantum time.Duration

	// Now and Sleep default to time.Now and time.Sleep.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Source is one polled input device.
type Source interface {
	Path() string
	Poll(keys KeyMap) (TriggerKind, error)
}

// Emitter synthesizes clicks on a virtual pointer endpoint.
type Emitter interface {
	// Click sends press, frame, release, frame and flushes before returning.
	Click(button Button) error
	// DispatchPending services pending protocol events without blocking.
	DispatchPending() error
	Close() error
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type StopReason int

const (
	StopInterrupted StopReason = iota
	StopTerminateKey
)

func (r StopReason) String() string {
	if r == StopTerminateKey {
		return "terminate key"
	}
	return "interrupt"
}

//go:build linux

// Package uinput emits clicks through a kernel virtual pointer device, which every
// compositor picks up through libinput.
package uinput

import (
	"fmt"
	"sync"

	"github.com/SwodStudio/wayland-autoclicker/internal/core/autoclicker"

	evdev "github.com/holoplot/go-evdev"
)

const DeviceName = "wayland-autoclicker"

type eventWriter interface {
	WriteOne(event *evdev.InputEvent) error
	Close() error
}

type Emitter struct {
	mu  sync.Mutex
	dev eventWriter
}

func NewEmitter() (*Emitter, error) {
	id := evdev.InputID{
		BusType: uint16(evdev.BUS_VIRTUAL),
		Vendor:  0x1,
		Product: 0x1,
		Version: 1,
	}
	dev, err := evdev.CreateDevice(DeviceName, id, capabilities())
	if err != nil {
		return nil, fmt.Errorf("create uinput device: %w", err)
	}
	return &Emitter{dev: dev}, nil
}

// capabilities advertises relative axes as well so libinput classifies the device as a
// pointer rather than a keyboard.
func capabilities() map[evdev.EvType][]evdev.EvCode {
	return map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {evdev.BTN_LEFT, evdev.BTN_RIGHT, evdev.BTN_MIDDLE},
		evdev.EV_REL: {evdev.REL_X, evdev.REL_Y},
	}
}

func (e *Emitter) Click(button autoclicker.Button) error {
	code := evdev.EvCode(button)
	syn := evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT, Value: 0}

	if err := e.writeEvents(
		evdev.InputEvent{Type: evdev.EV_KEY, Code: code, Value: autoclicker.KeyValuePress},
		syn,
	); err != nil {
		return fmt.Errorf("press %s: %w", button, err)
	}
	if err := e.writeEvents(
		evdev.InputEvent{Type: evdev.EV_KEY, Code: code, Value: autoclicker.KeyValueRelease},
		syn,
	); err != nil {
		return fmt.Errorf("release %s: %w", button, err)
	}
	return nil
}

// DispatchPending is a no-op: uinput has no server-side events to acknowledge.
func (e *Emitter) DispatchPending() error {
	return nil
}

func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dev == nil {
		return nil
	}
	err := e.dev.Close()
	e.dev = nil
	return err
}

func (e *Emitter) writeEvents(events ...evdev.InputEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dev == nil {
		return fmt.Errorf("uinput device is closed")
	}
	for i := range events {
		if err := e.dev.WriteOne(&events[i]); err != nil {
			return err
		}
	}
	return nil
}

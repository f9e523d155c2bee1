//go:build linux

package linuxinput

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/SwodStudio/wayland-autoclicker/internal/core/autoclicker"

	evdev "github.com/holoplot/go-evdev"
)

type eventReader interface {
	ReadOne() (*evdev.InputEvent, error)
	Close() error
}

// Keyboard is an open, non-blocking keyboard event node.
type Keyboard struct {
	path   string
	name   string
	reader eventReader
}

func OpenKeyboard(path string) (*Keyboard, error) {
	dev, err := openInputDevice(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := dev.NonBlock(); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("failed to set nonblocking mode for %s: %w", path, err)
	}
	name, _ := dev.Name()
	return &Keyboard{path: path, name: name, reader: dev}, nil
}

// OpenKeyboards opens every path and closes the already opened ones on the first failure.
func OpenKeyboards(paths []string) ([]*Keyboard, error) {
	keyboards := make([]*Keyboard, 0, len(paths))
	for _, path := range paths {
		kbd, err := OpenKeyboard(path)
		if err != nil {
			CloseKeyboards(keyboards)
			return nil, err
		}
		keyboards = append(keyboards, kbd)
	}
	return keyboards, nil
}

func CloseKeyboards(keyboards []*Keyboard) {
	for _, kbd := range keyboards {
		_ = kbd.Close()
	}
}

func (k *Keyboard) Path() string {
	return k.path
}

func (k *Keyboard) Name() string {
	return k.name
}

// Poll reads at most one record. An empty queue is not an error.
func (k *Keyboard) Poll(keys autoclicker.KeyMap) (autoclicker.TriggerKind, error) {
	event, err := k.readOne()
	if err != nil || event == nil {
		return autoclicker.TriggerNone, err
	}
	return autoclicker.Classify(*event, keys), nil
}

func (k *Keyboard) Close() error {
	return k.reader.Close()
}

func (k *Keyboard) readOne() (*autoclicker.Event, error) {
	event, err := k.reader.ReadOne()
	if err != nil {
		if isWouldBlockError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", k.path, err)
	}
	if event == nil {
		return nil, nil
	}
	return &autoclicker.Event{
		Type:  uint16(event.Type),
		Code:  uint16(event.Code),
		Value: event.Value,
	}, nil
}

func isDeviceClosedError(err error) bool {
	return errors.Is(err, syscall.EBADF) || errors.Is(err, syscall.ENODEV)
}

func isWouldBlockError(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

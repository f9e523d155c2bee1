//go:build linux

// Package wayland emits clicks through the wlr-virtual-pointer protocol.
package wayland

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SwodStudio/wayland-autoclicker/internal/core/autoclicker"

	"github.com/bnema/wayland-virtual-input-go/virtual_pointer"
	"github.com/rajveermalviya/go-wayland/wayland/client"
)

const VirtualPointerManagerInterface = "zwlr_virtual_pointer_manager_v1"

var (
	ErrVirtualPointerUnsupported = errors.New("compositor does not advertise " + VirtualPointerManagerInterface)
	ErrVirtualPointerRemoved     = errors.New("virtual pointer manager global was removed")
)

type pointer interface {
	Button(t time.Time, button uint32, state virtual_pointer.ButtonState) error
	Frame() error
	Close() error
}

type closer interface {
	Close() error
}

// Emitter owns two connections: the virtual pointer session used for clicks and a
// registry connection serviced by a reader goroutine, whose failures and global removals
// surface through DispatchPending.
type Emitter struct {
	mu      sync.Mutex
	pointer pointer
	manager closer

	display     *client.Display
	managerName uint32
	removed     atomic.Bool
	reported    bool
	dispatchErr chan error
	closing     chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
}

// Connect verifies that the compositor advertises the virtual pointer manager and creates
// one virtual pointer. ctx is handed to the virtual pointer manager.
func Connect(ctx context.Context) (*Emitter, error) {
	display, err := client.Connect("")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Wayland display: %w", err)
	}

	e := &Emitter{
		display:     display,
		dispatchErr: make(chan error, 1),
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
	}

	found, err := e.probeGlobals()
	if err != nil {
		_ = display.Context().Close()
		return nil, fmt.Errorf("wayland registry roundtrip: %w", err)
	}
	if !found {
		_ = display.Context().Close()
		return nil, ErrVirtualPointerUnsupported
	}

	manager, err := virtual_pointer.NewVirtualPointerManager(ctx)
	if err != nil {
		_ = display.Context().Close()
		return nil, fmt.Errorf("failed to create virtual pointer manager: %w", err)
	}
	ptr, err := manager.CreatePointer()
	if err != nil {
		_ = manager.Close()
		_ = display.Context().Close()
		return nil, fmt.Errorf("failed to create virtual pointer: %w", err)
	}
	e.manager = manager
	e.pointer = ptr

	go e.dispatchLoop()
	return e, nil
}

// probeGlobals binds the registry and blocks until the compositor has announced every
// global present at connect time.
func (e *Emitter) probeGlobals() (bool, error) {
	registry, err := e.display.GetRegistry()
	if err != nil {
		return false, err
	}

	found := false
	registry.SetGlobalHandler(func(ev client.RegistryGlobalEvent) {
		if ev.Interface == VirtualPointerManagerInterface && !found {
			found = true
			e.managerName = ev.Name
		}
	})
	registry.SetGlobalRemoveHandler(func(ev client.RegistryGlobalRemoveEvent) {
		if found && ev.Name == e.managerName {
			e.removed.Store(true)
		}
	})

	callback, err := e.display.Sync()
	if err != nil {
		return false, err
	}
	synced := false
	callback.SetDoneHandler(func(client.CallbackDoneEvent) {
		synced = true
	})
	for !synced {
		if err := e.display.Context().Dispatch(); err != nil {
			return false, err
		}
	}
	return found, nil
}

func (e *Emitter) dispatchLoop() {
	defer close(e.done)
	for {
		if err := e.display.Context().Dispatch(); err != nil {
			select {
			case <-e.closing:
			case e.dispatchErr <- err:
			}
			return
		}
	}
}

func (e *Emitter) Click(button autoclicker.Button) error {
	code, err := buttonCode(button)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pointer == nil {
		return fmt.Errorf("virtual pointer is closed")
	}

	if err := e.send(code, virtual_pointer.ButtonStatePressed); err != nil {
		return fmt.Errorf("press %s: %w", button, err)
	}
	if err := e.send(code, virtual_pointer.ButtonStateReleased); err != nil {
		return fmt.Errorf("release %s: %w", button, err)
	}
	return nil
}

// send writes one button transition and its frame. Requests go to the socket as they are
// issued, so returning without error means the compositor has the bytes.
func (e *Emitter) send(code uint32, state virtual_pointer.ButtonState) error {
	if err := e.pointer.Button(time.Now(), code, state); err != nil {
		return err
	}
	return e.pointer.Frame()
}

// DispatchPending never blocks. A dead registry connection is reported once and the
// removal of the manager global is reported once.
func (e *Emitter) DispatchPending() error {
	select {
	case err := <-e.dispatchErr:
		return fmt.Errorf("wayland dispatch: %w", err)
	default:
	}
	if e.removed.Load() && !e.reported {
		e.reported = true
		return ErrVirtualPointerRemoved
	}
	return nil
}

func (e *Emitter) Close() error {
	var errs []error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		if e.pointer != nil {
			if err := e.pointer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close virtual pointer: %w", err))
			}
			e.pointer = nil
		}
		if e.manager != nil {
			if err := e.manager.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close virtual pointer manager: %w", err))
			}
			e.manager = nil
		}
		e.mu.Unlock()

		close(e.closing)
		if e.display != nil {
			if err := e.display.Context().Close(); err != nil {
				errs = append(errs, fmt.Errorf("close wayland display: %w", err))
			}
			<-e.done
		}
	})
	return errors.Join(errs...)
}

func buttonCode(button autoclicker.Button) (uint32, error) {
	switch button {
	case autoclicker.ButtonLeft:
		return virtual_pointer.BTN_LEFT, nil
	case autoclicker.ButtonRight:
		return virtual_pointer.BTN_RIGHT, nil
	case autoclicker.ButtonMiddle:
		return virtual_pointer.BTN_MIDDLE, nil
	default:
		return 0, fmt.Errorf("unsupported button %s", button)
	}
}

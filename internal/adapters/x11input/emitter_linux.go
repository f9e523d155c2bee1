//go:build linux

// Package x11input emits clicks through the XTEST extension. It serves sessions where
// the compositor only exposes an X server, such as XWayland-only setups.
package x11input

import (
	"fmt"
	"sync"

	"github.com/SwodStudio/wayland-autoclicker/internal/core/autoclicker"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil"
)

type Emitter struct {
	mu      sync.Mutex
	conn    *xgb.Conn
	rootWin xproto.Window
}

func NewEmitter() (*Emitter, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	conn := xu.Conn()
	if conn == nil {
		return nil, fmt.Errorf("failed to open X11 connection")
	}
	if err := xtest.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("XTEST extension unavailable: %w", err)
	}
	return &Emitter{conn: conn, rootWin: xu.RootWin()}, nil
}

func (e *Emitter) Click(button autoclicker.Button) error {
	detail, ok := buttonToX(button)
	if !ok {
		return fmt.Errorf("unsupported button %s", button)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return fmt.Errorf("X11 connection is closed")
	}

	for _, eventType := range []byte{xproto.ButtonPress, xproto.ButtonRelease} {
		if err := xtest.FakeInputChecked(
			e.conn,
			eventType,
			byte(detail),
			xproto.TimeCurrentTime,
			e.rootWin,
			0,
			0,
			0,
		).Check(); err != nil {
			return err
		}
	}
	e.conn.Sync()
	return nil
}

// DispatchPending drains queued events without blocking; an X error on the queue is
// returned to the caller.
func (e *Emitter) DispatchPending() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return nil
	}
	for {
		event, xerr := e.conn.PollForEvent()
		if xerr != nil {
			return xerr
		}
		if event == nil {
			return nil
		}
	}
}

func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
	return nil
}

func buttonToX(button autoclicker.Button) (xproto.Button, bool) {
	switch button {
	case autoclicker.ButtonLeft:
		return xproto.Button(xproto.ButtonIndex1), true
	case autoclicker.ButtonMiddle:
		return xproto.Button(xproto.ButtonIndex2), true
	case autoclicker.ButtonRight:
		return xproto.Button(xproto.ButtonIndex3), true
	default:
		return 0, false
	}
}

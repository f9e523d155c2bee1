//go:build linux

package x11input

import (
	"fmt"
	"strings"
	"time"

	"github.com/SwodStudio/wayland-autoclicker/internal/adapters/linuxinput"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
)

// CaptureNextKeyCode grabs the X keyboard and returns the evdev code of the next key
// press. It lets users identify a key without read access to /dev/input.
func CaptureNextKeyCode(timeout time.Duration) (uint16, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	xu, err := xgbutil.NewConn()
	if err != nil {
		return 0, err
	}
	conn := xu.Conn()
	keybind.Initialize(xu)
	defer conn.Close()
	defer xproto.UngrabKeyboard(conn, xproto.TimeCurrentTime)

	reply, err := xproto.GrabKeyboard(
		conn,
		false,
		xu.RootWin(),
		xproto.TimeCurrentTime,
		xproto.GrabModeAsync,
		xproto.GrabModeAsync,
	).Reply()
	if err != nil {
		return 0, err
	}
	if reply.Status != xproto.GrabStatusSuccess {
		return 0, fmt.Errorf("failed to grab keyboard (status=%d)", reply.Status)
	}

	deadline := time.Now().Add(timeout)
	for {
		event, xerr := conn.PollForEvent()
		if xerr != nil {
			return 0, xerr
		}
		if event == nil {
			if time.Now().After(deadline) {
				return 0, fmt.Errorf("timed out waiting for key input")
			}
			time.Sleep(2 * time.Millisecond)
			continue
		}
		if ev, ok := event.(xproto.KeyPressEvent); ok {
			if code, ok := keysymToCode(keybind.LookupString(xu, ev.State, ev.Detail)); ok {
				return code, nil
			}
		}
	}
}

var keysymNames = map[string]string{
	"escape":      "KEY_ESC",
	"return":      "KEY_ENTER",
	"tab":         "KEY_TAB",
	"space":       "KEY_SPACE",
	"backspace":   "KEY_BACKSPACE",
	"shift_l":     "KEY_LEFTSHIFT",
	"shift_r":     "KEY_RIGHTSHIFT",
	"control_l":   "KEY_LEFTCTRL",
	"control_r":   "KEY_RIGHTCTRL",
	"alt_l":       "KEY_LEFTALT",
	"alt_r":       "KEY_RIGHTALT",
	"super_l":     "KEY_LEFTMETA",
	"super_r":     "KEY_RIGHTMETA",
	"caps_lock":   "KEY_CAPSLOCK",
	"scroll_lock": "KEY_SCROLLLOCK",
	"page_up":     "KEY_PAGEUP",
	"page_down":   "KEY_PAGEDOWN",
	"insert":      "KEY_INSERT",
	"delete":      "KEY_DELETE",
	"home":        "KEY_HOME",
	"end":         "KEY_END",
	"pause":       "KEY_PAUSE",
	"menu":        "KEY_MENU",
	"grave":       "KEY_GRAVE",
	"minus":       "KEY_MINUS",
	"equal":       "KEY_EQUAL",
	"comma":       "KEY_COMMA",
	"period":      "KEY_DOT",
	"slash":       "KEY_SLASH",
}

// keysymToCode maps the string keybind reports for a key press to an evdev key code.
func keysymToCode(keysym string) (uint16, bool) {
	raw := strings.ToLower(strings.TrimSpace(keysym))
	if raw == "" {
		return 0, false
	}

	name, ok := keysymNames[raw]
	switch {
	case ok:
	case len(raw) == 1 && (raw[0] >= 'a' && raw[0] <= 'z' || raw[0] >= '0' && raw[0] <= '9'):
		name = "KEY_" + strings.ToUpper(raw)
	case len(raw) > 1 && raw[0] == 'f' && isDigits(raw[1:]):
		name = "KEY_" + strings.ToUpper(raw)
	default:
		return 0, false
	}

	code, err := linuxinput.ParseCode(name)
	if err != nil {
		return 0, false
	}
	return code, true
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

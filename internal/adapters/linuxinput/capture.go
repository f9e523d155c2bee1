//go:build linux

package linuxinput

import (
	"fmt"
	"time"

	"github.com/SwodStudio/wayland-autoclicker/internal/core/autoclicker"
)

// CaptureNextKeyCode waits for the next key press (EV_KEY with value 1) on any of the
// given keyboards. The keyboards stay open; the caller closes them.
func CaptureNextKeyCode(keyboards []*Keyboard, timeout time.Duration) (uint16, error) {
	if len(keyboards) == 0 {
		return 0, fmt.Errorf("no keyboards to listen on")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	done := make(chan struct{})
	codeCh := make(chan uint16, 1)
	exited := make(chan struct{}, len(keyboards))
	for _, kbd := range keyboards {
		go func(kbd *Keyboard) {
			captureKeyboardLoop(kbd, done, codeCh)
			exited <- struct{}{}
		}(kbd)
	}
	defer func() {
		close(done)
		for range keyboards {
			<-exited
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case code := <-codeCh:
		return code, nil
	case <-timer.C:
		return 0, fmt.Errorf("timed out waiting for a key press")
	}
}

func captureKeyboardLoop(kbd *Keyboard, done <-chan struct{}, codeCh chan<- uint16) {
	for {
		select {
		case <-done:
			return
		default:
		}

		event, err := kbd.readOne()
		if err != nil {
			if isDeviceClosedError(err) {
				return
			}
			if !sleepCapture(done, 25*time.Millisecond) {
				return
			}
			continue
		}
		if event == nil {
			if !sleepCapture(done, 10*time.Millisecond) {
				return
			}
			continue
		}
		if event.Type == autoclicker.EventTypeKey && event.Value == autoclicker.KeyValuePress {
			select {
			case codeCh <- event.Code:
			default:
			}
			return
		}
	}
}

func sleepCapture(done <-chan struct{}, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-done:
		return false
	case <-timer.C:
		return true
	}
}

//go:build linux

package linuxinput

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

const procDevicesPath = "/proc/bus/input/devices"

// ProcDevice is one stanza of /proc/bus/input/devices.
type ProcDevice struct {
	Name      string
	Handlers  []string
	EventNode string
}

// IsKeyboard reports whether the stanza declares both the kbd and sysrq handlers, which
// real keyboards do and mice or most virtual devices do not.
func (d ProcDevice) IsKeyboard() bool {
	var kbd, sysrq bool
	for _, h := range d.Handlers {
		switch h {
		case "kbd":
			kbd = true
		case "sysrq":
			sysrq = true
		}
	}
	return kbd && sysrq
}

func (d ProcDevice) Path() string {
	if d.EventNode == "" {
		return ""
	}
	return "/dev/input/" + d.EventNode
}

type DeviceInfo struct {
	Path       string
	Name       string
	IsVirtual  bool
	IsKeyboard bool
}

// ParseProcDevices splits the listing into stanzas at "I:" identity lines.
func ParseProcDevices(r io.Reader) ([]ProcDevice, error) {
	var (
		devices []ProcDevice
		current ProcDevice
		started bool
	)
	flush := func() {
		if started {
			devices = append(devices, current)
		}
		current = ProcDevice{}
		started = false
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "I:") {
			flush()
			started = true
			continue
		}
		started = true

		switch {
		case strings.HasPrefix(line, "N:"):
			if _, value, ok := strings.Cut(line, "Name="); ok {
				current.Name = strings.Trim(value, "\"")
			}
		case strings.HasPrefix(line, "H:"):
			if _, value, ok := strings.Cut(line, "Handlers="); ok {
				current.Handlers = strings.Fields(value)
			}
			for _, token := range current.Handlers {
				if strings.HasPrefix(token, "event") {
					current.EventNode = token
					break
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input device listing: %w", err)
	}
	flush()
	return devices, nil
}

// KeyboardPaths returns the event node of every keyboard stanza, in listing order.
func KeyboardPaths(devices []ProcDevice) []string {
	paths := make([]string, 0, len(devices))
	for _, dev := range devices {
		if dev.IsKeyboard() && dev.EventNode != "" {
			paths = append(paths, dev.Path())
		}
	}
	return paths
}

func readProcDevices() ([]ProcDevice, error) {
	f, err := os.Open(procDevicesPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", procDevicesPath, err)
	}
	defer f.Close()
	return ParseProcDevices(f)
}

// FindKeyboards returns the keyboard-class device nodes. An empty result is not an error.
func FindKeyboards() ([]ProcDevice, error) {
	devices, err := readProcDevices()
	if err != nil {
		return nil, err
	}
	keyboards := make([]ProcDevice, 0, len(devices))
	for _, dev := range devices {
		if dev.IsKeyboard() && dev.EventNode != "" {
			keyboards = append(keyboards, dev)
		}
	}
	return keyboards, nil
}

func ListInputDevices() ([]DeviceInfo, error) {
	procDevices, err := readProcDevices()
	if err != nil {
		return nil, err
	}
	keyboards := make(map[string]struct{})
	for _, path := range KeyboardPaths(procDevices) {
		keyboards[path] = struct{}{}
	}

	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool {
		return paths[i].Path < paths[j].Path
	})

	devices := make([]DeviceInfo, 0, len(paths))
	for _, path := range paths {
		_, isKeyboard := keyboards[path.Path]
		info := DeviceInfo{
			Path:       path.Path,
			Name:       path.Name,
			IsKeyboard: isKeyboard,
		}

		dev, err := openInputDevice(path.Path)
		if err == nil {
			if actualName, err := dev.Name(); err == nil && actualName != "" {
				info.Name = actualName
			}
			info.IsVirtual = deviceIsVirtual(dev, info.Name)
			_ = dev.Close()
		}
		devices = append(devices, info)
	}

	return devices, nil
}

func openInputDevice(path string) (*evdev.InputDevice, error) {
	return evdev.OpenWithFlags(path, os.O_RDONLY)
}

func deviceIsVirtual(device *evdev.InputDevice, name string) bool {
	id, err := device.InputID()
	if err == nil && id.BusType == uint16(evdev.BUS_VIRTUAL) {
		return true
	}
	lower := strings.ToLower(name)
	for _, token := range []string{"virtual", "uinput", "ydotool", "autoclicker"} {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

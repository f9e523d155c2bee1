//go:build !linux

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Key names are only resolved on linux; elsewhere only numeric codes parse.
func parseKeyCode(value string) (uint16, error) {
	code, err := strconv.ParseUint(strings.TrimSpace(value), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown key %q (key names need linux)", value)
	}
	return uint16(code), nil
}

func formatCodeName(code uint16) string {
	return strconv.Itoa(int(code))
}

func parseBackendChoice(value string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(value))
	if backend == "" || backend == "wayland" {
		return "wayland", nil
	}
	return "", fmt.Errorf("invalid --backend %q (unsupported platform)", value)
}

func permissionDeniedHint() string {
	return "Permission denied opening input devices."
}

func runClicker(_ context.Context, _ config, _ *slog.Logger, _ io.Writer) error {
	return fmt.Errorf("clicker runtime is not supported on this platform")
}

func identifyKey(_ string, _ []string, _ time.Duration) (uint16, error) {
	return 0, fmt.Errorf("key capture is not supported on this platform")
}

func listInputDevices(_ io.Writer) error {
	return fmt.Errorf("input device listing is not supported on this platform")
}

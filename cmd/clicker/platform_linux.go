//go:build linux

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/SwodStudio/wayland-autoclicker/internal/adapters/linuxinput"
	"github.com/SwodStudio/wayland-autoclicker/internal/adapters/uinput"
	"github.com/SwodStudio/wayland-autoclicker/internal/adapters/wayland"
	"github.com/SwodStudio/wayland-autoclicker/internal/adapters/x11input"
	"github.com/SwodStudio/wayland-autoclicker/internal/core/autoclicker"

	"golang.org/x/sys/unix"
)

func parseKeyCode(value string) (uint16, error) {
	return linuxinput.ParseCode(value)
}

func formatCodeName(code uint16) string {
	return linuxinput.FormatCodeName(code)
}

func parseBackendChoice(value string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(value))
	if backend == "" {
		backend = "wayland"
	}
	switch backend {
	case "auto", "wayland", "uinput", "x11":
		return backend, nil
	default:
		return "", fmt.Errorf("invalid --backend %q (linux supports wayland|uinput|x11|auto)", value)
	}
}

// resolveLinuxBackend picks a concrete backend for "auto" from the session environment.
func resolveLinuxBackend(configured string) string {
	if configured != "auto" {
		return configured
	}

	switch strings.ToLower(strings.TrimSpace(os.Getenv("XDG_SESSION_TYPE"))) {
	case "wayland":
		return "wayland"
	case "x11":
		return "x11"
	}
	if strings.TrimSpace(os.Getenv("WAYLAND_DISPLAY")) != "" {
		return "wayland"
	}
	if strings.TrimSpace(os.Getenv("DISPLAY")) != "" {
		return "x11"
	}
	return "uinput"
}

func permissionDeniedHint() string {
	return "Permission denied opening input devices. Run as root or add a udev rule granting read access to /dev/input/event* (and /dev/uinput for --backend uinput)."
}

func newEmitter(ctx context.Context, backend string) (autoclicker.Emitter, error) {
	switch resolveLinuxBackend(backend) {
	case "uinput":
		return uinput.NewEmitter()
	case "x11":
		return x11input.NewEmitter()
	default:
		return wayland.Connect(ctx)
	}
}

// keyboardPaths returns the explicit --device paths, or the discovered keyboards.
func keyboardPaths(explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	devices, err := linuxinput.FindKeyboards()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate input devices: %w", err)
	}
	paths := linuxinput.KeyboardPaths(devices)
	if len(paths) == 0 {
		return nil, fmt.Errorf("failed to find any keyboard devices")
	}
	return paths, nil
}

func setTimerSlack() error {
	if err := unix.Prctl(unix.PR_SET_TIMERSLACK, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("failed to set timer slack: %w", err)
	}
	return nil
}

func runClicker(ctx context.Context, cfg config, logger *slog.Logger, stdout io.Writer) error {
	emitter, err := newEmitter(ctx, cfg.backend)
	if err != nil {
		return err
	}
	defer func() {
		if err := emitter.Close(); err != nil {
			logger.Warn("Failed to close emitter", "err", err)
		}
	}()

	paths, err := keyboardPaths(cfg.devicePaths)
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Fprintf(stdout, "Found keyboard: %s\n", path)
	}

	keyboards, err := linuxinput.OpenKeyboards(paths)
	if err != nil {
		return err
	}
	defer linuxinput.CloseKeyboards(keyboards)

	if err := setTimerSlack(); err != nil {
		return err
	}

	sources := make([]autoclicker.Source, 0, len(keyboards))
	for _, kbd := range keyboards {
		logger.Debug("Using keyboard", "path", kbd.Path(), "name", kbd.Name())
		sources = append(sources, kbd)
	}

	scheduler, err := autoclicker.NewScheduler(
		autoclicker.Config{
			Schedule: cfg.schedule,
			Mode:     cfg.mode,
		},
		cfg.keys,
		sources,
		emitter,
		logger,
	)
	if err != nil {
		return err
	}

	logger.Info("Backend", "name", resolveLinuxBackend(cfg.backend))
	logger.Info("Trigger", "name", formatCodeName(cfg.keys.TriggerCode), "code", cfg.keys.TriggerCode, "mode", cfg.mode.String())
	logger.Info("Terminate", "name", formatCodeName(cfg.keys.TerminateCode), "code", cfg.keys.TerminateCode)
	logger.Info("Rate", "interval", cfg.schedule.Interval, "button", cfg.schedule.Button.String())

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(stdout, "Ready")
	reason, err := scheduler.Run(ctx)
	fmt.Fprintln(stdout, "Exiting...")
	if err != nil {
		return err
	}
	logger.Info("Stopped", "reason", reason.String(), "clicks", scheduler.ClickCount())
	return nil
}

func identifyKey(backend string, devicePaths []string, timeout time.Duration) (uint16, error) {
	if resolveLinuxBackend(backend) == "x11" {
		return x11input.CaptureNextKeyCode(timeout)
	}

	paths, err := keyboardPaths(devicePaths)
	if err != nil {
		return 0, err
	}
	keyboards, err := linuxinput.OpenKeyboards(paths)
	if err != nil {
		return 0, err
	}
	defer linuxinput.CloseKeyboards(keyboards)
	return linuxinput.CaptureNextKeyCode(keyboards, timeout)
}

func listInputDevices(stdout io.Writer) error {
	devices, err := linuxinput.ListInputDevices()
	if err != nil {
		return err
	}
	for _, dev := range devices {
		virtualTag := "physical"
		if dev.IsVirtual {
			virtualTag = "virtual"
		}
		keyboardTag := "non-keyboard"
		if dev.IsKeyboard {
			keyboardTag = "keyboard"
		}
		fmt.Fprintf(stdout, "%s: %s [%s, %s]\n", dev.Path, dev.Name, virtualTag, keyboardTag)
	}
	return nil
}

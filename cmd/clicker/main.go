package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/SwodStudio/wayland-autoclicker/internal/core/autoclicker"

	"github.com/spf13/cobra"
)

type config struct {
	schedule     autoclicker.Schedule
	mode         autoclicker.Mode
	keys         autoclicker.KeyMap
	triggerRaw   string
	terminateRaw string
	devicePaths  []string
	backend      string
	listDevices  bool
	logLevel     slog.Level
}

// flagValues holds the raw flag text before validation.
type flagValues struct {
	button      int
	toggle      bool
	triggerKey  string
	terminate   string
	devices     []string
	backend     string
	logLevel    string
	listDevices bool
}

// usageError marks errors caused by bad command-line input; they exit with status 2.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func newSlogLogger(level slog.Level, out io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warning", "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid --log-level %q (expected debug|info|warning|error)", value)
	}
}

// parseCPS reads the optional positional rate. A missing argument means DefaultCPS.
func parseCPS(args []string) (float64, error) {
	if len(args) == 0 {
		return autoclicker.DefaultCPS, nil
	}
	cps, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid clicks per second %q", args[0])
	}
	if math.IsNaN(cps) || math.IsInf(cps, 0) || cps <= 0 {
		return 0, fmt.Errorf("clicks per second must be a finite value > 0, got %q", args[0])
	}
	return cps, nil
}

func parseConfig(values flagValues, args []string) (config, error) {
	var cfg config

	cps, err := parseCPS(args)
	if err != nil {
		return cfg, err
	}
	button, err := autoclicker.ButtonFromIndex(values.button)
	if err != nil {
		return cfg, fmt.Errorf("--button: %w", err)
	}
	schedule, err := autoclicker.NewSchedule(cps, button)
	if err != nil {
		return cfg, err
	}

	triggerCode, err := parseKeyCode(values.triggerKey)
	if err != nil {
		return cfg, fmt.Errorf("--trigger-key: %w", err)
	}
	terminateCode, err := parseKeyCode(values.terminate)
	if err != nil {
		return cfg, fmt.Errorf("--terminate-key: %w", err)
	}
	if triggerCode == terminateCode {
		return cfg, fmt.Errorf("--terminate-key must be different from --trigger-key")
	}

	backend, err := parseBackendChoice(values.backend)
	if err != nil {
		return cfg, err
	}
	level, err := parseLogLevel(values.logLevel)
	if err != nil {
		return cfg, err
	}

	cfg.schedule = schedule
	cfg.mode = autoclicker.ModeHold
	if values.toggle {
		cfg.mode = autoclicker.ModeToggle
	}
	cfg.keys = autoclicker.KeyMap{TriggerCode: triggerCode, TerminateCode: terminateCode}
	cfg.triggerRaw = values.triggerKey
	cfg.terminateRaw = values.terminate
	for _, path := range values.devices {
		if path = strings.TrimSpace(path); path != "" {
			cfg.devicePaths = append(cfg.devicePaths, path)
		}
	}
	cfg.backend = backend
	cfg.listDevices = values.listDevices
	cfg.logLevel = level
	return cfg, nil
}

func isPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var values flagValues

	root := &cobra.Command{
		Use:   "clicker [clicks-per-second]",
		Short: "Keyboard-triggered autoclicker for Wayland compositors",
		Long: "Hold the trigger key (default F2) to click at the given rate, or pass --toggle to start\n" +
			"and stop clicking with each press. The terminate key (default F3) exits.",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 1 {
				return usageError{fmt.Errorf("unexpected arguments: %s", strings.Join(args[1:], " "))}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := parseConfig(values, args)
			if err != nil {
				return usageError{err}
			}
			if cfg.listDevices {
				return listInputDevices(stdout)
			}
			logger := newSlogLogger(cfg.logLevel, stderr)
			return runClicker(cmd.Context(), cfg, logger, stdout)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	flags := root.Flags()
	flags.IntVarP(&values.button, "button", "b", 0, "Mouse button to click: 0=left, 1=right, 2=middle.")
	flags.BoolVarP(&values.toggle, "toggle", "t", false, "Toggle clicking on each trigger press instead of clicking while held.")
	flags.StringVar(&values.triggerKey, "trigger-key", "KEY_F2", "Trigger key as an evdev name or numeric code.")
	flags.StringVar(&values.terminate, "terminate-key", "KEY_F3", "Key that stops the clicker and exits.")
	flags.StringArrayVar(&values.devices, "device", nil, "Keyboard event device to watch, e.g. /dev/input/event4. Repeatable; auto-detected if omitted.")
	flags.BoolVar(&values.listDevices, "list-devices", false, "Print available input devices and exit.")

	persistent := root.PersistentFlags()
	persistent.StringVar(&values.backend, "backend", "wayland", "Click backend: wayland|uinput|x11|auto.")
	persistent.StringVar(&values.logLevel, "log-level", "info", "Log verbosity. Allowed: debug, info, warning, error.")

	root.AddCommand(newIdentifyCommand(&values, stdout))
	return root
}

func newIdentifyCommand(values *flagValues, stdout io.Writer) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Print the evdev name and code of the next key pressed",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			backend, err := parseBackendChoice(values.backend)
			if err != nil {
				return usageError{err}
			}
			if timeout <= 0 {
				return usageError{fmt.Errorf("--timeout must be > 0")}
			}
			code, err := identifyKey(backend, values.devices, timeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s (%d)\n", formatCodeName(code), code)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for a key press.")
	cmd.Flags().StringArrayVar(&values.devices, "device", nil, "Keyboard event device to watch. Repeatable; auto-detected if omitted.")
	return cmd
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}

	var usage usageError
	if errors.As(err, &usage) {
		fmt.Fprintln(stderr, err)
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.Name())
		return 2
	}
	if isPermissionError(err) {
		fmt.Fprintln(stderr, err)
		fmt.Fprintln(stderr, permissionDeniedHint())
		return 1
	}
	fmt.Fprintln(stderr, err)
	return 1
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

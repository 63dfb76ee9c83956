package volume

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"runtime"
	"strings"
)

// commandFunc builds the host command that sets the volume to pct percent.
type commandFunc func(pct int) (string, []string)

var hostCommands = map[string]commandFunc{
	"darwin": func(pct int) (string, []string) {
		return "osascript", []string{"-e", fmt.Sprintf("set volume output volume %d", pct)}
	},
	"linux": func(pct int) (string, []string) {
		return "pactl", []string{"set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", pct)}
	},
}

// NativeEndpoint sets the volume by running the host's volume command.
type NativeEndpoint struct {
	command commandFunc
	logger  *slog.Logger
}

// NewNativeEndpoint returns an endpoint for the running OS, or
// ErrUnsupportedPlatform when the OS has no known volume command.
func NewNativeEndpoint(logger *slog.Logger) (*NativeEndpoint, error) {
	return newNativeEndpoint(runtime.GOOS, logger)
}

func newNativeEndpoint(goos string, logger *slog.Logger) (*NativeEndpoint, error) {
	command, ok := hostCommands[goos]
	if !ok {
		return nil, fmt.Errorf("%s: %w", goos, ErrUnsupportedPlatform)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NativeEndpoint{command: command, logger: logger}, nil
}

// Percent converts a level to the whole percentage passed to host commands.
func Percent(level float64) int {
	return int(math.Round(level * 100))
}

// SetLevel runs the host command for level. Levels outside [0,1] are rejected.
func (e *NativeEndpoint) SetLevel(ctx context.Context, level float64) error {
	if level < 0 || level > 1 || math.IsNaN(level) {
		return fmt.Errorf("level %v outside [0,1]", level)
	}

	name, args := e.command(Percent(level))
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}

	e.logger.Debug("volume set", "level", level, "command", name)
	return nil
}

func (e *NativeEndpoint) Close() error {
	return nil
}

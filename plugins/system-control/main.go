// Package main provides a system control plugin for macOS and Linux.
// It sets, reads and mutes the output volume via AppleScript or pactl.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action  string          `json:"action"`
	Gesture string          `json:"gesture"`
	Config  json.RawMessage `json:"config"`
	Params  json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// levelParams is the payload of volume-set and the result of volume-get.
type levelParams struct {
	Level float64 `json:"level"`
}

// actionHandler handles one action and may return data for the response.
type actionHandler func(params json.RawMessage) (any, error)

var actionHandlers = map[string]actionHandler{
	"volume-set":  volumeSet,
	"volume-get":  volumeGet,
	"volume-mute": volumeMute,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	data, err := handler(req.Params)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse(data)
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse(data any) {
	resp := Response{Success: true}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			writeErrorResponse(fmt.Sprintf("failed to encode data: %v", err))
			return
		}
		resp.Data = raw
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// run executes a host command and returns its combined output.
func run(name string, args ...string) (string, error) {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// percent converts a level in [0,1] to a whole percentage.
func percent(level float64) int {
	return int(math.Round(level * 100))
}

func volumeSet(params json.RawMessage) (any, error) {
	if len(params) == 0 {
		return nil, errors.New("missing level")
	}
	var p levelParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if p.Level < 0 || p.Level > 1 || math.IsNaN(p.Level) {
		return nil, fmt.Errorf("level %v outside [0,1]", p.Level)
	}

	var err error
	switch runtime.GOOS {
	case "darwin":
		_, err = run("osascript", "-e", fmt.Sprintf("set volume output volume %d", percent(p.Level)))
	case "linux":
		_, err = run("pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", percent(p.Level)))
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

var pactlPercent = regexp.MustCompile(`(\d+)%`)

func volumeGet(json.RawMessage) (any, error) {
	var out string
	var err error
	switch runtime.GOOS {
	case "darwin":
		out, err = run("osascript", "-e", "output volume of (get volume settings)")
	case "linux":
		out, err = run("pactl", "get-sink-volume", "@DEFAULT_SINK@")
		if err == nil {
			m := pactlPercent.FindStringSubmatch(out)
			if m == nil {
				return nil, fmt.Errorf("unexpected pactl output: %q", out)
			}
			out = m[1]
		}
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	if err != nil {
		return nil, err
	}

	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return nil, fmt.Errorf("unexpected volume %q: %w", out, err)
	}
	return levelParams{Level: float64(n) / 100}, nil
}

// volumeMute toggles the output mute state.
func volumeMute(json.RawMessage) (any, error) {
	var err error
	switch runtime.GOOS {
	case "darwin":
		_, err = run("osascript", "-e", `set volume output muted (not (output muted of (get volume settings)))`)
	case "linux":
		_, err = run("pactl", "set-sink-mute", "@DEFAULT_SINK@", "toggle")
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return nil, err
}

// Package plugin discovers and runs out-of-process action plugins.
package plugin

import (
	"encoding/json"
	"errors"
	"path/filepath"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the manifest lists action.
func (m Manifest) Supports(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Validate checks that the manifest names the plugin and an executable
// inside the plugin directory.
func (m Manifest) Validate() error {
	var errs []error
	if m.Name == "" {
		errs = append(errs, errors.New("manifest: name is required"))
	}
	if m.Executable == "" {
		errs = append(errs, errors.New("manifest: executable is required"))
	} else if !filepath.IsLocal(m.Executable) {
		errs = append(errs, errors.New("manifest: executable must stay inside the plugin directory"))
	}
	return errors.Join(errs...)
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action string `json:"action"`
	// Gesture carries the finger state that triggered the request, e.g. "01100".
	Gesture string          `json:"gesture"`
	Config  json.RawMessage `json:"config"`
	Params  json.RawMessage `json:"params"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

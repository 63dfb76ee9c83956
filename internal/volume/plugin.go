package volume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/fingervol/internal/plugin"
)

const (
	// PluginName is the plugin that owns the host volume.
	PluginName = "system-control"
	// SetAction is the plugin action that applies a level.
	SetAction = "volume-set"
	// GetAction reads the current level.
	GetAction = "volume-get"
	// MuteAction toggles the output mute state.
	MuteAction = "volume-mute"
)

// levelParams is the payload of volume-set and the data of volume-get.
type levelParams struct {
	Level float64 `json:"level"`
}

// PluginEndpoint forwards levels to the system-control plugin.
type PluginEndpoint struct {
	plugin   *plugin.Plugin
	executor *plugin.Executor
}

// NewPluginEndpoint looks up the system-control plugin in manager. The plugin
// must list the volume-set action.
func NewPluginEndpoint(manager *plugin.Manager, executor *plugin.Executor) (*PluginEndpoint, error) {
	p, err := manager.Require(PluginName, SetAction)
	if err != nil {
		return nil, err
	}
	return &PluginEndpoint{plugin: p, executor: executor}, nil
}

func (e *PluginEndpoint) SetLevel(ctx context.Context, level float64) error {
	params, err := json.Marshal(levelParams{Level: level})
	if err != nil {
		return err
	}
	_, err = e.call(ctx, SetAction, params)
	return err
}

// CurrentLevel asks the plugin for the output level in [0,1].
func (e *PluginEndpoint) CurrentLevel(ctx context.Context) (float64, error) {
	data, err := e.call(ctx, GetAction, nil)
	if err != nil {
		return 0, err
	}
	var p levelParams
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, fmt.Errorf("%s: invalid data %s: %w", GetAction, data, err)
	}
	return p.Level, nil
}

// ToggleMute mutes or unmutes the output.
func (e *PluginEndpoint) ToggleMute(ctx context.Context) error {
	_, err := e.call(ctx, MuteAction, nil)
	return err
}

// call runs action and returns the response data of a successful run.
func (e *PluginEndpoint) call(ctx context.Context, action string, params json.RawMessage) (json.RawMessage, error) {
	if !e.plugin.Manifest.Supports(action) {
		return nil, fmt.Errorf("plugin %s does not support action %q", e.plugin.Manifest.Name, action)
	}

	resp, err := e.executor.Execute(ctx, e.plugin, &plugin.Request{
		Action: action,
		Params: params,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		if resp.Error == "" {
			return nil, errors.New(action + " failed")
		}
		return nil, fmt.Errorf("%s: %s", action, resp.Error)
	}
	return resp.Data, nil
}

func (e *PluginEndpoint) Close() error {
	return nil
}

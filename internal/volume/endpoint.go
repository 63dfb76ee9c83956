package volume

import (
	"context"
	"errors"
	"sync"
)

// ErrUnsupportedPlatform is returned when the host has no known volume command.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Endpoint accepts a scalar level in [0,1] and applies it to the output device.
type Endpoint interface {
	SetLevel(ctx context.Context, level float64) error
	Close() error
}

// Muter is implemented by endpoints that can toggle the output mute state.
type Muter interface {
	ToggleMute(ctx context.Context) error
}

// LevelReader is implemented by endpoints that can report the current level.
type LevelReader interface {
	CurrentLevel(ctx context.Context) (float64, error)
}

var (
	_ Muter       = (*PluginEndpoint)(nil)
	_ LevelReader = (*PluginEndpoint)(nil)
)

// MockEndpoint records every level it receives.
type MockEndpoint struct {
	mu     sync.Mutex
	levels []float64
	err    error
	closed bool
}

// NewMockEndpoint creates a new MockEndpoint.
func NewMockEndpoint() *MockEndpoint {
	return &MockEndpoint{}
}

// SetError makes subsequent SetLevel calls fail with err. The level is still recorded.
func (m *MockEndpoint) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockEndpoint) SetLevel(_ context.Context, level float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = append(m.levels, level)
	return m.err
}

// Levels returns a copy of the levels received so far.
func (m *MockEndpoint) Levels() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.levels))
	copy(out, m.levels)
	return out
}

func (m *MockEndpoint) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockEndpoint) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

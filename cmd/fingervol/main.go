// Command fingervol sets the system volume from the number of fingers held up
// in front of the camera.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"github.com/ayusman/fingervol/internal/app"
	"github.com/ayusman/fingervol/internal/capture"
	"github.com/ayusman/fingervol/internal/config"
	"github.com/ayusman/fingervol/internal/detector"
	"github.com/ayusman/fingervol/internal/observe"
	"github.com/ayusman/fingervol/internal/plugin"
	"github.com/ayusman/fingervol/internal/render"
	"github.com/ayusman/fingervol/internal/server"
	"github.com/ayusman/fingervol/internal/store"
	"github.com/ayusman/fingervol/internal/tray"
	"github.com/ayusman/fingervol/internal/volume"
	"golang.org/x/sync/errgroup"
)

// OpenCV windows and the system tray both need the main thread.
func init() {
	runtime.LockOSThread()
}

type flags struct {
	config   string
	env      string
	camera   int
	hand     int
	addr     string
	history  string
	noWindow bool
	tray     bool
}

func parseFlags() (*flags, map[string]bool) {
	f := &flags{}
	flag.StringVar(&f.config, "config", "", "path to the YAML config (default ~/.fingervol/config.yaml if present)")
	flag.StringVar(&f.env, "env", ".env", "path to a .env file")
	flag.IntVar(&f.camera, "camera", capture.DefaultDevice, "camera device index")
	flag.IntVar(&f.hand, "hand", 0, "index of the detected hand that drives the volume")
	flag.StringVar(&f.addr, "addr", "", "status server listen address, e.g. :8080")
	flag.StringVar(&f.history, "history", "", "SQLite file for reading history")
	flag.BoolVar(&f.noWindow, "no-window", false, "run without the preview window")
	flag.BoolVar(&f.tray, "tray", false, "show the system tray menu")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set
}

func main() {
	if err := run(); err != nil {
		slog.Error("fingervol failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(f *flags, set map[string]bool) (*config.Config, error) {
	if err := config.LoadEnvFile(f.env); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	path, optional := f.config, false
	if path == "" {
		path, optional = config.DefaultPath(), true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	// Explicit flags win over file and environment.
	if set["camera"] {
		cfg.Camera.Device = f.camera
	}
	if set["hand"] {
		cfg.Detector.HandIndex = f.hand
	}
	if set["addr"] {
		cfg.Server.Addr = f.addr
	}
	if set["history"] {
		cfg.History.Path = f.history
	}
	if set["no-window"] {
		cfg.Display.Window = !f.noWindow
	}
	if set["tray"] {
		cfg.Tray.Enabled = f.tray
	}
	return cfg, config.Validate(cfg)
}

func newEndpoint(cfg *config.Config, log *slog.Logger) (volume.Endpoint, error) {
	switch cfg.Volume.Endpoint {
	case config.EndpointPlugin:
		dir := cfg.Volume.PluginDir
		if dir == "" {
			dir = findPluginDir()
		}
		manager := plugin.NewManager(dir, log)
		if err := manager.Discover(); err != nil {
			return nil, fmt.Errorf("discover plugins in %s: %w", dir, err)
		}
		return volume.NewPluginEndpoint(manager, plugin.NewExecutor(cfg.Volume.PluginTimeout))
	default:
		return volume.NewNativeEndpoint(log)
	}
}

func run() error {
	f, set := parseFlags()

	cfg, err := loadConfig(f, set)
	if err != nil {
		return err
	}

	log := observe.NewLogger(string(cfg.Log.Level), cfg.Log.Format)
	slog.SetDefault(log)

	if cfg.Tray.Enabled && cfg.Display.Window {
		log.Warn("preview window disabled while the tray menu is shown")
		cfg.Display.Window = false
	}

	endpoint, err := newEndpoint(cfg, log)
	if err != nil {
		return fmt.Errorf("volume endpoint: %w", err)
	}

	det, err := detector.NewMediaPipeDetector(cfg.DetectorSettings(), log)
	if err != nil {
		endpoint.Close()
		return fmt.Errorf("detector: %w", err)
	}

	renderer, err := render.NewRenderer(cfg.RenderOptions())
	if err != nil {
		endpoint.Close()
		det.Close()
		return fmt.Errorf("renderer: %w", err)
	}

	var display render.Display = render.NopDisplay{}
	if cfg.Display.Window {
		display = render.NewWindow(cfg.Display.Title)
	}

	metrics := observe.NewMetrics()
	application, err := app.New(app.Config{
		Camera:    capture.NewCamera(cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height, log),
		Detector:  det,
		Endpoint:  endpoint,
		Renderer:  renderer,
		Display:   display,
		HandIndex: cfg.Detector.HandIndex,
		Logger:    log,
		Metrics:   metrics,
	})
	if err != nil {
		endpoint.Close()
		det.Close()
		display.Close()
		return err
	}
	defer application.Close()

	callTimeout := cfg.Volume.PluginTimeout
	if callTimeout <= 0 {
		callTimeout = plugin.DefaultTimeout
	}
	if r, ok := endpoint.(volume.LevelReader); ok {
		readCtx, cancelRead := context.WithTimeout(context.Background(), callTimeout)
		if level, err := r.CurrentLevel(readCtx); err == nil {
			log.Info("current output volume", "level", level)
		} else {
			log.Warn("failed to read output volume", "error", err)
		}
		cancelRead()
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var st *store.Store
	var sessionID string
	if cfg.History.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
		st, err = store.New(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer st.Close()

		if v, err := st.Settings().Get(store.SettingEnabled); err == nil {
			if enabled, err := strconv.ParseBool(v); err == nil {
				application.SetEnabled(enabled)
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			log.Warn("failed to read enabled setting", "error", err)
		}

		recorder, err := store.NewRecorder(st, cfg.Camera.Device, log)
		if err != nil {
			return fmt.Errorf("start history session: %w", err)
		}
		sessionID = recorder.SessionID()
		application.AddObserver(recorder)
		g.Go(func() error { return recorder.Run(ctx) })
		log.Info("recording history", "path", cfg.History.Path, "session", sessionID)
	}

	setEnabled := func(enabled bool) {
		application.SetEnabled(enabled)
		if st != nil {
			if err := st.Settings().Set(store.SettingEnabled, strconv.FormatBool(enabled)); err != nil {
				log.Warn("failed to persist enabled setting", "error", err)
			}
		}
	}

	if cfg.Server.Addr != "" {
		frames := server.NewFrameHub()
		live := server.NewLiveHub(log)
		application.AddObserver(frames)
		application.AddObserver(live)

		webDir := findWebDir()
		if webDir != "" {
			log.Info("serving static files", "dir", webDir)
		}
		srv := server.New(server.Config{
			StaticDir:  webDir,
			Controller: application,
			Store:      st,
			SessionID:  sessionID,
			Frames:     frames,
			Live:       live,
			Metrics:    metrics,
			Logger:     log,
		})
		g.Go(func() error { return srv.Run(ctx, cfg.Server.Addr) })
	}

	if cfg.Tray.Enabled {
		t := tray.New(application.IsEnabled())
		t.OnToggle(setEnabled)
		t.OnQuit(cancel)
		if m, ok := endpoint.(volume.Muter); ok {
			t.OnMute(func() {
				muteCtx, cancelMute := context.WithTimeout(ctx, callTimeout)
				defer cancelMute()
				if err := m.ToggleMute(muteCtx); err != nil {
					log.Warn("toggle mute failed", "error", err)
				}
			})
		}
		application.AddObserver(t)

		g.Go(func() error {
			defer t.Quit()
			defer cancel()
			return application.Run(ctx)
		})
		t.Run()
		cancel()
	} else {
		err := application.Run(ctx)
		cancel()
		if err != nil {
			g.Wait()
			return err
		}
	}

	return g.Wait()
}

// findPluginDir returns the first existing plugins directory next to the
// working directory, the executable or in ~/.fingervol.
func findPluginDir() string {
	candidates := []string{"plugins", "../plugins"}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "plugins"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".fingervol", "plugins"))
	}
	if dir := firstDir(candidates); dir != "" {
		return dir
	}
	return "plugins"
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.fingervol/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	candidates := []string{"web", "../web", "../../web"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".fingervol", "web"))
	}
	return firstDir(candidates)
}

func firstDir(candidates []string) string {
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

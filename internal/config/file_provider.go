package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileProvider hydrates AuthConfig from a single JSON document (per
// spec.md §4.1/§6) and keeps it fresh by watching the file for writes via
// fsnotify, mirroring the hot-reload discipline of the teacher project's
// RulesWatcher. Mutation operations all fail with KindNotSupported.
type FileProvider struct {
	path   string
	logger *slog.Logger

	snapshot atomic.Pointer[AuthConfig]

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// NewFileProvider loads path once synchronously (so startup failures abort
// the process per spec.md §4.1) and then starts watching it for changes.
func NewFileProvider(ctx context.Context, path string, logger *slog.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &FileProvider{path: path, logger: logger.With(slog.String("agent", "config_file"))}

	cfg, err := loadAuthConfigFile(path)
	if err != nil {
		return nil, err
	}
	p.snapshot.Store(&cfg)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", dir, err)
	}
	p.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.watchLoop(watchCtx, filepath.Clean(path))

	return p, nil
}

func loadAuthConfigFile(path string) (AuthConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return AuthConfig{}, ParseFailed(fmt.Errorf("stat %s: %w", path, err))
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(map[string]any{"cookie_name": DefaultCookieName}, "."), nil); err != nil {
		return AuthConfig{}, ParseFailed(err)
	}
	if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
		return AuthConfig{}, ParseFailed(fmt.Errorf("load %s: %w", path, err))
	}

	var cfg AuthConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return AuthConfig{}, ParseFailed(err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return AuthConfig{}, ParseFailed(err)
	}
	return cfg, nil
}

func (p *FileProvider) watchLoop(ctx context.Context, target string) {
	defer close(p.done)
	defer func() { _ = p.watcher.Close() }()

	const debounce = 50 * time.Millisecond
	var timer *time.Timer
	var fired <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
		}
		fired = timer.C
	}

	reload := func() {
		cfg, err := loadAuthConfigFile(p.path)
		if err != nil {
			p.logger.Error("config reload failed, retaining previous snapshot", slog.Any("error", err))
			return
		}
		p.snapshot.Store(&cfg)
		p.logger.Info("config reloaded")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-fired:
			reload()
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) != 0 {
				schedule()
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watch error", slog.Any("error", err))
		}
	}
}

func (p *FileProvider) Current(_ context.Context) (AuthConfig, error) {
	snap := p.snapshot.Load()
	if snap == nil {
		return AuthConfig{}, Unavailable(fmt.Errorf("no snapshot loaded"))
	}
	return *snap, nil
}

func (p *FileProvider) RoutesList(ctx context.Context) ([]RouteDef, error) {
	cfg, err := p.Current(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.Routes, nil
}

func (p *FileProvider) RouteGet(ctx context.Context, id string) (RouteDef, error) {
	cfg, err := p.Current(ctx)
	if err != nil {
		return RouteDef{}, err
	}
	for _, r := range cfg.Routes {
		if r.ID == id {
			return r, nil
		}
	}
	return RouteDef{}, NotFound(id)
}

func (p *FileProvider) RouteCreate(context.Context, RouteDef) (string, error) {
	return "", NotSupported("route_create")
}

func (p *FileProvider) RouteUpdate(context.Context, string, RouteDef) error {
	return NotSupported("route_update")
}

func (p *FileProvider) RouteDelete(context.Context, string) error {
	return NotSupported("route_delete")
}

func (p *FileProvider) Close(context.Context) error {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	if p.done != nil {
		<-p.done
	}
	return nil
}

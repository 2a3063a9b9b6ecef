package config

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadSettle is how long the watcher waits after the last file event
// before re-parsing. Editors emit bursts of writes on save; one reload
// per burst is enough.
const reloadSettle = 200 * time.Millisecond

// HotConfig is a Config snapshot that follows the file on disk.
// Subscribers registered with OnReload are notified after each
// successful re-parse; a file that fails to parse keeps the previous
// snapshot live.
type HotConfig struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
	subs []func(*Config)
}

func NewHotConfig(path string) (*HotConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &HotConfig{cfg: cfg, path: path}, nil
}

func (hc *HotConfig) Get() *Config {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.cfg
}

// OnReload registers a callback for config changes. Register before
// calling Watch.
func (hc *HotConfig) OnReload(fn func(*Config)) {
	hc.subs = append(hc.subs, fn)
}

func (hc *HotConfig) reload() {
	cfg, err := Load(hc.path)
	if err != nil {
		slog.Error("config reload failed, keeping previous", "path", hc.path, "err", err)
		return
	}
	hc.mu.Lock()
	prev := hc.cfg
	hc.cfg = cfg
	hc.mu.Unlock()

	slog.Info("config reloaded",
		"path", hc.path,
		"api_key_changed", prev.Lyria.APIKey != cfg.Lyria.APIKey,
		"web_auth_changed", prev.Web.Username != cfg.Web.Username || prev.Web.Password != cfg.Web.Password,
	)
	for _, fn := range hc.subs {
		fn(cfg)
	}
}

// Watch follows the config file for changes. Event bursts are settled
// into one reload; a rename or remove (most editors save by replacing
// the file) drops the inode watch, so the path is re-added.
func (hc *HotConfig) Watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("config watcher failed", "err", err)
		return
	}

	go func() {
		defer watcher.Close()
		var settle *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					watcher.Remove(hc.path)
					if err := watcher.Add(hc.path); err != nil {
						slog.Warn("re-watch config file failed", "path", hc.path, "err", err)
					}
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if settle != nil {
					settle.Stop()
				}
				settle = time.AfterFunc(reloadSettle, hc.reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("config watcher error", "err", err)
			}
		}
	}()

	if err := watcher.Add(hc.path); err != nil {
		slog.Error("watch config file failed", "path", hc.path, "err", err)
	}
}

package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"codexbridge/internal/logging"
)

const defaultReloadDebounce = 200 * time.Millisecond

// Reload carries the outcome of re-reading the config file after a change.
type Reload struct {
	Config CoreConfig
	Err    error
}

// Watcher reloads a config file whenever it changes on disk. Only the most
// recent reload is kept for a slow reader.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   logging.Logger
	fsw      *fsnotify.Watcher
	updates  chan Reload
	done     chan struct{}

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// WatchCoreConfig watches path. The parent directory is watched so that
// editors replacing the file by rename are seen too.
func WatchCoreConfig(path string, logger logging.Logger) (*Watcher, error) {
	return newWatcher(path, defaultReloadDebounce, logger)
}

func newWatcher(path string, debounce time.Duration, logger logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
		updates:  make(chan Reload, 1),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Updates is closed after Close.
func (w *Watcher) Updates() <-chan Reload {
	return w.updates
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer func() {
		w.mu.Lock()
		w.closed = true
		if w.timer != nil {
			w.timer.Stop()
		}
		close(w.updates)
		w.mu.Unlock()
		close(w.done)
	}()
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config_watch_error", logging.F("error", err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := LoadCoreConfigFromPath(w.path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.logger.Warn("config_reload_failed", logging.F("path", w.path), logging.F("error", err))
	} else {
		w.logger.Info("config_reloaded", logging.F("path", w.path))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case <-w.updates:
	default:
	}
	w.updates <- Reload{Config: cfg, Err: err}
}

package config

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher hot-reloads Config whenever the backing file changes,
// debouncing the editor-save-triggers-multiple-events pattern most
// filesystems exhibit.
type Watcher struct {
	log     zerolog.Logger
	path    string
	watcher *fsnotify.Watcher
	onChange func(*Config)
}

// NewWatcher starts watching path and invokes onChange with the newly
// parsed Config on every write, skipping reloads that fail validation
// (the previous good config stays active).
func NewWatcher(path string, onChange func(*Config), log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		log:      log.With().Str("component", "config_watcher").Logger(),
		path:     path,
		watcher:  fw,
		onChange: onChange,
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Error().Err(err).Msg("config reload failed validation, keeping previous config")
		return
	}
	w.log.Info().Msg("config reloaded")
	w.onChange(cfg)
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

package backend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"launcher/internal/config"
)

// WatchConfig emits ChangeLanguage whenever the language stored in path changes.
// The parent directory is watched so editors that replace the file are seen.
func WatchConfig(ctx context.Context, path string, emit func(Event)) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	//nolint:gosec // G301: config directory needs standard permissions
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	last := currentLanguage(path)
	log.Logf("watching %s (language %s)", path, last)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			lang := currentLanguage(path)
			if lang == "" || lang == last {
				continue
			}
			log.Logf("language changed on disk: %s -> %s", last, lang)
			last = lang
			emit(ChangeLanguage{Lang: lang})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Logf("config watcher: %v", err)
		}
	}
}

// currentLanguage returns "" while the file is empty or unparsable, as it is
// between the truncate and write of a save; the next write event retries.
func currentLanguage(path string) string {
	//nolint:gosec // G304: path is the launcher's own config file
	data, err := os.ReadFile(path)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return ""
	}
	cfg, err := config.ReadLauncherConfigFile(path)
	if err != nil {
		return ""
	}
	return cfg.Language
}

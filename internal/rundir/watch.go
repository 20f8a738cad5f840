package rundir

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultSettle is how long a result file must stay unchanged before it
// counts as complete. NONMEM writes the .lst in bursts.
const defaultSettle = 500 * time.Millisecond

// WaitForFile blocks until name exists inside the directory and has not
// been written to for the settle period, or the context ends. A
// non-positive settle uses the default.
func (d *Directory) WaitForFile(ctx context.Context, name string, settle time.Duration, logger *slog.Logger) (string, error) {
	if settle <= 0 {
		settle = defaultSettle
	}
	if logger == nil {
		logger = slog.Default()
	}
	target := d.Join(name)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", err
	}
	defer watcher.Close()
	if err := watcher.Add(d.path); err != nil {
		return "", err
	}

	timer := time.NewTimer(settle)
	defer timer.Stop()
	present := false
	if _, err := os.Stat(target); err == nil {
		present = true
	} else {
		// no file yet, the settle timer starts counting on first sight
		if !timer.Stop() {
			<-timer.C
		}
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err := <-watcher.Errors:
			return "", err
		case ev := <-watcher.Events:
			if filepath.Clean(ev.Name) != target {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				present = false
				timer.Stop()
			default:
				logger.Debug("result file changed", "file", name, "op", ev.Op)
				present = true
				timer.Reset(settle)
			}
		case <-timer.C:
			if present {
				return target, nil
			}
		}
	}
}

package scan

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long a new file must go without further writes
// before it is scanned. Cameras and sync clients write images in chunks.
const DefaultSettleDelay = time.Second

// Watch scans image files created or rewritten in dir until ctx is canceled.
// Errors from individual files are passed to onError and do not stop the
// watch. Watch returns nil when ctx is canceled.
func (s *Scanner) Watch(ctx context.Context, dir string, settle time.Duration, onDone func(Outcome), onError func(string, error)) error {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	s.logger.Info("watching for new ledger images", "dir", dir)

	ready := make(chan string, 16)
	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok {
			t.Reset(settle)
			return
		}
		pending[path] = time.AfterFunc(settle, func() {
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldScan(event) {
				schedule(event.Name)
			}

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "dir", dir, "error", werr)

		case path := <-ready:
			out, scanErr := s.ScanFile(ctx, path)
			if scanErr != nil {
				if ctx.Err() != nil {
					return nil
				}
				if onError != nil {
					onError(path, scanErr)
				}
				continue
			}
			if onDone != nil {
				onDone(out)
			}
		}
	}
}

// shouldScan accepts creates and writes of visible image files.
func shouldScan(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if !IsImage(event.Name) {
		return false
	}
	info, err := os.Stat(event.Name)
	return err == nil && !info.IsDir()
}

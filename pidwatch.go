package workerctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// ErrPIDFilesMissing is returned when workers did not write their PID files in time
var ErrPIDFilesMissing = errors.New("pid files not written")

// pidWait tracks the PID files still expected
type pidWait struct {
	mu      sync.Mutex
	pending map[string]struct{}
}

// check drops every pending file that now exists and reports whether none remain
func (w *pidWait) check() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path := range w.pending {
		if _, err := os.Stat(path); err == nil {
			delete(w.pending, path)
		}
	}
	return len(w.pending) == 0
}

func (w *pidWait) missing() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.pending))
	for path := range w.pending {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// WaitForPIDFiles blocks until every path exists, timeout elapses or ctx ends.
// The parent directories must exist; they are watched with fsnotify.
func WaitForPIDFiles(ctx context.Context, paths []string, timeout time.Duration) error {
	state := &pidWait{pending: make(map[string]struct{}, len(paths))}
	for _, path := range paths {
		state.pending[path] = struct{}{}
	}
	if state.check() {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watching pid files: %w", err)
	}

	dirs := make(map[string]struct{})
	for _, path := range paths {
		dir := filepath.Dir(path)
		if _, seen := dirs[dir]; seen {
			continue
		}
		dirs[dir] = struct{}{}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
	})

	result := make(chan error, 1)
	sctx.Go(func(sctx *stopper.Context) error {
		ticker := time.NewTicker(DefaultPIDPollInterval)
		defer ticker.Stop()

		// Files may have appeared between the first check and watcher.Add.
		if state.check() {
			result <- nil
			return nil
		}

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case <-ctx.Done():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && state.check() {
					result <- nil
					return nil
				}

			case <-ticker.C:
				if state.check() {
					result <- nil
					return nil
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil {
					result <- err
					return nil
				}
			}
		}
		return nil
	})

	var waitErr error
	select {
	case waitErr = <-result:
	case <-ctx.Done():
	}

	sctx.Stop(100 * time.Millisecond)
	_ = sctx.Wait()

	if state.check() {
		return nil
	}
	if waitErr != nil {
		return fmt.Errorf("watching pid files: %w", waitErr)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v: %w", ErrPIDFilesMissing, state.missing(), ctxErr)
	}
	return fmt.Errorf("%w: %v", ErrPIDFilesMissing, state.missing())
}

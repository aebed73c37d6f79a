package pulse

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

// ErrNoRepository is returned by Watch when RepoPath has no .git directory.
var ErrNoRepository = errors.New("no git repository to watch")

// DefaultDebounce collapses bursts of ref updates into one pulse.
const DefaultDebounce = 2 * time.Second

// Watch pulses once, then again whenever HEAD or a branch ref changes,
// until ctx is done. Rapid changes within debounce produce one pulse.
func (r *Runner) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	gitDir := filepath.Join(r.cfg.RepoPath, ".git")
	if info, err := os.Stat(gitDir); r.cfg.RepoPath == "" || err != nil || !info.IsDir() {
		return errors.Wrapf(ErrNoRepository, "watch %s", r.cfg.RepoPath)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create fsnotify watcher")
	}
	defer watcher.Close()
	for _, dir := range []string{gitDir, filepath.Join(gitDir, "refs", "heads")} {
		if err := watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "watch %s", dir)
		}
	}

	r.runLogged(ctx)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !refEvent(event) {
				continue
			}
			r.logger.Debugw(sym.Pulse+" ref changed", logger.FieldFile, event.Name, "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			r.runLogged(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warnw(sym.Pulse+" watcher error", logger.FieldError, err)
		}
	}
}

// refEvent keeps writes to HEAD and branch refs, ignoring lock files.
func refEvent(e fsnotify.Event) bool {
	if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(e.Name)
	if filepath.Ext(base) == ".lock" {
		return false
	}
	return base == "HEAD" || base == "packed-refs" || filepath.Base(filepath.Dir(e.Name)) == "heads"
}

func (r *Runner) runLogged(ctx context.Context) {
	out, err := r.Pulse(ctx)
	if err != nil {
		r.logger.Errorw(sym.Pulse+" pulse failed", logger.FieldError, err)
		return
	}
	r.logger.Infow(sym.Pulse+" pulse",
		"skipped", out.Skipped,
		"enqueued", len(out.Enqueued),
		"queue_length", out.QueueLength)
}

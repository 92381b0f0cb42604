// Package watch triggers rebuilds when project sources change. Directory
// trees are watched recursively via fsnotify, rapid event bursts are
// debounced, and content fingerprints filter out writes that did not
// actually change file contents (editors love to rewrite identical bytes).
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"github.com/inful/mdfp"

	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
)

// Options configures a Watcher.
type Options struct {
	// Dirs are watched recursively.
	Dirs []string
	// Files are watched individually (their parent directory is registered
	// and events are filtered to the exact path).
	Files []string
	// Debounce is how long to wait after the last event before rebuilding.
	Debounce time.Duration
	// Every schedules an unconditional periodic rebuild. Zero disables it.
	Every time.Duration
	// OnChange runs after each debounced change burst. Calls never overlap;
	// changes arriving mid-rebuild coalesce into one follow-up call.
	OnChange func()
	Logger   *slog.Logger
}

// Watcher drives debounced rebuilds from filesystem events.
type Watcher struct {
	watcher   *fsnotify.Watcher
	scheduler gocron.Scheduler
	dirs      []string
	files     map[string]bool
	debounce  time.Duration
	onChange  func()
	logger    *slog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	prints map[string]string

	rebuildReq chan struct{}
}

// New builds a Watcher and registers all watch paths. Call Run to start
// processing events.
func New(opts Options) (*Watcher, error) {
	if opts.OnChange == nil {
		return nil, rerrors.New(rerrors.CategoryInternal, rerrors.SeverityFatal, "watch: OnChange callback is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, rerrors.Wrap(err, rerrors.CategoryDaemon, rerrors.SeverityFatal, "failed to create file watcher")
	}

	w := &Watcher{
		watcher:    fw,
		debounce:   debounce,
		onChange:   opts.OnChange,
		logger:     logger,
		files:      make(map[string]bool),
		prints:     make(map[string]string),
		rebuildReq: make(chan struct{}, 1),
	}

	for _, dir := range opts.Dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			fw.Close()
			return nil, rerrors.Wrap(err, rerrors.CategoryFileSystem, rerrors.SeverityFatal, "failed to resolve watch directory")
		}
		if err := addDirsRecursive(fw, abs, logger); err != nil {
			fw.Close()
			return nil, err
		}
		w.dirs = append(w.dirs, abs)
	}

	for _, file := range opts.Files {
		abs, err := filepath.Abs(file)
		if err != nil {
			fw.Close()
			return nil, rerrors.Wrap(err, rerrors.CategoryFileSystem, rerrors.SeverityFatal, "failed to resolve watch file")
		}
		// Watching the containing directory survives editors that
		// replace the file instead of writing it in place.
		if err := fw.Add(filepath.Dir(abs)); err != nil {
			fw.Close()
			return nil, rerrors.Wrap(err, rerrors.CategoryDaemon, rerrors.SeverityFatal, "failed to watch file")
		}
		w.files[abs] = true
	}

	if opts.Every > 0 {
		s, err := gocron.NewScheduler()
		if err != nil {
			fw.Close()
			return nil, rerrors.Wrap(err, rerrors.CategoryDaemon, rerrors.SeverityFatal, "failed to create rebuild scheduler")
		}
		_, err = s.NewJob(
			gocron.DurationJob(opts.Every),
			gocron.NewTask(w.requestRebuild),
			gocron.WithName("periodic-rebuild"),
		)
		if err != nil {
			fw.Close()
			return nil, rerrors.Wrap(err, rerrors.CategoryDaemon, rerrors.SeverityFatal, "failed to schedule periodic rebuild")
		}
		w.scheduler = s
	}

	return w, nil
}

// Run processes events until ctx is cancelled. The OnChange callback runs
// on a dedicated goroutine owned by Run.
func (w *Watcher) Run(ctx context.Context) error {
	if w.scheduler != nil {
		w.scheduler.Start()
		defer func() {
			if err := w.scheduler.Shutdown(); err != nil {
				w.logger.Warn("scheduler shutdown error", "error", err)
			}
		}()
	}

	go w.rebuildWorker(ctx)

	w.logger.Info("watching for changes", "dirs", w.dirs, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// Close releases the filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	if !w.relevant(ev.Name) || shouldIgnore(ev.Name) {
		return
	}

	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = addDirsRecursive(w.watcher, ev.Name, w.logger)
		}
	}

	if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 && !w.contentChanged(ev.Name) {
		w.logger.Debug("ignoring write with unchanged content", "path", ev.Name)
		return
	}
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.mu.Lock()
		delete(w.prints, ev.Name)
		w.mu.Unlock()
	}

	w.logger.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
	w.trigger()
}

// relevant reports whether the event path belongs to a watched file or
// falls under a watched directory tree. Watching a file's parent directory
// drags in sibling events; this filters them back out.
func (w *Watcher) relevant(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	if w.files[abs] {
		return true
	}
	for _, dir := range w.dirs {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// contentChanged fingerprints the file and reports whether its content
// differs from the last seen state. Unreadable paths count as changed.
func (w *Watcher) contentChanged(name string) bool {
	data, err := os.ReadFile(name)
	if err != nil {
		return true
	}
	fp := mdfp.CalculateFingerprintFromParts("", string(data))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.prints[name] == fp {
		return false
	}
	w.prints[name] = fp
	return true
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.requestRebuild)
}

func (w *Watcher) requestRebuild() {
	select {
	case w.rebuildReq <- struct{}{}:
	default:
	}
}

// rebuildWorker serializes OnChange calls. The request channel holds one
// slot, so changes arriving mid-rebuild coalesce into a single follow-up.
func (w *Watcher) rebuildWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.rebuildReq:
			w.onChange()
		}
	}
}

func addDirsRecursive(fw *fsnotify.Watcher, root string, logger *slog.Logger) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				logger.Warn("watch add failed", "dir", path, "error", err)
			}
		}
		return nil
	})
}

// shouldIgnore filters editor temp files, swap files, and hidden files.
func shouldIgnore(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}

package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/ingestion"
)

const (
	DefaultDebounce   = 500 * time.Millisecond
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// Indexer applies file changes to the store.
// *ingestion.Pipeline implements it.
type Indexer interface {
	Accepts(path string) bool
	IndexFile(ctx context.Context, path string) (ingestion.Result, error)
	RemoveFile(ctx context.Context, path string) (ingestion.Result, error)
	Scan(ctx context.Context, root string) ([]string, error)
	Reconcile(ctx context.Context, root string) ([]string, error)
}

// Service watches a directory tree and drives the indexer.
type Service struct {
	root       string
	indexer    Indexer
	debounce   time.Duration
	maxRetries int
	retryDelay time.Duration
	onResult   func(ingestion.Result)
	logger     *slog.Logger

	ctx    context.Context
	ready  chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	paths  map[string]*tracked
	closed bool
}

// Option configures a Service.
type Option func(*Service) error

// WithDebounce sets the window in which events for one path coalesce.
// Default is 500ms.
func WithDebounce(d time.Duration) Option {
	return func(s *Service) error {
		if d < 0 {
			return fmt.Errorf("debounce must not be negative, got %v", d)
		}
		s.debounce = d
		return nil
	}
}

// WithRetries sets how often a path is retried after a retryable failure.
// The delay doubles on each retry.
// Default is 3 retries starting at 1s.
func WithRetries(maxRetries int, delay time.Duration) Option {
	return func(s *Service) error {
		if maxRetries < 0 || delay < 0 {
			return errors.New("retries and delay must not be negative")
		}
		s.maxRetries = maxRetries
		s.retryDelay = delay
		return nil
	}
}

// WithOnResult registers a callback invoked after every processing pass.
// It runs on the processing goroutine and must not block for long.
func WithOnResult(fn func(ingestion.Result)) Option {
	return func(s *Service) error {
		s.onResult = fn
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a watch service for root.
func NewService(root string, indexer Indexer, opts ...Option) (*Service, error) {
	if indexer == nil {
		return nil, errors.New("indexer required")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", absRoot)
	}

	s := &Service{
		root:       absRoot,
		indexer:    indexer,
		debounce:   DefaultDebounce,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     slog.Default(),
		ctx:        context.Background(),
		ready:      make(chan struct{}),
		paths:      make(map[string]*tracked),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "watch", "root", absRoot)
	return s, nil
}

// Root returns the absolute watched directory.
func (s *Service) Root() string {
	return s.root
}

// Ready is closed once the watch set is installed and the initial scan has
// been queued.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// State returns the current state of path.
func (s *Service) State(path string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.paths[filepath.Clean(path)]; ok {
		return t.state
	}
	return StateUnseen
}

// Run watches until ctx is cancelled. On start it removes stored documents
// whose files are gone and queues every admitted file under the root.
// In-flight processing passes finish before Run returns.
func (s *Service) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	s.ctx = ctx
	if err := s.addTree(watcher, s.root); err != nil {
		return err
	}

	removed, err := s.indexer.Reconcile(ctx, s.root)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", s.root, err)
	}
	for _, path := range removed {
		s.setState(path, StateRemoved)
	}

	files, err := s.indexer.Scan(ctx, s.root)
	if err != nil {
		return fmt.Errorf("scan %s: %w", s.root, err)
	}
	for _, path := range files {
		s.observe(path, false)
	}
	s.logger.Info("watching", "files", len(files), "reconciled", len(removed))
	close(s.ready)

	defer s.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handle(watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)
		}
	}
}

func (s *Service) handle(watcher *fsnotify.Watcher, event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A vanished directory takes its tracked files with it
		s.observe(path, true)
		for _, child := range s.trackedUnder(path) {
			s.observe(child, true)
		}

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) {
				s.admitTree(watcher, path)
			}
			return
		}
		s.observe(path, false)
	}
}

// addTree registers dir and all subdirectories with the watcher.
func (s *Service) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			s.logger.Warn("skipping unreadable directory", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// admitTree starts watching a new directory and queues the files it
// already contains.
func (s *Service) admitTree(watcher *fsnotify.Watcher, dir string) {
	if err := s.addTree(watcher, dir); err != nil {
		s.logger.Warn("failed to watch new directory", "path", dir, "error", err)
		return
	}
	files, err := s.indexer.Scan(s.ctx, dir)
	if err != nil {
		s.logger.Warn("failed to scan new directory", "path", dir, "error", err)
		return
	}
	for _, path := range files {
		s.observe(path, false)
	}
}

func (s *Service) trackedUnder(dir string) []string {
	prefix := dir + string(filepath.Separator)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for path := range s.paths {
		if strings.HasPrefix(path, prefix) {
			out = append(out, path)
		}
	}
	return out
}

func (s *Service) setState(path string, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(path).state = state
}

// entry returns the tracked record for path, creating it. Caller holds s.mu.
func (s *Service) entry(path string) *tracked {
	t, ok := s.paths[path]
	if !ok {
		t = &tracked{state: StateUnseen}
		s.paths[path] = t
	}
	return t
}

// observe records an event for path and (re)starts its debounce timer.
func (s *Service) observe(path string, deleted bool) {
	path = filepath.Clean(path)
	if !s.indexer.Accepts(path) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	t, ok := s.paths[path]
	if deleted && (!ok || t.state == StateUnseen || t.state == StateRemoved) && !(ok && t.running) {
		// Nothing indexed and nothing in flight
		return
	}
	t = s.entry(path)
	t.deleted = deleted
	t.attempts = 0
	if !t.running {
		t.state = StatePending
	}
	s.schedule(path, t, s.debounce)
}

// schedule (re)arms the timer of t. Caller holds s.mu.
func (s *Service) schedule(path string, t *tracked, delay time.Duration) {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(delay, func() { s.fire(path) })
}

// fire starts a processing pass for path unless one is already running.
func (s *Service) fire(path string) {
	s.mu.Lock()
	t, ok := s.paths[path]
	if !ok || s.closed {
		s.mu.Unlock()
		return
	}
	t.timer = nil
	if t.running {
		t.rerun = true
		s.mu.Unlock()
		return
	}
	t.running = true
	t.state = StateProcessing
	deleted := t.deleted
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.process(path, deleted)
}

func (s *Service) process(path string, deleted bool) {
	var (
		result ingestion.Result
		err    error
	)
	if deleted {
		result, err = s.indexer.RemoveFile(s.ctx, path)
	} else {
		result, err = s.indexer.IndexFile(s.ctx, path)
	}
	if err != nil {
		s.logger.Error("processing failed", "path", path, "error", err)
		result = ingestion.Result{Path: path, Outcome: ingestion.OutcomeFailed, Err: err}
	}

	s.mu.Lock()
	t := s.paths[path]
	t.running = false

	retry := false
	switch result.Outcome {
	case ingestion.OutcomeIndexed, ingestion.OutcomeUnchanged:
		t.state = StateIndexed
		t.attempts = 0
	case ingestion.OutcomeRemoved:
		t.state = StateRemoved
	case ingestion.OutcomeIgnored:
		if deleted {
			t.state = StateRemoved
		} else {
			t.state = StateUnseen
		}
	default:
		t.state = StateFailed
		retry = core.IsRetryable(result.Err) && t.attempts < s.maxRetries
	}

	switch {
	case t.rerun || t.timer != nil:
		// Newer events arrived while processing
		t.rerun = false
		t.state = StatePending
		if t.timer == nil {
			s.schedule(path, t, 0)
		}
	case retry && !s.closed:
		t.attempts++
		delay := s.retryDelay << (t.attempts - 1)
		s.logger.Info("retrying", "path", path, "attempt", t.attempts, "delay", delay)
		t.state = StatePending
		s.schedule(path, t, delay)
	}
	state := t.state
	s.mu.Unlock()

	s.logger.Debug("processed", "path", path, "outcome", result.Outcome, "state", state)
	if s.onResult != nil {
		s.onResult(result)
	}
}

// shutdown stops pending timers and waits for in-flight passes.
func (s *Service) shutdown() {
	s.mu.Lock()
	s.closed = true
	for _, t := range s.paths {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}

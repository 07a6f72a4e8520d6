package outline

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	models "tenderplan/internal/domain/models/outline"
	outlineSvc "tenderplan/internal/domain/services/outline"
)

// DefaultStreamingTimeout clears a streaming flag whose completion was never observed.
const DefaultStreamingTimeout = 5 * time.Minute

// SessionOptions tunes a Session.
type SessionOptions struct {
	StreamingTimeout time.Duration
	// IdleTimeout is used by Registry to close sessions nobody holds.
	IdleTimeout time.Duration
}

// Session holds the live outline of one project.
//
// Every mutation goes through Mutate, which swaps the whole tree under the
// lock. Readers get an immutable snapshot and never observe a partial update.
type Session struct {
	projectID        string
	sync             *SyncService
	events           outlineSvc.EventPublisher
	logger           *slog.Logger
	streamingTimeout time.Duration

	mu        sync.RWMutex
	tree      *models.Outline
	loaded    bool
	expanded  map[string]bool
	busy      map[string]bool
	progress  models.Progress
	progKey   string
	streaming map[string]*time.Timer

	reloads     chan struct{}
	closed      chan struct{}
	closeOnce   sync.Once
	startOnce   sync.Once
	baseCtx     context.Context
	unsubscribe []func()
	wg          sync.WaitGroup // reload loop
	bg          sync.WaitGroup // work started with Go
}

// NewSession creates a session. events may be nil.
func NewSession(projectID string, syncSvc *SyncService, events outlineSvc.EventPublisher, logger *slog.Logger, opts SessionOptions) *Session {
	if opts.StreamingTimeout <= 0 {
		opts.StreamingTimeout = DefaultStreamingTimeout
	}
	return &Session{
		projectID:        projectID,
		sync:             syncSvc,
		events:           events,
		logger:           logger.With("project_id", projectID),
		streamingTimeout: opts.StreamingTimeout,
		tree:             models.Empty(projectID),
		expanded:         make(map[string]bool),
		busy:             make(map[string]bool),
		streaming:        make(map[string]*time.Timer),
		reloads:          make(chan struct{}, 1),
		closed:           make(chan struct{}),
		baseCtx:          context.Background(),
	}
}

// ProjectID returns the project the session belongs to.
func (s *Session) ProjectID() string { return s.projectID }

// Outline returns the current snapshot.
func (s *Session) Outline() *models.Outline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree
}

// Loaded reports whether a load has succeeded at least once.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Mutate replaces the tree with fn(current) and returns the new tree.
func (s *Session) Mutate(fn func(*models.Outline) *models.Outline) *models.Outline {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.tree)
	if next != nil {
		s.tree = next
	}
	return s.tree
}

// Reload fetches the outline from the store, sources included. On failure the
// previous tree is kept and the user is notified.
func (s *Session) Reload(ctx context.Context) error {
	s.sync.ForgetSources(s.projectID)
	return s.reload(ctx)
}

// reload is Reload without dropping cached sources. Change notifications
// keep the source cache current.
func (s *Session) reload(ctx context.Context) error {
	tree, err := s.sync.Load(ctx, s.projectID)
	if err != nil {
		s.logger.Error("outline reload failed", "error", err)
		s.Notify(models.LevelError, "Failed to load outline", err.Error())
		return err
	}

	s.mu.Lock()
	s.tree = tree
	s.loaded = true
	s.mu.Unlock()

	s.publish(models.ClientEvent{Type: models.EventOutlineReloaded, Data: map[string]any{
		"loaded_at": tree.LoadedAt,
	}})
	return nil
}

// EnsureLoaded performs the first load if none has succeeded yet.
func (s *Session) EnsureLoaded(ctx context.Context) error {
	if s.Loaded() {
		return nil
	}
	return s.Reload(ctx)
}

// RequestReload queues a reload. Requests arriving while one is pending are
// coalesced into it.
func (s *Session) RequestReload() {
	select {
	case s.reloads <- struct{}{}:
	default:
	}
}

// Start subscribes to change notifications and runs the reload loop until
// ctx is cancelled or Close is called.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.baseCtx = context.WithoutCancel(ctx)

		reload := func(models.ChangeEvent) { s.RequestReload() }
		s.unsubscribe = append(s.unsubscribe,
			s.sync.SubscribeRealtime(s.projectID, RealtimeHandlers{
				OnSectionChange:    reload,
				OnTaskChange:       reload,
				OnSourceLinkChange: reload,
				OnSourceChange:     reload,
			}),
			s.sync.SubscribeTaskInserts(func(evt models.ChangeEvent) {
				if evt.ProjectID != s.projectID {
					return
				}
				s.onTaskInserted(evt)
			}),
		)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-s.closed:
					return
				case <-s.reloads:
					_ = s.reload(ctx)
				}
			}
		}()
	})
}

// Close stops the session and waits for pending background work.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, unsub := range s.unsubscribe {
			unsub()
		}
		s.mu.Lock()
		for key, timer := range s.streaming {
			timer.Stop()
			delete(s.streaming, key)
		}
		s.mu.Unlock()
		close(s.closed)
	})
	s.wg.Wait()
	s.bg.Wait()
}

// Go runs fn in the background with a context detached from the caller.
func (s *Session) Go(fn func(ctx context.Context)) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn(s.baseCtx)
	}()
}

// Wait blocks until background work started with Go has finished.
func (s *Session) Wait() {
	s.bg.Wait()
}

// SetExpanded replaces the set of expanded section IDs.
func (s *Session) SetExpanded(ids []string) {
	expanded := make(map[string]bool, len(ids))
	for _, id := range ids {
		expanded[id] = true
	}
	s.mu.Lock()
	s.expanded = expanded
	s.mu.Unlock()
}

// Expanded returns the expanded section IDs, sorted.
func (s *Session) Expanded() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.expanded))
	for id := range s.expanded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Flatten returns the visible rows for the current expansion state.
func (s *Session) Flatten() []models.FlatRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Flatten(s.tree, s.expanded)
}

// TryBegin marks key as running. It returns false when key is already running.
func (s *Session) TryBegin(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[key] {
		return false
	}
	s.busy[key] = true
	return true
}

// End clears a running mark.
func (s *Session) End(key string) {
	s.mu.Lock()
	delete(s.busy, key)
	s.mu.Unlock()
}

// Busy returns the running action keys, sorted.
func (s *Session) Busy() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.busy))
	for k := range s.busy {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StartProgress resets the progress counter to 0 of total. The streaming
// flag of key is cleared once the counter reaches total.
func (s *Session) StartProgress(key string, total int) {
	s.mu.Lock()
	s.progress = models.Progress{Current: 0, Total: total}
	s.progKey = key
	p := s.progress
	s.mu.Unlock()
	s.publish(models.ClientEvent{Type: models.EventProgress, Data: p})
}

// IncrementProgress counts one generated task. It is a no-op while no
// progress is being tracked.
func (s *Session) IncrementProgress() (models.Progress, bool) {
	s.mu.Lock()
	if s.progress.Total <= 0 {
		s.mu.Unlock()
		return models.Progress{}, false
	}
	s.progress.Current++
	p := s.progress
	key := s.progKey
	s.mu.Unlock()

	s.publish(models.ClientEvent{Type: models.EventProgress, Data: p})
	if p.Current >= p.Total && key != "" {
		s.ClearStreaming(key)
	}
	return p, true
}

// Progress returns the current counter.
func (s *Session) Progress() models.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// MarkStreaming flags key as streaming until ClearStreaming or the safety
// timeout fires.
func (s *Session) MarkStreaming(key string) {
	s.mu.Lock()
	if timer, ok := s.streaming[key]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.streamingTimeout, func() {
		s.mu.Lock()
		if s.streaming[key] != timer {
			s.mu.Unlock()
			return
		}
		delete(s.streaming, key)
		s.mu.Unlock()
		s.logger.Warn("streaming flag expired", "key", key, "timeout", s.streamingTimeout)
		s.publish(models.ClientEvent{Type: models.EventStreaming, Data: map[string]any{"key": key, "streaming": false}})
	})
	s.streaming[key] = timer
	s.mu.Unlock()

	s.publish(models.ClientEvent{Type: models.EventStreaming, Data: map[string]any{"key": key, "streaming": true}})
}

// ClearStreaming drops a streaming flag.
func (s *Session) ClearStreaming(key string) {
	s.mu.Lock()
	timer, ok := s.streaming[key]
	if ok {
		timer.Stop()
		delete(s.streaming, key)
	}
	s.mu.Unlock()
	if ok {
		s.publish(models.ClientEvent{Type: models.EventStreaming, Data: map[string]any{"key": key, "streaming": false}})
	}
}

// Streaming returns the streaming keys, sorted.
func (s *Session) Streaming() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.streaming))
	for k := range s.streaming {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Notify sends a toast to the project's subscribers.
func (s *Session) Notify(level models.NotificationLevel, title, message string) {
	s.logger.Debug("notification", "level", level, "title", title, "message", message)
	s.publish(models.ClientEvent{Type: models.EventNotification, Data: models.Notification{
		Level:   level,
		Title:   title,
		Message: message,
	}})
}

func (s *Session) onTaskInserted(evt models.ChangeEvent) {
	s.publish(models.ClientEvent{Type: models.EventTaskGenerated, Data: evt})
	if p, ok := s.IncrementProgress(); ok {
		s.logger.Debug("generation progress", "current", p.Current, "total", p.Total)
	}
}

func (s *Session) publish(evt models.ClientEvent) {
	if s.events != nil {
		s.events.Publish(s.projectID, evt)
	}
}

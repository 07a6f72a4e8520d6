package outline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	outlineSvc "tenderplan/internal/domain/services/outline"
)

// DefaultIdleTimeout is how long a session nobody holds stays open.
const DefaultIdleTimeout = 30 * time.Minute

type registryEntry struct {
	session  *Session
	holders  int
	lastUsed time.Time
}

// Registry owns one Session per open project. Sessions without holders are
// closed once they have been idle for IdleTimeout.
type Registry struct {
	ctx         context.Context
	sync        *SyncService
	events      outlineSvc.EventPublisher
	opts        SessionOptions
	idleTimeout time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*registryEntry
	done     chan struct{}
	stopOnce sync.Once
	sweeper  sync.WaitGroup
}

// NewRegistry creates a registry. Sessions live until they go idle, ctx is
// cancelled or Close is called.
func NewRegistry(ctx context.Context, syncSvc *SyncService, events outlineSvc.EventPublisher, opts SessionOptions, logger *slog.Logger) *Registry {
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	r := &Registry{
		ctx:         ctx,
		sync:        syncSvc,
		events:      events,
		opts:        opts,
		idleTimeout: idle,
		logger:      logger,
		sessions:    make(map[string]*registryEntry),
		done:        make(chan struct{}),
	}
	r.sweeper.Add(1)
	go r.sweepLoop()
	return r
}

// Get returns the started session of a project, loading it on first use.
func (r *Registry) Get(ctx context.Context, projectID string) (*Session, error) {
	s, _ := r.open(projectID, false)
	if err := s.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Acquire is Get for long-lived callers such as event streams. The session
// is not evicted before release is called.
func (r *Registry) Acquire(ctx context.Context, projectID string) (*Session, func(), error) {
	s, entry := r.open(projectID, true)

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			entry.holders--
			entry.lastUsed = time.Now()
			r.mu.Unlock()
		})
	}
	if err := s.EnsureLoaded(ctx); err != nil {
		release()
		return nil, nil, err
	}
	return s, release, nil
}

func (r *Registry) open(projectID string, hold bool) (*Session, *registryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[projectID]
	if !ok {
		s := NewSession(projectID, r.sync, r.events, r.logger, r.opts)
		s.Start(r.ctx)
		entry = &registryEntry{session: s}
		r.sessions[projectID] = entry
		r.logger.Info("outline session opened", "project_id", projectID)
	}
	entry.lastUsed = time.Now()
	if hold {
		entry.holders++
	}
	return entry.session, entry
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions that have no holders, no running work and have been
// idle since before now minus the idle timeout. It returns how many it closed.
func (r *Registry) Sweep(now time.Time) int {
	var idle []*Session
	r.mu.Lock()
	for projectID, entry := range r.sessions {
		s := entry.session
		if entry.holders > 0 || now.Sub(entry.lastUsed) < r.idleTimeout {
			continue
		}
		if len(s.Busy()) > 0 || len(s.Streaming()) > 0 {
			continue
		}
		delete(r.sessions, projectID)
		idle = append(idle, s)
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Close()
		r.logger.Info("outline session evicted", "project_id", s.ProjectID())
	}
	return len(idle)
}

func (r *Registry) sweepLoop() {
	defer r.sweeper.Done()
	interval := r.idleTimeout / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.done:
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// Close stops the sweeper and every session.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.done) })
	r.sweeper.Wait()

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, entry := range sessions {
		entry.session.Close()
	}
}

package screen

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry keeps the open screens of all visitors, keyed by an opaque id.
type Registry struct {
	mu      sync.Mutex
	screens map[string]*entry
	idle    time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

type entry struct {
	screen   *Screen
	lastSeen time.Time
}

func NewRegistry(idle time.Duration, logger *slog.Logger) *Registry {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		screens: map[string]*entry{},
		idle:    idle,
		now:     time.Now,
		logger:  logger,
	}
}

func (r *Registry) Add(s *Screen) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screens[id] = &entry{screen: s, lastSeen: r.now()}
	return id
}

func (r *Registry) Get(id string) (*Screen, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.screens[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.screen, true
}

func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.screens[id]
	if !ok {
		return false
	}
	e.screen.CancelDrag()
	delete(r.screens, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.screens)
}

// Sweep drops screens that have not been touched for the idle period.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.idle)
	removed := 0
	for id, e := range r.screens {
		if e.lastSeen.Before(cutoff) {
			delete(r.screens, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("expired idle screens", "count", n)
			}
		}
	}
}

package sessions

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"meme-studio/editor"
)

// DefaultIdleTimeout is how long a session survives without being used.
const DefaultIdleTimeout = 30 * time.Minute

type entry struct {
	session  *editor.Session
	lastUsed time.Time
}

// Registry holds the live editing sessions of this process. Sessions that
// are not used for the idle timeout are evicted by Sweep.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	idle     time.Duration
	now      func() time.Time
	onRemove []func(id string)
}

func NewRegistry(idle time.Duration) *Registry {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Registry{
		sessions: make(map[string]*entry),
		idle:     idle,
		now:      time.Now,
	}
}

// OnRemove registers fn to run after a session is deleted or evicted.
func (r *Registry) OnRemove(fn func(id string)) {
	r.mu.Lock()
	r.onRemove = append(r.onRemove, fn)
	r.mu.Unlock()
}

// Create starts an empty session under a fresh id.
func (r *Registry) Create() *editor.Session {
	s := editor.NewSession(strings.ToLower(ulid.Make().String()))
	r.mu.Lock()
	r.sessions[s.ID()] = &entry{session: s, lastUsed: r.now()}
	r.mu.Unlock()
	return s
}

// Get returns the session and marks it as used.
func (r *Registry) Get(id string) (*editor.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.session, true
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	if _, ok := r.sessions[id]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, id)
	hooks := r.onRemove
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(id)
	}
	return true
}

// Sweep evicts every session idle for longer than the timeout and returns
// their ids.
func (r *Registry) Sweep() []string {
	r.mu.Lock()
	cutoff := r.now().Add(-r.idle)
	var evicted []string
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	hooks := r.onRemove
	remaining := len(r.sessions)
	r.mu.Unlock()

	for _, id := range evicted {
		for _, fn := range hooks {
			fn(id)
		}
	}
	if len(evicted) > 0 {
		logrus.WithFields(logrus.Fields{
			"evicted":   len(evicted),
			"remaining": remaining,
		}).Info("Evicted idle sessions")
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

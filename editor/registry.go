package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"guides-server/core"
)

type entry struct {
	mu       sync.Mutex
	session  *Session
	ownerID  string
	lastUsed time.Time
}

// Registry holds the server-side editor sessions. Calls on one session are
// serialized, so an edit issued while a save is in flight waits for it.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Open starts a session on the guide's current elements and returns its id.
func (r *Registry) Open(guide *core.Guide, ownerID string) string {
	id := ulid.Make().String()
	e := &entry{
		session:  NewSession(guide.ID, guide.Elements),
		ownerID:  ownerID,
		lastUsed: r.now(),
	}

	r.mu.Lock()
	r.sessions[id] = e
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"session_id": id,
		"guide_id":   guide.ID,
		"user_id":    ownerID,
	}).Info("Editor session opened")
	return id
}

func (r *Registry) lookup(id, userID string) (*entry, error) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("editor session %s: %w", id, core.ErrNotFound)
	}
	if e.ownerID != userID {
		return nil, fmt.Errorf("editor session %s: %w", id, core.ErrForbidden)
	}
	return e, nil
}

// With runs fn on the session while holding its lock.
func (r *Registry) With(id, userID string, fn func(*Session) error) error {
	e, err := r.lookup(id, userID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUsed = r.now()
	return fn(e.session)
}

func (r *Registry) Close(id, userID string) error {
	if _, err := r.lookup(id, userID); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	logrus.WithField("session_id", id).Info("Editor session closed")
	return nil
}

// CloseGuide drops every session editing the guide.
func (r *Registry) CloseGuide(guideID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.sessions {
		if e.session.GuideID() == guideID {
			delete(r.sessions, id)
		}
	}
}

// Sweep drops sessions idle for longer than the ttl and returns how many
// were dropped. A session whose lock is held is in use and is kept.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for id, e := range r.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.lastUsed.Before(cutoff) {
			delete(r.sessions, id)
			dropped++
		}
		e.mu.Unlock()
	}
	if dropped > 0 {
		logrus.WithField("dropped", dropped).Info("Expired editor sessions dropped")
	}
	return dropped
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run sweeps on every tick until ctx is done.
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

package http

import (
	"errors"
	"sync"

	"github.com/qcm-las/qcm-server/internal/quiz"
)

var ErrSessionNotFound = errors.New("session not found")

// sessionEntry pairs a controller with the lock that serializes every
// operation on it. The engine itself is single-threaded by contract; this
// lock is what makes a tick and a concurrent validate/finish take turns.
type sessionEntry struct {
	mu  sync.Mutex
	ctl *quiz.Controller
}

// SessionRegistry owns the live sessions, keyed by session ID.
type SessionRegistry struct {
	mu sync.Mutex
	m  map[string]*sessionEntry
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{m: map[string]*sessionEntry{}}
}

func (r *SessionRegistry) Put(ctl *quiz.Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[ctl.Session().ID] = &sessionEntry{ctl: ctl}
}

// With runs fn with exclusive access to one session's controller.
func (r *SessionRegistry) With(id string, fn func(ctl *quiz.Controller) error) error {
	r.mu.Lock()
	e, ok := r.m[id]
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.ctl)
}

// Drop removes a session, stopping its timer first so no stale tick can
// reach it afterwards.
func (r *SessionRegistry) Drop(id string) {
	r.mu.Lock()
	e, ok := r.m[id]
	delete(r.m, id)
	r.mu.Unlock()
	if ok {
		e.mu.Lock()
		e.ctl.Session().StopTimer()
		e.mu.Unlock()
	}
}

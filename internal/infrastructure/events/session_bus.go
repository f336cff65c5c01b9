package events

import (
	"log/slog"
	"sync"

	"passforge/internal/domain"
)

type subscription struct {
	id       uint64
	listener domain.SessionListener
}

// SessionBus fans auth transitions out to listeners keyed by session id.
// Implements domain.SessionPublisher.
type SessionBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
	users  map[string]map[string]struct{} // user id -> session ids
	owners map[string]string              // session id -> user id
	logger *slog.Logger
}

// NewSessionBus creates an empty bus.
func NewSessionBus(l *slog.Logger) *SessionBus {
	return &SessionBus{
		subs:   make(map[string][]subscription),
		users:  make(map[string]map[string]struct{}),
		owners: make(map[string]string),
		logger: l.With("component", "session_bus"),
	}
}

// Subscribe registers listener for events on sessionID. The returned
// function detaches it and may be called more than once.
func (b *SessionBus) Subscribe(sessionID string, listener domain.SessionListener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[sessionID] = append(b.subs[sessionID], subscription{id: id, listener: listener})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sessionID, id) })
	}
}

// Bind records that sessionID belongs to userID so PublishUser reaches it.
// Only sessions with at least one subscriber are bound; the binding is
// dropped when the last subscriber detaches.
func (b *SessionBus) Bind(userID, sessionID string) {
	if userID == "" || sessionID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subs[sessionID]) == 0 {
		return
	}
	if owner, ok := b.owners[sessionID]; ok && owner != userID {
		b.unbindLocked(sessionID)
	}
	b.owners[sessionID] = userID

	sessions, ok := b.users[userID]
	if !ok {
		sessions = make(map[string]struct{})
		b.users[userID] = sessions
	}
	sessions[sessionID] = struct{}{}
}

// Publish delivers event to every listener on sessionID and returns how
// many were notified. Listeners run on the caller's goroutine, outside
// the bus lock.
func (b *SessionBus) Publish(sessionID string, event domain.SessionEvent) int {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[sessionID]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.listener(event)
	}
	if event.Kind == domain.SessionSignedOut {
		b.unbindSession(sessionID)
	}
	return len(subs)
}

// PublishUser delivers event to every session bound to userID.
func (b *SessionBus) PublishUser(userID string, event domain.SessionEvent) int {
	b.mu.RLock()
	sessionIDs := make([]string, 0, len(b.users[userID]))
	for id := range b.users[userID] {
		sessionIDs = append(sessionIDs, id)
	}
	b.mu.RUnlock()

	notified := 0
	for _, id := range sessionIDs {
		notified += b.Publish(id, event)
	}
	b.logger.Debug("user event published", "user_id", userID, "kind", event.Kind, "listeners", notified)
	return notified
}

// Subscribers returns the number of listeners on sessionID.
func (b *SessionBus) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

func (b *SessionBus) remove(sessionID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sessionID]
	for i, s := range subs {
		if s.id == id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subs, sessionID)
		b.unbindLocked(sessionID)
		return
	}
	b.subs[sessionID] = subs
}

func (b *SessionBus) unbindSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unbindLocked(sessionID)
}

func (b *SessionBus) unbindLocked(sessionID string) {
	userID, ok := b.owners[sessionID]
	if !ok {
		return
	}
	delete(b.owners, sessionID)

	sessions := b.users[userID]
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(b.users, userID)
	}
}

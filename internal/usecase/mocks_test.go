package usecase

import (
	"context"
	"sync"

	"passforge/internal/domain"
)

// mockValidator implements domain.SessionValidator for testing.
type mockValidator struct {
	mu      sync.Mutex
	session *domain.Session
	err     error
	calls   int
	cookie  string
}

func (m *mockValidator) ValidateSession(_ context.Context, cookie string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.cookie = cookie
	if m.session == nil {
		return nil, m.err
	}
	s := *m.session
	return &s, m.err
}

func (m *mockValidator) set(session *domain.Session, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session
	m.err = err
}

func (m *mockValidator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockCache implements domain.SessionCache for testing.
type mockCache struct {
	mu      sync.Mutex
	entries map[string]domain.CachedSession
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]domain.CachedSession)}
}

func (m *mockCache) Get(key string) (*domain.CachedSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, found := m.entries[key]
	if !found {
		return nil, false
	}
	return &entry, true
}

func (m *mockCache) Set(key string, session domain.CachedSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = session
}

func (m *mockCache) EvictSession(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, v := range m.entries {
		if v.SessionID == sessionID {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// fakeSource is a domain.SessionSource driven by the test.
type fakeSource struct {
	mu           sync.Mutex
	listener     domain.SessionListener
	err          error
	unsubscribed int
}

func (s *fakeSource) Subscribe(_ context.Context, l domain.SessionListener) (func(), error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.unsubscribed++
		s.mu.Unlock()
	}, nil
}

func (s *fakeSource) emit(event domain.SessionEvent) {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	l(event)
}

func (s *fakeSource) unsubscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

type profileResult struct {
	profile *domain.Profile
	err     error
}

// fakeProfiles is a domain.ProfileSource whose fetches can be held open.
type fakeProfiles struct {
	mu          sync.Mutex
	cached      map[string]domain.ProfileEntry
	results     map[string]profileResult
	gates       map[string]chan struct{}
	fetches     map[string]int
	invalidated []string
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		cached:  make(map[string]domain.ProfileEntry),
		results: make(map[string]profileResult),
		gates:   make(map[string]chan struct{}),
		fetches: make(map[string]int),
	}
}

func (f *fakeProfiles) Fetch(ctx context.Context, userID string) (*domain.Profile, error) {
	f.mu.Lock()
	f.fetches[userID]++
	gate := f.gates[userID]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[userID]
	return r.profile, r.err
}

func (f *fakeProfiles) Peek(userID string) (domain.ProfileEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.cached[userID]
	return entry, ok
}

func (f *fakeProfiles) Invalidate(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cached, userID)
	f.invalidated = append(f.invalidated, userID)
}

func (f *fakeProfiles) hold(userID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[userID] = gate
	return gate
}

func (f *fakeProfiles) fetchCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[userID]
}

func (f *fakeProfiles) respond(userID string, profile *domain.Profile, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[userID] = profileResult{profile: profile, err: err}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"passforge/internal/domain"
)

// AuthStateWatcher keeps an AuthState derived from a session source and a
// profile source, recomputing it whenever either input changes.
type AuthStateWatcher struct {
	source   domain.SessionSource
	profiles domain.ProfileSource
	fallback time.Duration
	logger   *slog.Logger

	mu          sync.Mutex
	session     domain.SessionState
	profile     domain.ProfileState
	profileFor  string
	fetchSeq    uint64
	timedOut    bool
	state       domain.AuthState
	version     uint64
	listeners   map[uint64]func(domain.AuthState)
	nextID      uint64
	started     bool
	closed      bool
	unsubscribe func()
	timer       *time.Timer
	ctx         context.Context
	cancel      context.CancelFunc

	// notifyMu orders listener delivery by version.
	notifyMu  sync.Mutex
	delivered uint64
}

// NewAuthStateWatcher creates a watcher. A zero fallback disables the
// session fallback timeout.
func NewAuthStateWatcher(source domain.SessionSource, profiles domain.ProfileSource, fallback time.Duration, l *slog.Logger) *AuthStateWatcher {
	return &AuthStateWatcher{
		source:    source,
		profiles:  profiles,
		fallback:  fallback,
		logger:    l.With("component", "auth_state_watcher"),
		state:     domain.Reconcile(domain.SessionState{}, domain.ProfileState{}),
		listeners: make(map[uint64]func(domain.AuthState)),
	}
}

// Start subscribes to the session source. Until the first session event the
// state reports session loading. Start may be called once; a subscription
// failure is reflected in the state and returned.
func (w *AuthStateWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started || w.closed {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.session = domain.SessionState{Loading: true}
	if w.fallback > 0 {
		w.timer = time.AfterFunc(w.fallback, w.onFallback)
	}
	version, state := w.recomputeLocked()
	w.mu.Unlock()
	w.notify(version, state)

	unsubscribe, err := w.source.Subscribe(w.ctx, w.handleSessionEvent)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionSubscription) {
			err = fmt.Errorf("%w: %w", domain.ErrSessionSubscription, err)
		}
		w.logger.ErrorContext(ctx, "session subscription failed", "error", err)

		w.mu.Lock()
		w.stopTimerLocked()
		w.session = domain.SessionState{Err: err, Resolved: true}
		version, state := w.recomputeLocked()
		w.mu.Unlock()
		w.notify(version, state)
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		unsubscribe()
		return nil
	}
	w.unsubscribe = unsubscribe
	w.mu.Unlock()
	return nil
}

// State returns the latest derived state.
func (w *AuthStateWatcher) State() domain.AuthState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Subscribe registers listener for every recomputed state. The returned
// function removes it.
func (w *AuthStateWatcher) Subscribe(listener func(domain.AuthState)) func() {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.listeners[id] = listener
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

// WaitSettled blocks until the state is resolved and not loading, or ctx is
// done. On ctx expiry the latest state is returned with ctx's error.
func (w *AuthStateWatcher) WaitSettled(ctx context.Context) (domain.AuthState, error) {
	settledCh := make(chan domain.AuthState, 1)
	unsubscribe := w.Subscribe(func(s domain.AuthState) {
		if settled(s) {
			select {
			case settledCh <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	if s := w.State(); settled(s) {
		return s, nil
	}

	select {
	case s := <-settledCh:
		return s, nil
	case <-ctx.Done():
		return w.State(), ctx.Err()
	}
}

// Close detaches from the session source and stops the fallback timer.
// Profile fetches still in flight are abandoned. Close is idempotent.
func (w *AuthStateWatcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.stopTimerLocked()
	if w.cancel != nil {
		w.cancel()
	}
	unsubscribe := w.unsubscribe
	w.unsubscribe = nil
	clear(w.listeners)
	w.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func settled(s domain.AuthState) bool {
	return !s.IsLoading && s.Phase != domain.PhaseUnresolved
}

func (w *AuthStateWatcher) handleSessionEvent(event domain.SessionEvent) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.stopTimerLocked()
	w.timedOut = false
	w.session = domain.SessionState{Session: event.Session, Err: event.Err, Resolved: true}

	var userID string
	if event.Session != nil {
		userID = event.Session.UserID
	}

	if userID == "" {
		// abandon any fetch for the previous user
		w.fetchSeq++
		w.profileFor = ""
		w.profile = domain.ProfileState{}
		version, state := w.recomputeLocked()
		w.mu.Unlock()
		w.notify(version, state)
		return
	}

	var previous *domain.Profile
	if w.profileFor == userID {
		previous = w.profile.Profile
	}
	w.profileFor = userID

	if entry, ok := w.profiles.Peek(userID); ok {
		if entry.Value != nil {
			previous = entry.Value
		}
		if entry.Status == domain.ProfileSuccess {
			w.fetchSeq++
			w.profile = domain.ProfileState{Profile: entry.Value}
			version, state := w.recomputeLocked()
			w.mu.Unlock()
			w.notify(version, state)
			return
		}
	}

	w.fetchSeq++
	seq := w.fetchSeq
	ctx := w.ctx
	w.profile = domain.ProfileState{Profile: previous, Loading: true}
	version, state := w.recomputeLocked()
	w.mu.Unlock()
	w.notify(version, state)

	go w.fetchProfile(ctx, seq, userID)
}

func (w *AuthStateWatcher) fetchProfile(ctx context.Context, seq uint64, userID string) {
	profile, err := w.profiles.Fetch(ctx, userID)

	w.mu.Lock()
	if w.closed || seq != w.fetchSeq || w.profileFor != userID {
		w.mu.Unlock()
		w.logger.Debug("dropping stale profile result", "user_id", userID)
		return
	}
	if err != nil {
		w.profile = domain.ProfileState{Profile: w.profile.Profile, Err: err}
	} else {
		w.profile = domain.ProfileState{Profile: profile}
	}
	version, state := w.recomputeLocked()
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("profile fetch failed", "user_id", userID, "error", err)
	}
	w.notify(version, state)
}

func (w *AuthStateWatcher) onFallback() {
	w.mu.Lock()
	if w.closed || w.session.Resolved {
		w.mu.Unlock()
		return
	}
	w.session = domain.SessionState{Resolved: true}
	w.timedOut = true
	version, state := w.recomputeLocked()
	w.mu.Unlock()

	w.logger.Warn("no session event before fallback timeout, forcing signed-out state",
		"timeout", w.fallback.String())
	w.notify(version, state)
}

func (w *AuthStateWatcher) stopTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *AuthStateWatcher) recomputeLocked() (uint64, domain.AuthState) {
	state := domain.Reconcile(w.session, w.profile)
	state.TimedOut = w.timedOut
	w.state = state
	w.version++
	return w.version, state
}

func (w *AuthStateWatcher) notify(version uint64, state domain.AuthState) {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	if version <= w.delivered {
		return
	}
	w.delivered = version

	w.mu.Lock()
	listeners := make([]func(domain.AuthState), 0, len(w.listeners))
	for _, l := range w.listeners {
		listeners = append(listeners, l)
	}
	w.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}

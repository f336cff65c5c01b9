package usecase

import (
	"context"
	"log/slog"
	"sync"

	"passforge/internal/domain"
)

// CookieSessionSource is a domain.SessionSource bound to one session cookie.
// The initial event comes from resolving the cookie; later transitions are
// relayed from the session bus.
type CookieSessionSource struct {
	cookie   string
	validate *ValidateSession
	bus      domain.SessionPublisher
	logger   *slog.Logger
}

// NewCookieSessionSource creates a source for cookie. An empty cookie yields a
// single signed-out initial event.
func NewCookieSessionSource(cookie string, v *ValidateSession, bus domain.SessionPublisher, l *slog.Logger) *CookieSessionSource {
	return &CookieSessionSource{cookie: cookie, validate: v, bus: bus, logger: l}
}

// Subscribe starts delivering events to listener. Events are delivered one at
// a time from background goroutines; the initial event always comes first.
func (s *CookieSessionSource) Subscribe(ctx context.Context, listener domain.SessionListener) (func(), error) {
	if listener == nil || s.validate == nil || s.bus == nil {
		return nil, domain.ErrSessionSubscription
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &cookieSubscription{
		source:   s,
		ctx:      ctx,
		cancel:   cancel,
		listener: listener,
	}
	go sub.resolve()

	return sub.close, nil
}

type cookieSubscription struct {
	source   *CookieSessionSource
	ctx      context.Context
	cancel   context.CancelFunc
	listener domain.SessionListener

	// emitMu serializes delivery so relayed events never overtake the
	// initial one.
	emitMu sync.Mutex

	mu       sync.Mutex
	closed   bool
	current  *domain.Session
	detachFn func()
}

func (sub *cookieSubscription) resolve() {
	sub.emitMu.Lock()
	defer sub.emitMu.Unlock()

	var (
		session *domain.Session
		err     error
	)
	if sub.source.cookie != "" {
		session, err = sub.source.validate.Execute(sub.ctx, sub.source.cookie)
	}
	if sub.ctx.Err() != nil {
		return
	}

	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.current = session
	if session != nil {
		sub.detachFn = sub.source.bus.Subscribe(session.SessionID, sub.relay)
		sub.source.bus.Bind(session.UserID, session.SessionID)
	}
	sub.mu.Unlock()

	sub.listener(domain.SessionEvent{Kind: domain.SessionInitial, Session: session, Err: err})
}

func (sub *cookieSubscription) relay(event domain.SessionEvent) {
	switch {
	case event.Kind == domain.SessionSignedOut:
		sub.deliver(domain.SessionEvent{Kind: event.Kind})
	case event.Session != nil:
		sub.deliver(event)
	case event.Kind == domain.SessionUserUpdated:
		sub.mu.Lock()
		current := sub.current
		sub.mu.Unlock()
		sub.deliver(domain.SessionEvent{Kind: event.Kind, Session: current})
	default:
		// signed_in and token_refreshed without a payload: resolve again
		go sub.revalidate(event.Kind)
	}
}

func (sub *cookieSubscription) revalidate(kind domain.SessionEventKind) {
	session, err := sub.source.validate.Execute(sub.ctx, sub.source.cookie)
	if sub.ctx.Err() != nil {
		return
	}
	sub.deliver(domain.SessionEvent{Kind: kind, Session: session, Err: err})
}

func (sub *cookieSubscription) deliver(event domain.SessionEvent) {
	sub.emitMu.Lock()
	defer sub.emitMu.Unlock()

	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	if event.Err == nil {
		sub.current = event.Session
	}
	sub.mu.Unlock()

	sub.source.logger.Debug("relaying session event", "kind", event.Kind)
	sub.listener(event)
}

func (sub *cookieSubscription) close() {
	sub.cancel()

	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.closed = true
	detach := sub.detachFn
	sub.detachFn = nil
	sub.mu.Unlock()

	if detach != nil {
		detach()
	}
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"passforge/internal/domain"
	"passforge/utils/validator"

	"golang.org/x/sync/singleflight"
)

const defaultLoadTimeout = 10 * time.Second

// profileEntry is one user's cached profile plus its fetch bookkeeping.
type profileEntry struct {
	domain.ProfileEntry
	expiresAt time.Time
}

// ProfileCache is a keyed, TTL-bounded cache over a domain.ProfileStore.
// Concurrent fetches for one user collapse into a single store call.
// Implements domain.ProfileSource.
type ProfileCache struct {
	store     domain.ProfileStore
	validator *validator.Validator
	logger    *slog.Logger
	ttl       time.Duration

	// loadTimeout bounds a shared store lookup, which outlives its callers.
	loadTimeout time.Duration

	mu         sync.RWMutex
	entries    map[string]*profileEntry
	generation map[string]uint64
	group      singleflight.Group

	stop     chan struct{}
	stopOnce sync.Once
}

// NewProfileCache creates a profile cache backed by store.
func NewProfileCache(store domain.ProfileStore, ttl time.Duration, l *slog.Logger) *ProfileCache {
	c := &ProfileCache{
		store:      store,
		validator:  validator.New(),
		logger:     l.With("component", "profile_cache"),
		ttl:         ttl,
		loadTimeout: defaultLoadTimeout,
		entries:    make(map[string]*profileEntry),
		generation: make(map[string]uint64),
		stop:       make(chan struct{}),
	}
	go c.cleanupLoop(time.Minute)
	return c
}

// Fetch returns the profile for userID, from cache when fresh.
// A failed fetch records the error but keeps the last good value.
// Concurrent callers share one store lookup that is not tied to any caller's
// context; a caller whose ctx ends stops waiting without affecting the others.
func (c *ProfileCache) Fetch(ctx context.Context, userID string) (*domain.Profile, error) {
	if userID == "" {
		return nil, domain.ErrProfileDisabled
	}

	if entry, ok := c.fresh(userID); ok {
		return entry.Value, nil
	}

	gen := c.markLoading(userID)
	loadCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(userID, func() (any, error) {
		ctx, cancel := context.WithTimeout(loadCtx, c.loadTimeout)
		defer cancel()

		profile, err := c.load(ctx, userID)
		c.record(userID, gen, profile, err)
		return profile, err
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.logger.DebugContext(ctx, "profile fetch shared", "user_id", userID)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Profile), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peek returns the cached entry for userID without fetching. Expired
// successful entries are reported as absent.
func (c *ProfileCache) Peek(userID string) (domain.ProfileEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[userID]
	if !ok {
		return domain.ProfileEntry{}, false
	}
	if entry.Status == domain.ProfileSuccess && time.Now().After(entry.expiresAt) {
		return domain.ProfileEntry{}, false
	}
	return entry.ProfileEntry, true
}

// Invalidate forces the next Fetch for userID to hit the store. Results of
// fetches already in flight are not recorded.
func (c *ProfileCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.generation[userID]++
	c.mu.Unlock()

	c.group.Forget(userID)
	c.logger.Debug("profile invalidated", "user_id", userID)
}

// Close stops the cleanup loop.
func (c *ProfileCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *ProfileCache) load(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := c.store.FindByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			c.logger.ErrorContext(ctx, "profile store lookup failed", "user_id", userID, "error", err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrProfileFetch, err)
	}
	if profile == nil || profile.UserID != userID {
		return nil, fmt.Errorf("%w: store returned profile for another user", domain.ErrProfileValidation)
	}
	if err := c.validator.Validate(profile); err != nil {
		c.logger.WarnContext(ctx, "profile failed validation", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrProfileValidation, err)
	}
	return profile, nil
}

func (c *ProfileCache) fresh(userID string) (*profileEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[userID]
	if !ok || entry.Status != domain.ProfileSuccess || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry, true
}

func (c *ProfileCache) markLoading(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	gen := c.generation[userID]
	entry, ok := c.entries[userID]
	if !ok {
		entry = &profileEntry{}
		c.entries[userID] = entry
	}
	entry.Status = domain.ProfileLoading
	return gen
}

func (c *ProfileCache) record(userID string, gen uint64, profile *domain.Profile, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation[userID] != gen {
		return
	}
	entry, ok := c.entries[userID]
	if !ok {
		entry = &profileEntry{}
		c.entries[userID] = entry
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// an interrupted lookup says nothing about the profile
		if entry.Value == nil {
			delete(c.entries, userID)
		} else {
			entry.Status = domain.ProfileIdle
		}
		return
	}

	now := time.Now()
	entry.FetchedAt = now
	if err != nil {
		entry.Status = domain.ProfileError
		entry.Err = err
		return
	}
	entry.Value = profile
	entry.Status = domain.ProfileSuccess
	entry.Err = nil
	entry.expiresAt = now.Add(c.ttl)
}

func (c *ProfileCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, entry := range c.entries {
		if entry.Status == domain.ProfileLoading {
			continue
		}
		if now.After(entry.expiresAt) && now.Sub(entry.FetchedAt) > c.ttl {
			delete(c.entries, id)
		}
	}
}

func (c *ProfileCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stop:
			return
		}
	}
}

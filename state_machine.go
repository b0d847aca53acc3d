package auth

import (
	"context"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

// State is a snapshot of the client authentication state. Profile may be
// provisional (see Profile.Source) until the durable record arrives.
type State struct {
	User     *Subject
	Session  *Session
	Profile  *Profile
	Loading  bool
	Recovery bool
}

// Authenticated reports whether a subject is signed in.
func (s State) Authenticated() bool {
	return s.User != nil
}

// Role returns the known role, or "" when unresolved.
func (s State) Role() Role {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Role
}

// Scheduler runs a task outside of the caller's stack.
type Scheduler func(task func())

// GoScheduler runs each task on its own goroutine.
func GoScheduler(task func()) {
	go task()
}

// SessionStoreOption customizes a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithSessionStoreLogger overrides the logger.
func WithSessionStoreLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithScheduler overrides how deferred role resolutions are run. The
// scheduler must not run the task inline.
func WithScheduler(scheduler Scheduler) SessionStoreOption {
	return func(s *SessionStore) {
		if scheduler != nil {
			s.schedule = scheduler
		}
	}
}

// WithResolveTimeout bounds each deferred role resolution.
func WithResolveTimeout(timeout time.Duration) SessionStoreOption {
	return func(s *SessionStore) {
		if timeout > 0 {
			s.resolveTimeout = timeout
		}
	}
}

// WithMinPasswordLength sets the policy used by UpdatePassword.
func WithMinPasswordLength(n int) SessionStoreOption {
	return func(s *SessionStore) {
		if n > 0 {
			s.minPassword = n
		}
	}
}

// SessionStore is the client auth state machine. It reconciles the session
// channel with the role store: every session applied bumps a version, and a
// deferred role resolution only lands if the version it was launched with is
// still current, so the latest session always wins.
type SessionStore struct {
	channel        SessionChannel
	resolver       ProfileResolver
	schedule       Scheduler
	logger         Logger
	resolveTimeout time.Duration
	minPassword    int

	mu          sync.RWMutex
	state       State
	version     uint64
	listeners   map[int]func(State)
	nextID      int
	unsubscribe func()

	// pending holds snapshots in the order the state changed. One caller at
	// a time drains it, so listeners never see an older state after a newer.
	pending  []State
	draining bool

	inflight sync.WaitGroup
}

// NewSessionStore returns a store in the initial loading state.
func NewSessionStore(channel SessionChannel, resolver ProfileResolver, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		channel:        channel,
		resolver:       resolver,
		schedule:       GoScheduler,
		logger:         defLogger{},
		resolveTimeout: 10 * time.Second,
		minPassword:    MinPasswordLength,
		state:          State{Loading: true},
		listeners:      map[int]func(State){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Start subscribes to the channel and applies the current session. Both
// paths converge on ApplySession. Channel failures leave the store signed out.
func (s *SessionStore) Start(ctx context.Context) error {
	unsubscribe, err := s.channel.Subscribe(s.handleEvent)
	if err != nil {
		s.logger.Error("session channel subscribe failed: %v", err)
		s.ApplySession(nil)
		return withMetadata(ErrChannelUnavailable, map[string]any{
			"operation": "subscribe",
			"error":     err.Error(),
		})
	}

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	session, err := s.channel.CurrentSession(ctx)
	if err != nil {
		s.logger.Error("session channel current session failed: %v", err)
		session = nil
	}

	s.ApplySession(session)
	return nil
}

// Close unsubscribes from the channel and waits for in-flight resolutions.
func (s *SessionStore) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	s.inflight.Wait()
}

// State returns the current snapshot.
func (s *SessionStore) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers listener for every state change.
func (s *SessionStore) Subscribe(listener func(State)) (unsubscribe func()) {
	if listener == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *SessionStore) handleEvent(event SessionEvent, session *Session) {
	s.logger.Debug("session event %s: %s", event, session)

	if event == EventSignedOut {
		session = nil
	}

	s.apply(session, event == EventPasswordRecovery)
}

// ApplySession reconciles the state with session. It publishes a provisional
// profile from the session's role hint right away and schedules the durable
// lookup; it never calls into the channel or the role store itself.
func (s *SessionStore) ApplySession(session *Session) {
	s.apply(session, false)
}

func (s *SessionStore) apply(session *Session, recovery bool) {
	s.mu.Lock()
	s.version++
	version := s.version

	if session == nil {
		s.state = State{}
		s.publishLocked()
		s.mu.Unlock()
		s.drain()
		return
	}

	user := session.User
	prev := s.state
	sameSubject := prev.User != nil && prev.User.ID == user.ID
	hint, hasHint := session.RoleHint()

	var profile *Profile
	switch {
	case sameSubject && prev.Profile != nil && prev.Profile.Source != ProfileSourceHint:
		profile = prev.Profile
	case hasHint:
		profile = &Profile{
			ID:     user.ID,
			Role:   hint,
			Source: ProfileSourceHint,
		}
	case sameSubject:
		profile = prev.Profile
	}

	s.state = State{
		User:     &user,
		Session:  session,
		Profile:  profile,
		Loading:  false,
		Recovery: recovery || (sameSubject && prev.Recovery),
	}
	s.publishLocked()
	s.mu.Unlock()

	s.drain()
	s.scheduleResolution(version, user.ID, hint)
}

func (s *SessionStore) scheduleResolution(version uint64, subjectID uuid.UUID, hint Role) {
	if s.resolver == nil {
		return
	}

	s.inflight.Add(1)
	s.schedule(func() {
		defer s.inflight.Done()
		s.resolve(version, subjectID, hint)
	})
}

func (s *SessionStore) resolve(version uint64, subjectID uuid.UUID, hint Role) {
	ctx, cancel := context.WithTimeout(context.Background(), s.resolveTimeout)
	defer cancel()

	profile, err := s.resolver.Resolve(ctx, subjectID, hint)
	if err != nil {
		s.logger.Error("resolve profile for %s: %v", subjectID, err)
		return
	}

	if profile == nil {
		return
	}

	s.mu.Lock()
	if s.version != version || s.state.User == nil || s.state.User.ID != subjectID {
		s.mu.Unlock()
		s.logger.Debug("discarding stale profile for %s (version %d)", subjectID, version)
		return
	}
	s.state.Profile = profile
	s.publishLocked()
	s.mu.Unlock()

	s.drain()
}

// SignOut signs out of the channel and clears local state whatever the
// channel answered.
func (s *SessionStore) SignOut(ctx context.Context) {
	if err := s.channel.SignOut(ctx); err != nil {
		s.logger.Warn("session channel sign out failed: %v", err)
	}

	s.mu.Lock()
	s.version++
	s.state = State{}
	s.publishLocked()
	s.mu.Unlock()

	s.drain()
}

// UpdatePassword sets a new credential through the channel. It requires a
// session, typically the one delivered with a password recovery event.
func (s *SessionStore) UpdatePassword(ctx context.Context, newPassword string) error {
	if err := ValidatePassword(newPassword, s.minPassword); err != nil {
		return err
	}

	if current := s.State(); current.Session == nil {
		return ErrUnauthenticated
	}

	if err := s.channel.UpdateCredential(ctx, newPassword); err != nil {
		s.logger.Error("session channel credential update failed: %v", err)
		return withMetadata(ErrChannelUnavailable, map[string]any{
			"operation": "update_credential",
			"error":     err.Error(),
		})
	}

	s.mu.Lock()
	changed := s.state.Recovery
	s.state.Recovery = false
	if changed {
		s.publishLocked()
	}
	s.mu.Unlock()

	if changed {
		s.drain()
	}

	return nil
}

// publishLocked queues the current state for delivery. Callers hold mu.
func (s *SessionStore) publishLocked() {
	s.pending = append(s.pending, s.state)
}

// drain delivers queued snapshots outside the lock. If another caller is
// already delivering (including a listener re-entering the store) it picks
// up what was queued here, so drain returns immediately.
func (s *SessionStore) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.pending) > 0 {
		snapshot := s.pending[0]
		s.pending[0] = State{}
		s.pending = s.pending[1:]

		listeners := make([]func(State), 0, len(s.listeners))
		for _, l := range s.listeners {
			listeners = append(listeners, l)
		}
		s.mu.Unlock()

		for _, l := range listeners {
			l(snapshot)
		}

		s.mu.Lock()
	}

	s.pending = nil
	s.draining = false
	s.mu.Unlock()
}

// ValidatePassword applies the minimum length policy.
func ValidatePassword(password string, minLength int) error {
	if minLength <= 0 {
		minLength = MinPasswordLength
	}
	err := validation.Validate(password,
		validation.Required,
		validation.RuneLength(minLength, 0),
	)
	if err != nil {
		return withMetadata(ErrPasswordTooShort, map[string]any{
			"min_length": minLength,
		})
	}
	return nil
}

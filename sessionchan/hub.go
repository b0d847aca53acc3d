// Package sessionchan provides an in-process session channel. It dispatches
// events to listeners while holding its lock, the same way hosted identity
// SDKs do, so a listener that calls back into the hub synchronously will
// deadlock.
package sessionchan

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/talentoenlinea/talent-auth"
)

// CredentialUpdater persists a new password for subject.
type CredentialUpdater func(ctx context.Context, subject auth.Subject, newPassword string) error

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = goerrors.New("session channel closed", goerrors.CategoryOperation).
	WithTextCode("SESSION_CHANNEL_CLOSED")

type Hub struct {
	mu        sync.Mutex
	session   *auth.Session
	listeners map[int]auth.SessionListener
	nextID    int
	closed    bool

	tokens  auth.SessionTokens
	updater CredentialUpdater
}

var _ auth.SessionChannel = (*Hub)(nil)

type Option func(*Hub)

// WithSession sets the session replayed to the first subscribers.
func WithSession(session *auth.Session) Option {
	return func(h *Hub) {
		h.session = session
	}
}

// WithTokens enables SignInToken.
func WithTokens(tokens auth.SessionTokens) Option {
	return func(h *Hub) {
		h.tokens = tokens
	}
}

// WithCredentialUpdater sets where UpdateCredential writes passwords.
func WithCredentialUpdater(updater CredentialUpdater) Option {
	return func(h *Hub) {
		h.updater = updater
	}
}

func New(opts ...Option) *Hub {
	h := &Hub{
		listeners: map[int]auth.SessionListener{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Subscribe registers listener and replays the current session to it as
// INITIAL_SESSION before returning.
func (h *Hub) Subscribe(listener auth.SessionListener) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	id := h.nextID
	h.nextID++
	h.listeners[id] = listener

	listener(auth.EventInitialSession, h.session)

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}, nil
}

func (h *Hub) CurrentSession(ctx context.Context) (*auth.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session, nil
}

// Publish records session and dispatches event to every listener.
func (h *Hub) Publish(event auth.SessionEvent, session *auth.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if event == auth.EventSignedOut {
		session = nil
	}
	h.session = session

	for _, listener := range h.listeners {
		listener(event, session)
	}
}

func (h *Hub) SignIn(session *auth.Session) {
	h.Publish(auth.EventSignedIn, session)
}

// SignInToken parses a bearer token and signs its session in.
func (h *Hub) SignInToken(token string) (*auth.Session, error) {
	if h.tokens == nil {
		return nil, auth.ErrUnauthenticated
	}

	session, err := h.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	h.SignIn(session)
	return session, nil
}

// Recover delivers a session that may only be used to set a new password.
func (h *Hub) Recover(session *auth.Session) {
	h.Publish(auth.EventPasswordRecovery, session)
}

func (h *Hub) Refresh(session *auth.Session) {
	h.Publish(auth.EventTokenRefreshed, session)
}

func (h *Hub) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.Publish(auth.EventSignedOut, nil)
	return nil
}

func (h *Hub) UpdateCredential(ctx context.Context, newPassword string) error {
	h.mu.Lock()
	session := h.session
	h.mu.Unlock()

	if session == nil {
		return auth.ErrUnauthenticated
	}

	if h.updater != nil {
		if err := h.updater(ctx, session.User, newPassword); err != nil {
			return err
		}
	}

	h.Publish(auth.EventUserUpdated, session)
	return nil
}

// Close drops all listeners. Later subscriptions fail with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.listeners = map[int]auth.SessionListener{}
}

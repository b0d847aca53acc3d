package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// SessionEvent names a change reported by the session channel.
type SessionEvent string

const (
	EventInitialSession   SessionEvent = "INITIAL_SESSION"
	EventSignedIn         SessionEvent = "SIGNED_IN"
	EventSignedOut        SessionEvent = "SIGNED_OUT"
	EventTokenRefreshed   SessionEvent = "TOKEN_REFRESHED"
	EventUserUpdated      SessionEvent = "USER_UPDATED"
	EventPasswordRecovery SessionEvent = "PASSWORD_RECOVERY"
)

// SessionListener receives channel events. A nil session means signed out.
type SessionListener func(event SessionEvent, session *Session)

// SessionChannel is the client side of the identity provider: an initial
// session plus a stream of session changes.
//
// Implementations may invoke listeners while holding internal locks, so a
// listener must never call back into the channel synchronously.
type SessionChannel interface {
	Subscribe(listener SessionListener) (unsubscribe func(), err error)
	CurrentSession(ctx context.Context) (*Session, error)
	SignOut(ctx context.Context) error
	UpdateCredential(ctx context.Context, newPassword string) error
}

// RoleStore is the keyed record store holding profiles and the two side
// tables used to infer a missing role.
type RoleStore interface {
	// FindProfile returns nil, nil when no profile exists for the subject.
	FindProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	HasDeveloper(ctx context.Context, id uuid.UUID) (bool, error)
	HasCompany(ctx context.Context, id uuid.UUID) (bool, error)
	// UpsertProfile must be idempotent on the profile id.
	UpsertProfile(ctx context.Context, profile *Profile) error
}

// SubjectDirectory is the administrative interface of the identity provider.
type SubjectDirectory interface {
	// FindSubjectByEmail returns ErrSubjectNotFound for unknown emails.
	FindSubjectByEmail(ctx context.Context, email string) (*Subject, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, newPassword string) error
	UpdateEmail(ctx context.Context, id uuid.UUID, newEmail string) error
}

// ResetCodeEmail is the payload handed to a Mailer.
type ResetCodeEmail struct {
	To        string
	Code      string
	ExpiresAt time.Time
}

// Mailer delivers reset codes out of band.
type Mailer interface {
	SendResetCode(ctx context.Context, msg ResetCodeEmail) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, msg ResetCodeEmail) error

// SendResetCode implements Mailer.
func (f MailerFunc) SendResetCode(ctx context.Context, msg ResetCodeEmail) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

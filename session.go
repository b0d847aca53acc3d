package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Session is the credential bundle issued by the session channel. Sessions
// are never mutated, each channel event replaces the previous one.
type Session struct {
	AccessToken string    `json:"access_token,omitempty"`
	User        Subject   `json:"user"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SubjectID returns the id of the session's subject.
func (s *Session) SubjectID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.User.ID
}

// RoleHint returns the role embedded in the subject metadata, if any.
func (s *Session) RoleHint() (Role, bool) {
	if s == nil {
		return "", false
	}
	return roleFromMetadata(s.User.Metadata)
}

// IsExpired reports whether the session expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return now.After(s.ExpiresAt)
}

func (s *Session) String() string {
	if s == nil {
		return "session=<nil>"
	}
	return fmt.Sprintf("user=%s email=%s exp=%s", s.User.ID, s.User.Email, s.ExpiresAt.Format(time.RFC3339))
}

// SessionClaims is the JWT claim set carried by access tokens.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// SessionTokens converts bearer tokens into sessions.
type SessionTokens interface {
	Parse(token string) (*Session, error)
}

// TokenService signs and parses HS256 session tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

// TokenServiceOption customizes a TokenService.
type TokenServiceOption func(*TokenService)

// WithTokenIssuer sets the issuer written into and required from tokens.
func WithTokenIssuer(issuer string) TokenServiceOption {
	return func(ts *TokenService) {
		ts.issuer = issuer
	}
}

// WithTokenTTL sets the lifetime of signed tokens.
func WithTokenTTL(ttl time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		if ttl > 0 {
			ts.ttl = ttl
		}
	}
}

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// NewTokenService returns a TokenService using signingKey for HS256.
func NewTokenService(signingKey string, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		signingKey: []byte(signingKey),
		ttl:        time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// Sign issues an access token for subject and returns the matching session.
func (ts *TokenService) Sign(subject Subject) (*Session, error) {
	if subject.ID == uuid.Nil {
		return nil, goerrors.New("subject id is required", goerrors.CategoryBadInput)
	}

	issuedAt := ts.now()
	expiresAt := issuedAt.Add(ts.ttl)

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject.ID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Email:        subject.Email,
		UserMetadata: subject.Metadata,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.signingKey)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return &Session{
		AccessToken: token,
		User: Subject{
			ID:       subject.ID,
			Email:    subject.Email,
			Metadata: subject.Metadata,
		},
		ExpiresAt: expiresAt.Truncate(time.Second),
	}, nil
}

// Parse validates token and rebuilds the session it represents.
func (ts *TokenService) Parse(token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(ts.issuer))
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return ts.signingKey, nil
	}, parserOpts...)
	if err != nil {
		return nil, withMetadata(ErrUnauthenticated, map[string]any{
			"reason": err.Error(),
		})
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, withMetadata(ErrUnauthenticated, map[string]any{
			"reason": "subject is not a uuid",
		})
	}

	session := &Session{
		AccessToken: token,
		User: Subject{
			ID:       id,
			Email:    claims.Email,
			Metadata: claims.UserMetadata,
		},
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}

	return session, nil
}

// Package jwtware authenticates fiber requests with session tokens and
// stores the resulting *auth.Session in the request locals.
package jwtware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	auth "github.com/talentoenlinea/talent-auth"
)

var defaultTokenLookup = "header:" + fiber.HeaderAuthorization

// ValidationListener runs after a token parsed and before the request
// proceeds. Returning an error rejects the request.
type ValidationListener func(c *fiber.Ctx, session *auth.Session) error

type Config struct {
	// Filter skips the middleware when it returns true.
	Filter       func(*fiber.Ctx) bool
	ErrorHandler fiber.ErrorHandler
	// Tokens is required.
	Tokens auth.SessionTokens
	// ContextKey defaults to auth.SessionLocalsKey.
	ContextKey string
	// TokenLookup is a comma separated list of "source:name" pairs, where
	// source is one of header, query, param or cookie.
	TokenLookup string
	AuthScheme  string

	// RequireRoleHint rejects sessions whose metadata carries no usable role.
	RequireRoleHint bool

	// ContextEnricher propagates the session to the request's user context.
	ContextEnricher func(ctx context.Context, session *auth.Session) context.Context

	ValidationListeners []ValidationListener
}

func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := GetExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		session, err := cfg.Tokens.Parse(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if cfg.RequireRoleHint {
			if _, ok := session.RoleHint(); !ok {
				return cfg.ErrorHandler(c, auth.ErrUnauthenticated)
			}
		}

		for _, listener := range cfg.ValidationListeners {
			if listener == nil {
				continue
			}
			if err := listener(c, session); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		c.Locals(cfg.ContextKey, session)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), session))
		}

		return c.Next()
	}
}

// GetDefaultConfig fills in defaults. It panics without Tokens.
func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Tokens == nil {
		panic("AUTH: JWT middleware configuration: Tokens is required.")
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			status, message := auth.ErrorResponse(err)
			return c.Status(status).JSON(fiber.Map{"error": message})
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = auth.SessionLocalsKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// Extractor pulls a raw token out of a request.
type Extractor func(c *fiber.Ctx) (string, error)

// ExtractRawToken returns the first token any extractor finds.
func ExtractRawToken(c *fiber.Ctx, extractors []Extractor) (string, error) {
	var err error = auth.ErrUnauthenticated
	for _, extractor := range extractors {
		var raw string
		raw, err = extractor(c)
		if raw != "" && err == nil {
			return raw, nil
		}
	}
	return "", err
}

// GetExtractors parses a lookup such as "header:Authorization,cookie:jwt".
func GetExtractors(tokenLookup string, authScheme string) []Extractor {
	extractors := make([]Extractor, 0)

	for _, part := range strings.Split(tokenLookup, ",") {
		source, name, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)

		switch strings.TrimSpace(source) {
		case "header":
			extractors = append(extractors, fromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, fromQuery(name))
		case "param":
			extractors = append(extractors, fromParam(name))
		case "cookie":
			extractors = append(extractors, fromCookie(name))
		}
	}

	return extractors
}

func fromHeader(header, authScheme string) Extractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(c *fiber.Ctx) (string, error) {
		value := c.Get(header)
		l := len(authScheme)
		if len(value) > l+1 && strings.EqualFold(value[:l], authScheme) && value[l] == ' ' {
			if token := strings.TrimSpace(value[l:]); token != "" {
				return token, nil
			}
		}
		return "", auth.ErrUnauthenticated
	}
}

func fromQuery(param string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		if token := c.Query(param); token != "" {
			return token, nil
		}
		return "", auth.ErrUnauthenticated
	}
}

func fromParam(param string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		if token := c.Params(param); token != "" {
			return token, nil
		}
		return "", auth.ErrUnauthenticated
	}
}

func fromCookie(name string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		if token := c.Cookies(name); token != "" {
			return token, nil
		}
		return "", auth.ErrUnauthenticated
	}
}

// SessionFromLocals returns the session New stored under key.
func SessionFromLocals(c *fiber.Ctx, key ...string) (*auth.Session, bool) {
	k := auth.SessionLocalsKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	session, ok := c.Locals(k).(*auth.Session)
	return session, ok && session != nil
}

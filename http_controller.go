package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// SessionLocalsKey is where authentication middleware stores the *Session.
const SessionLocalsKey = "session"

type ResetControllerRoutes struct {
	IssueCode   string
	VerifyCode  string
	ChangeEmail string
}

type ResetController struct {
	Debug       bool
	Logger      Logger
	Issue       *IssueResetCodeHandler
	Verify      *VerifyResetCodeHandler
	ChangeEmail *ChangeEmailHandler
	// Authenticate runs before ChangeEmailPost and must store the caller's
	// *Session under SessionLocalsKey.
	Authenticate fiber.Handler
	Routes      *ResetControllerRoutes
	// IssueLimit caps issue requests per client IP per minute. Zero disables it.
	IssueLimit int
}

type ResetControllerOption func(*ResetController)

func WithControllerLogger(logger Logger) ResetControllerOption {
	return func(rc *ResetController) {
		if logger != nil {
			rc.Logger = logger
		}
	}
}

func WithControllerDebug(debug bool) ResetControllerOption {
	return func(rc *ResetController) {
		rc.Debug = debug
	}
}

func WithIssueRateLimit(perMinute int) ResetControllerOption {
	return func(rc *ResetController) {
		rc.IssueLimit = perMinute
	}
}

// WithChangeEmail mounts the email change route behind authenticate.
func WithChangeEmail(handler *ChangeEmailHandler, authenticate fiber.Handler) ResetControllerOption {
	return func(rc *ResetController) {
		rc.ChangeEmail = handler
		rc.Authenticate = authenticate
	}
}

func NewResetController(issue *IssueResetCodeHandler, verify *VerifyResetCodeHandler, opts ...ResetControllerOption) *ResetController {
	rc := &ResetController{
		Logger: defLogger{},
		Issue:  issue,
		Verify: verify,
		Routes: &ResetControllerRoutes{
			IssueCode:   "/auth/reset-code",
			VerifyCode:  "/auth/reset-code/verify",
			ChangeEmail: "/auth/email",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(rc)
		}
	}

	return rc
}

// Register mounts the controller endpoints on app.
func (rc *ResetController) Register(app fiber.Router) {
	issue := []fiber.Handler{}
	if rc.IssueLimit > 0 {
		issue = append(issue, limiter.New(limiter.Config{
			Max:        rc.IssueLimit,
			Expiration: time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "too many requests",
				})
			},
		}))
	}
	issue = append(issue, rc.IssueCode)

	app.Post(rc.Routes.IssueCode, issue...)
	app.Post(rc.Routes.VerifyCode, rc.VerifyCode)

	if rc.ChangeEmail != nil && rc.Authenticate != nil {
		app.Post(rc.Routes.ChangeEmail, rc.Authenticate, rc.ChangeEmailPost)
	}
}

// IssueCode answers success for every well formed request.
func (rc *ResetController) IssueCode(c *fiber.Ctx) error {
	payload := new(IssueResetCodeMessage)
	if err := c.BodyParser(payload); err != nil {
		return rc.badRequest(c, err)
	}

	if err := rc.Issue.Execute(c.UserContext(), *payload); err != nil {
		return rc.renderError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

func (rc *ResetController) VerifyCode(c *fiber.Ctx) error {
	payload := new(VerifyResetCodeMessage)
	if err := c.BodyParser(payload); err != nil {
		return rc.badRequest(c, err)
	}

	if err := rc.Verify.Execute(c.UserContext(), *payload); err != nil {
		return rc.renderError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

func (rc *ResetController) ChangeEmailPost(c *fiber.Ctx) error {
	session, ok := c.Locals(SessionLocalsKey).(*Session)
	if !ok || session == nil {
		return rc.renderError(c, ErrUnauthenticated)
	}

	payload := new(ChangeEmailMessage)
	if err := c.BodyParser(payload); err != nil {
		return rc.badRequest(c, err)
	}
	payload.SubjectID = session.SubjectID()

	if err := rc.ChangeEmail.Execute(c.UserContext(), *payload); err != nil {
		return rc.renderError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

func (rc *ResetController) badRequest(c *fiber.Ctx, err error) error {
	rc.Logger.Debug("request body parse error on %s: %v", c.Path(), err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid request body",
	})
}

func (rc *ResetController) renderError(c *fiber.Ctx, err error) error {
	status, message := ErrorResponse(err)

	if status >= fiber.StatusInternalServerError {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			rc.Logger.Error("%s failed: %s %s", c.Path(), richErr.Message, print.MaybePrettyJSON(richErr.Metadata))
		} else {
			rc.Logger.Error("%s failed: %v", c.Path(), err)
		}
	} else if rc.Debug {
		rc.Logger.Debug("%s rejected: %v", c.Path(), err)
	}

	return c.Status(status).JSON(fiber.Map{"error": message})
}

// RegisterResetRoutes builds a controller from the handlers and mounts it.
func RegisterResetRoutes(app fiber.Router, issue *IssueResetCodeHandler, verify *VerifyResetCodeHandler, opts ...ResetControllerOption) *ResetController {
	rc := NewResetController(issue, verify, opts...)
	rc.Register(app)
	return rc
}


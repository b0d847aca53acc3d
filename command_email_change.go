package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type ChangeEmailMessage struct {
	SubjectID uuid.UUID `json:"-"`
	NewEmail  string    `json:"newEmail" example:"new@example.com" doc:"New account email"`
}

func (m ChangeEmailMessage) Type() string { return "auth.email.change" }

func (m ChangeEmailMessage) Validate() error {
	if m.SubjectID == uuid.Nil {
		return ErrUnauthenticated
	}
	if err := validation.Validate(NormalizeEmail(m.NewEmail), validation.Required, is.Email); err != nil {
		return withMetadata(ErrInvalidEmail, map[string]any{
			"reason": err.Error(),
		})
	}
	return nil
}

// ChangeEmailHandler updates a signed in subject's email in the directory.
type ChangeEmailHandler struct {
	directory SubjectDirectory
	activity  ActivitySink
	logger    Logger
	now       func() time.Time
}

func NewChangeEmailHandler(directory SubjectDirectory) *ChangeEmailHandler {
	return &ChangeEmailHandler{
		directory: directory,
		activity:  noopActivitySink{},
		logger:    defLogger{},
		now:       time.Now,
	}
}

func (h *ChangeEmailHandler) WithActivitySink(sink ActivitySink) *ChangeEmailHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ChangeEmailHandler) WithLogger(logger Logger) *ChangeEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *ChangeEmailHandler) WithClock(now func() time.Time) *ChangeEmailHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *ChangeEmailHandler) Execute(ctx context.Context, msg ChangeEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email change",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *ChangeEmailHandler) execute(ctx context.Context, msg ChangeEmailMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := NormalizeEmail(msg.NewEmail)
	if err := h.directory.UpdateEmail(ctx, msg.SubjectID, email); err != nil {
		if IsSubjectNotFound(err) {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update email")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventEmailChanged,
		Actor: ActorRef{
			ID:   msg.SubjectID.String(),
			Type: "user",
		},
		SubjectID: msg.SubjectID.String(),
		Metadata: map[string]any{
			"new_email": email,
		},
		OccurredAt: h.now(),
	})

	return nil
}

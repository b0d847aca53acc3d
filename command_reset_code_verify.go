package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type VerifyResetCodeMessage struct {
	Email       string `json:"email" example:"dev@example.com" doc:"Account email"`
	Code        string `json:"code" example:"123456" doc:"Six digit reset code"`
	NewPassword string `json:"newPassword" example:"some_secret_word" doc:"New password"`
}

func (m VerifyResetCodeMessage) Type() string { return "auth.reset_code.verify" }

type VerifyResetCodeHandler struct {
	directory   SubjectDirectory
	codes       ResetCodes
	activity    ActivitySink
	logger      Logger
	minPassword int
	now         func() time.Time
}

func NewVerifyResetCodeHandler(directory SubjectDirectory, codes ResetCodes) *VerifyResetCodeHandler {
	return &VerifyResetCodeHandler{
		directory:   directory,
		codes:       codes,
		activity:    noopActivitySink{},
		logger:      defLogger{},
		minPassword: MinPasswordLength,
		now:         time.Now,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *VerifyResetCodeHandler) WithActivitySink(sink ActivitySink) *VerifyResetCodeHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyResetCodeHandler) WithLogger(logger Logger) *VerifyResetCodeHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyResetCodeHandler) WithMinPasswordLength(n int) *VerifyResetCodeHandler {
	if n > 0 {
		h.minPassword = n
	}
	return h
}

func (h *VerifyResetCodeHandler) WithClock(now func() time.Time) *VerifyResetCodeHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *VerifyResetCodeHandler) Execute(ctx context.Context, msg VerifyResetCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during reset code verification",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *VerifyResetCodeHandler) execute(ctx context.Context, msg VerifyResetCodeMessage) error {
	email := NormalizeEmail(msg.Email)
	code := strings.TrimSpace(msg.Code)

	if email == "" || code == "" || msg.NewPassword == "" {
		recordVerifyOutcome(VerifyOutcomeInvalid)
		return ErrMissingResetFields
	}

	if err := ValidatePassword(msg.NewPassword, h.minPassword); err != nil {
		recordVerifyOutcome(VerifyOutcomePasswordPolicy)
		return err
	}

	if err := ValidateResetCodeFormat(code); err != nil {
		recordVerifyOutcome(VerifyOutcomeInvalid)
		return ErrInvalidOrExpiredCode
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	record, err := h.codes.FindActive(ctx, email, code, h.now().UTC())
	if err != nil {
		recordVerifyOutcome(VerifyOutcomeError)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset code")
	}

	if record == nil {
		recordVerifyOutcome(VerifyOutcomeInvalid)
		return ErrInvalidOrExpiredCode
	}

	subject, err := h.directory.FindSubjectByEmail(ctx, email)
	if err != nil {
		if IsSubjectNotFound(err) {
			recordVerifyOutcome(VerifyOutcomeSubjectMissing)
			return err
		}
		recordVerifyOutcome(VerifyOutcomeError)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up subject for reset code")
	}

	if err := h.directory.UpdatePassword(ctx, subject.ID, msg.NewPassword); err != nil {
		recordVerifyOutcome(VerifyOutcomeError)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	// The password update is the durability boundary. A failed mark leaves
	// the code redeemable until it expires.
	marked, err := h.codes.MarkUsed(ctx, record.ID)
	switch {
	case err != nil:
		h.logger.Warn("reset code %s not marked used after password update: %v", record.ID, err)
		recordVerifyOutcome(VerifyOutcomeMarkFailed)
	case !marked:
		h.logger.Warn("reset code %s was consumed concurrently", record.ID)
		recordVerifyOutcome(VerifyOutcomeMarkFailed)
	}

	recordVerifyOutcome(VerifyOutcomeSuccess)

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor: ActorRef{
			ID:   subject.ID.String(),
			Type: "user",
		},
		SubjectID: subject.ID.String(),
		Metadata: map[string]any{
			"reset_code_id": record.ID,
			"marked_used":   err == nil && marked,
		},
		OccurredAt: h.now(),
	})

	return nil
}

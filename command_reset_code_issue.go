package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type IssueResetCodeMessage struct {
	Email string `json:"email" example:"dev@example.com" doc:"Account email"`
}

func (m IssueResetCodeMessage) Type() string { return "auth.reset_code.issue" }

// Validate checks the request shape only. It says nothing about whether the
// email belongs to a subject.
func (m IssueResetCodeMessage) Validate() error {
	err := validation.Validate(NormalizeEmail(m.Email), validation.Required, is.Email)
	if err != nil {
		return withMetadata(ErrInvalidEmail, map[string]any{
			"reason": err.Error(),
		})
	}
	return nil
}

// IssueResetCodeHandler creates a reset code for a known subject and mails
// it. The outcome is success shaped for unknown emails and failed deliveries
// so the response never reveals whether an account exists.
type IssueResetCodeHandler struct {
	directory SubjectDirectory
	codes     ResetCodes
	mailer    Mailer
	activity  ActivitySink
	logger    Logger
	ttl       time.Duration
	now       func() time.Time
	generate  func() (string, error)
}

func NewIssueResetCodeHandler(directory SubjectDirectory, codes ResetCodes, mailer Mailer) *IssueResetCodeHandler {
	return &IssueResetCodeHandler{
		directory: directory,
		codes:     codes,
		mailer:    mailer,
		activity:  noopActivitySink{},
		logger:    defLogger{},
		ttl:       DefaultResetCodeTTL,
		now:       time.Now,
		generate:  GenerateResetCode,
	}
}

// WithActivitySink sets the sink used to emit issue events.
func (h *IssueResetCodeHandler) WithActivitySink(sink ActivitySink) *IssueResetCodeHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *IssueResetCodeHandler) WithLogger(logger Logger) *IssueResetCodeHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *IssueResetCodeHandler) WithTTL(ttl time.Duration) *IssueResetCodeHandler {
	if ttl > 0 {
		h.ttl = ttl
	}
	return h
}

func (h *IssueResetCodeHandler) WithClock(now func() time.Time) *IssueResetCodeHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *IssueResetCodeHandler) WithCodeGenerator(generate func() (string, error)) *IssueResetCodeHandler {
	if generate != nil {
		h.generate = generate
	}
	return h
}

func (h *IssueResetCodeHandler) Execute(ctx context.Context, msg IssueResetCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during reset code issue",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *IssueResetCodeHandler) execute(ctx context.Context, msg IssueResetCodeMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := NormalizeEmail(msg.Email)

	subject, err := h.directory.FindSubjectByEmail(ctx, email)
	if err != nil {
		if IsSubjectNotFound(err) {
			h.logger.Debug("reset code requested for unknown email")
			recordIssueOutcome(IssueOutcomeUnknownSubject)
			return nil
		}
		recordIssueOutcome(IssueOutcomeError)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up subject for reset code")
	}

	code, err := h.generate()
	if err != nil {
		recordIssueOutcome(IssueOutcomeError)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset code")
	}

	now := h.now().UTC()
	record, err := h.codes.Create(ctx, &ResetCode{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(h.ttl),
		Used:      false,
		CreatedAt: now,
	})
	if err != nil {
		recordIssueOutcome(IssueOutcomeError)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store reset code")
	}

	if h.mailer != nil {
		err = h.mailer.SendResetCode(ctx, ResetCodeEmail{
			To:        email,
			Code:      code,
			ExpiresAt: record.ExpiresAt,
		})
	}
	if err != nil {
		h.logger.Error("reset code delivery failed for %s: %v", subject.ID, err)
		recordIssueOutcome(IssueOutcomeDeliveryFailed)
	} else {
		recordIssueOutcome(IssueOutcomeIssued)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventResetCodeIssued,
		SubjectID: subject.ID.String(),
		Metadata: map[string]any{
			"reset_code_id": record.ID,
			"expires_at":    record.ExpiresAt,
			"delivered":     err == nil,
		},
		OccurredAt: now,
	})

	return nil
}

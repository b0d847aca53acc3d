package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/talentoenlinea/talent-auth"
)

type capturedMail struct {
	sent []auth.ResetCodeEmail
}

func (c *capturedMail) SendResetCode(_ context.Context, msg auth.ResetCodeEmail) error {
	c.sent = append(c.sent, msg)
	return nil
}

func fixedCode(code string) func() (string, error) {
	return func() (string, error) { return code, nil }
}

func TestResetCodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	subject := registerSubject(t, repo, "dev@x.com", "oldpass", nil)

	now := time.Now().UTC()
	mail := &capturedMail{}

	issue := auth.NewIssueResetCodeHandler(repo.Subjects(), repo.ResetCodes(), mail).
		WithLogger(testLogger{}).
		WithClock(func() time.Time { return now }).
		WithCodeGenerator(fixedCode("123456"))

	verify := auth.NewVerifyResetCodeHandler(repo.Subjects(), repo.ResetCodes()).
		WithLogger(testLogger{})

	require.NoError(t, issue.Execute(ctx, auth.IssueResetCodeMessage{Email: "dev@x.com"}))

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "dev@x.com", mail.sent[0].To)
	assert.Equal(t, "123456", mail.sent[0].Code)
	assert.WithinDuration(t, now.Add(15*time.Minute), mail.sent[0].ExpiresAt, time.Second)

	stored, err := repo.ResetCodes().FindActive(ctx, "dev@x.com", "123456", now)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.Used)

	msg := auth.VerifyResetCodeMessage{Email: "dev@x.com", Code: "123456", NewPassword: "abcdef"}
	require.NoError(t, verify.Execute(ctx, msg))

	_, err = repo.Subjects().Authenticate(ctx, "dev@x.com", "abcdef")
	require.NoError(t, err)
	_, err = repo.Subjects().Authenticate(ctx, "dev@x.com", "oldpass")
	assert.ErrorIs(t, err, auth.ErrMismatchedPassword)

	// replaying the identical request fails with the opaque error
	err = verify.Execute(ctx, msg)
	require.Error(t, err)
	assert.True(t, auth.IsInvalidOrExpiredCode(err))
	status, message := auth.ErrorResponse(err)
	assert.Equal(t, 400, status)
	assert.Equal(t, "invalid or expired", message)

	reloaded, err := repo.Subjects().FindSubjectByEmail(ctx, "dev@x.com")
	require.NoError(t, err)
	assert.Equal(t, subject.ID, reloaded.ID)
}

func TestIssueResetCodeUnknownEmailSucceedsSilently(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	mail := &MockMailer{}

	issued := testutil.ToFloat64(auth.ResetCodesIssued.WithLabelValues(auth.IssueOutcomeUnknownSubject))

	handler := auth.NewIssueResetCodeHandler(repo.Subjects(), repo.ResetCodes(), mail).
		WithLogger(testLogger{}).
		WithCodeGenerator(fixedCode("654321"))

	require.NoError(t, handler.Execute(ctx, auth.IssueResetCodeMessage{Email: "nobody@x.com"}))

	mail.AssertNotCalled(t, "SendResetCode", mock.Anything, mock.Anything)
	found, err := repo.ResetCodes().FindActive(ctx, "nobody@x.com", "654321", time.Now())
	require.NoError(t, err)
	assert.Nil(t, found)

	assert.Equal(t, issued+1, testutil.ToFloat64(auth.ResetCodesIssued.WithLabelValues(auth.IssueOutcomeUnknownSubject)))
}

func TestIssueResetCodeDeliveryFailureStillSucceeds(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	directory := &MockSubjectDirectory{}
	codes := &MockResetCodes{}
	mail := &MockMailer{}
	sink := &MockActivitySink{}

	directory.On("FindSubjectByEmail", mock.Anything, "dev@x.com").
		Return(&auth.Subject{ID: id, Email: "dev@x.com"}, nil).Once()
	codes.On("Create", mock.Anything, mock.MatchedBy(func(r *auth.ResetCode) bool {
		return r.Email == "dev@x.com" && r.Code == "123456" && !r.Used
	})).Return(&auth.ResetCode{ID: "rc1", Email: "dev@x.com", Code: "123456"}, nil).Once()
	mail.On("SendResetCode", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()
	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt auth.ActivityEvent) bool {
		return evt.EventType == auth.ActivityEventResetCodeIssued &&
			evt.SubjectID == id.String() &&
			evt.Metadata["delivered"] == false
	})).Return(nil).Once()

	handler := auth.NewIssueResetCodeHandler(directory, codes, mail).
		WithLogger(testLogger{}).
		WithActivitySink(sink).
		WithCodeGenerator(fixedCode("123456"))

	require.NoError(t, handler.Execute(ctx, auth.IssueResetCodeMessage{Email: " Dev@X.com "}))

	directory.AssertExpectations(t)
	codes.AssertExpectations(t)
	mail.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestIssueResetCodeErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed email", func(t *testing.T) {
		handler := auth.NewIssueResetCodeHandler(&MockSubjectDirectory{}, &MockResetCodes{}, nil).
			WithLogger(testLogger{})

		for _, email := range []string{"", "not-an-email"} {
			err := handler.Execute(ctx, auth.IssueResetCodeMessage{Email: email})
			require.Error(t, err)
			assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidEmail), email)
		}
	})

	t.Run("directory failure", func(t *testing.T) {
		directory := &MockSubjectDirectory{}
		directory.On("FindSubjectByEmail", mock.Anything, "dev@x.com").
			Return(nil, errors.New("provider down")).Once()

		handler := auth.NewIssueResetCodeHandler(directory, &MockResetCodes{}, nil).
			WithLogger(testLogger{})

		err := handler.Execute(ctx, auth.IssueResetCodeMessage{Email: "dev@x.com"})
		require.Error(t, err)
		status, message := auth.ErrorResponse(err)
		assert.Equal(t, 500, status)
		assert.NotContains(t, message, "provider down")
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		handler := auth.NewIssueResetCodeHandler(&MockSubjectDirectory{}, &MockResetCodes{}, nil)
		require.Error(t, handler.Execute(cctx, auth.IssueResetCodeMessage{Email: "dev@x.com"}))
	})
}

func TestVerifyResetCodeInputErrors(t *testing.T) {
	ctx := context.Background()
	directory := &MockSubjectDirectory{}
	codes := &MockResetCodes{}

	handler := auth.NewVerifyResetCodeHandler(directory, codes).WithLogger(testLogger{})

	tests := []struct {
		name string
		msg  auth.VerifyResetCodeMessage
		code string
	}{
		{"missing email", auth.VerifyResetCodeMessage{Code: "123456", NewPassword: "abcdef"}, auth.TextCodeMissingResetFields},
		{"missing code", auth.VerifyResetCodeMessage{Email: "dev@x.com", NewPassword: "abcdef"}, auth.TextCodeMissingResetFields},
		{"missing password", auth.VerifyResetCodeMessage{Email: "dev@x.com", Code: "123456"}, auth.TextCodeMissingResetFields},
		{"short password", auth.VerifyResetCodeMessage{Email: "dev@x.com", Code: "123456", NewPassword: "abcde"}, auth.TextCodePasswordTooShort},
		{"malformed code", auth.VerifyResetCodeMessage{Email: "dev@x.com", Code: "12a456", NewPassword: "abcdef"}, auth.TextCodeInvalidOrExpiredCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler.Execute(ctx, tt.msg)
			require.Error(t, err)
			assert.True(t, auth.HasTextCode(err, tt.code))
		})
	}

	status, message := auth.ErrorResponse(handler.Execute(ctx, tests[3].msg))
	assert.Equal(t, 400, status)
	assert.Equal(t, "password must be at least 6 characters long", message)

	codes.AssertNotCalled(t, "FindActive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	directory.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyResetCodeWrongAndExpiredLookAlike(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	registerSubject(t, repo, "dev@x.com", "oldpass", nil)
	now := time.Now().UTC()

	_, err := repo.ResetCodes().Create(ctx, &auth.ResetCode{
		Email:     "dev@x.com",
		Code:      "111111",
		ExpiresAt: now.Add(-time.Second),
	})
	require.NoError(t, err)

	verify := auth.NewVerifyResetCodeHandler(repo.Subjects(), repo.ResetCodes()).
		WithLogger(testLogger{}).
		WithClock(func() time.Time { return now })

	expired := verify.Execute(ctx, auth.VerifyResetCodeMessage{Email: "dev@x.com", Code: "111111", NewPassword: "abcdef"})
	wrong := verify.Execute(ctx, auth.VerifyResetCodeMessage{Email: "dev@x.com", Code: "999999", NewPassword: "abcdef"})

	_, expiredMsg := auth.ErrorResponse(expired)
	_, wrongMsg := auth.ErrorResponse(wrong)
	assert.Equal(t, expiredMsg, wrongMsg)
	assert.True(t, auth.IsInvalidOrExpiredCode(expired))
	assert.True(t, auth.IsInvalidOrExpiredCode(wrong))
}

func TestVerifyResetCodeSubjectVanished(t *testing.T) {
	ctx := context.Background()
	directory := &MockSubjectDirectory{}
	codes := &MockResetCodes{}

	codes.On("FindActive", mock.Anything, "gone@x.com", "123456", mock.Anything).
		Return(&auth.ResetCode{ID: "rc1", Email: "gone@x.com", Code: "123456"}, nil).Once()
	directory.On("FindSubjectByEmail", mock.Anything, "gone@x.com").
		Return(nil, auth.ErrSubjectNotFound).Once()

	handler := auth.NewVerifyResetCodeHandler(directory, codes).WithLogger(testLogger{})
	err := handler.Execute(ctx, auth.VerifyResetCodeMessage{Email: "gone@x.com", Code: "123456", NewPassword: "abcdef"})
	require.Error(t, err)
	assert.True(t, auth.IsSubjectNotFound(err))

	codes.AssertNotCalled(t, "MarkUsed", mock.Anything, mock.Anything)
}

func TestVerifyResetCodeMarkFailureIsTolerated(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	directory := &MockSubjectDirectory{}
	codes := &MockResetCodes{}
	sink := &MockActivitySink{}

	codes.On("FindActive", mock.Anything, "dev@x.com", "123456", mock.Anything).
		Return(&auth.ResetCode{ID: "rc1", Email: "dev@x.com", Code: "123456"}, nil).Once()
	directory.On("FindSubjectByEmail", mock.Anything, "dev@x.com").
		Return(&auth.Subject{ID: id, Email: "dev@x.com"}, nil).Once()
	directory.On("UpdatePassword", mock.Anything, id, "abcdef").Return(nil).Once()
	codes.On("MarkUsed", mock.Anything, "rc1").Return(false, errors.New("locked")).Once()
	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt auth.ActivityEvent) bool {
		return evt.EventType == auth.ActivityEventPasswordResetSuccess &&
			evt.Metadata["marked_used"] == false
	})).Return(errors.New("sink down")).Once()

	failed := testutil.ToFloat64(auth.ResetCodesVerified.WithLabelValues(auth.VerifyOutcomeMarkFailed))

	handler := auth.NewVerifyResetCodeHandler(directory, codes).
		WithLogger(testLogger{}).
		WithActivitySink(sink)

	require.NoError(t, handler.Execute(ctx, auth.VerifyResetCodeMessage{Email: "dev@x.com", Code: "123456", NewPassword: "abcdef"}))

	assert.Equal(t, failed+1, testutil.ToFloat64(auth.ResetCodesVerified.WithLabelValues(auth.VerifyOutcomeMarkFailed)))
	directory.AssertExpectations(t)
	codes.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestVerifyResetCodePasswordUpdateFailure(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	directory := &MockSubjectDirectory{}
	codes := &MockResetCodes{}

	codes.On("FindActive", mock.Anything, "dev@x.com", "123456", mock.Anything).
		Return(&auth.ResetCode{ID: "rc1"}, nil).Once()
	directory.On("FindSubjectByEmail", mock.Anything, "dev@x.com").
		Return(&auth.Subject{ID: id}, nil).Once()
	directory.On("UpdatePassword", mock.Anything, id, "abcdef").Return(errors.New("rejected")).Once()

	handler := auth.NewVerifyResetCodeHandler(directory, codes).WithLogger(testLogger{})
	err := handler.Execute(ctx, auth.VerifyResetCodeMessage{Email: "dev@x.com", Code: "123456", NewPassword: "abcdef"})
	require.Error(t, err)

	status, _ := auth.ErrorResponse(err)
	assert.Equal(t, 500, status)
	codes.AssertNotCalled(t, "MarkUsed", mock.Anything, mock.Anything)
}

func TestChangeEmailHandler(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	subject := registerSubject(t, repo, "old@x.com", "secret1", nil)

	handler := auth.NewChangeEmailHandler(repo.Subjects()).WithLogger(testLogger{})

	require.NoError(t, handler.Execute(ctx, auth.ChangeEmailMessage{SubjectID: subject.ID, NewEmail: "New@X.com"}))

	found, err := repo.Subjects().FindSubjectByEmail(ctx, "new@x.com")
	require.NoError(t, err)
	assert.Equal(t, subject.ID, found.ID)

	_, err = repo.Subjects().FindSubjectByEmail(ctx, "old@x.com")
	assert.True(t, auth.IsSubjectNotFound(err))

	err = handler.Execute(ctx, auth.ChangeEmailMessage{SubjectID: subject.ID, NewEmail: "nope"})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidEmail))

	err = handler.Execute(ctx, auth.ChangeEmailMessage{NewEmail: "a@x.com"})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeUnauthenticated))

	err = handler.Execute(ctx, auth.ChangeEmailMessage{SubjectID: uuid.New(), NewEmail: "a@x.com"})
	assert.True(t, auth.IsSubjectNotFound(err))
}

func TestResetCodeFlowNormalizesPaddedEmail(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	registerSubject(t, repo, "dev@x.com", "oldpass", nil)

	mail := &capturedMail{}
	issue := auth.NewIssueResetCodeHandler(repo.Subjects(), repo.ResetCodes(), mail).
		WithLogger(testLogger{}).
		WithCodeGenerator(fixedCode("654321"))
	verify := auth.NewVerifyResetCodeHandler(repo.Subjects(), repo.ResetCodes()).
		WithLogger(testLogger{})

	require.NoError(t, issue.Execute(ctx, auth.IssueResetCodeMessage{Email: " Dev@X.com "}))
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "dev@x.com", mail.sent[0].To)

	require.NoError(t, verify.Execute(ctx, auth.VerifyResetCodeMessage{
		Email:       "  DEV@x.com",
		Code:        "654321",
		NewPassword: "abcdef",
	}))

	err := issue.Execute(ctx, auth.IssueResetCodeMessage{Email: "   "})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidEmail))
}

func TestHandlersStampActivityWithTheirClock(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	subject := registerSubject(t, repo, "dev@x.com", "oldpass", nil)

	at := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	clock := func() time.Time { return at }

	var events []auth.ActivityEvent
	sink := auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		events = append(events, event)
		return nil
	})

	issue := auth.NewIssueResetCodeHandler(repo.Subjects(), repo.ResetCodes(), &capturedMail{}).
		WithLogger(testLogger{}).
		WithClock(clock).
		WithActivitySink(sink).
		WithCodeGenerator(fixedCode("111111"))
	verify := auth.NewVerifyResetCodeHandler(repo.Subjects(), repo.ResetCodes()).
		WithLogger(testLogger{}).
		WithClock(clock).
		WithActivitySink(sink)
	changeEmail := auth.NewChangeEmailHandler(repo.Subjects()).
		WithLogger(testLogger{}).
		WithClock(clock).
		WithActivitySink(sink)

	require.NoError(t, issue.Execute(ctx, auth.IssueResetCodeMessage{Email: "dev@x.com"}))
	require.NoError(t, verify.Execute(ctx, auth.VerifyResetCodeMessage{Email: "dev@x.com", Code: "111111", NewPassword: "abcdef"}))
	require.NoError(t, changeEmail.Execute(ctx, auth.ChangeEmailMessage{SubjectID: subject.ID, NewEmail: "new@x.com"}))

	require.Len(t, events, 3)
	assert.Equal(t, auth.ActivityEventResetCodeIssued, events[0].EventType)
	assert.Equal(t, auth.ActivityEventPasswordResetSuccess, events[1].EventType)
	assert.Equal(t, auth.ActivityEventEmailChanged, events[2].EventType)
	for _, event := range events {
		assert.True(t, event.OccurredAt.Equal(at), "%s stamped %s", event.EventType, event.OccurredAt)
	}
}

package auth_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	auth "github.com/talentoenlinea/talent-auth"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// MockRoleStore implements auth.RoleStore
type MockRoleStore struct {
	mock.Mock
}

func (m *MockRoleStore) FindProfile(ctx context.Context, id uuid.UUID) (*auth.Profile, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*auth.Profile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoleStore) HasDeveloper(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoleStore) HasCompany(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoleStore) UpsertProfile(ctx context.Context, profile *auth.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

// MockProfileResolver implements auth.ProfileResolver
type MockProfileResolver struct {
	mock.Mock
}

func (m *MockProfileResolver) Resolve(ctx context.Context, id uuid.UUID, hint auth.Role) (*auth.Profile, error) {
	args := m.Called(ctx, id, hint)
	if p, ok := args.Get(0).(*auth.Profile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockSessionChannel implements auth.SessionChannel
type MockSessionChannel struct {
	mock.Mock
}

func (m *MockSessionChannel) Subscribe(listener auth.SessionListener) (func(), error) {
	args := m.Called(listener)
	if fn, ok := args.Get(0).(func()); ok {
		return fn, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionChannel) CurrentSession(ctx context.Context) (*auth.Session, error) {
	args := m.Called(ctx)
	if s, ok := args.Get(0).(*auth.Session); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionChannel) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSessionChannel) UpdateCredential(ctx context.Context, newPassword string) error {
	args := m.Called(ctx, newPassword)
	return args.Error(0)
}

// MockSubjectDirectory implements auth.SubjectDirectory
type MockSubjectDirectory struct {
	mock.Mock
}

func (m *MockSubjectDirectory) FindSubjectByEmail(ctx context.Context, email string) (*auth.Subject, error) {
	args := m.Called(ctx, email)
	if s, ok := args.Get(0).(*auth.Subject); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSubjectDirectory) UpdatePassword(ctx context.Context, id uuid.UUID, newPassword string) error {
	args := m.Called(ctx, id, newPassword)
	return args.Error(0)
}

func (m *MockSubjectDirectory) UpdateEmail(ctx context.Context, id uuid.UUID, newEmail string) error {
	args := m.Called(ctx, id, newEmail)
	return args.Error(0)
}

// MockResetCodes implements auth.ResetCodes
type MockResetCodes struct {
	mock.Mock
}

func (m *MockResetCodes) Create(ctx context.Context, record *auth.ResetCode) (*auth.ResetCode, error) {
	args := m.Called(ctx, record)
	if r, ok := args.Get(0).(*auth.ResetCode); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockResetCodes) FindActive(ctx context.Context, email, code string, now time.Time) (*auth.ResetCode, error) {
	args := m.Called(ctx, email, code, now)
	if r, ok := args.Get(0).(*auth.ResetCode); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockResetCodes) MarkUsed(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockMailer implements auth.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendResetCode(ctx context.Context, msg auth.ResetCodeEmail) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

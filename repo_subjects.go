package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Subjects is the bun backed SubjectDirectory.
type Subjects interface {
	repository.Repository[*Subject]
	SubjectDirectory

	Register(ctx context.Context, email, password string, metadata map[string]any) (*Subject, error)
	Authenticate(ctx context.Context, email, password string) (*Subject, error)
}

type subjects struct {
	repository.Repository[*Subject]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Subjects                        = (*subjects)(nil)
	_ SubjectDirectory                = (*subjects)(nil)
	_ repository.Repository[*Subject] = (*subjects)(nil)
)

func NewSubjectsRepository(db *bun.DB) Subjects {
	repo := repository.NewRepository[*Subject](db, repository.ModelHandlers[*Subject]{
		NewRecord: func() *Subject { return &Subject{} },
		GetID: func(s *Subject) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Subject, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	return &subjects{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

// NormalizeEmail trims and lower cases an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *subjects) Register(ctx context.Context, email, password string, metadata map[string]any) (*Subject, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	record := &Subject{
		ID:           uuid.New(),
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		Metadata:     metadata,
	}

	return s.Repository.Create(ctx, record)
}

func (s *subjects) Authenticate(ctx context.Context, email, password string) (*Subject, error) {
	subject, err := s.FindSubjectByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := ComparePasswordAndHash(password, subject.PasswordHash); err != nil {
		return nil, err
	}

	return subject, nil
}

func (s *subjects) FindSubjectByEmail(ctx context.Context, email string) (*Subject, error) {
	record := &Subject{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, withMetadata(ErrSubjectNotFound, map[string]any{
				"email": email,
			})
		}
		return nil, err
	}
	return record, nil
}

func (s *subjects) UpdatePassword(ctx context.Context, id uuid.UUID, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	res, err := s.db.NewUpdate().
		Model((*Subject)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	return s.expectOne(res, id)
}

func (s *subjects) UpdateEmail(ctx context.Context, id uuid.UUID, newEmail string) error {
	res, err := s.db.NewUpdate().
		Model((*Subject)(nil)).
		Set("email = ?", NormalizeEmail(newEmail)).
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	return s.expectOne(res, id)
}

func (s *subjects) expectOne(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return withMetadata(ErrSubjectNotFound, map[string]any{
			"id": id.String(),
		})
	}
	return nil
}

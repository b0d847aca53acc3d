package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Profiles() Profiles
	ResetCodes() ResetCodes
	Subjects() Subjects
	Migrate(ctx context.Context) error
}

type mngr struct {
	db         *bun.DB
	profiles   Profiles
	resetCodes ResetCodes
	subjects   Subjects
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:         db,
		profiles:   NewProfilesRepository(db),
		resetCodes: NewResetCodesRepository(db),
		subjects:   NewSubjectsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.profiles == nil {
		return errors.New("repository profiles should be initialized")
	}

	if m.resetCodes == nil {
		return errors.New("repository resetCodes should be initialized")
	}

	if m.subjects == nil {
		return errors.New("repository subjects should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

// Migrate creates the schema inside a single transaction.
func (m mngr) Migrate(ctx context.Context) error {
	return m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return CreateSchema(ctx, tx)
	})
}

func (m mngr) Profiles() Profiles {
	return m.profiles
}

func (m mngr) ResetCodes() ResetCodes {
	return m.resetCodes
}

func (m mngr) Subjects() Subjects {
	return m.subjects
}

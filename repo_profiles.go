package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles is the bun backed RoleStore.
type Profiles interface {
	repository.Repository[*Profile]
	RoleStore

	AddDeveloper(ctx context.Context, record *DeveloperRecord) error
	AddCompany(ctx context.Context, record *CompanyRecord) error
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var (
	_ Profiles  = (*profiles)(nil)
	_ RoleStore = (*profiles)(nil)
)

func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (p *profiles) FindProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	record, err := p.Repository.GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (p *profiles) HasDeveloper(ctx context.Context, id uuid.UUID) (bool, error) {
	return p.db.NewSelect().
		Model((*DeveloperRecord)(nil)).
		Where("?TableAlias.id = ?", id).
		Exists(ctx)
}

func (p *profiles) HasCompany(ctx context.Context, id uuid.UUID) (bool, error) {
	return p.db.NewSelect().
		Model((*CompanyRecord)(nil)).
		Where("?TableAlias.id = ?", id).
		Exists(ctx)
}

// UpsertProfile inserts the profile unless one already exists for the id.
// An existing role is never overwritten.
func (p *profiles) UpsertProfile(ctx context.Context, profile *Profile) error {
	record := &Profile{
		ID:   profile.ID,
		Role: profile.Role,
	}
	_, err := p.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return err
}

func (p *profiles) AddDeveloper(ctx context.Context, record *DeveloperRecord) error {
	_, err := p.db.NewInsert().Model(record).Exec(ctx)
	return err
}

func (p *profiles) AddCompany(ctx context.Context, record *CompanyRecord) error {
	_, err := p.db.NewInsert().Model(record).Exec(ctx)
	return err
}

package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// ResetCodes persists one time password reset codes.
type ResetCodes interface {
	Create(ctx context.Context, record *ResetCode) (*ResetCode, error)
	// FindActive returns the newest unused, unexpired code matching email
	// and code, or nil, nil if there is none.
	FindActive(ctx context.Context, email, code string, now time.Time) (*ResetCode, error)
	// MarkUsed flips used from false to true and reports whether this call
	// did it.
	MarkUsed(ctx context.Context, id string) (bool, error)
}

type resetCodes struct {
	db bun.IDB
}

var _ ResetCodes = (*resetCodes)(nil)

func NewResetCodesRepository(db bun.IDB) ResetCodes {
	return &resetCodes{db: db}
}

func (r *resetCodes) Create(ctx context.Context, record *ResetCode) (*ResetCode, error) {
	if record.ID == "" {
		record.ID = ulid.Make().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// FindActive filters on equality in SQL and checks expiry in Go so the
// comparison does not depend on how the driver stores timestamps.
func (r *resetCodes) FindActive(ctx context.Context, email, code string, now time.Time) (*ResetCode, error) {
	var records []*ResetCode
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.email = ?", email).
		Where("?TableAlias.code = ?", code).
		Where("?TableAlias.used = ?", false).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	for _, record := range records {
		if record.IsConsumable(now) {
			return record, nil
		}
	}
	return nil, nil
}

func (r *resetCodes) MarkUsed(ctx context.Context, id string) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*ResetCode)(nil)).
		Set("used = ?", true).
		Where("id = ?", id).
		Where("used = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

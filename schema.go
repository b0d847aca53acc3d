package auth

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var schemaModels = []any{
	(*Subject)(nil),
	(*Profile)(nil),
	(*DeveloperRecord)(nil),
	(*CompanyRecord)(nil),
	(*ResetCode)(nil),
}

// OpenSQLite opens a bun database on the sqlite shim driver. A single
// connection is used so that ":memory:" databases are shared by every query.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	sqldb.SetMaxOpenConns(1)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// CreateSchema creates all tables and indexes if missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range schemaModels {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	_, err := db.NewCreateIndex().
		Model((*ResetCode)(nil)).
		Index("password_reset_codes_email_code_idx").
		Column("email", "code").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create reset code index: %w", err)
	}

	return nil
}

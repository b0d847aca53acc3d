package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/talentoenlinea/talent-auth"
)

func newTestRepo(t *testing.T) auth.RepositoryManager {
	t.Helper()

	restore := auth.SetPasswordHashCost(bcrypt.MinCost)
	t.Cleanup(restore)

	db, err := auth.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := auth.NewRepositoryManager(db)
	require.NoError(t, repo.Validate())
	require.NoError(t, repo.Migrate(context.Background()))

	return repo
}

func registerSubject(t *testing.T, repo auth.RepositoryManager, email, password string, metadata map[string]any) *auth.Subject {
	t.Helper()
	subject, err := repo.Subjects().Register(context.Background(), email, password, metadata)
	require.NoError(t, err)
	return subject
}

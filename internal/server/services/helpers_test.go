package services

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/homeserver/internal/cryptox"
	"github.com/dmitrijs2005/homeserver/internal/logging"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
)

var testHasher = cryptox.NewPasswordHasher(cryptox.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type nopLogger = logging.Nop

// stubIssuer returns "token-for-<username>".
type stubIssuer struct{ err error }

func (s stubIssuer) Issue(id *models.Identity) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "token-for-" + id.Username, nil
}

package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/homeserver/internal/dbx"
	"github.com/dmitrijs2005/homeserver/internal/server/repositories/content"
	"github.com/dmitrijs2005/homeserver/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX so the same code
// runs on the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Content(db dbx.DBTX) content.Repository
}

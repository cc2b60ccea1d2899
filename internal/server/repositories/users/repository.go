package users

import (
	"context"

	"github.com/dmitrijs2005/homeserver/internal/server/models"
)

// Repository persists identity records. Lookups return common.ErrorNotFound
// when no row matches; writes that hit a unique constraint return
// common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, user *models.IdentityRecord) (*models.IdentityRecord, error)
	GetByID(ctx context.Context, id int64) (*models.IdentityRecord, error)
	GetByUsername(ctx context.Context, username string) (*models.IdentityRecord, error)
	GetByEmail(ctx context.Context, email string) (*models.IdentityRecord, error)
	Update(ctx context.Context, user *models.IdentityRecord) (*models.IdentityRecord, error)
	Delete(ctx context.Context, id int64) error
}

package content

import (
	"context"

	"github.com/dmitrijs2005/homeserver/internal/server/models"
)

// Repository is the catalog side of the content store.
type Repository interface {
	Create(ctx context.Context, obj *models.ContentObject) error
	Get(ctx context.Context, handle string) (*models.ContentObject, error)
	// List returns rows ordered by creation time, ties broken by handle.
	// A non-empty label keeps only rows carrying it.
	List(ctx context.Context, label string) ([]*models.ContentObject, error)
	Delete(ctx context.Context, handle string) error
	Inventory(ctx context.Context) (models.ContentInventory, error)
	LocatorExists(ctx context.Context, locator string) (bool, error)
}

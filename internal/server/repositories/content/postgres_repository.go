package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/homeserver/internal/common"
	"github.com/dmitrijs2005/homeserver/internal/dbx"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
)

const selectColumns = `handle, display_name, media_type, byte_size, storage_locator, checksum, labels, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts obj and fills CreatedAt from the database clock.
func (r *PostgresRepository) Create(ctx context.Context, obj *models.ContentObject) error {
	labels := obj.Labels
	if labels == nil {
		labels = []string{}
	}
	encoded, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}

	query :=
		`INSERT INTO content_objects (handle, display_name, media_type, byte_size, storage_locator, checksum, labels)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
		 RETURNING created_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		obj.Handle, obj.DisplayName, obj.MediaType, obj.ByteSize, obj.StorageLocator, obj.Checksum, string(encoded)).
		Scan(&obj.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %w", common.ErrorAlreadyExists, err)
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, handle string) (*models.ContentObject, error) {
	query := `SELECT ` + selectColumns + ` FROM content_objects WHERE handle = $1`

	obj, err := scanObject(r.db.QueryRowContext(ctx, query, handle))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return obj, nil
}

func (r *PostgresRepository) List(ctx context.Context, label string) ([]*models.ContentObject, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if label == "" {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+selectColumns+` FROM content_objects ORDER BY created_at ASC, handle ASC`)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+selectColumns+` FROM content_objects WHERE labels @> jsonb_build_array($1::text) ORDER BY created_at ASC, handle ASC`,
			label)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select content: %w", err)
	}
	defer rows.Close()

	result := make([]*models.ContentObject, 0)
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, obj)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, handle string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM content_objects WHERE handle = $1`, handle)
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) Inventory(ctx context.Context) (models.ContentInventory, error) {
	var inv models.ContentInventory
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(byte_size), 0) FROM content_objects`).
		Scan(&inv.ObjectCount, &inv.TotalBytes)
	if err != nil {
		return models.ContentInventory{}, fmt.Errorf("db error: %w", err)
	}
	return inv, nil
}

func (r *PostgresRepository) LocatorExists(ctx context.Context, locator string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM content_objects WHERE storage_locator = $1)`, locator).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObject(s scanner) (*models.ContentObject, error) {
	var (
		obj    models.ContentObject
		labels []byte
	)
	err := s.Scan(&obj.Handle, &obj.DisplayName, &obj.MediaType, &obj.ByteSize,
		&obj.StorageLocator, &obj.Checksum, &labels, &obj.CreatedAt)
	if err != nil {
		return nil, err
	}

	obj.Labels = []string{}
	if len(labels) > 0 {
		if err := json.Unmarshal(labels, &obj.Labels); err != nil {
			return nil, fmt.Errorf("decode labels: %w", err)
		}
	}

	return &obj, nil
}

// Package repotest provides in-memory repositories with the same
// contracts as the PostgreSQL ones, for service and handler tests.
// Transactions are not modeled: every DBTX sees the same data.
package repotest

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/common"
	"github.com/dmitrijs2005/homeserver/internal/dbx"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
	"github.com/dmitrijs2005/homeserver/internal/server/repositories/content"
	"github.com/dmitrijs2005/homeserver/internal/server/repositories/users"
	"github.com/jackc/pgx/v5/pgconn"
)

// Manager satisfies repomanager.RepositoryManager.
type Manager struct {
	UserRepo    *Users
	ContentRepo *Content
}

func NewManager(now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		UserRepo:    &Users{byID: map[int64]*models.IdentityRecord{}, now: now},
		ContentRepo: &Content{byHandle: map[string]*models.ContentObject{}, now: now},
	}
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *Manager) Users(dbx.DBTX) users.Repository              { return m.UserRepo }
func (m *Manager) Content(dbx.DBTX) content.Repository          { return m.ContentRepo }

func uniqueViolation(constraint string) error {
	return fmt.Errorf("%w: %w", common.ErrorAlreadyExists,
		&pgconn.PgError{Code: "23505", ConstraintName: constraint})
}

// Users is an in-memory users.Repository.
type Users struct {
	mu     sync.Mutex
	byID   map[int64]*models.IdentityRecord
	nextID int64
	now    func() time.Time
}

func (r *Users) Create(_ context.Context, u *models.IdentityRecord) (*models.IdentityRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Username == u.Username {
			return nil, uniqueViolation("users_username_key")
		}
		if existing.Email == u.Email {
			return nil, uniqueViolation("users_email_key")
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = r.now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.byID[u.ID] = &cp
	return u, nil
}

func (r *Users) find(match func(*models.IdentityRecord) bool) (*models.IdentityRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *Users) GetByID(_ context.Context, id int64) (*models.IdentityRecord, error) {
	return r.find(func(u *models.IdentityRecord) bool { return u.ID == id })
}

func (r *Users) GetByUsername(_ context.Context, username string) (*models.IdentityRecord, error) {
	return r.find(func(u *models.IdentityRecord) bool { return u.Username == username })
}

func (r *Users) GetByEmail(_ context.Context, email string) (*models.IdentityRecord, error) {
	return r.find(func(u *models.IdentityRecord) bool { return u.Email == email })
}

func (r *Users) Update(_ context.Context, u *models.IdentityRecord) (*models.IdentityRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[u.ID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	for id, other := range r.byID {
		if id != u.ID && other.Email == u.Email {
			return nil, uniqueViolation("users_email_key")
		}
	}
	stored.Email = u.Email
	stored.PasswordHash = u.PasswordHash
	stored.UpdatedAt = r.now()
	u.UpdatedAt = stored.UpdatedAt
	return u, nil
}

func (r *Users) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.byID, id)
	return nil
}

// SetActive flips the active flag; there is no service operation for it.
func (r *Users) SetActive(id int64, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.Active = active
	}
}

// SetPrivileged flips the privileged flag.
func (r *Users) SetPrivileged(id int64, privileged bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.Privileged = privileged
	}
}

// Content is an in-memory content.Repository.
type Content struct {
	mu       sync.Mutex
	byHandle map[string]*models.ContentObject
	now      func() time.Time

	// CreateErr, when set, fails the next Create.
	CreateErr error
}

func (r *Content) Create(_ context.Context, obj *models.ContentObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		err := r.CreateErr
		r.CreateErr = nil
		return fmt.Errorf("db error: %w", err)
	}
	if _, ok := r.byHandle[obj.Handle]; ok {
		return uniqueViolation("content_objects_pkey")
	}
	obj.CreatedAt = r.now()
	cp := *obj
	cp.Labels = slices.Clone(obj.Labels)
	r.byHandle[obj.Handle] = &cp
	return nil
}

func (r *Content) Get(_ context.Context, handle string) (*models.ContentObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.byHandle[handle]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *obj
	return &cp, nil
}

func (r *Content) List(_ context.Context, label string) ([]*models.ContentObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.ContentObject, 0, len(r.byHandle))
	for _, obj := range r.byHandle {
		if label != "" && !slices.Contains(obj.Labels, label) {
			continue
		}
		cp := *obj
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Handle < out[j].Handle
	})
	return out, nil
}

func (r *Content) Delete(_ context.Context, handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byHandle[handle]; !ok {
		return common.ErrorNotFound
	}
	delete(r.byHandle, handle)
	return nil
}

func (r *Content) Inventory(context.Context) (models.ContentInventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var inv models.ContentInventory
	for _, obj := range r.byHandle {
		inv.ObjectCount++
		inv.TotalBytes += obj.ByteSize
	}
	return inv, nil
}

func (r *Content) LocatorExists(_ context.Context, locator string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, obj := range r.byHandle {
		if obj.StorageLocator == locator {
			return true, nil
		}
	}
	return false, nil
}

// Package models defines server-side data models persisted in the database
// and the views returned to clients.
package models

import "time"

// IdentityRecord is the stored account row. It carries the password hash
// and never leaves the service layer.
type IdentityRecord struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	Privileged   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the client-visible account view.
type Identity struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Active     bool      `json:"is_active"`
	Privileged bool      `json:"is_superuser"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Public drops the password hash.
func (r *IdentityRecord) Public() *Identity {
	return &Identity{
		ID:         r.ID,
		Username:   r.Username,
		Email:      r.Email,
		Active:     r.Active,
		Privileged: r.Privileged,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

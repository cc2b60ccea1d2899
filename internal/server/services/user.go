// Package services contains server-side business logic: accounts and
// credentials (UserService), stored content (ContentService) and host
// telemetry (MonitoringService).
package services

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dmitrijs2005/homeserver/internal/common"
	"github.com/dmitrijs2005/homeserver/internal/dbx"
	"github.com/dmitrijs2005/homeserver/internal/logging"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
	"github.com/dmitrijs2005/homeserver/internal/server/repositories/repomanager"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	msgUsernameTaken = "Username already exists"
	msgEmailTaken    = "Email already exists"
	msgBadCredential = "Incorrect username or password"
	msgInactive      = "Inactive user"
	msgUserNotFound  = "User not found"
)

// PasswordHasher derives and checks stored password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// TokenIssuer mints bearer tokens for an identity.
type TokenIssuer interface {
	Issue(identity *models.Identity) (string, error)
}

// UserService owns identity records: registration, credential checks,
// profile changes and deletion.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	tokens      TokenIssuer
	log         logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService constructs a UserService.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher, tokens TokenIssuer, log logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		tokens:      tokens,
		log:         log.With("module", "users"),
	}
}

// Register validates input, then creates an active, unprivileged account.
// The username is checked before the email.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.Identity, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, common.Wrap(common.KindInternal, err, "hash password")
	}

	var created *models.IdentityRecord
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		if _, err := repo.GetByUsername(ctx, username); err == nil {
			return common.Errorf(common.KindConflict, msgUsernameTaken)
		} else if !errors.Is(err, common.ErrorNotFound) {
			return common.Wrap(common.KindInternal, err, "lookup username")
		}

		if _, err := repo.GetByEmail(ctx, email); err == nil {
			return common.Errorf(common.KindConflict, msgEmailTaken)
		} else if !errors.Is(err, common.ErrorNotFound) {
			return common.Wrap(common.KindInternal, err, "lookup email")
		}

		created, err = repo.Create(ctx, &models.IdentityRecord{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			Active:       true,
		})
		if err != nil {
			return conflictOrInternal(err, "create user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", created.ID, "username", created.Username)
	return created.Public(), nil
}

// Verify checks credentials. login may be a username or an email.
func (s *UserService) Verify(ctx context.Context, login, password string) (*models.Identity, error) {
	repo := s.repomanager.Users(s.db)

	rec, err := repo.GetByUsername(ctx, login)
	if errors.Is(err, common.ErrorNotFound) {
		rec, err = repo.GetByEmail(ctx, login)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn the same hashing cost as a real check
			_, _ = s.hasher.Verify(password, s.dummy())
			return nil, common.Errorf(common.KindAuthentication, msgBadCredential)
		}
		return nil, common.Wrap(common.KindInternal, err, "lookup user")
	}

	ok, err := s.hasher.Verify(password, rec.PasswordHash)
	if err != nil {
		s.log.Error(ctx, "stored password hash unusable", "user_id", rec.ID, "error", err)
		return nil, common.Wrap(common.KindInternal, err, "verify password")
	}
	if !ok {
		return nil, common.Errorf(common.KindAuthentication, msgBadCredential)
	}
	if !rec.Active {
		return nil, common.Errorf(common.KindAuthorization, msgInactive)
	}

	return rec.Public(), nil
}

// Login verifies credentials and issues a token.
func (s *UserService) Login(ctx context.Context, login, password string) (string, error) {
	identity, err := s.Verify(ctx, login, password)
	if err != nil {
		return "", err
	}
	return s.IssueToken(identity)
}

// IssueToken mints a bearer token for identity.
func (s *UserService) IssueToken(identity *models.Identity) (string, error) {
	token, err := s.tokens.Issue(identity)
	if err != nil {
		return "", common.Wrap(common.KindInternal, err, "issue token")
	}
	return token, nil
}

// Get returns the account with id.
func (s *UserService) Get(ctx context.Context, id int64) (*models.Identity, error) {
	rec, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, msgUserNotFound)
	}
	return rec.Public(), nil
}

// GetByUsername resolves a token subject to its account.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.Identity, error) {
	rec, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		return nil, notFoundOrInternal(err, msgUserNotFound)
	}
	return rec.Public(), nil
}

// UpdateProfile changes email and/or password. Nil arguments are left as is.
func (s *UserService) UpdateProfile(ctx context.Context, id int64, email, password *string) (*models.Identity, error) {
	var newEmail string
	if email != nil {
		newEmail = strings.TrimSpace(*email)
		if err := validateEmail(newEmail); err != nil {
			return nil, err
		}
	}

	var newHash string
	if password != nil {
		if err := validatePassword(*password); err != nil {
			return nil, err
		}
		h, err := s.hasher.Hash(*password)
		if err != nil {
			return nil, common.Wrap(common.KindInternal, err, "hash password")
		}
		newHash = h
	}

	var updated *models.IdentityRecord
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		rec, err := repo.GetByID(ctx, id)
		if err != nil {
			return notFoundOrInternal(err, msgUserNotFound)
		}

		if email != nil && newEmail != rec.Email {
			if other, err := repo.GetByEmail(ctx, newEmail); err == nil && other.ID != id {
				return common.Errorf(common.KindConflict, msgEmailTaken)
			} else if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return common.Wrap(common.KindInternal, err, "lookup email")
			}
			rec.Email = newEmail
		}
		if password != nil {
			rec.PasswordHash = newHash
		}

		updated, err = repo.Update(ctx, rec)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.Errorf(common.KindNotFound, msgUserNotFound)
			}
			return conflictOrInternal(err, "update user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "profile updated", "user_id", id, "email_changed", email != nil, "password_changed", password != nil)
	return updated.Public(), nil
}

// Delete removes the account. Tokens already issued stay valid until the
// gate fails to resolve their subject.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.repomanager.Users(s.db).Delete(ctx, id); err != nil {
		return notFoundOrInternal(err, msgUserNotFound)
	}
	s.log.Info(ctx, "user deleted", "user_id", id)
	return nil
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("not-a-real-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// conflictOrInternal maps a unique-constraint failure that raced past the
// explicit checks onto the matching conflict message.
func conflictOrInternal(err error, op string) error {
	if !errors.Is(err, common.ErrorAlreadyExists) {
		return common.Wrap(common.KindInternal, err, op)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.Contains(pgErr.ConstraintName, "username") {
		return common.Wrap(common.KindConflict, err, msgUsernameTaken)
	}
	return common.Wrap(common.KindConflict, err, msgEmailTaken)
}

func notFoundOrInternal(err error, msg string) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.New(common.KindNotFound, msg)
	}
	var ce *common.Error
	if errors.As(err, &ce) {
		return err
	}
	return common.Wrap(common.KindInternal, err, "lookup user")
}

func validateUsername(username string) error {
	if n := utf8.RuneCountInString(username); n < 3 || n > 50 {
		return common.Errorf(common.KindValidation, "username must be between 3 and 50 characters")
	}
	return nil
}

func validateEmail(email string) error {
	if len(email) > 255 {
		return common.Errorf(common.KindValidation, "email must be at most 255 characters")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return common.Errorf(common.KindValidation, "value is not a valid email address")
	}
	return nil
}

func validatePassword(password string) error {
	if n := utf8.RuneCountInString(password); n < 8 || n > 100 {
		return common.Errorf(common.KindValidation, "password must be between 8 and 100 characters")
	}
	return nil
}

// Package gate turns a presented bearer token into an active identity.
// Every protected call and the telemetry handshake go through Resolve.
package gate

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/homeserver/internal/common"
	"github.com/dmitrijs2005/homeserver/internal/logging"
	"github.com/dmitrijs2005/homeserver/internal/server/auth"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
)

// Reason is the machine-readable rejection code.
type Reason string

const (
	ReasonInvalidOrExpiredToken Reason = "invalid_or_expired_token"
	ReasonUnknownSubject        Reason = "unknown_subject"
	ReasonInactiveAccount       Reason = "inactive_account"
	ReasonInsufficientPrivilege Reason = "insufficient_privilege"
)

// Rejection is returned when the gate refuses a caller. It unwraps to a
// *common.Error so common.KindOf classifies it.
type Rejection struct {
	Reason Reason
	err    *common.Error
}

func reject(reason Reason) *Rejection {
	var e *common.Error
	switch reason {
	case ReasonInactiveAccount:
		e = common.Errorf(common.KindAuthorization, "Inactive user")
	case ReasonInsufficientPrivilege:
		e = common.Errorf(common.KindAuthorization, "Not enough permissions")
	default:
		e = common.Errorf(common.KindAuthentication, "Could not validate credentials")
	}
	return &Rejection{Reason: reason, err: e}
}

func (r *Rejection) Error() string { return "rejected: " + string(r.Reason) }

func (r *Rejection) Unwrap() error { return r.err }

// RejectReason is the reason code reported to clients.
func (r *Rejection) RejectReason() string { return string(r.Reason) }

// Kind is Authentication for token problems and Authorization for
// account state or privilege.
func (r *Rejection) Kind() common.Kind { return r.err.Kind }

// TokenDecoder validates a raw token.
type TokenDecoder interface {
	Decode(token string) (*auth.Claims, bool)
}

// SubjectResolver loads the account named by a token subject.
type SubjectResolver interface {
	GetByUsername(ctx context.Context, username string) (*models.Identity, error)
}

type Gate struct {
	tokens TokenDecoder
	users  SubjectResolver
	log    logging.Logger
}

func New(tokens TokenDecoder, users SubjectResolver, log logging.Logger) *Gate {
	return &Gate{tokens: tokens, users: users, log: log.With("module", "gate")}
}

// Resolve maps rawToken to an active identity, re-reading the account on
// every call so deletion or deactivation takes effect immediately.
func (g *Gate) Resolve(ctx context.Context, rawToken string) (*models.Identity, error) {
	claims, ok := g.tokens.Decode(rawToken)
	if !ok {
		return nil, reject(ReasonInvalidOrExpiredToken)
	}

	identity, err := g.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if common.KindOf(err) == common.KindNotFound {
			return nil, reject(ReasonUnknownSubject)
		}
		g.log.Error(ctx, "subject lookup failed", "error", err)
		return nil, err
	}
	// a recreated account with the same name must not inherit old tokens
	if identity.ID != claims.UserID {
		return nil, reject(ReasonUnknownSubject)
	}
	if !identity.Active {
		return nil, reject(ReasonInactiveAccount)
	}

	return identity, nil
}

// RequirePrivileged passes only superusers.
func RequirePrivileged(identity *models.Identity) error {
	if identity == nil || !identity.Privileged {
		return reject(ReasonInsufficientPrivilege)
	}
	return nil
}

// BearerFromHeader extracts the token from "Bearer <token>". The scheme
// is case-insensitive; anything else yields "".
func BearerFromHeader(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// ReasonOf returns the rejection reason in err's chain, if any.
func ReasonOf(err error) (Reason, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return "", false
}

type ctxKey string

const identityKey ctxKey = "identity"

// WithIdentity stores a resolved identity for the rest of the request.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (*models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*models.Identity)
	return identity, ok && identity != nil
}

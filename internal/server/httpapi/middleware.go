package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/common"
	"github.com/dmitrijs2005/homeserver/internal/netx"
	"github.com/dmitrijs2005/homeserver/internal/server/gate"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
	"github.com/go-chi/chi/v5/middleware"
)

// Authenticate resolves the bearer token once per request and stores the
// identity in the request context.
func (a *API) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := gate.BearerFromHeader(r.Header.Get(common.AuthorizationHeaderName))
		identity, err := a.gate.Resolve(r.Context(), token)
		if err != nil {
			netx.WriteError(w, r, a.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(gate.WithIdentity(r.Context(), identity)))
	})
}

// identity returns the caller stored by Authenticate.
func identity(r *http.Request) *models.Identity {
	id, _ := gate.IdentityFrom(r.Context())
	return id
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		a.log.Info(r.Context(), "request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"remote", r.RemoteAddr,
			"duration_ms", since(start),
		)
	})
}

// Package httpapi is the REST surface of the home server: the chi router,
// its middleware and the handlers for accounts, files and monitoring.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/logging"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// UserService is the account side used by the auth handlers.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*models.Identity, error)
	Login(ctx context.Context, login, password string) (string, error)
	IssueToken(identity *models.Identity) (string, error)
	Get(ctx context.Context, id int64) (*models.Identity, error)
	UpdateProfile(ctx context.Context, id int64, email, password *string) (*models.Identity, error)
	Delete(ctx context.Context, id int64) error
}

// ContentService is the file side used by the file handlers.
type ContentService interface {
	Save(ctx context.Context, owner *models.Identity, r io.Reader, displayName, mediaType string, labels []string) (*models.ContentObject, error)
	List(ctx context.Context, owner *models.Identity, label string) ([]*models.ContentObject, error)
	Metadata(ctx context.Context, handle string) (*models.ContentObject, error)
	Fetch(ctx context.Context, handle string) (*models.ContentObject, []byte, error)
	Delete(ctx context.Context, handle string) error
}

// MonitoringService produces the REST telemetry snapshots.
type MonitoringService interface {
	System(ctx context.Context) (models.ResourceSnapshot, error)
	Storage(ctx context.Context) (models.ContentInventory, error)
	Snapshot(ctx context.Context) (models.TelemetrySnapshot, error)
}

// Authenticator resolves a bearer token to an active identity.
type Authenticator interface {
	Resolve(ctx context.Context, rawToken string) (*models.Identity, error)
}

// Options carries the presentation settings of the API.
type Options struct {
	AppName        string
	Version        string
	CORSOrigins    []string
	MaxUploadBytes int64
}

const (
	DefaultAppName        = "HomeServer"
	DefaultVersion        = "0.1.0"
	DefaultMaxUploadBytes = 64 << 20
)

type API struct {
	opts       Options
	users      UserService
	content    ContentService
	monitoring MonitoringService
	gate       Authenticator
	telemetry  http.Handler
	log        logging.Logger
}

// New builds the API. telemetry serves the push channel and does its own
// token check; it may be nil to leave the route unmounted.
func New(opts Options, users UserService, content ContentService, monitoring MonitoringService, gate Authenticator, telemetry http.Handler, log logging.Logger) *API {
	if opts.AppName == "" {
		opts.AppName = DefaultAppName
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &API{
		opts:       opts,
		users:      users,
		content:    content,
		monitoring: monitoring,
		gate:       gate,
		telemetry:  telemetry,
		log:        log.With("module", "http"),
	}
}

// Router returns the complete handler tree.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition", "WWW-Authenticate", "X-Reject-Reason"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", a.handleRoot)
	r.Get("/health", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/info", a.handleInfo)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.handleRegister)
			r.Post("/login", a.handleLogin)

			r.Group(func(r chi.Router) {
				r.Use(a.Authenticate)
				r.Get("/me", a.handleMe)
				r.Patch("/me", a.handleUpdateMe)
				r.Delete("/me", a.handleDeleteMe)
				r.Get("/users/{id}", a.handleGetUser)
			})
		})

		r.Route("/files", func(r chi.Router) {
			r.Use(a.Authenticate)
			r.Post("/upload", a.handleUpload)
			r.Get("/list", a.handleList)
			r.Get("/{id}/metadata", a.handleMetadata)
			r.Get("/{id}/download", a.handleDownload)
			r.Delete("/{id}", a.handleDelete)
		})

		r.Route("/monitoring", func(r chi.Router) {
			if a.telemetry != nil {
				r.Method(http.MethodGet, "/ws", a.telemetry)
			}
			r.Group(func(r chi.Router) {
				r.Use(a.Authenticate)
				r.Get("/system", a.handleSystem)
				r.Get("/storage", a.handleStorage)
				r.Get("/dashboard", a.handleDashboard)
			})
		})
	})

	return r
}

func since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

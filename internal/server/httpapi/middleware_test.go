package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/homeserver/internal/common"
	"github.com/dmitrijs2005/homeserver/internal/logging"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
	"github.com/stretchr/testify/assert"
)

type stubGate struct {
	identity *models.Identity
	err      error
	seen     []string
}

func (g *stubGate) Resolve(_ context.Context, raw string) (*models.Identity, error) {
	g.seen = append(g.seen, raw)
	return g.identity, g.err
}

func TestAuthenticate_StoresIdentity(t *testing.T) {
	g := &stubGate{identity: &models.Identity{ID: 7, Username: "alice", Active: true}}
	a := New(Options{}, nil, nil, nil, g, nil, logging.Nop{})

	var got *models.Identity
	h := a.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = identity(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc.def")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"abc.def"}, g.seen)
	if assert.NotNil(t, got) {
		assert.Equal(t, int64(7), got.ID)
	}
}

func TestAuthenticate_LookupFailureIs500(t *testing.T) {
	g := &stubGate{err: errors.New("db error: timeout")}
	a := New(Options{}, nil, nil, nil, g, nil, logging.Nop{})

	h := a.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"internal error"}`, rec.Body.String())
}

func TestAuthenticate_KindedErrorsPassThrough(t *testing.T) {
	g := &stubGate{err: common.Errorf(common.KindAuthentication, "Could not validate credentials")}
	a := New(Options{}, nil, nil, nil, g, nil, logging.Nop{})

	rec := httptest.NewRecorder()
	a.Authenticate(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNew_Defaults(t *testing.T) {
	a := New(Options{}, nil, nil, nil, nil, nil, logging.Nop{})
	assert.Equal(t, DefaultAppName, a.opts.AppName)
	assert.Equal(t, DefaultVersion, a.opts.Version)
	assert.Equal(t, int64(DefaultMaxUploadBytes), a.opts.MaxUploadBytes)
}

func TestRouter_RecoversFromPanics(t *testing.T) {
	a := New(Options{}, nil, nil, panickyMonitoring{}, &stubGate{identity: &models.Identity{ID: 1}}, nil, logging.Nop{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/monitoring/system", nil)
	a.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panickyMonitoring struct{}

func (panickyMonitoring) System(context.Context) (models.ResourceSnapshot, error) { panic("boom") }
func (panickyMonitoring) Storage(context.Context) (models.ContentInventory, error) {
	return models.ContentInventory{}, nil
}
func (panickyMonitoring) Snapshot(context.Context) (models.TelemetrySnapshot, error) {
	return models.TelemetrySnapshot{}, nil
}

package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/clock"
	"github.com/dmitrijs2005/homeserver/internal/cryptox"
	"github.com/dmitrijs2005/homeserver/internal/logging"
	"github.com/dmitrijs2005/homeserver/internal/netx"
	"github.com/dmitrijs2005/homeserver/internal/server/auth"
	"github.com/dmitrijs2005/homeserver/internal/server/blobstore"
	"github.com/dmitrijs2005/homeserver/internal/server/gate"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
	"github.com/dmitrijs2005/homeserver/internal/server/repositories/repotest"
	"github.com/dmitrijs2005/homeserver/internal/server/services"
	"github.com/dmitrijs2005/homeserver/internal/server/telemetry"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var testHasher = cryptox.NewPasswordHasher(cryptox.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})

type fixedProbe struct{}

func (fixedProbe) Snapshot(context.Context) (models.ResourceSnapshot, error) {
	return models.ResourceSnapshot{
		CPUPercent:       12.5,
		MemoryUsedBytes:  1 << 30,
		MemoryTotalBytes: 4 << 30,
		DiskUsedBytes:    10 << 30,
		DiskTotalBytes:   100 << 30,
		DiskFreeBytes:    90 << 30,
	}, nil
}

// harness wires the real services over in-memory repositories, a
// temporary blob root and an in-memory SQLite handle for transactions.
type harness struct {
	srv     *httptest.Server
	repos   *repotest.Manager
	store   *blobstore.FSStore
	clock   *clock.Fake
	channel *telemetry.Channel
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := blobstore.NewFSStore(t.TempDir())
	require.NoError(t, err)

	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	fc := clock.NewFake(started)
	// strictly increasing row timestamps keep list order deterministic
	var ticks atomic.Int64
	repos := repotest.NewManager(func() time.Time {
		return started.Add(time.Duration(ticks.Add(1)) * time.Millisecond)
	})

	tokens, err := auth.NewTokenService([]byte("http-secret"), time.Hour, clock.Real())
	require.NoError(t, err)

	log := logging.Nop{}
	users := services.NewUserService(db, repos, testHasher, tokens, log)
	content := services.NewContentService(db, repos, store, fc, log)
	monitoring := services.NewMonitoringService(fixedProbe{}, content, fc, started)
	g := gate.New(tokens, users, log)
	channel := telemetry.NewChannel(g, monitoring, 10*time.Millisecond, log)

	api := New(opts, users, content, monitoring, g, channel, log)
	srv := httptest.NewServer(api.Router())
	t.Cleanup(func() {
		_ = channel.Shutdown(context.Background())
		srv.Close()
	})

	return &harness{srv: srv, repos: repos, store: store, clock: fc, channel: channel}
}

func (h *harness) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (h *harness) json(t *testing.T, method, path, token string, v any) *http.Response {
	t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return h.do(t, method, path, token, body, "application/json")
}

func (h *harness) upload(t *testing.T, token, filename, mediaType, data, tags string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader(data))
	require.NoError(t, err)

	if tags != "" {
		require.NoError(t, mw.WriteField("tags", tags))
	}
	require.NoError(t, mw.Close())

	return h.do(t, http.MethodPost, "/api/v1/files/upload", token, &buf, mw.FormDataContentType())
}

type registered struct {
	User        models.Identity `json:"user"`
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
}

func (h *harness) register(t *testing.T, username, email, password string) registered {
	t.Helper()
	resp := h.json(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[registered](t, resp)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func detail(t *testing.T, resp *http.Response) string {
	t.Helper()
	return decode[netx.ErrorBody](t, resp).Detail
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/heyfriend/landing/internal/auth"
	"github.com/heyfriend/landing/internal/repository/sqldb"
)

const adminPassword = "s3cret"

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()

	db, err := sqldb.Open(context.Background(), sqldb.Config{DSN: ":memory:", Automigrate: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	verifier, err := auth.NewSecretVerifierForTest(auth.Config{Password: adminPassword}, bcrypt.MinCost)
	require.NoError(t, err)

	if cfg.Environment == "" {
		cfg.Environment = "test"
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := New(cfg, db, verifier, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string, header map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp, decoded
}

func TestServer_WaitlistLifecycle(t *testing.T) {
	ts := newTestServer(t, Config{})
	pw := map[string]string{"X-Admin-Password": adminPassword}

	// Subscribe.
	resp, body := do(t, http.MethodPost, ts.URL+"/api/subscribe", `{"email":"a@example.com"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Successfully subscribed!", body["message"])
	sub := body["subscriber"].(map[string]interface{})
	assert.Equal(t, float64(1), sub["id"])
	assert.Equal(t, "a@example.com", sub["email"])

	// Same email again.
	resp, body = do(t, http.MethodPost, ts.URL+"/api/subscribe", `{"email":"a@example.com"}`, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, true, body["alreadyExists"])

	// List with the header.
	resp, body = do(t, http.MethodGet, ts.URL+"/api/admin/emails", "", pw)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	// List with the body.
	resp, body = do(t, http.MethodPost, ts.URL+"/api/admin/emails", `{"password":"  s3cret  "}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	// Delete.
	resp, body = do(t, http.MethodDelete, ts.URL+"/api/admin/emails", `{"password":"s3cret","id":1}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Email deleted successfully", body["message"])

	// Empty again.
	resp, body = do(t, http.MethodGet, ts.URL+"/api/admin/emails", "", pw)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []interface{}{}, body["subscribers"])

	// Deleting twice is a 404.
	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/admin/emails", `{"password":"s3cret","id":1}`, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_WrongPasswordNeverTouchesData(t *testing.T) {
	ts := newTestServer(t, Config{})

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/subscribe", `{"email":"keep@example.com"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/admin/emails", "", map[string]string{"X-Admin-Password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized - Incorrect password", body["message"])
	assert.Nil(t, body["subscribers"])

	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/admin/emails", `{"password":"nope","id":1}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/admin/emails.csv", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = do(t, http.MethodGet, ts.URL+"/api/admin/emails", "", map[string]string{"X-Admin-Password": adminPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
}

func TestServer_DeleteRejectsBadIDs(t *testing.T) {
	ts := newTestServer(t, Config{})

	for _, id := range []string{`"1"`, `0`, `-1`, `1.5`, `null`, `true`} {
		resp, body := do(t, http.MethodDelete, ts.URL+"/api/admin/emails", `{"password":"s3cret","id":`+id+`}`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, id)
		assert.Equal(t, "Invalid email ID", body["message"], id)
	}

	resp, _ := do(t, http.MethodDelete, ts.URL+"/api/admin/emails", `{"password":"s3cret"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_SubscribeValidation(t *testing.T) {
	ts := newTestServer(t, Config{})

	tests := []struct {
		body    string
		wantMsg string
	}{
		{`{}`, "Email is required"},
		{`{"email":""}`, "Email is required"},
		{`{"email":5}`, "Email is required"},
		{`{"email":"not-an-email"}`, "Invalid email format"},
		{`{"email":"a@b"}`, "Invalid email format"},
	}

	for _, tt := range tests {
		resp, body := do(t, http.MethodPost, ts.URL+"/api/subscribe", tt.body, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tt.body)
		assert.Equal(t, tt.wantMsg, body["message"], tt.body)
	}
}

func TestServer_CSVExport(t *testing.T) {
	ts := newTestServer(t, Config{})
	for _, e := range []string{"first@example.com", "second@example.com"} {
		resp, _ := do(t, http.MethodPost, ts.URL+"/api/subscribe", `{"email":"`+e+`"}`, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/admin/emails.csv", nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Password", adminPassword)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Email,Date Subscribed", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "second@example.com,"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "first@example.com,"), lines[2])
}

func TestServer_Debug(t *testing.T) {
	dev := newTestServer(t, Config{Environment: "development"})
	resp, body := do(t, http.MethodGet, dev.URL+"/api/admin/debug", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["passwordIsSet"])
	assert.Equal(t, "plaintext", body["source"])
	assert.NotContains(t, body, "passwordLength")

	prod := newTestServer(t, Config{Environment: "production"})
	resp, _ = do(t, http.MethodGet, prod.URL+"/api/admin/debug", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_PagesStaticAndHealth(t *testing.T) {
	ts := newTestServer(t, Config{})

	for _, path := range []string{"/", "/privacy", "/admin/emails"} {
		resp, _ := do(t, http.MethodGet, ts.URL+path, "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"), path)
	}

	for _, path := range []string{"/static/app.css", "/static/subscribe.js", "/static/admin.js"} {
		resp, _ := do(t, http.MethodGet, ts.URL+path, "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, _ := do(t, http.MethodGet, ts.URL+"/static/missing.js", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := do(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_RequestIDHeader(t *testing.T) {
	ts := newTestServer(t, Config{})

	resp, _ := do(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	assert.Len(t, resp.Header.Get("X-Request-ID"), 20)

	resp, _ = do(t, http.MethodGet, ts.URL+"/healthz", "", map[string]string{"X-Request-ID": "lb-42"})
	assert.Equal(t, "lb-42", resp.Header.Get("X-Request-ID"))
}

func TestServer_CORS(t *testing.T) {
	ts := newTestServer(t, Config{AllowedOrigins: []string{"https://heyfriend.app"}})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/subscribe", bytes.NewReader(nil))
	require.NoError(t, err)
	req.Header.Set("Origin", "https://heyfriend.app")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "https://heyfriend.app", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestNew_RequiresDependencies(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := New(Config{}, nil, nil, logger)
	assert.Error(t, err)
}

func TestStart_ShutsDownOnContextCancel(t *testing.T) {
	db, err := sqldb.Open(context.Background(), sqldb.Config{DSN: ":memory:", Automigrate: true})
	require.NoError(t, err)
	verifier, err := auth.NewSecretVerifierForTest(auth.Config{Password: adminPassword}, bcrypt.MinCost)
	require.NoError(t, err)

	// Port 0 would be ideal, but the address is built from the config, so
	// pick an unlikely fixed port.
	srv, err := New(Config{Port: 38917, Environment: "test"}, db, verifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	cancel()
	require.NoError(t, <-done)

	// Start closed the pool on the way out.
	assert.Error(t, db.Ping(context.Background()))
}

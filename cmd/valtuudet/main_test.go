package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	delegationapi "github.com/tendant/simple-valtuudet/pkg/delegation/api"
	"github.com/tendant/simple-valtuudet/pkg/ratelimit"
	"github.com/tendant/simple-valtuudet/pkg/signer"
)

func setTestEnv(t *testing.T) {
	t.Setenv("WEBAPI_CLIENT_ID", "test-client")
	t.Setenv("WEBAPI_CLIENT_SECRET", "test-secret")
	t.Setenv("WEBAPI_OAUTH_SECRET", "test-oauth-secret")
	t.Setenv("WEBAPI_URL", "https://backend.example.com")
	t.Setenv("CLIENT_BASE_URL", "http://localhost:4000/")
	t.Setenv("WEBAPI_REQUEST_TIMEOUT", "5s")
	t.Setenv("CORRELATION_HASH_KEY", "0123456789abcdef0123456789abcdef")
}

func TestLoadConfig(t *testing.T) {
	setTestEnv(t)

	cfg, webCfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "test-client", webCfg.ClientID)
	assert.Equal(t, "test-oauth-secret", webCfg.APIOAuthSecret)
	assert.Equal(t, "https://backend.example.com", webCfg.WebAPIURL)
	assert.Equal(t, 5*time.Second, webCfg.RequestTimeout)
	assert.Equal(t, "goClient", webCfg.RequestID)
	assert.True(t, webCfg.ValidateHetu)
	assert.Equal(t, "http://localhost:4000/callback/hpa", webCfg.CallbackURIHPA())
	require.NoError(t, webCfg.Validate())

	corrCfg, err := cfg.correlationConfig()
	require.NoError(t, err)
	assert.Equal(t, "webapi_session", corrCfg.CookieName)
	assert.Equal(t, 10*time.Minute, corrCfg.MaxAge)
	require.NoError(t, corrCfg.Validate())
}

func TestNewServiceFromConfig(t *testing.T) {
	setTestEnv(t)
	_, webCfg, err := loadConfig()
	require.NoError(t, err)

	client, err := newClient(webCfg)
	require.NoError(t, err)
	svc, err := newService(client, webCfg, 4)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000/callback/ypa", svc.CallbackURI("ypa"))
}

func TestNewClientRejectsMissingSecret(t *testing.T) {
	setTestEnv(t)
	t.Setenv("WEBAPI_OAUTH_SECRET", "")
	_, webCfg, err := loadConfig()
	require.NoError(t, err)

	_, err = newClient(webCfg)
	assert.Error(t, err)
}

func runCommand(t *testing.T, args ...string) string {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestSignCommand(t *testing.T) {
	setTestEnv(t)
	path := "/service/hpa/api/delegate/S1?requestId=goClient&endUserId=goEndUser"

	out := runCommand(t, "sign", path, "--at", "2017-05-04T12:00:00Z")

	at := time.Date(2017, 5, 4, 12, 0, 0, 0, time.UTC)
	want := signer.ChecksumHeaderName + ": " + signer.ChecksumHeader("test-client", "test-secret", path, at)
	assert.Equal(t, want, strings.TrimSpace(out))
}

func TestAuthorizeURLCommand(t *testing.T) {
	setTestEnv(t)

	out := runCommand(t, "authorize-url", "U1", "ypa")

	u, err := url.Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "backend.example.com", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)
	assert.Equal(t, "U1", u.Query().Get("user"))
	assert.Equal(t, "http://localhost:4000/callback/ypa", u.Query().Get("redirect_uri"))
}

func TestRateLimitConfig(t *testing.T) {
	setTestEnv(t)
	t.Setenv("RATE_LIMIT_BURST", "3")

	cfg, _, err := loadConfig()
	require.NoError(t, err)
	rlCfg, err := cfg.rateLimitConfig()
	require.NoError(t, err)

	assert.True(t, rlCfg.Enabled)
	assert.Equal(t, 3, rlCfg.Capacity)
	assert.Equal(t, 30.0, rlCfg.PerMinute)
	assert.Equal(t, time.Hour, rlCfg.BucketTTL)
}

func TestSetupRoutesRateLimitsDelegationRoutes(t *testing.T) {
	r := chi.NewRouter()
	limiter := ratelimit.NewMiddleware(ratelimit.Config{Enabled: true, Capacity: 1, PerMinute: 1})
	setupRoutes(r, delegationapi.NewHandle(nil, nil), limiter)

	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/register/xpa/010180-9026", nil))
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusTooManyRequests}, codes)
}

// captureOutput sends the default logger and stdout to buffers until the
// returned function is called
func captureOutput(t *testing.T) func() string {
	t.Helper()
	var logs bytes.Buffer
	prevLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))

	r, w, err := os.Pipe()
	require.NoError(t, err)
	prevStdout := os.Stdout
	os.Stdout = w

	var stdout bytes.Buffer
	done := make(chan struct{})
	go func() {
		io.Copy(&stdout, r)
		close(done)
	}()

	restored := false
	restore := func() {
		if restored {
			return
		}
		restored = true
		os.Stdout = prevStdout
		slog.SetDefault(prevLogger)
		w.Close()
		<-done
		r.Close()
	}
	t.Cleanup(restore)

	return func() string {
		restore()
		return logs.String() + stdout.String()
	}
}

func TestServerLogsNeitherDelegateIDNorCode(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"unavailable"}`))
	}))
	t.Cleanup(backend.Close)

	setTestEnv(t)
	t.Setenv("WEBAPI_URL", backend.URL)
	t.Setenv("METRICS_ENABLED", "false")

	output := captureOutput(t)

	cfg, webCfg, err := loadConfig()
	require.NoError(t, err)
	server, err := buildServer(cfg, webCfg)
	require.NoError(t, err)

	for _, target := range []string{
		"/register/hpa/010180-9026",
		"/register/xpa/010180-9026",
		"/callback/hpa?code=SECRETCODE",
		"/callback/xpa?code=SECRETCODE",
	} {
		rec := httptest.NewRecorder()
		server.R.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.NotEqual(t, http.StatusOK, rec.Code, target)
	}

	out := output()
	assert.Contains(t, out, "uri=/register/hpa/010180-****")
	assert.Contains(t, out, "uri=/callback/hpa ")
	assert.NotContains(t, out, "010180-9026")
	assert.NotContains(t, out, "SECRETCODE")
}

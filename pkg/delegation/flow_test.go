package delegation

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"

	apperrors "github.com/tendant/simple-valtuudet/pkg/errors"
	"github.com/tendant/simple-valtuudet/pkg/hetu"
	"github.com/tendant/simple-valtuudet/pkg/signer"
	"github.com/tendant/simple-valtuudet/pkg/webapi"
)

// fakeWebAPI serves the backend endpoints used by a full HPA flow and checks
// the checksum on every signed call.
func fakeWebAPI(t *testing.T, clock abtime.AbstractTime, failPerson string) *httptest.Server {
	t.Helper()

	checksum := func(r *http.Request) string {
		return signer.ChecksumHeader("test-client", "test-secret", r.URL.RequestURI(), clock.Now())
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/service/hpa/user/register/test-client/010180-9026", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, checksum(r), r.Header.Get(signer.ChecksumHeaderName))
		w.Write([]byte(`{"sessionId":"S1","userId":"U1"}`))
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "C1", r.URL.Query().Get("code"))
		assert.Contains(t, []string{testCallbackHPA, testCallbackYPA}, r.URL.Query().Get("redirect_uri"))
		assert.Equal(t, signer.BasicAuthHeader("test-client", "test-oauth-secret"), r.Header.Get("Authorization"))
		w.Write([]byte(`{"access_token":"T1","token_type":"bearer","expires_in":600}`))
	})
	mux.HandleFunc("/service/hpa/api/delegate/S1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
		assert.Equal(t, checksum(r), r.Header.Get(signer.ChecksumHeaderName))
		w.Write([]byte(`[{"personId":"P1","name":"Anna"},{"personId":"P2","name":"Bertta"}]`))
	})
	mux.HandleFunc("/service/hpa/api/authorization/S1/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
		assert.Equal(t, checksum(r), r.Header.Get(signer.ChecksumHeaderName))
		person := strings.TrimPrefix(r.URL.Path, "/service/hpa/api/authorization/S1/")
		if person == failPerson {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"lookup failed"}`))
			return
		}
		w.Write([]byte(`{"result":"ALLOWED","principal":{"personId":"ignored"}}`))
	})
	mux.HandleFunc("/service/ypa/api/organizationRoles/S1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"name":"Demo Oy","identifier":"1234567-8","roles":["NIMKO"]}]`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setupFlow(t *testing.T, failPerson string) *Service {
	t.Helper()
	clock := abtime.NewManualAtTime(time.Date(2017, 5, 4, 12, 0, 0, 0, time.UTC))
	server := fakeWebAPI(t, clock, failPerson)

	client, err := webapi.NewClient(server.URL, webapi.Credentials{
		ClientID:       "test-client",
		ClientSecret:   "test-secret",
		APIOAuthSecret: "test-oauth-secret",
	}, webapi.WithClock(clock))
	require.NoError(t, err)

	return setupService(t, client, WithDelegateValidator(hetu.Validate))
}

// captureLogs routes the default logger to a JSON buffer for the test
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

// logRecords returns the captured records with the given message
func logRecords(t *testing.T, buf *bytes.Buffer, msg string) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var record map[string]any
		require.NoError(t, json.Unmarshal(line, &record))
		if record["msg"] == msg {
			records = append(records, record)
		}
	}
	return records
}

func TestHPAFlowEndToEnd(t *testing.T) {
	svc := setupFlow(t, "")
	ctx := context.Background()

	registered, err := svc.Register(ctx, webapi.ModeHPA, "010180-9026")
	require.NoError(t, err)
	assert.Equal(t, "S1", registered.SessionID)

	u, err := url.Parse(registered.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "/oauth/authorize", u.Path)
	assert.Equal(t, "U1", u.Query().Get("user"))
	assert.Equal(t, "test-client", u.Query().Get("client_id"))
	assert.Equal(t, testCallbackHPA, u.Query().Get("redirect_uri"))

	results, err := svc.CompleteHPA(ctx, registered.SessionID, "C1")
	require.NoError(t, err)
	require.Len(t, results, 2)

	out, err := json.Marshal(results)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"principal":{"personId":"P1","name":"Anna"},"result":"ALLOWED"},
		{"principal":{"personId":"P2","name":"Bertta"},"result":"ALLOWED"}
	]`, string(out))
}

func TestHPAFlowEndToEndPartialFailure(t *testing.T) {
	svc := setupFlow(t, "P2")

	results, err := svc.CompleteHPA(context.Background(), "S1", "C1")
	require.Error(t, err)
	assert.Nil(t, results)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAggregateFailure))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBackendStatus))
	assert.Equal(t, 500, apperrors.StatusCode(err))
}

func TestHPAFlowFailureLogsBackendBody(t *testing.T) {
	logs := captureLogs(t)
	svc := setupFlow(t, "P2")

	_, err := svc.CompleteHPA(context.Background(), "S1", "C1")
	require.Error(t, err)

	records := logRecords(t, logs, "Delegation flow failed")
	require.Len(t, records, 1)
	assert.Equal(t, string(apperrors.ErrCodeAggregateFailure), records[0]["code"])
	assert.Equal(t, float64(500), records[0]["backend_status"])
	assert.Equal(t, `{"error":"lookup failed"}`, records[0]["backend_body"])
}

func TestYPAFlowEndToEnd(t *testing.T) {
	svc := setupFlow(t, "")

	registered, err := svc.Register(context.Background(), webapi.ModeYPA, "010180-9026")
	require.Error(t, err, "fake backend registers hpa sessions only")
	assert.Nil(t, registered)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusCode(err))

	roles, err := svc.CompleteYPA(context.Background(), "S1", "C1")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Demo Oy","identifier":"1234567-8","roles":["NIMKO"]}]`, string(roles))
}

package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/thejerf/abtime"
	"golang.org/x/oauth2"

	apperrors "github.com/tendant/simple-valtuudet/pkg/errors"
	"github.com/tendant/simple-valtuudet/pkg/signer"
)

// Call names, used in errors and logs
const (
	CallRegister      = "register"
	CallToken         = "token"
	CallDelegate      = "delegate"
	CallAuthorization = "authorization"
	CallRoles         = "organization_roles"
)

const maxBodySize = 1 << 20

// Client performs signed calls to the Web API backend. It is immutable after
// construction and safe for concurrent use.
type Client struct {
	baseURL        string
	clientID       string
	apiOAuthSecret string
	signer         *signer.Signer
	clock          abtime.AbstractTime
	httpClient     *http.Client
	timeout        time.Duration
	requestID      string
	endUserID      string
}

// Option is a function that configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client for backend calls
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds every backend call. It applies to the client set with
// WithHTTPClient too.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithDiagnosticTags sets the requestId and endUserId query parameters
func WithDiagnosticTags(requestID, endUserID string) Option {
	return func(c *Client) {
		c.requestID = requestID
		c.endUserID = endUserID
	}
}

// WithClock sets the clock used for checksum timestamps
func WithClock(clock abtime.AbstractTime) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// NewClient creates a backend client. Missing credentials or base URL fail
// here with a configuration error.
func NewClient(baseURL string, creds Credentials, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, apperrors.Configuration("web api url is required")
	}
	if creds.APIOAuthSecret == "" {
		return nil, apperrors.Configuration("api oauth secret is required")
	}

	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		clientID:       creds.ClientID,
		apiOAuthSecret: creds.APIOAuthSecret,
		clock:          abtime.NewRealTime(),
		httpClient:     &http.Client{},
		timeout:        30 * time.Second,
		requestID:      "goClient",
		endUserID:      "goEndUser",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	s, err := signer.New(creds.ClientID, creds.ClientSecret, signer.WithClock(c.clock))
	if err != nil {
		return nil, err
	}
	c.signer = s
	return c, nil
}

// ClientID returns the client id sent to the backend.
func (c *Client) ClientID() string {
	return c.clientID
}

// Register creates a backend session for the delegate.
func (c *Client) Register(ctx context.Context, mode Mode, delegateID string) (*Registration, error) {
	path := c.servicePath(string(mode), "user", "register", c.clientID, delegateID)
	body, err := c.do(ctx, CallRegister, http.MethodGet, path, c.checksumHeaders(path, ""))
	if err != nil {
		return nil, err
	}

	var reg Registration
	if err := json.Unmarshal(body, &reg); err != nil {
		return nil, apperrors.ResponseFormat(err, CallRegister, string(body))
	}
	if reg.SessionID == "" || reg.UserID == "" {
		return nil, apperrors.ResponseFormat(errors.New("sessionId and userId are required"), CallRegister, string(body))
	}

	slog.Info("Web API session registered", "mode", mode, "user_id", reg.UserID)
	return &reg, nil
}

// ExchangeCode exchanges the authorization code for an access token.
// redirectURI must be the one sent with the selection redirect.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	query := "code=" + url.QueryEscape(code) +
		"&grant_type=authorization_code" +
		"&redirect_uri=" + url.QueryEscape(redirectURI)

	header := http.Header{}
	header.Set("Authorization", signer.BasicAuthHeader(c.clientID, c.apiOAuthSecret))

	body, err := c.do(ctx, CallToken, http.MethodPost, "/oauth/token?"+query, header)
	if err != nil {
		return nil, err
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		// the body may hold a token; keep it out of the error
		return nil, apperrors.ResponseFormat(err, CallToken, "")
	}
	if token.AccessToken == "" {
		return nil, apperrors.ResponseFormat(errors.New("access_token is required"), CallToken, "")
	}

	slog.Info("Token exchange successful", "token_type", token.TokenType, "expires_in", token.ExpiresIn)
	return &token, nil
}

// GetDelegate returns the principals selected for the session, in backend order.
func (c *Client) GetDelegate(ctx context.Context, sessionID, accessToken string) ([]Principal, error) {
	path := c.servicePath("hpa", "api", "delegate", sessionID)
	body, err := c.do(ctx, CallDelegate, http.MethodGet, path, c.checksumHeaders(path, accessToken))
	if err != nil {
		return nil, err
	}

	var principals []Principal
	if err := json.Unmarshal(body, &principals); err != nil {
		return nil, apperrors.ResponseFormat(err, CallDelegate, string(body))
	}
	if principals == nil {
		return nil, apperrors.ResponseFormat(errors.New("expected a JSON array"), CallDelegate, string(body))
	}

	slog.Info("Delegate principals resolved", "count", len(principals))
	return principals, nil
}

// GetAuthorization returns the delegate's authorization for one principal.
// The result is tagged with that principal.
func (c *Client) GetAuthorization(ctx context.Context, sessionID, accessToken string, principal Principal) (*AuthorizationResult, error) {
	path := c.servicePath("hpa", "api", "authorization", sessionID, principal.PersonID)
	body, err := c.do(ctx, CallAuthorization, http.MethodGet, path, c.checksumHeaders(path, accessToken))
	if err != nil {
		return nil, err
	}

	var result AuthorizationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.ResponseFormat(err, CallAuthorization, string(body))
	}
	if msg := result.ErrorMessage(); msg != "" {
		return nil, apperrors.ResponseFormat(errors.New("backend reported: "+msg), CallAuthorization, string(body))
	}
	result.Principal = principal
	return &result, nil
}

// GetOrganizationRoles returns the delegate's organization roles.
func (c *Client) GetOrganizationRoles(ctx context.Context, sessionID, accessToken string) (RolesResult, error) {
	path := c.servicePath("ypa", "api", "organizationRoles", sessionID)
	body, err := c.do(ctx, CallRoles, http.MethodGet, path, c.checksumHeaders(path, accessToken))
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) || bytes.Equal(trimmed, []byte("null")) {
		return nil, apperrors.ResponseFormat(errors.New("expected a JSON document"), CallRoles, string(body))
	}
	return RolesResult(trimmed), nil
}

// AuthorizeURL is the principal selection UI the browser is redirected to
// after registration.
func (c *Client) AuthorizeURL(userID, redirectURI string) string {
	cfg := oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.baseURL + "/oauth/authorize",
			TokenURL:  c.baseURL + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	return cfg.AuthCodeURL("", oauth2.SetAuthURLParam("user", userID))
}

// Checksum signs path with the client's credentials. Exposed for debugging
// rejected requests.
func (c *Client) Checksum(path string) string {
	return c.signer.Checksum(path)
}

// servicePath builds /service/... with escaped segments and the diagnostic
// tags. The result is both the signed string and the request path.
func (c *Client) servicePath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return "/service/" + strings.Join(escaped, "/") +
		"?requestId=" + url.QueryEscape(c.requestID) +
		"&endUserId=" + url.QueryEscape(c.endUserID)
}

func (c *Client) checksumHeaders(path, accessToken string) http.Header {
	header := http.Header{}
	header.Set(signer.ChecksumHeaderName, c.signer.Checksum(path))
	if accessToken != "" {
		header.Set("Authorization", "Bearer "+accessToken)
	}
	return header
}

// do sends one request and normalizes the outcome: transport failure,
// non-200 status, or the raw 200 body.
func (c *Client) do(ctx context.Context, call, method, path string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to create "+call+" request")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Transport(stripURL(err), call, isTimeout(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, apperrors.Transport(err, call, isTimeout(err))
	}

	slog.Debug("Web API call", "call", call, "method", method, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.BackendStatus(call, resp.StatusCode, string(body))
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// stripURL drops the request URL from client errors; it contains the
// delegate identifier and session id.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

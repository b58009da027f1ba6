package config

import (
	"net/url"
	"strings"
	"time"
)

const (
	callbackPathHPA = "/callback/hpa"
	callbackPathYPA = "/callback/ypa"
)

// WebAPIConfig contains the credentials and endpoints for the Web API backend.
// Fields have no env tags - populate manually or use NewWebAPIConfigFromEnv() for standard env var names.
type WebAPIConfig struct {
	// ClientID identifies this service to the backend.
	ClientID string

	// ClientSecret keys the X-AsiointivaltuudetAuthorization checksum.
	ClientSecret string

	// APIOAuthSecret is the Basic-auth secret for the token endpoint.
	APIOAuthSecret string

	// WebAPIURL is the backend base URL, without a trailing slash.
	WebAPIURL string

	// ClientBaseURL is the public URL of this service. Callback URIs are derived from it.
	ClientBaseURL string

	// RequestID and EndUserID are static diagnostic tags sent on every backend call.
	RequestID string
	EndUserID string

	// RequestTimeout bounds every backend call.
	RequestTimeout time.Duration

	// ValidateHetu rejects malformed delegate identifiers before any backend call.
	ValidateHetu bool
}

// DefaultWebAPIConfig returns a WebAPIConfig with sensible defaults.
// Credentials and URLs must still be set.
func DefaultWebAPIConfig() WebAPIConfig {
	return WebAPIConfig{
		ClientBaseURL:  "http://localhost:4000",
		RequestID:      "goClient",
		EndUserID:      "goEndUser",
		RequestTimeout: 30 * time.Second,
		ValidateHetu:   true,
	}
}

// NewWebAPIConfigFromEnv loads WebAPIConfig from standard environment variables.
//
// Environment variables:
//   - WEBAPI_CLIENT_ID: client id issued by the backend (required)
//   - WEBAPI_CLIENT_SECRET: checksum key (required)
//   - WEBAPI_OAUTH_SECRET: token endpoint secret (required)
//   - WEBAPI_URL: backend base URL (required)
//   - CLIENT_BASE_URL: public URL of this service (default: "http://localhost:4000")
//   - WEBAPI_REQUEST_ID: requestId tag (default: "goClient")
//   - WEBAPI_END_USER_ID: endUserId tag (default: "goEndUser")
//   - WEBAPI_REQUEST_TIMEOUT: per-call timeout (default: "30s")
//   - WEBAPI_VALIDATE_HETU: validate delegate identifiers (default: true)
func NewWebAPIConfigFromEnv() WebAPIConfig {
	d := DefaultWebAPIConfig()
	return WebAPIConfig{
		ClientID:       GetEnv("WEBAPI_CLIENT_ID"),
		ClientSecret:   GetEnv("WEBAPI_CLIENT_SECRET"),
		APIOAuthSecret: GetEnv("WEBAPI_OAUTH_SECRET"),
		WebAPIURL:      GetEnv("WEBAPI_URL"),
		ClientBaseURL:  GetEnvOrDefault("CLIENT_BASE_URL", d.ClientBaseURL),
		RequestID:      GetEnvOrDefault("WEBAPI_REQUEST_ID", d.RequestID),
		EndUserID:      GetEnvOrDefault("WEBAPI_END_USER_ID", d.EndUserID),
		RequestTimeout: GetEnvDuration("WEBAPI_REQUEST_TIMEOUT", d.RequestTimeout),
		ValidateHetu:   GetEnvBool("WEBAPI_VALIDATE_HETU", d.ValidateHetu),
	}
}

// Validate checks that the backend can be called at all. It is meant to run
// once at startup so a missing secret never reaches a request.
func (c *WebAPIConfig) Validate() error {
	return Validate(func() ValidationErrors {
		return CollectErrors(
			RequireNonEmpty("client_id", c.ClientID),
			RequireNonEmpty("client_secret", c.ClientSecret),
			RequireNonEmpty("api_oauth_secret", c.APIOAuthSecret),
			RequireValidURL("webapi_url", c.WebAPIURL),
			RequireValidURL("client_base_url", c.ClientBaseURL),
			RequireNonEmpty("request_id", c.RequestID),
			RequireNonEmpty("end_user_id", c.EndUserID),
			RequirePositiveDuration("request_timeout", c.RequestTimeout),
		)
	})
}

// CallbackURIHPA is the redirect_uri registered for the HPA flow.
func (c *WebAPIConfig) CallbackURIHPA() string {
	return callbackURI(c.ClientBaseURL, callbackPathHPA)
}

// CallbackURIYPA is the redirect_uri registered for the YPA flow.
func (c *WebAPIConfig) CallbackURIYPA() string {
	return callbackURI(c.ClientBaseURL, callbackPathYPA)
}

// callbackURI joins the base URL and path and escapes the result the way a
// browser would, leaving reserved URL characters intact.
func callbackURI(base, path string) string {
	u := &url.URL{Path: strings.TrimRight(base, "/") + path}
	return u.EscapedPath()
}

// Redacted returns a copy safe to log at startup.
func (c WebAPIConfig) Redacted() WebAPIConfig {
	if c.ClientSecret != "" {
		c.ClientSecret = "***"
	}
	if c.APIOAuthSecret != "" {
		c.APIOAuthSecret = "***"
	}
	return c
}

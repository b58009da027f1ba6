package config

import "time"

// CorrelationConfig contains settings for the cookie that carries the Web API
// session id across the principal selection redirect.
// The serve command fills it from CORRELATION_* env vars.
type CorrelationConfig struct {
	// CookieName is the name of the session cookie
	CookieName string

	// HashKey signs the cookie. At least 32 bytes.
	HashKey string

	// BlockKey encrypts the cookie when set. Must be 16, 24 or 32 bytes.
	BlockKey string

	// Secure marks the cookie HTTPS-only
	Secure bool

	// MaxAge bounds one registration -> callback round trip
	MaxAge time.Duration
}

// DefaultCorrelationConfig returns a CorrelationConfig with sensible defaults.
// HashKey must still be set.
func DefaultCorrelationConfig() CorrelationConfig {
	return CorrelationConfig{
		CookieName: "webapi_session",
		Secure:     IsProduction(),
		MaxAge:     10 * time.Minute,
	}
}

// Validate checks the cookie keys before the server starts.
func (c *CorrelationConfig) Validate() error {
	return Validate(func() ValidationErrors {
		errs := CollectErrors(
			RequireNonEmpty("cookie_name", c.CookieName),
			RequireMinLength("hash_key", c.HashKey, 32),
			RequirePositiveDuration("max_age", c.MaxAge),
		)
		switch len(c.BlockKey) {
		case 0, 16, 24, 32:
		default:
			errs = append(errs, ValidationError{Field: "block_key", Message: "must be 16, 24 or 32 bytes"})
		}
		return errs
	})
}

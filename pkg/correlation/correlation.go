// Package correlation carries the Web API session id from registration to the
// callback in a signed cookie.
package correlation

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/tendant/simple-valtuudet/pkg/config"
	apperrors "github.com/tendant/simple-valtuudet/pkg/errors"
	"github.com/tendant/simple-valtuudet/pkg/webapi"
)

const (
	keySessionID = "session_id"
	keyMode      = "mode"
)

// Correlator binds one Web API session id to the browser. Nothing is held in
// process between the redirect and the callback.
type Correlator struct {
	store *sessions.CookieStore
	name  string
}

// New creates a Correlator from validated cookie settings.
func New(cfg config.CorrelationConfig) (*Correlator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfiguration, "invalid correlation cookie config")
	}

	keys := [][]byte{[]byte(cfg.HashKey)}
	if cfg.BlockKey != "" {
		keys = append(keys, []byte(cfg.BlockKey))
	}
	store := sessions.NewCookieStore(keys...)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	// bounds both the cookie and the signed timestamp inside it
	store.MaxAge(int(cfg.MaxAge.Seconds()))

	return &Correlator{store: store, name: cfg.CookieName}, nil
}

// Bind stores sessionID for mode on the response. A previous binding is
// replaced.
func (c *Correlator) Bind(w http.ResponseWriter, r *http.Request, mode webapi.Mode, sessionID string) error {
	// a stale or tampered cookie yields a fresh session, which is overwritten here
	session, _ := c.store.Get(r, c.name)
	session.Values = map[interface{}]interface{}{
		keySessionID: sessionID,
		keyMode:      string(mode),
	}
	if err := session.Save(r, w); err != nil {
		return apperrors.InternalWrap(err, "failed to save correlation cookie")
	}
	return nil
}

// Resolve returns the session id bound for mode. A missing, invalid or
// other-mode cookie is a protocol violation.
func (c *Correlator) Resolve(r *http.Request, mode webapi.Mode) (string, error) {
	session, err := c.store.Get(r, c.name)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeProtocolViolation, "correlation cookie rejected")
	}
	if session.IsNew {
		return "", apperrors.ProtocolViolation("no correlation cookie")
	}

	bound, _ := session.Values[keyMode].(string)
	if bound != string(mode) {
		return "", apperrors.ProtocolViolation("correlation cookie bound to mode " + bound)
	}
	sessionID, _ := session.Values[keySessionID].(string)
	if sessionID == "" {
		return "", apperrors.ProtocolViolation("correlation cookie without a session id")
	}
	return sessionID, nil
}

// Clear expires the cookie.
func (c *Correlator) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := c.store.Get(r, c.name)
	session.Values = map[interface{}]interface{}{}
	session.Options = &sessions.Options{
		Path:     c.store.Options.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.store.Options.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if err := session.Save(r, w); err != nil {
		return apperrors.InternalWrap(err, "failed to clear correlation cookie")
	}
	return nil
}

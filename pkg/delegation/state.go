package delegation

import (
	"log/slog"
	"sync/atomic"

	apperrors "github.com/tendant/simple-valtuudet/pkg/errors"
	"github.com/tendant/simple-valtuudet/pkg/webapi"
)

// State names a point in one delegation transaction. Only the typed values
// returned by Service can move a transaction forward; State is reported in
// logs.
type State int

const (
	StateStart State = iota
	StateRegistered
	StateRedirected
	StateTokenExchanged
	StateDelegateResolved
	StateAuthorizationsResolved
	StateRolesResolved
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateStart:                  "start",
	StateRegistered:             "registered",
	StateRedirected:             "redirected",
	StateTokenExchanged:         "token_exchanged",
	StateDelegateResolved:       "delegate_resolved",
	StateAuthorizationsResolved: "authorizations_resolved",
	StateRolesResolved:          "roles_resolved",
	StateDone:                   "done",
	StateFailed:                 "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Session is the correlation carried from token exchange to the resource
// lookups. SessionID is always the id issued at registration.
type Session struct {
	SessionID   string
	AccessToken string
	Mode        webapi.Mode
}

// Registered is the result of a successful registration. The caller binds
// SessionID to the browser and redirects it to RedirectURL; nothing is kept
// in process until the callback arrives.
type Registered struct {
	SessionID   string
	UserID      string
	Mode        webapi.Mode
	RedirectURL string
}

// transition guards a state value so it advances at most once.
type transition struct {
	used   atomic.Bool
	state  State
	logger *slog.Logger
}

func (t *transition) advance(next State) error {
	if !t.used.CompareAndSwap(false, true) {
		return t.fail(apperrors.ProtocolViolation("flow step already taken from state " + t.state.String()))
	}
	t.logger.Debug("Delegation flow transition", "from", t.state, "to", next)
	return nil
}

// fail logs the cause for operators and returns err unchanged.
func (t *transition) fail(err error) error {
	return logFailure(t.logger, t.state, err)
}

func logFailure(logger *slog.Logger, from State, err error) error {
	attrs := []any{
		"from", from,
		"to", StateFailed,
		"code", apperrors.GetCode(err),
		"error", err,
	}
	if status := apperrors.StatusCode(err); status != 0 {
		attrs = append(attrs, "backend_status", status)
	}
	if body := apperrors.Body(err); body != "" {
		attrs = append(attrs, "backend_body", body)
	}
	logger.Error("Delegation flow failed", attrs...)
	return err
}

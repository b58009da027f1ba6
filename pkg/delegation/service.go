package delegation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/tendant/simple-valtuudet/pkg/errors"
	"github.com/tendant/simple-valtuudet/pkg/webapi"
)

// Backend is the set of Web API calls the flow needs. *webapi.Client
// satisfies it.
type Backend interface {
	Register(ctx context.Context, mode webapi.Mode, delegateID string) (*webapi.Registration, error)
	ExchangeCode(ctx context.Context, code, redirectURI string) (*webapi.Token, error)
	GetDelegate(ctx context.Context, sessionID, accessToken string) ([]webapi.Principal, error)
	GetAuthorization(ctx context.Context, sessionID, accessToken string, principal webapi.Principal) (*webapi.AuthorizationResult, error)
	GetOrganizationRoles(ctx context.Context, sessionID, accessToken string) (webapi.RolesResult, error)
	AuthorizeURL(userID, redirectURI string) string
}

// CallbackURIs are the redirect URIs registered with the backend, one per mode.
type CallbackURIs struct {
	HPA string
	YPA string
}

// Service runs delegation transactions. It holds only immutable
// configuration; all per-transaction state lives in the returned values.
type Service struct {
	backend          Backend
	callbacks        map[webapi.Mode]string
	validateDelegate func(string) error
	maxParallel      int
}

// Option is a function that configures a Service
type Option func(*Service)

// WithDelegateValidator rejects delegate identifiers before registration
func WithDelegateValidator(validate func(string) error) Option {
	return func(s *Service) {
		s.validateDelegate = validate
	}
}

// WithMaxParallelLookups caps concurrent authorization lookups. Zero or
// negative means one goroutine per principal.
func WithMaxParallelLookups(n int) Option {
	return func(s *Service) {
		s.maxParallel = n
	}
}

// NewService creates a delegation service
func NewService(backend Backend, callbacks CallbackURIs, opts ...Option) (*Service, error) {
	if backend == nil {
		return nil, apperrors.Configuration("backend is required")
	}
	if callbacks.HPA == "" || callbacks.YPA == "" {
		return nil, apperrors.Configuration("callback URIs for hpa and ypa are required")
	}

	s := &Service{
		backend: backend,
		callbacks: map[webapi.Mode]string{
			webapi.ModeHPA: callbacks.HPA,
			webapi.ModeYPA: callbacks.YPA,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CallbackURI returns the redirect URI for mode
func (s *Service) CallbackURI(mode webapi.Mode) string {
	return s.callbacks[mode]
}

func newFlowLogger(mode webapi.Mode) *slog.Logger {
	return slog.With("flow_id", uuid.NewString(), "mode", mode)
}

// Register creates a backend session for the delegate and returns where to
// send the browser.
func (s *Service) Register(ctx context.Context, mode webapi.Mode, delegateID string) (*Registered, error) {
	logger := newFlowLogger(mode)

	callback, ok := s.callbacks[mode]
	if !ok {
		return nil, logFailure(logger, StateStart, apperrors.InvalidInput("mode", fmt.Sprintf("unknown mode %q", mode)))
	}
	if delegateID == "" {
		return nil, logFailure(logger, StateStart, apperrors.InvalidInput("delegate", "is required"))
	}
	if s.validateDelegate != nil {
		if err := s.validateDelegate(delegateID); err != nil {
			return nil, logFailure(logger, StateStart, err)
		}
	}

	reg, err := s.backend.Register(ctx, mode, delegateID)
	if err != nil {
		return nil, logFailure(logger, StateStart, fmt.Errorf("register: %w", err))
	}
	if reg.SessionID == "" {
		return nil, logFailure(logger, StateStart, apperrors.ProtocolViolation("registration returned no session id"))
	}
	logger.Debug("Delegation flow transition", "from", StateStart, "to", StateRegistered)

	registered := &Registered{
		SessionID:   reg.SessionID,
		UserID:      reg.UserID,
		Mode:        mode,
		RedirectURL: s.backend.AuthorizeURL(reg.UserID, callback),
	}
	logger.Info("Redirecting delegate to principal selection", "user_id", reg.UserID)
	return registered, nil
}

// TokenExchanged is a session holding an access token.
type TokenExchanged struct {
	transition
	session Session
	backend Backend
	svc     *Service
}

// Session returns the correlated session.
func (t *TokenExchanged) Session() Session {
	return t.session
}

// Callback exchanges the authorization code returned to the mode's callback
// URI. sessionID must be the id bound at registration; it is carried forward
// unchanged.
func (s *Service) Callback(ctx context.Context, mode webapi.Mode, sessionID, code string) (*TokenExchanged, error) {
	logger := newFlowLogger(mode)

	callback, ok := s.callbacks[mode]
	if !ok {
		return nil, logFailure(logger, StateRedirected, apperrors.InvalidInput("mode", fmt.Sprintf("unknown mode %q", mode)))
	}
	if sessionID == "" {
		return nil, logFailure(logger, StateRedirected, apperrors.ProtocolViolation("callback without a registered session id"))
	}
	if code == "" {
		return nil, logFailure(logger, StateRedirected, apperrors.ProtocolViolation("callback without an authorization code"))
	}

	token, err := s.backend.ExchangeCode(ctx, code, callback)
	if err != nil {
		return nil, logFailure(logger, StateRedirected, fmt.Errorf("token exchange: %w", err))
	}
	logger.Debug("Delegation flow transition", "from", StateRedirected, "to", StateTokenExchanged)

	return &TokenExchanged{
		transition: transition{state: StateTokenExchanged, logger: logger},
		session: Session{
			SessionID:   sessionID,
			AccessToken: token.AccessToken,
			Mode:        mode,
		},
		backend: s.backend,
		svc:     s,
	}, nil
}

// DelegateResolved holds the principals selected by the delegate.
type DelegateResolved struct {
	transition
	session    Session
	principals []webapi.Principal
	backend    Backend
	svc        *Service
}

// Principals returns the selected principals in backend order.
func (d *DelegateResolved) Principals() []webapi.Principal {
	return d.principals
}

// Delegate looks up the principals chosen in the selection UI. HPA only.
func (t *TokenExchanged) Delegate(ctx context.Context) (*DelegateResolved, error) {
	if t.session.Mode != webapi.ModeHPA {
		return nil, t.fail(apperrors.ProtocolViolation("delegate lookup requires an hpa session"))
	}
	if err := t.advance(StateDelegateResolved); err != nil {
		return nil, err
	}

	principals, err := t.backend.GetDelegate(ctx, t.session.SessionID, t.session.AccessToken)
	if err != nil {
		return nil, t.fail(fmt.Errorf("delegate lookup: %w", err))
	}

	return &DelegateResolved{
		transition: transition{state: StateDelegateResolved, logger: t.logger},
		session:    t.session,
		principals: principals,
		backend:    t.backend,
		svc:        t.svc,
	}, nil
}

// Authorizations looks up the authorization for every principal in
// parallel. It waits for all lookups; if any fails the first failure is
// returned and no results are.
func (d *DelegateResolved) Authorizations(ctx context.Context) ([]webapi.AuthorizationResult, error) {
	if err := d.advance(StateAuthorizationsResolved); err != nil {
		return nil, err
	}

	results := make([]webapi.AuthorizationResult, len(d.principals))

	var g errgroup.Group
	if d.svc.maxParallel > 0 {
		g.SetLimit(d.svc.maxParallel)
	}
	for i, principal := range d.principals {
		g.Go(func() error {
			result, err := d.backend.GetAuthorization(ctx, d.session.SessionID, d.session.AccessToken, principal)
			if err != nil {
				return apperrors.Aggregate(err, principal.PersonID)
			}
			result.Principal = principal
			results[i] = *result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, d.fail(err)
	}

	d.logger.Info("Delegation flow done", "state", StateDone, "principals", len(results))
	return results, nil
}

// Roles looks up the delegate's organization roles. YPA only.
func (t *TokenExchanged) Roles(ctx context.Context) (webapi.RolesResult, error) {
	if t.session.Mode != webapi.ModeYPA {
		return nil, t.fail(apperrors.ProtocolViolation("roles lookup requires a ypa session"))
	}
	if err := t.advance(StateRolesResolved); err != nil {
		return nil, err
	}

	roles, err := t.backend.GetOrganizationRoles(ctx, t.session.SessionID, t.session.AccessToken)
	if err != nil {
		return nil, t.fail(fmt.Errorf("roles lookup: %w", err))
	}

	t.logger.Info("Delegation flow done", "state", StateDone)
	return roles, nil
}

// CompleteHPA runs callback, delegate lookup and authorization lookups.
func (s *Service) CompleteHPA(ctx context.Context, sessionID, code string) ([]webapi.AuthorizationResult, error) {
	exchanged, err := s.Callback(ctx, webapi.ModeHPA, sessionID, code)
	if err != nil {
		return nil, err
	}
	resolved, err := exchanged.Delegate(ctx)
	if err != nil {
		return nil, err
	}
	return resolved.Authorizations(ctx)
}

// CompleteYPA runs callback and roles lookup.
func (s *Service) CompleteYPA(ctx context.Context, sessionID, code string) (webapi.RolesResult, error) {
	exchanged, err := s.Callback(ctx, webapi.ModeYPA, sessionID, code)
	if err != nil {
		return nil, err
	}
	return exchanged.Roles(ctx)
}

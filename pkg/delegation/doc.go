// Package delegation runs Suomi.fi delegation transactions against the Web
// API backend.
//
// A transaction starts with Register, which creates a backend session for the
// delegate and returns the selection URL to redirect the browser to. When the
// backend redirects back with an authorization code, Callback exchanges it and
// the returned *TokenExchanged is advanced one step at a time:
//
//	HPA (person for person):
//	  Callback -> Delegate -> Authorizations
//	YPA (person for organization):
//	  Callback -> Roles
//
// Each step value can be advanced once. Reusing one, or taking a step that
// does not belong to the session's mode, fails with PROTOCOL_VIOLATION before
// any backend call.
//
// Authorization lookups run in parallel, one per principal. The result is
// all-or-nothing: the flow waits for every lookup and returns either every
// result, tagged with its principal, or the first failure wrapped as
// AGGREGATE_FAILURE.
//
// Usage:
//
//	svc, err := delegation.NewService(client, delegation.CallbackURIs{
//		HPA: cfg.CallbackURIHPA(),
//		YPA: cfg.CallbackURIYPA(),
//	}, delegation.WithDelegateValidator(hetu.Validate))
//
//	registered, err := svc.Register(ctx, webapi.ModeHPA, "010180-9026")
//	// bind registered.SessionID to the browser, redirect to registered.RedirectURL
//
//	results, err := svc.CompleteHPA(ctx, sessionID, code)
package delegation

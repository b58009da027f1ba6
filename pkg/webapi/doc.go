// Package webapi is the client for the Suomi.fi Web API delegation backend.
//
// Each method performs exactly one signed HTTP call and normalizes its
// outcome into one of three failures from pkg/errors:
//
//   - ErrCodeTransport when no response was received (detail timeout=true
//     when the per-call deadline expired)
//   - ErrCodeBackendStatus when the status is not 200 (details status, body)
//   - ErrCodeResponseFormat when a 200 body does not have the expected shape
//
// There are no retries at this layer.
//
// # Basic Usage
//
//	client, err := webapi.NewClient(cfg.WebAPIURL, webapi.Credentials{
//		ClientID:       cfg.ClientID,
//		ClientSecret:   cfg.ClientSecret,
//		APIOAuthSecret: cfg.APIOAuthSecret,
//	}, webapi.WithTimeout(10*time.Second))
//
//	reg, err := client.Register(ctx, webapi.ModeHPA, "010180-9026")
//	redirect := client.AuthorizeURL(reg.UserID, cfg.CallbackURIHPA())
//
//	// ... browser returns with ?code=
//	token, err := client.ExchangeCode(ctx, code, cfg.CallbackURIHPA())
//	principals, err := client.GetDelegate(ctx, reg.SessionID, token.AccessToken)
//
// Service calls carry the X-AsiointivaltuudetAuthorization checksum computed
// over the exact path and query sent; resource calls add the bearer token.
// The token endpoint uses HTTP Basic with the API OAuth secret.
package webapi

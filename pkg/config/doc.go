// Package config provides configuration loading and validation for the
// delegation client.
//
// # Environment Variable Helpers
//
//	baseURL := config.GetEnvOrDefault("CLIENT_BASE_URL", "http://localhost:4000")
//	validate := config.GetEnvBool("WEBAPI_VALIDATE_HETU", true)
//	timeout := config.GetEnvDuration("WEBAPI_REQUEST_TIMEOUT", 30*time.Second)
//
// # Web API
//
// WebAPIConfig holds the credentials issued by the backend operator and the
// public base URL the callback URIs are derived from:
//
//	cfg := config.NewWebAPIConfigFromEnv()
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//	slog.Info("Web API configured", "config", cfg.Redacted())
//	cfg.CallbackURIHPA() // http://localhost:4000/callback/hpa
//
// # Correlation Cookie
//
// CorrelationConfig configures the signed cookie that carries the Web API
// session id across the principal selection redirect.
//
// # Validation
//
// Validators return ValidationErrors; Validate collects them into one error:
//
//	err := config.Validate(func() config.ValidationErrors {
//		return config.CollectErrors(
//			config.RequireNonEmpty("client_id", cfg.ClientID),
//			config.RequireValidURL("webapi_url", cfg.WebAPIURL),
//		)
//	})
package config

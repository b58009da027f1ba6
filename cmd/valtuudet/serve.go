package main

import (
	"log/slog"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/simple-valtuudet/pkg/audit"
	"github.com/tendant/simple-valtuudet/pkg/config"
	"github.com/tendant/simple-valtuudet/pkg/correlation"
	"github.com/tendant/simple-valtuudet/pkg/delegation"
	delegationapi "github.com/tendant/simple-valtuudet/pkg/delegation/api"
	"github.com/tendant/simple-valtuudet/pkg/hetu"
	"github.com/tendant/simple-valtuudet/pkg/ratelimit"
	"github.com/tendant/simple-valtuudet/pkg/webapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the register and callback endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, webCfg, err := loadConfig()
		if err != nil {
			return err
		}
		slog.Info("Configuration loaded", "webapi", webCfg.Redacted(), "environment", config.GetEnvironment())

		server, err := buildServer(cfg, webCfg)
		if err != nil {
			return err
		}

		slog.Info(strings.Repeat("=", 60))
		slog.Info("Delegation client ready")
		slog.Info("Web API: " + webCfg.WebAPIURL)
		slog.Info("Browse to " + strings.TrimRight(webCfg.ClientBaseURL, "/") + "/register/hpa/[TEST_HETU]")
		slog.Info(strings.Repeat("=", 60))

		server.Run()
		return nil
	},
}

// buildServer wires the delegation routes into a chi-demo app. chi-demo's
// request logger is left out; it logs the raw URL, which carries the
// delegate identifier and the authorization code. The audit middleware is
// the request log.
func buildServer(cfg *Config, webCfg config.WebAPIConfig) (*app.App, error) {
	corrCfg, err := cfg.correlationConfig()
	if err != nil {
		return nil, err
	}
	client, err := newClient(webCfg)
	if err != nil {
		return nil, err
	}
	svc, err := newService(client, webCfg, cfg.MaxParallelLookups)
	if err != nil {
		return nil, err
	}
	correlator, err := correlation.New(corrCfg)
	if err != nil {
		return nil, err
	}
	rlCfg, err := cfg.rateLimitConfig()
	if err != nil {
		return nil, err
	}

	server := app.NewApp(
		app.WithAppConfig(cfg.AppConfig),
		app.WithMetrics(cfg.MetricsEnabled),
		app.WithCors(app.DefaultCorsOptions()),
	)
	setupRoutes(server.R, delegationapi.NewHandle(svc, correlator), ratelimit.NewMiddleware(rlCfg))
	return server, nil
}

func setupRoutes(r *chi.Mux, handle *delegationapi.Handle, limiter *ratelimit.Middleware) {
	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	r.Group(func(r chi.Router) {
		r.Use(audit.NewMiddleware(audit.Config{}).Handler)
		r.Use(limiter.Handler)
		handle.RegisterRoutes(r)
	})
}

func newClient(webCfg config.WebAPIConfig) (*webapi.Client, error) {
	if err := webCfg.Validate(); err != nil {
		return nil, err
	}
	return webapi.NewClient(webCfg.WebAPIURL, webapi.Credentials{
		ClientID:       webCfg.ClientID,
		ClientSecret:   webCfg.ClientSecret,
		APIOAuthSecret: webCfg.APIOAuthSecret,
	},
		webapi.WithTimeout(webCfg.RequestTimeout),
		webapi.WithDiagnosticTags(webCfg.RequestID, webCfg.EndUserID),
	)
}

func newService(client *webapi.Client, webCfg config.WebAPIConfig, maxParallel int) (*delegation.Service, error) {
	opts := []delegation.Option{delegation.WithMaxParallelLookups(maxParallel)}
	if webCfg.ValidateHetu {
		opts = append(opts, delegation.WithDelegateValidator(hetu.Validate))
	}
	return delegation.NewService(client, delegation.CallbackURIs{
		HPA: webCfg.CallbackURIHPA(),
		YPA: webCfg.CallbackURIYPA(),
	}, opts...)
}

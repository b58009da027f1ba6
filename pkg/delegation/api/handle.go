package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-valtuudet/pkg/delegation"
	apperrors "github.com/tendant/simple-valtuudet/pkg/errors"
	"github.com/tendant/simple-valtuudet/pkg/hetu"
	"github.com/tendant/simple-valtuudet/pkg/webapi"
)

// Flow is the part of *delegation.Service the handlers use
type Flow interface {
	Register(ctx context.Context, mode webapi.Mode, delegateID string) (*delegation.Registered, error)
	CompleteHPA(ctx context.Context, sessionID, code string) ([]webapi.AuthorizationResult, error)
	CompleteYPA(ctx context.Context, sessionID, code string) (webapi.RolesResult, error)
}

// Correlator binds the Web API session id to the browser between the
// selection redirect and the callback
type Correlator interface {
	Bind(w http.ResponseWriter, r *http.Request, mode webapi.Mode, sessionID string) error
	Resolve(r *http.Request, mode webapi.Mode) (string, error)
	Clear(w http.ResponseWriter, r *http.Request) error
}

// Handle serves the register and callback endpoints
type Handle struct {
	flow       Flow
	correlator Correlator
}

// NewHandle creates a new delegation API handler
func NewHandle(flow Flow, correlator Correlator) *Handle {
	return &Handle{
		flow:       flow,
		correlator: correlator,
	}
}

// RegisterRoutes registers the delegation routes
func (h *Handle) RegisterRoutes(r chi.Router) {
	r.Get("/register/{mode}/{hetu}", h.Register)
	r.Get("/callback/{mode}", h.Callback)
}

// Register handles GET /register/{mode}/{hetu}
func (h *Handle) Register(w http.ResponseWriter, r *http.Request) {
	mode, err := webapi.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, r, err, msgUnknownMode)
		return
	}
	delegateID := chi.URLParam(r, "hetu")

	registered, err := h.flow.Register(r.Context(), mode, delegateID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeInvalidInput) {
			slog.Warn("Rejected delegate identifier", "mode", mode, "hetu", hetu.Mask(delegateID), "error", err)
			writeError(w, r, err, msgInvalidIdentity)
			return
		}
		slog.Error("Failed to register session", "mode", mode, "hetu", hetu.Mask(delegateID), "error", err)
		writeError(w, r, err, registerFailed[string(mode)])
		return
	}

	if err := h.correlator.Bind(w, r, mode, registered.SessionID); err != nil {
		slog.Error("Failed to bind session", "mode", mode, "error", err)
		writeError(w, r, err, registerFailed[string(mode)])
		return
	}

	http.Redirect(w, r, registered.RedirectURL, http.StatusFound)
}

// Callback handles GET /callback/{mode}?code=
func (h *Handle) Callback(w http.ResponseWriter, r *http.Request) {
	mode, err := webapi.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, r, err, msgUnknownMode)
		return
	}

	if errCode := r.URL.Query().Get("error"); errCode != "" {
		slog.Warn("Principal selection returned an error", "mode", mode, "error", errCode,
			"error_description", r.URL.Query().Get("error_description"))
		h.clear(w, r, mode)
		writeError(w, r, apperrors.InvalidInput("principal selection", errCode), msgNotGranted)
		return
	}

	sessionID, err := h.correlator.Resolve(r, mode)
	if err != nil {
		slog.Error("Callback without a bound session", "mode", mode, "error", err)
		h.clear(w, r, mode)
		writeError(w, r, err, callbackFailed[string(mode)])
		return
	}
	code := r.URL.Query().Get("code")

	var result interface{}
	switch mode {
	case webapi.ModeHPA:
		result, err = h.flow.CompleteHPA(r.Context(), sessionID, code)
	case webapi.ModeYPA:
		result, err = h.flow.CompleteYPA(r.Context(), sessionID, code)
	}
	h.clear(w, r, mode)
	if err != nil {
		slog.Error("Failed to complete delegation", "mode", mode, "error", err)
		writeError(w, r, err, callbackFailed[string(mode)])
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// clear drops the binding before the response is written; a session is
// single-use whatever the outcome.
func (h *Handle) clear(w http.ResponseWriter, r *http.Request, mode webapi.Mode) {
	if err := h.correlator.Clear(w, r); err != nil {
		slog.Warn("Failed to clear session", "mode", mode, "error", err)
	}
}

// writeError answers with the status mapped from err's code and a generic
// message; err itself never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, err error, message string) {
	render.Status(r, apperrors.MapErrorCodeToHTTPStatus(apperrors.GetCode(err)))
	render.JSON(w, r, ErrorResponse{Error: message})
}

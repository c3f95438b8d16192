package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"live-transcript-service/internal/app"
	"live-transcript-service/internal/service/session"
)

// Controller is the session surface the router exposes.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Clear(ctx context.Context) error
	Edit(ctx context.Context, text string) error
	Copy(ctx context.Context) error
	Download(ctx context.Context) (session.Export, error)
	Snapshot(ctx context.Context) (session.Snapshot, error)
	Settings(ctx context.Context) (session.Settings, error)
	SetSettings(ctx context.Context, s session.Settings) (session.Settings, error)
	Subscribe() (<-chan session.Snapshot, func())
}

type transcriptBody struct {
	Text string `json:"text"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, ctrl Controller) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/session/start", command(ctrl, ctrl.Start))
		r.Post("/session/stop", command(ctrl, ctrl.Stop))
		r.Post("/transcript/clear", command(ctrl, ctrl.Clear))

		r.Post("/transcript/copy", func(w http.ResponseWriter, r *http.Request) {
			if err := ctrl.Copy(r.Context()); err != nil {
				writeError(w, err)
				return
			}
			writeSnapshot(w, r, ctrl, http.StatusAccepted)
		})

		r.Get("/transcript/download", func(w http.ResponseWriter, r *http.Request) {
			exp, err := ctrl.Download(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(exp.Text))
		})

		r.Get("/transcript", func(w http.ResponseWriter, r *http.Request) {
			snap, err := ctrl.Snapshot(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"text":     snap.Text,
				"meeting":  snap.Meeting,
				"segments": snap.Segments,
			})
		})

		r.Put("/transcript", func(w http.ResponseWriter, r *http.Request) {
			var body transcriptBody
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
				return
			}
			if err := ctrl.Edit(r.Context(), body.Text); err != nil {
				writeError(w, err)
				return
			}
			writeSnapshot(w, r, ctrl, http.StatusOK)
		})

		r.Get("/settings", func(w http.ResponseWriter, r *http.Request) {
			s, err := ctrl.Settings(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, s)
		})

		// Fields omitted from the body keep their current values.
		r.Put("/settings", func(w http.ResponseWriter, r *http.Request) {
			body, err := ctrl.Settings(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
				return
			}
			s, err := ctrl.SetSettings(r.Context(), body)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, s)
		})

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeSnapshot(w, r, ctrl, http.StatusOK)
		})

		r.Get("/stream", streamHandler(ctrl))
	})

	return r
}

// command runs a state-changing command and replies with the new snapshot.
func command(ctrl Controller, fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeSnapshot(w, r, ctrl, http.StatusOK)
	}
}

func writeSnapshot(w http.ResponseWriter, r *http.Request, ctrl Controller, code int) {
	snap, err := ctrl.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, code, snap)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrEngineUnavailable), errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrAlreadyListening),
		errors.Is(err, session.ErrNotListening),
		errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrNothingToExport):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
}

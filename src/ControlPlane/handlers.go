package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
	"github.com/fluxshorts/fluxshorts/src/internal/log"
	"github.com/fluxshorts/fluxshorts/src/internal/ports"
	"github.com/fluxshorts/fluxshorts/src/internal/services"
)

const maxEventBytes = 16 << 10

// API serves the mobile client.
type API struct {
	catalog      *services.CatalogService
	entitlements *services.EntitlementService
	playback     *services.PlaybackService
	progress     ports.ProgressRepository
	auth         *AuthMiddleware
	positionRate int
	logger       zerolog.Logger
}

func NewAPI(
	catalog *services.CatalogService,
	entitlements *services.EntitlementService,
	playback *services.PlaybackService,
	progress ports.ProgressRepository,
	auth *AuthMiddleware,
) *API {
	return &API{
		catalog:      catalog,
		entitlements: entitlements,
		playback:     playback,
		progress:     progress,
		auth:         auth,
		positionRate: 240,
		logger:       log.WithComponent("api"),
	}
}

func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/movies", func(r chi.Router) {
			r.Get("/", a.listMovies)
			r.Get("/featured", a.featuredMovies)
			r.Get("/recent", a.recentMovies)
			r.Get("/{id}", a.getMovie)
			r.Get("/{id}/related", a.relatedMovies)
			r.With(a.auth.RequireAuth).Get("/{id}/progress", a.getProgress)
		})

		r.With(a.auth.OptionalAuth).Get("/entitlement", a.getEntitlement)
		r.With(a.auth.RequireAuth).Post("/subscriptions", a.createSubscription)

		r.Route("/sessions", func(r chi.Router) {
			r.Use(a.auth.OptionalAuth)
			r.Post("/", a.openSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.getSession)
				r.Delete("/", a.closeSession)
				r.With(httprate.Limit(
					a.positionRate,
					time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
				)).Post("/position", a.reportPosition)
				r.Post("/play", a.play)
				r.Post("/replay", a.replay)
				r.Post("/dismiss", a.dismiss)
				r.Post("/accept", a.accept)
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrSessionClosed):
		http.Error(w, "Session closed", http.StatusGone)
	case errors.Is(err, domain.ErrUnauthenticated):
		http.Error(w, "Authentication required", http.StatusUnauthorized)
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func (a *API) listMovies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.catalog.All(r.Context()))
}

func (a *API) featuredMovies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.catalog.Featured(r.Context()))
}

func (a *API) recentMovies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.catalog.Recent(r.Context()))
}

func (a *API) getMovie(w http.ResponseWriter, r *http.Request) {
	movie, err := a.catalog.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

func (a *API) relatedMovies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	movie, err := a.catalog.ByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.catalog.ByGenre(ctx, movie.Metadata.Genre, movie.ID))
}

func (a *API) getProgress(w http.ResponseWriter, r *http.Request) {
	p, err := a.progress.GetProgress(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if p == nil {
		a.writeError(w, r, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// getEntitlement never fails: lookup errors answer "not paid".
func (a *API) getEntitlement(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	paid, err := a.entitlements.IsPaid(r.Context(), userID)
	if err != nil {
		a.logger.Warn().Err(err).Str("user_id", userID).Msg("entitlement lookup failed")
		paid = false
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paid": paid})
}

type subscriptionRequest struct {
	Reference string `json:"reference"`
}

func (a *API) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeOptional(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	sub, err := a.entitlements.RecordPayment(r.Context(), GetUserID(r.Context()), req.Reference)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

type openSessionRequest struct {
	MovieID string `json:"movieId"`
}

func (a *API) openSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.MovieID == "" {
		http.Error(w, "movieId required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := a.catalog.ByID(ctx, req.MovieID); err != nil {
		a.writeError(w, r, err)
		return
	}

	view, err := a.playback.Open(ctx, GetUserID(ctx), req.MovieID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := a.playback.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := a.playback.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reportPosition accepts a raw player time-update event.
func (a *API) reportPosition(w http.ResponseWriter, r *http.Request) {
	var evt map[string]any
	if err := decodeOptional(r, &evt); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	view, err := a.playback.Report(r.Context(), chi.URLParam(r, "id"), domain.ParsePositionEvent(evt))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) play(w http.ResponseWriter, r *http.Request) {
	view, err := a.playback.Play(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) replay(w http.ResponseWriter, r *http.Request) {
	view, err := a.playback.Replay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) dismiss(w http.ResponseWriter, r *http.Request) {
	view, err := a.playback.Dismiss(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) accept(w http.ResponseWriter, r *http.Request) {
	route, err := a.playback.Accept(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": route})
}

// decodeOptional decodes a JSON body, treating an empty body as no fields.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxEventBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

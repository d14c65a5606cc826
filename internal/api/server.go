// Package api exposes decisions, forced variations and the served datafile
// over HTTP.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goexperiment/internal/notification"
	"github.com/TimurManjosov/goexperiment/internal/sdk"
	"github.com/TimurManjosov/goexperiment/internal/snapshot"
	"github.com/TimurManjosov/goexperiment/internal/telemetry"
)

const (
	maxBodyBytes     = 1 << 20
	maxDatafileBytes = 10 << 20
	requestTimeout   = 5 * time.Second
	sseKeepAlive     = 25 * time.Second
)

type Options struct {
	AdminAPIKey    string
	RateLimitPerIP int // requests per minute; zero disables limiting
	Logger         zerolog.Logger
}

type Server struct {
	client      *sdk.Client
	snapshots   *snapshot.Holder
	adminAPIKey string
	rateLimit   int
	logger      zerolog.Logger
	keepAlive   time.Duration
}

func NewServer(client *sdk.Client, snapshots *snapshot.Holder, opts Options) *Server {
	return &Server{
		client:      client,
		snapshots:   snapshots,
		adminAPIKey: opts.AdminAPIKey,
		rateLimit:   opts.RateLimitPerIP,
		logger:      opts.Logger,
		keepAlive:   sseKeepAlive,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Tracing, telemetry.Middleware)

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))
		}

		// long-lived, so outside the request timeout
		r.Get("/datafile/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/datafile", s.handleGetDatafile)
			r.Put("/datafile", s.authAdmin(s.handlePutDatafile))

			r.Post("/decide", s.handleDecide)
			r.Post("/experiments/{key}/activate", s.handleActivate)

			r.Get("/experiments/{key}/forced-variations/{userId}", s.handleGetForced)
			r.Put("/experiments/{key}/forced-variations/{userId}", s.authAdmin(s.handleSetForced))
			r.Delete("/experiments/{key}/forced-variations/{userId}", s.authAdmin(s.handleClearForced))
		})
	})

	return r
}

// ---- datafile ----

func (s *Server) handleGetDatafile(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Load()
	if snap.Config == nil {
		NotReadyError(w, r)
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == snap.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", snap.ETag)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap.Datafile)
}

type datafileResponse struct {
	OK       bool   `json:"ok"`
	ETag     string `json:"etag"`
	Revision string `json:"revision"`
}

func (s *Server) handlePutDatafile(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDatafileBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLargeError(w, r, "datafile exceeds 10MB")
			return
		}
		BadRequestError(w, r, ErrCodeBadRequest, "could not read body")
		return
	}

	snap, err := snapshot.Build(data)
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidDatafile, err.Error())
		return
	}
	s.snapshots.Update(snap)
	s.client.Notifications().Send(notification.Event{
		Type:     notification.TypeConfigUpdate,
		Revision: snap.Revision,
	})
	s.logger.Info().Str("etag", snap.ETag).Str("revision", snap.Revision).Msg("datafile updated")

	writeJSON(w, http.StatusOK, datafileResponse{OK: true, ETag: snap.ETag, Revision: snap.Revision})
}

// ---- middleware & helpers ----

func (s *Server) authAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
		if got == "" {
			UnauthorizedError(w, r, "missing bearer token")
			return
		}
		// constant-time compare
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminAPIKey)) != 1 {
			ForbiddenError(w, r, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into v, writing the error response
// itself and returning false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RequestTooLargeError(w, r, "request body exceeds 1MB")
		return false
	}
	BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
	return false
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rentfit/agreement"
	"rentfit/apperr"
	"rentfit/auth"
	"rentfit/user"
)

type agreementService interface {
	Create(ctx context.Context, in agreement.CreateInput) (agreement.Agreement, error)
	Get(ctx context.Context, id string) (agreement.Detail, error)
	List(ctx context.Context, f agreement.ListFilter) (agreement.Page, error)
	Update(ctx context.Context, id string, in agreement.UpdateInput, actorID string) (agreement.Agreement, error)
	Delete(ctx context.Context, id, actorID string) error
	Sign(ctx context.Context, id, userID string, in agreement.SignInput) (agreement.Detail, error)
	AttachTenancy(ctx context.Context, agreementID, tenancyID string) (agreement.Agreement, error)
	Timeline(ctx context.Context, id string) ([]agreement.TimelineEvent, error)
}

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (user.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (auth.Identity, error)
}

// Server is the thin HTTP layer over the agreement and auth services.
type Server struct {
	agreements agreementService
	auth       authService
	metrics    http.Handler
	logger     *slog.Logger
	debug      bool
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recovery)
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(s.identify)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"}, "")
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Route("/agreements", func(r chi.Router) {
			r.Post("/", s.handleCreateAgreement)
			r.Get("/", s.handleListAgreements)
			r.Get("/{id}", s.handleGetAgreement)
			r.Put("/{id}", s.handleUpdateAgreement)
			r.Delete("/{id}", s.handleDeleteAgreement)
			r.Post("/{id}/sign", s.handleSignAgreement)
			r.Put("/{id}/tenancy", s.handleAttachTenancy)
			r.Get("/{id}/timeline", s.handleAgreementTimeline)
		})
	})
	return r
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	identityKey
)

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
					"path", r.URL.Path,
					"method", r.Method,
				)
				writeJSON(w, http.StatusInternalServerError, envelope{
					Message: "internal server error",
					Error:   &errorBody{Message: "internal server error"},
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestID uses the caller's X-Request-ID or generates one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		id, _ := r.Context().Value(requestIDKey).(string)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", id,
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// identify resolves an optional bearer token. A token that does not verify
// is rejected; requests without one proceed anonymously.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || s.auth == nil {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			s.writeError(w, r, apperr.New(apperr.CodeUnauthorized, "Invalid authorization header"))
			return
		}
		id, err := s.auth.VerifyToken(strings.TrimSpace(token))
		if err != nil {
			s.writeError(w, r, apperr.Wrap(err, apperr.CodeUnauthorized, "Invalid or expired token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

// caller returns the identity set by identify, if any.
func caller(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

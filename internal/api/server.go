package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/dossier/internal/extractor"
	"github.com/MikeSquared-Agency/dossier/internal/processor"
	"github.com/MikeSquared-Agency/dossier/internal/profile"
	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

const maxBodyBytes = 4 << 20

// Service is the application layer the API exposes.
type Service interface {
	Extract(ctx context.Context, userID string, req processor.ExtractRequest) (*processor.ExtractResponse, error)
	Commit(ctx context.Context, userID string, req processor.CommitRequest) (*processor.CommitResponse, error)
	Profile(ctx context.Context, userID string) (*profile.Profile, error)
	Score(ctx context.Context, userID string) (*processor.ScoreReport, error)
	Sessions(ctx context.Context, userID string, limit int) ([]profile.CaptureSession, error)
	DeleteProfile(ctx context.Context, userID string) error
	Taxonomy() *taxonomy.Taxonomy
	Status() processor.Status
}

var _ Service = (*processor.Processor)(nil)

type Server struct {
	router *chi.Mux
	port   int
	svc    Service
	logger *slog.Logger
	http   *http.Server
}

func NewServer(port int, apiToken string, svc Service, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		svc:    svc,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/dossier/status", s.status)
	router.Get("/api/v1/taxonomy", s.taxonomy)

	router.Route("/api/v1/profile", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Use(RequireUser)
		r.Get("/", s.getProfile)
		r.Delete("/", s.deleteProfile)
		r.Post("/extract", s.extract)
		r.Post("/commit", s.commit)
		r.Get("/score", s.score)
		r.Get("/sessions", s.sessions)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":  "dossier",
		"status": "ok",
		"detail": s.svc.Status(),
	})
}

func (s *Server) taxonomy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Taxonomy())
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	var req processor.ExtractRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Extract(r.Context(), UserID(r.Context()), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) commit(w http.ResponseWriter, r *http.Request) {
	var req processor.CommitRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Commit(r.Context(), UserID(r.Context()), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Profile(r.Context(), UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteProfile(r.Context(), UserID(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) score(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Score(r.Context(), UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) sessions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	sessions, err := s.svc.Sessions(r.Context(), UserID(r.Context()), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "count": len(sessions)})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// writeError maps service errors onto status codes. Internal details of
// 500s stay in the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		msg = "internal error"
	} else {
		s.logger.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, processor.ErrInvalidInput), errors.Is(err, extractor.ErrInvalidScope):
		return http.StatusBadRequest
	case errors.Is(err, profile.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, processor.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

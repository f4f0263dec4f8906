// Package server exposes the context engine over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/contextd/internal/assembler"
	"github.com/thebtf/contextd/internal/db"
	"github.com/thebtf/contextd/internal/tokens"
)

// Service is the HTTP facade over the stores and the assembler.
type Service struct {
	version   string
	store     *db.Store
	threads   *db.ThreadStore
	skills    *db.SkillStore
	memories  *db.MemoryStore
	settings  *db.SettingsStore
	asm       *assembler.Assembler
	estimator tokens.Estimator
	router    chi.Router
	server    *http.Server
	startTime time.Time
}

// NewService wires the HTTP service.
func NewService(version string, store *db.Store, threads *db.ThreadStore, skills *db.SkillStore, memories *db.MemoryStore, settings *db.SettingsStore, asm *assembler.Assembler, estimator tokens.Estimator) *Service {
	if estimator == nil {
		estimator = tokens.Heuristic{}
	}

	svc := &Service{
		version:   version,
		store:     store,
		threads:   threads,
		skills:    skills,
		memories:  memories,
		settings:  settings,
		asm:       asm,
		estimator: estimator,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}
	svc.setupRoutes()
	return svc
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/context/assemble", s.handleAssemble)
		r.Post("/context/after-turn", s.handleAfterTurn)

		r.Route("/threads", func(r chi.Router) {
			r.Post("/", s.handleCreateThread)
			r.Get("/{id}", s.handleGetThread)
			r.Post("/{id}/messages", s.handleAppendMessage)
			r.Get("/{id}/messages", s.handleGetMessages)
			r.Get("/{id}/summaries", s.handleGetSummaries)
			r.Get("/{id}/archived", s.handleGetArchived)
		})

		r.Route("/skills", func(r chi.Router) {
			r.Get("/", s.handleListSkills)
			r.Post("/", s.handleCreateSkill)
			r.Get("/{id}", s.handleGetSkill)
			r.Put("/{id}", s.handleUpdateSkill)
			r.Put("/{id}/active", s.handleSetSkillActive)
			r.Delete("/{id}", s.handleDeleteSkill)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/skills", s.handleGetSkillsSettings)
			r.Put("/skills", s.handlePutSkillsSettings)
			r.Get("/summarization", s.handleGetSummarizationSettings)
			r.Put("/summarization", s.handlePutSummarizationSettings)
			r.Get("/memory", s.handleGetMemorySettings)
			r.Put("/memory", s.handlePutMemorySettings)
		})

		r.Route("/users/{id}/memories", func(r chi.Router) {
			r.Get("/", s.handleGetMemories)
			r.Delete("/", s.handleDeleteMemories)
		})
	})
}

// Start runs the HTTP server until the listener fails or Shutdown is called.
func (s *Service) Start(port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Int("port", port).Str("version", s.version).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// requestLogger logs one line per request with latency and status.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("latency", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}

// Package server exposes the revision scheduler over HTTP for the web UI.
package server

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/medplan/internal/revision"
)

// Server wraps the Fiber app and its dependencies.
type Server struct {
	app      *fiber.App
	svc      *revision.Service
	validate *validator.Validate
	log      *zap.Logger
}

func New(svc *revision.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		app:      fiber.New(fiber.Config{DisableStartupMessage: true}),
		svc:      svc,
		validate: validator.New(),
		log:      log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api/v1")

	// Study-topic collaborator events.
	api.Post("/topics/:id/complete", s.handleTopicCompleted)
	api.Post("/topics/:id/uncomplete", s.handleTopicUncompleted)

	// Bucket view for the UI.
	api.Get("/users/:userID/buckets", s.handleBuckets)

	// Revision transitions.
	api.Post("/revisions/:id/complete", s.handleCompleteRevision)
	api.Post("/revisions/:id/refuse", s.handleRefuseRevision)
	api.Post("/revisions/:id/reactivate", s.handleReactivateRevision)
}

// Listen blocks serving HTTP on the address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

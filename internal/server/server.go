// Package server exposes the latest forecast report, a refresh trigger and the natural language
// query layer over HTTP
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	forecaster "github.com/aouyang1/go-salesforecast"
	"github.com/aouyang1/go-salesforecast/event"
	"github.com/aouyang1/go-salesforecast/insight"
	"github.com/aouyang1/go-salesforecast/internal/app"
	"github.com/aouyang1/go-salesforecast/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Service is the pipeline the API serves
type Service interface {
	Refresh(ctx context.Context) (*app.Report, error)
	Report() (*app.Report, error)
	Query(ctx context.Context, question string) (string, error)
}

// Server wraps the fiber app
type Server struct {
	app     *fiber.App
	svc     Service
	metrics *metrics.Manager
	secret  []byte
}

// Option applies a configuration option to the Server
type Option func(*Server)

// WithJWTSecret requires an HS256 bearer token on every /api/v1 route
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.secret = []byte(secret)
		}
	}
}

// WithMetrics records request metrics and serves them on /metrics
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New registers every route on a fresh fiber app
func New(svc Service, opts ...Option) *Server {
	s := &Server{svc: svc}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "salesforecast",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          handleError,
	})
	s.app.Use(recover.New())
	if s.metrics != nil {
		s.app.Use(s.observe)
		s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}
	s.app.Get("/healthz", s.health)

	api := s.app.Group("/api/v1")
	if s.secret != nil {
		api.Use(authenticate(s.secret))
	}
	api.Get("/forecast", s.forecast)
	api.Post("/forecast/refresh", s.refresh)
	api.Get("/scores", s.scores)
	api.Post("/query", s.query)
	api.Get("/questions", s.questions)
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called
func (s *Server) Listen(addr string) error {
	slog.Info("serving http", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	code := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	s.metrics.ObserveHTTP(c.Route().Path, c.Method(), code, time.Since(start))
	return err
}

func errorResponse(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(fiber.Map{"status": "error", "message": message})
}

func handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "error", err.Error())
	}
	return errorResponse(c, code, err.Error())
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) latestReport() (*app.Report, error) {
	report, err := s.svc.Report()
	if errors.Is(err, app.ErrNoReport) {
		return nil, fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return report, err
}

// ForecastResponse is the body of GET /api/v1/forecast
type ForecastResponse struct {
	RunID     string                       `json:"run_id"`
	CreatedAt time.Time                    `json:"created_at"`
	Forecast  []forecaster.ForecastRow     `json:"forecast"`
	Summary   []forecaster.ForecastSummary `json:"summary"`
	Holidays  []event.Event                `json:"holidays"`
}

func newForecastResponse(r *app.Report) ForecastResponse {
	return ForecastResponse{
		RunID:     r.RunID,
		CreatedAt: r.CreatedAt,
		Forecast:  r.Results.Rows(nil),
		Summary:   r.Summary,
		Holidays:  r.Results.Holidays(nil),
	}
}

func (s *Server) forecast(c *fiber.Ctx) error {
	report, err := s.latestReport()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": newForecastResponse(report)})
}

func (s *Server) refresh(c *fiber.Ctx) error {
	report, err := s.svc.Refresh(c.UserContext())
	if errors.Is(err, app.ErrRefreshBusy) {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": newForecastResponse(report)})
}

func (s *Server) scores(c *fiber.Ctx) error {
	report, err := s.latestReport()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data": fiber.Map{
			"run_id":      report.RunID,
			"scores":      report.Scores,
			"description": report.Description,
		},
	})
}

// QueryRequest is the body of POST /api/v1/query
type QueryRequest struct {
	Question string `json:"question"`
}

func (s *Server) query(c *fiber.Ctx) error {
	var req QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	answer, err := s.svc.Query(c.UserContext(), req.Question)
	if errors.Is(err, app.ErrQueryDisabled) {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": fiber.Map{"answer": answer}})
}

func (s *Server) questions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "success", "data": insight.SampleQuestions})
}

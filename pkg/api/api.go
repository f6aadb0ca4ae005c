// Package api implements the REST API for evaluating and parsing
// arithmetic expressions and browsing evaluation history.
package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/lemonberrylabs/calculator/pkg/compiler"
	"github.com/lemonberrylabs/calculator/pkg/expr"
	"github.com/lemonberrylabs/calculator/pkg/runtime"
	"github.com/lemonberrylabs/calculator/pkg/store"
	"github.com/lemonberrylabs/calculator/pkg/types"
)

// Options tune a Server.
type Options struct {
	// Level is used when a request names no optimization level.
	Level compiler.OptimizationLevel
	// MaxExpressionLength rejects longer expressions; zero disables the check.
	MaxExpressionLength int
	// AccessLog enables the per-request access log.
	AccessLog bool
}

// CheckLength rejects expressions longer than MaxExpressionLength.
func (o Options) CheckLength(expression string) error {
	if o.MaxExpressionLength > 0 && len(expression) > o.MaxExpressionLength {
		return fmt.Errorf("expression is %d bytes long, the limit is %d", len(expression), o.MaxExpressionLength)
	}
	return nil
}

// Server is the REST API server.
type Server struct {
	app    *fiber.App
	store  *store.Store
	engine *runtime.Engine
	opts   Options
}

// New creates a new API server.
func New(s *store.Store, engine *runtime.Engine, opts Options) *Server {
	srv := &Server{
		store:  s,
		engine: engine,
		opts:   opts,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})
	if opts.AccessLog {
		app.Use(logger.New())
	}

	app.Post("/v1/evaluate", srv.evaluate)
	app.Post("/v1/parse", srv.parse)

	app.Get("/v1/evaluations", srv.listEvaluations)
	app.Get("/v1/evaluations/:id", srv.getEvaluation)
	app.Delete("/v1/evaluations", srv.clearEvaluations)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// Store returns the evaluation history the server records into.
func (s *Server) Store() *store.Store {
	return s.store
}

// Options returns the server's options.
func (s *Server) Options() Options {
	return s.opts
}

// Evaluate runs text through engine at level and records the outcome in s.
// It is shared by every surface that evaluates on behalf of a user.
func Evaluate(engine *runtime.Engine, s *store.Store, text string, level compiler.OptimizationLevel) (*store.Evaluation, error) {
	ev := &store.Evaluation{
		Expression:        text,
		OptimizationLevel: level.String(),
	}

	node, err := engine.Parse(text)
	if err == nil {
		ev.Tree = node.String()
		var res runtime.Result
		res, err = engine.Race(node, level)
		ev.Backend = res.Backend
		ev.Duration = res.Duration
		if err == nil {
			ev.SetValue(res.Value, expr.FormatNumber(res.Value))
		}
	}
	if err != nil {
		ev.Error = err.Error()
		if e, ok := types.AsError(err); ok {
			ev.ErrorKind = string(e.Kind)
		}
		slog.Debug("evaluation failed", slog.String("expression", text), slog.String("error", err.Error()))
	}

	if s != nil {
		s.Add(ev)
	}
	return ev, err
}

// --- Evaluation Handlers ---

type expressionRequest struct {
	Expression        string `json:"expression"`
	OptimizationLevel string `json:"optimizationLevel"`
}

func (s *Server) readRequest(c *fiber.Ctx) (expressionRequest, compiler.OptimizationLevel, error) {
	var req expressionRequest
	if err := c.BodyParser(&req); err != nil {
		return req, 0, fmt.Errorf("invalid request body: %w", err)
	}
	if err := s.opts.CheckLength(req.Expression); err != nil {
		return req, 0, err
	}

	level := s.opts.Level
	if req.OptimizationLevel != "" {
		l, err := compiler.ParseOptimizationLevel(req.OptimizationLevel)
		if err != nil {
			return req, 0, err
		}
		level = l
	}
	return req, level, nil
}

func (s *Server) evaluate(c *fiber.Ctx) error {
	req, level, err := s.readRequest(c)
	if err != nil {
		return invalidArgument(c, err.Error())
	}

	ev, err := Evaluate(s.engine, s.store, req.Expression, level)
	if err != nil {
		return expressionError(c, err, ev.ID)
	}
	return c.JSON(ev)
}

func (s *Server) parse(c *fiber.Ctx) error {
	req, _, err := s.readRequest(c)
	if err != nil {
		return invalidArgument(c, err.Error())
	}

	node, err := s.engine.Parse(req.Expression)
	if err != nil {
		return expressionError(c, err, "")
	}
	return c.JSON(fiber.Map{
		"expression": req.Expression,
		"tree":       node.String(),
	})
}

// --- History Handlers ---

func (s *Server) listEvaluations(c *fiber.Ctx) error {
	evals := s.store.List(c.QueryInt("pageSize", 0))
	return c.JSON(fiber.Map{
		"evaluations": evals,
		"total":       s.store.Total(),
	})
}

func (s *Server) getEvaluation(c *fiber.Ctx) error {
	ev, err := s.store.Get(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    404,
				"message": err.Error(),
				"status":  "NOT_FOUND",
			},
		})
	}
	return c.JSON(ev)
}

func (s *Server) clearEvaluations(c *fiber.Ctx) error {
	n := s.store.Clear()
	return c.JSON(fiber.Map{"deleted": n})
}

// --- Error Responses ---

func invalidArgument(c *fiber.Ctx, msg string) error {
	return c.Status(400).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    400,
			"message": msg,
			"status":  "INVALID_ARGUMENT",
		},
	})
}

// expressionError reports a tokenizer, parser or backend failure along
// with its kind and stage.
func expressionError(c *fiber.Ctx, err error, evaluationID string) error {
	body := fiber.Map{
		"code":    400,
		"message": err.Error(),
		"status":  "INVALID_ARGUMENT",
	}
	if e, ok := types.AsError(err); ok {
		body["kind"] = string(e.Kind)
		body["stage"] = string(e.Stage())
		if e.Pos >= 0 {
			body["position"] = e.Pos
		}
	}

	resp := fiber.Map{"error": body}
	if evaluationID != "" {
		resp["evaluationId"] = evaluationID
	}
	return c.Status(400).JSON(resp)
}

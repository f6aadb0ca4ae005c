// Package web provides the embedded calculator UI.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/calculator/pkg/api"
	"github.com/lemonberrylabs/calculator/pkg/compiler"
	"github.com/lemonberrylabs/calculator/pkg/runtime"
	"github.com/lemonberrylabs/calculator/pkg/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// historyPageSize is the number of evaluations shown on the history page.
const historyPageSize = 100

var levels = []compiler.OptimizationLevel{
	compiler.OptNone,
	compiler.OptLess,
	compiler.OptDefault,
	compiler.OptAggressive,
}

// pages lists every template rendered inside layout.html.
var pages = []string{"calculator.html", "history.html", "detail.html", "not_found.html"}

// Handler serves the web UI pages.
type Handler struct {
	store  *store.Store
	engine *runtime.Engine
	opts   api.Options
	pages  map[string]*template.Template
}

// pageData wraps all page-specific data with common fields.
type pageData struct {
	NavActive string
	Data      interface{}
}

// New creates a new web UI handler. opts.Level is preselected in the form
// and opts.MaxExpressionLength applies to every evaluation. New panics if
// the embedded templates do not parse.
func New(s *store.Store, engine *runtime.Engine, opts api.Options) *Handler {
	funcMap := template.FuncMap{
		"formatTime":     formatTime,
		"formatDuration": formatDuration,
		"truncate":       truncate,
		"resultClass":    resultClass,
	}

	parsed := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		parsed[page] = template.Must(
			template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+page),
		)
	}

	return &Handler{
		store:  s,
		engine: engine,
		opts:   opts,
		pages:  parsed,
	}
}

func (h *Handler) render(c *fiber.Ctx, page string, navActive string, data interface{}) error {
	tmpl, ok := h.pages[page]
	if !ok {
		return c.Status(500).SendString(fmt.Sprintf("unknown page %q", page))
	}

	pd := pageData{
		NavActive: navActive,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, page, pd); err != nil {
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Send(buf.Bytes())
}

// Register adds web UI routes to the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/ui", h.calculator)
	app.Post("/ui/evaluate", h.liveEvaluate)
	app.Get("/ui/history", h.history)
	app.Get("/ui/history/:id", h.evaluationDetail)

	// Redirect root to UI
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui")
	})
}

// --- Page Data Types ---

type levelOption struct {
	Name     string
	Selected bool
}

type calculatorContent struct {
	Expression string
	Levels     []levelOption
	Evaluation *store.Evaluation // nil until the form is submitted
	Problem    string
}

type historyContent struct {
	Evaluations []*store.Evaluation
	Total       int64
	Failed      int
}

type detailContent struct {
	Evaluation *store.Evaluation
}

type notFoundContent struct {
	Message string
}

// --- Page Handlers ---

// calculator renders the form. A submitted expression is evaluated and
// recorded in the history.
func (h *Handler) calculator(c *fiber.Ctx) error {
	level := h.opts.Level
	expression := c.Query("expression")
	var problem string
	if err := h.opts.CheckLength(expression); err != nil {
		problem = err.Error()
		expression = ""
	} else if name := c.Query("level"); name != "" {
		l, err := compiler.ParseOptimizationLevel(name)
		if err != nil {
			problem = err.Error()
		} else {
			level = l
		}
	}

	content := calculatorContent{
		Expression: expression,
		Levels:     levelOptions(level),
		Problem:    problem,
	}
	if content.Expression != "" && problem == "" {
		ev, _ := api.Evaluate(h.engine, h.store, content.Expression, level)
		content.Evaluation = ev
	}

	return h.render(c, "calculator.html", "calculator", content)
}

type liveRequest struct {
	Expression        string `json:"expression"`
	OptimizationLevel string `json:"optimizationLevel"`
}

// liveEvaluate answers the form's per-keystroke requests without touching
// the history.
func (h *Handler) liveEvaluate(c *fiber.Ctx) error {
	var req liveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": fmt.Sprintf("invalid request body: %v", err)})
	}
	if err := h.opts.CheckLength(req.Expression); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	level := h.opts.Level
	if req.OptimizationLevel != "" {
		l, err := compiler.ParseOptimizationLevel(req.OptimizationLevel)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		level = l
	}
	if req.Expression == "" {
		return c.JSON(fiber.Map{"display": ""})
	}

	ev, err := api.Evaluate(h.engine, nil, req.Expression, level)
	if err != nil {
		return c.JSON(fiber.Map{"error": ev.Error, "kind": ev.ErrorKind})
	}
	return c.JSON(fiber.Map{"display": ev.Display, "tree": ev.Tree, "backend": ev.Backend})
}

func (h *Handler) history(c *fiber.Ctx) error {
	evals := h.store.List(historyPageSize)

	failed := 0
	for _, ev := range evals {
		if !ev.Succeeded() {
			failed++
		}
	}

	return h.render(c, "history.html", "history", historyContent{
		Evaluations: evals,
		Total:       h.store.Total(),
		Failed:      failed,
	})
}

func (h *Handler) evaluationDetail(c *fiber.Ctx) error {
	id := c.Params("id")
	ev, err := h.store.Get(id)
	if err != nil {
		c.Status(404)
		return h.render(c, "not_found.html", "", notFoundContent{
			Message: fmt.Sprintf("Evaluation '%s' not found", id),
		})
	}

	return h.render(c, "detail.html", "history", detailContent{Evaluation: ev})
}

func levelOptions(selected compiler.OptimizationLevel) []levelOption {
	opts := make([]levelOption, len(levels))
	for i, l := range levels {
		opts[i] = levelOption{Name: l.String(), Selected: l == selected}
	}
	return opts
}

// --- Template Helpers ---

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func resultClass(ev *store.Evaluation) string {
	if ev.Succeeded() {
		return "result-ok"
	}
	return "result-error"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

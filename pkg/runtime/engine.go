// Package runtime implements the hybrid evaluation engine: the tree-walking
// interpreter and the compiling evaluator race against the same tree and
// the first one to finish supplies the answer.
package runtime

import (
	"log/slog"
	"time"

	"github.com/lemonberrylabs/calculator/pkg/compiler"
	"github.com/lemonberrylabs/calculator/pkg/expr"
	"github.com/lemonberrylabs/calculator/pkg/types"
)

// Backend evaluates an expression tree. Implementations must treat the
// tree as read-only; the engine hands the same tree to two backends at
// once.
type Backend interface {
	// Name identifies the backend in results and logs.
	Name() string

	// Evaluate computes the value of node. level is a hint that backends
	// without a compilation step ignore.
	Evaluate(node expr.Node, level compiler.OptimizationLevel) (float64, error)
}

// Interpreter walks the tree node by node.
type Interpreter struct{}

// Name implements Backend.
func (Interpreter) Name() string { return "interpreter" }

// Evaluate implements Backend.
func (Interpreter) Evaluate(node expr.Node, _ compiler.OptimizationLevel) (float64, error) {
	return expr.Evaluate(node)
}

// Compiler translates the tree to bytecode and runs it once.
type Compiler struct{}

// Name implements Backend.
func (Compiler) Name() string { return "compiler" }

// Evaluate implements Backend.
func (Compiler) Evaluate(node expr.Node, level compiler.OptimizationLevel) (float64, error) {
	return compiler.Exec(node, level)
}

// Result is the outcome of a race that produced a value.
type Result struct {
	Value    float64
	Backend  string        // name of the backend that won
	Duration time.Duration // wall time until the first backend finished
}

// Engine coordinates evaluation races. An Engine has no mutable state and
// may be used from any number of goroutines.
type Engine struct {
	first  Backend
	second Backend
}

// Option configures an Engine.
type Option func(*Engine)

// WithBackends replaces the racing pair. Passing a second Interpreter
// in place of the Compiler turns the race into a plain interpretation.
func WithBackends(first, second Backend) Option {
	return func(e *Engine) {
		e.first = first
		e.second = second
	}
}

// NewEngine creates an engine racing the Interpreter against the Compiler.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{first: Interpreter{}, second: Compiler{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse validates text and returns its tree without evaluating it.
func (e *Engine) Parse(text string) (expr.Node, error) {
	return expr.ParseExpression(text)
}

// Evaluate parses text and races both backends over the resulting tree.
func (e *Engine) Evaluate(text string, level compiler.OptimizationLevel) (float64, error) {
	node, err := e.Parse(text)
	if err != nil {
		return 0, err
	}
	return e.EvaluateTree(node, level)
}

// EvaluateTree races both backends over an already parsed tree.
func (e *Engine) EvaluateTree(node expr.Node, level compiler.OptimizationLevel) (float64, error) {
	res, err := e.Race(node, level)
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}

// outcome is what a backend goroutine sends on its completion channel.
type outcome struct {
	value   float64
	err     error
	backend string
}

// Race starts both backends concurrently on node and returns whatever the
// first one to finish produced, value or error. The slower backend is not
// cancelled: it runs to completion and its outcome is dropped unread.
func (e *Engine) Race(node expr.Node, level compiler.OptimizationLevel) (Result, error) {
	start := time.Now()
	slog.Debug("race started",
		slog.String("first", e.first.Name()),
		slog.String("second", e.second.Name()),
		slog.String("level", level.String()))

	// One slot each, so the losing send never blocks once we stop reading.
	firstDone := make(chan outcome, 1)
	secondDone := make(chan outcome, 1)

	go run(e.first, node, level, firstDone)
	go run(e.second, node, level, secondDone)

	var o outcome
	select {
	case o = <-firstDone:
	case o = <-secondDone:
	}

	elapsed := time.Since(start)
	slog.Debug("race won",
		slog.String("backend", o.backend),
		slog.Duration("elapsed", elapsed),
		slog.Bool("failed", o.err != nil))

	if o.err != nil {
		return Result{Backend: o.backend, Duration: elapsed}, o.err
	}
	return Result{Value: o.value, Backend: o.backend, Duration: elapsed}, nil
}

// run evaluates node on b and sends exactly one outcome on done.
func run(b Backend, node expr.Node, level compiler.OptimizationLevel, done chan<- outcome) {
	name := b.Name()
	defer func() {
		if r := recover(); r != nil {
			done <- outcome{err: types.NewBackendPanicError(name, r), backend: name}
		}
	}()

	v, err := b.Evaluate(node, level)
	done <- outcome{value: v, err: err, backend: name}
}

var defaultEngine = NewEngine()

// Evaluate runs text through the default engine.
func Evaluate(text string, level compiler.OptimizationLevel) (float64, error) {
	return defaultEngine.Evaluate(text, level)
}

// EvaluateTree runs node through the default engine.
func EvaluateTree(node expr.Node, level compiler.OptimizationLevel) (float64, error) {
	return defaultEngine.EvaluateTree(node, level)
}

// Parse parses text with the default engine.
func Parse(text string) (expr.Node, error) {
	return defaultEngine.Parse(text)
}

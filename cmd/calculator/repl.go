package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/calculator/pkg/compiler"
	"github.com/lemonberrylabs/calculator/pkg/config"
	"github.com/lemonberrylabs/calculator/pkg/expr"
	"github.com/lemonberrylabs/calculator/pkg/runtime"
)

const (
	promptOK     = "> "
	promptFailed = "! "
)

const replHelp = `Type an expression to evaluate it. Commands:
  :level [name]   show or set the optimization level
  :parse <expr>   show the tree without evaluating
  :asm <expr>     show the compiled program
  :help           show this help
  :quit           exit (Ctrl-D also works)`

func newReplCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive calculator shell",
		Args:  cobra.NoArgs,
		RunE:  runREPL,
	}
	cmd.Flags().String("history-file", "", "File the line history is kept in (default ~/.calculator_history)")
	return cmd
}

// session holds the REPL state that outlives a single line.
type session struct {
	engine *runtime.Engine
	level  compiler.OptimizationLevel
	out    *output
	failed bool // last line failed; selects the prompt
}

func (s *session) prompt() string {
	if s.failed {
		return promptFailed
	}
	return promptOK
}

// handle processes one input line and reports whether the shell should
// exit. Blank lines leave the state untouched.
func (s *session) handle(line string) (exit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if strings.HasPrefix(line, ":") {
		return s.command(line)
	}

	v, err := s.engine.Evaluate(line, s.level)
	if err != nil {
		s.fail(err.Error())
		return false
	}
	s.failed = false
	fmt.Fprintln(s.out, s.out.green(expr.FormatNumber(v)))
	return false
}

func (s *session) command(line string) (exit bool) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case ":quit", ":q", ":exit":
		return true
	case ":help":
		fmt.Fprintln(s.out, replHelp)
	case ":level":
		if arg == "" {
			fmt.Fprintln(s.out, s.level)
			break
		}
		level, err := compiler.ParseOptimizationLevel(arg)
		if err != nil {
			s.fail(err.Error())
			return false
		}
		s.level = level
		fmt.Fprintf(s.out, "optimization level set to %s\n", level)
	case ":parse":
		node, err := s.engine.Parse(arg)
		if err != nil {
			s.fail(err.Error())
			return false
		}
		fmt.Fprintln(s.out, s.out.green(node.String()))
	case ":asm":
		node, err := s.engine.Parse(arg)
		if err != nil {
			s.fail(err.Error())
			return false
		}
		prog, err := compiler.Compile(node, s.level)
		if err != nil {
			s.fail(err.Error())
			return false
		}
		fmt.Fprint(s.out, prog.Disassemble())
	default:
		s.fail(fmt.Sprintf("unknown command %s, type :help", name))
		return false
	}
	s.failed = false
	return false
}

func (s *session) fail(msg string) {
	s.failed = true
	fmt.Fprintln(s.out, s.out.red(msg))
}

func runREPL(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("history-file"); v != "" {
		cfg.HistoryFile = v
	}

	s := &session{
		engine: runtime.NewEngine(),
		level:  cfg.Level(),
		out:    newOutput(os.Stdout),
	}
	return loop(s, cfg)
}

func loop(s *session, cfg *config.Config) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if cfg.HistoryFile != "" {
		if f, err := os.Open(cfg.HistoryFile); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			f, err := os.Create(cfg.HistoryFile)
			if err != nil {
				log.Printf("Warning: could not save history: %v", err)
				return
			}
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}()
	}

	fmt.Fprintf(s.out, "calculator %s, level %s. Type :help for commands.\n", version, s.level)
	for {
		line, err := ln.Prompt(s.prompt())
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
		if s.handle(line) {
			return nil
		}
	}
}

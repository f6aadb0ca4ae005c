// Package main is the entry point for the calculator binary.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/calculator/pkg/config"
	"github.com/lemonberrylabs/calculator/pkg/expr"
	"github.com/lemonberrylabs/calculator/pkg/runtime"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errEvaluation marks a failure that has already been printed.
var errEvaluation = errors.New("evaluation failed")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "calculator [expression...]",
		Short: "Evaluate arithmetic expressions",
		Long: `Evaluate an arithmetic expression given as arguments. All arguments are
joined with spaces, so quoting is optional. Arguments such as -4 or -(1
are read as expression text, not flags:

  calculator 1 + 2 * 3
  calculator -4 + 5`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runEval,
	}

	root.Version = version + " (commit=" + commit + ", built=" + date + ")"
	root.SetVersionTemplate("calculator version {{.Version}}\n")

	root.PersistentFlags().String("config", "", "YAML config file (env CALCULATOR_CONFIG)")
	root.PersistentFlags().String("opt-level", "", "Optimization level: none, less, default or aggressive (env OPT_LEVEL)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (env LOG_LEVEL)")

	root.AddCommand(newReplCmd(), newServeCmd())
	return root
}

func main() {
	root := newRootCmd()
	root.SetArgs(expressionArgs(os.Args[1:]))
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errEvaluation) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// valueFlags are the persistent flags that take their value as the next
// argument.
var valueFlags = map[string]bool{
	"--config":    true,
	"--opt-level": true,
	"--log-level": true,
}

// expressionArgs inserts "--" before the first argument that is a signed
// operand, such as -4 or -(1, so flag parsing leaves the rest of the
// expression alone. Subcommand invocations are returned unchanged.
func expressionArgs(args []string) []string {
	positional := false
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			return args
		case isSignedOperand(a):
			out := make([]string, 0, len(args)+1)
			out = append(out, args[:i]...)
			out = append(out, "--")
			return append(out, args[i:]...)
		case valueFlags[a]:
			i++
		case !strings.HasPrefix(a, "-") && !positional:
			positional = true
			switch a {
			case "repl", "serve", "help", "completion":
				return args
			}
		}
	}
	return args
}

func isSignedOperand(a string) bool {
	if len(a) < 2 || a[0] != '-' {
		return false
	}
	switch c := a[1]; {
	case c >= '0' && c <= '9', c == '.', c == '(', c == '+':
		return true
	}
	return false
}

// loadConfig layers the config file, the environment and the persistent
// flags, then installs the slog handler.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := envOrDefault("CALCULATOR_CONFIG", "")
	if v, _ := cmd.Flags().GetString("config"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("opt-level"); v != "" {
		cfg.OptimizationLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

func runEval(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := newOutput(os.Stdout)
	if !evalAndPrint(out, runtime.NewEngine(), strings.Join(args, " "), cfg) {
		return errEvaluation
	}
	return nil
}

// evalAndPrint prints the value in green or the error in red and reports
// whether evaluation succeeded.
func evalAndPrint(out *output, engine *runtime.Engine, text string, cfg *config.Config) bool {
	v, err := engine.Evaluate(text, cfg.Level())
	if err != nil {
		fmt.Fprintln(out, out.red(err.Error()))
		return false
	}
	fmt.Fprintln(out, out.green(expr.FormatNumber(v)))
	return true
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

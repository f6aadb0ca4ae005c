package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lemonberrylabs/calculator/pkg/compiler"
	"github.com/lemonberrylabs/calculator/pkg/config"
	"github.com/lemonberrylabs/calculator/pkg/runtime"
)

func newTestSession() (*session, *bytes.Buffer) {
	var buf bytes.Buffer
	return &session{
		engine: runtime.NewEngine(),
		level:  compiler.OptDefault,
		out:    &output{w: &buf},
	}, &buf
}

func TestSessionEvaluates(t *testing.T) {
	s, buf := newTestSession()

	if s.handle("1 + 2 * 3") {
		t.Fatal("unexpected exit")
	}
	if got := buf.String(); got != "7\n" {
		t.Errorf("got %q, want 7", got)
	}
	if s.prompt() != promptOK {
		t.Errorf("got prompt %q after success", s.prompt())
	}
}

func TestSessionPromptTracksFailure(t *testing.T) {
	s, buf := newTestSession()

	s.handle("(1 + 2")
	if s.prompt() != promptFailed {
		t.Errorf("expected failure prompt, got %q", s.prompt())
	}
	if !strings.Contains(buf.String(), "unmatched opening parenthesis") {
		t.Errorf("expected error message, got %q", buf.String())
	}

	// Blank lines keep the previous state.
	s.handle("   ")
	if s.prompt() != promptFailed {
		t.Error("blank line should not reset the prompt")
	}

	s.handle("2")
	if s.prompt() != promptOK {
		t.Error("successful line should reset the prompt")
	}
}

func TestSessionCommands(t *testing.T) {
	s, buf := newTestSession()

	s.handle(":level none")
	if s.level != compiler.OptNone {
		t.Fatalf("got level %s, want none", s.level)
	}

	buf.Reset()
	s.handle(":level")
	if buf.String() != "none\n" {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	s.handle(":parse -(1+2)*3")
	if buf.String() != "-( 1 + 2 ) * 3\n" {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	s.handle(":asm (1)")
	if !strings.Contains(buf.String(), "POS") || !strings.Contains(buf.String(), "RETURN") {
		t.Errorf("expected disassembly at level none, got %q", buf.String())
	}

	s.handle(":level turbo")
	if s.level != compiler.OptNone || s.prompt() != promptFailed {
		t.Error("unknown level should fail and leave the level unchanged")
	}

	s.handle(":bogus")
	if s.prompt() != promptFailed {
		t.Error("unknown command should fail")
	}

	if !s.handle(":quit") {
		t.Error("expected :quit to exit")
	}
}

func TestOutputColor(t *testing.T) {
	var buf bytes.Buffer
	plain := &output{w: &buf}
	if plain.red("x") != "x" {
		t.Error("expected no color codes when disabled")
	}

	colored := &output{w: &buf, color: true}
	if got := colored.green("7"); got != colorGreen+"7"+colorReset {
		t.Errorf("got %q", got)
	}
	if got := colored.red("bad"); got != colorRed+"bad"+colorReset {
		t.Errorf("got %q", got)
	}
}

func TestEvalAndPrint(t *testing.T) {
	var buf bytes.Buffer
	out := &output{w: &buf}
	cfg := config.Default()

	if !evalAndPrint(out, runtime.NewEngine(), "-4 + 5", cfg) {
		t.Fatal("expected success")
	}
	if buf.String() != "1\n" {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	if evalAndPrint(out, runtime.NewEngine(), "1 / b", cfg) {
		t.Fatal("expected failure")
	}
	if !strings.Contains(buf.String(), "invalid operator: b") {
		t.Errorf("got %q", buf.String())
	}
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--", "1", "*", "(2", "+", "3)"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	cmd = newRootCmd()
	cmd.SetArgs([]string{"1", "+"})
	if err := cmd.Execute(); !errors.Is(err, errEvaluation) {
		t.Fatalf("got %v, want evaluation failure", err)
	}
}

func TestExpressionArgs(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"-4", "+", "5"}, []string{"--", "-4", "+", "5"}},
		{[]string{"1", "-", "-2"}, []string{"1", "-", "--", "-2"}},
		{[]string{"-(1", "+", "2)"}, []string{"--", "-(1", "+", "2)"}},
		{[]string{"--opt-level", "none", "-.5"}, []string{"--opt-level", "none", "--", "-.5"}},
		{[]string{"--log-level=debug", "-1"}, []string{"--log-level=debug", "--", "-1"}},
		{[]string{"--", "-4"}, []string{"--", "-4"}},
		{[]string{"1", "+", "2"}, []string{"1", "+", "2"}},
		{[]string{"serve", "--port", "9000"}, []string{"serve", "--port", "9000"}},
		{[]string{"-h"}, []string{"-h"}},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			got := expressionArgs(tt.args)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRootCommandLeadingMinus(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs(expressionArgs([]string{"-4", "+", "5"}))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestRootCommandConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calculator.yaml")
	if err := os.WriteFile(path, []byte("optimizationLevel: turbo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "1"})
	err := cmd.Execute()
	if err == nil || errors.Is(err, errEvaluation) {
		t.Fatalf("expected config error, got %v", err)
	}

	cmd = newRootCmd()
	cmd.SetArgs([]string{"--config", path, "--opt-level", "less", "1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("flag should override config: %v", err)
	}
}

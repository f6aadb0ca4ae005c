package main

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const (
	colorReset = "\x1b[0m"
	colorRed   = "\x1b[1;31m"
	colorGreen = "\x1b[32m"
)

// output writes to a terminal or pipe, coloring text only when the
// destination is a terminal and NO_COLOR is unset.
type output struct {
	w     io.Writer
	color bool
}

func newOutput(f *os.File) *output {
	fd := f.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	if !tty {
		return &output{w: f}
	}
	return &output{
		w:     colorable.NewColorable(f),
		color: os.Getenv("NO_COLOR") == "",
	}
}

func (o *output) Write(p []byte) (int, error) {
	return o.w.Write(p)
}

func (o *output) paint(code, s string) string {
	if !o.color {
		return s
	}
	return code + s + colorReset
}

func (o *output) red(s string) string   { return o.paint(colorRed, s) }
func (o *output) green(s string) string { return o.paint(colorGreen, s) }

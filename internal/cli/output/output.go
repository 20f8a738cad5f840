// Package output renders command results as styled text or JSON,
// adapting to whether stdout is a terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
)

// Mode selects the output format.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeText Mode = "text"
	ModeJSON Mode = "json"
)

// Renderer writes command output in the selected mode.
type Renderer struct {
	out   io.Writer
	errW  io.Writer
	mode  Mode
	isTTY bool
}

// NewRenderer creates a renderer, detecting TTY state from out.
func NewRenderer(out, errW io.Writer, mode Mode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return NewRendererWithTTY(out, errW, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
// Used by tests to pin the auto-mode resolution.
func NewRendererWithTTY(out, errW io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	return &Renderer{out: out, errW: errW, mode: mode, isTTY: isTTY}
}

// EffectiveMode resolves ModeAuto to a concrete mode.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode == ModeAuto {
		return ModeText
	}
	return r.mode
}

func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Errorf writes a message to the error stream.
func (r *Renderer) Errorf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.errW, format, a...)
}

// Header writes a section heading.
func (r *Renderer) Header(title string) {
	_, _ = fmt.Fprintf(r.out, "%s\n%s\n", title, strings.Repeat("-", len(title)))
}

// KeyValue writes an aligned key: value line.
func (r *Renderer) KeyValue(key string, value any) {
	_, _ = fmt.Fprintf(r.out, "%-14s %v\n", key+":", value)
}

// Table renders rows with go-pretty. A styled table on terminals, plain
// ASCII when piped.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	hr := make(table.Row, len(header))
	for i, h := range header {
		hr[i] = h
	}
	t.AppendHeader(hr)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, c := range row {
			tr[i] = c
		}
		t.AppendRow(tr)
	}
	if r.isTTY {
		t.SetStyle(table.StyleLight)
	} else {
		t.SetStyle(table.StyleDefault)
	}
	t.Render()
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

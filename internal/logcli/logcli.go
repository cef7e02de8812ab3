// SPDX-License-Identifier: GPL-3.0-or-later

// Package logcli contains an apex/log handler for the console.
package logcli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
)

var bold = color.New(color.Bold)

// Colors mapping.
var Colors = [...]*color.Color{
	log.DebugLevel: color.New(color.FgWhite),
	log.InfoLevel:  color.New(color.FgBlue),
	log.WarnLevel:  color.New(color.FgYellow),
	log.ErrorLevel: color.New(color.FgRed),
	log.FatalLevel: color.New(color.FgRed),
}

// Strings mapping.
var Strings = [...]string{
	log.DebugLevel: "•",
	log.InfoLevel:  "•",
	log.WarnLevel:  "•",
	log.ErrorLevel: "⨯",
	log.FatalLevel: "⨯",
}

// Handler implements [log.Handler].
type Handler struct {
	mu      sync.Mutex
	Writer  io.Writer
	Padding int
}

var _ log.Handler = &Handler{}

// New returns a new [*Handler] writing to w.
func New(w io.Writer) *Handler {
	if f, ok := w.(*os.File); ok {
		w = colorable.NewColorable(f)
	}
	return &Handler{Writer: w, Padding: 3}
}

// HandleLog implements [log.Handler].
func (h *Handler) HandleLog(e *log.Entry) error {
	c := Colors[e.Level]
	level := Strings[e.Level]

	var sb strings.Builder
	sb.WriteString(c.Sprintf("%s %-25s", bold.Sprintf("%*s", h.Padding+1, level), e.Message))
	for _, name := range e.Fields.Names() {
		fmt.Fprintf(&sb, " %s=%v", c.Sprint(name), e.Fields.Get(name))
	}
	sb.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.Writer, sb.String())
	return err
}

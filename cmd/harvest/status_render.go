package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

type kindStyle struct {
	label string
	color color.Attribute
}

var kindStyles = map[statusKind]kindStyle{
	statusInfo:  {"INFO", color.FgBlue},
	statusOK:    {"OK", color.FgGreen},
	statusWarn:  {"WARN", color.FgYellow},
	statusError: {"ERROR", color.FgRed},
}

// paint colors s regardless of color.NoColor; callers decide via
// shouldColorize.
func paint(attr color.Attribute, s string) string {
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

// renderStatusLine formats "  Label:   [KIND] message" with labels padded to
// a common width.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style, ok := kindStyles[kind]
	if !ok {
		style = kindStyles[statusInfo]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  %-22s [%s]", label+":", style.label)
	if message != "" {
		b.WriteString(" ")
		b.WriteString(message)
	}
	if colorize {
		return paint(style.color, b.String())
	}
	return b.String()
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	lines := []string{heading, strings.Repeat("-", len(heading))}
	if colorize {
		for i := range lines {
			lines[i] = paint(color.FgBlue, lines[i])
		}
	}
	return lines
}

func passKind(passed bool) statusKind {
	if passed {
		return statusOK
	}
	return statusError
}

// shouldColorize is true only for terminals, and never when NO_COLOR is set.
func shouldColorize(w io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"weft/internal/opt"
)

const maxFuncNameWidth = 32

var (
	styleHeader = lipgloss.NewStyle().Bold(true)
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleDim    = lipgloss.NewStyle().Faint(true)
)

var statsColumns = []string{"iters", "subst", "immed", "inline", "fused", "lifted", "removed"}

// renderStats prints one row per function. Names are measured by display
// width so wide runes keep the columns aligned.
func renderStats(w io.Writer, input string, res *opt.Result, useColor bool) {
	paint := func(st lipgloss.Style, s string) string {
		if !useColor {
			return s
		}
		return st.Render(s)
	}

	nameWidth := runewidth.StringWidth("function")
	for _, fs := range res.Funcs {
		nameWidth = max(nameWidth, min(runewidth.StringWidth(fs.Name), maxFuncNameWidth))
	}

	fmt.Fprintf(w, "%s %s\n", paint(styleHeader, input), paint(styleDim, fmt.Sprintf("(%d rounds)", res.OuterIterations)))
	var head strings.Builder
	head.WriteString(padRight("function", nameWidth))
	for _, col := range statsColumns {
		head.WriteString("  " + col)
	}
	head.WriteString("  state")
	fmt.Fprintln(w, paint(styleHeader, head.String()))

	for _, fs := range res.Funcs {
		name := runewidth.Truncate(fs.Name, maxFuncNameWidth, "...")
		var row strings.Builder
		row.WriteString(padRight(name, nameWidth))
		for i, n := range []int{fs.Iterations, fs.Substitutions, fs.Conversions, fs.Inlined, fs.Fused, fs.Lifted, fs.Removed} {
			row.WriteString("  " + padLeft(strconv.Itoa(n), len(statsColumns[i])))
		}
		state := paint(styleOK, "converged")
		if !fs.Converged {
			state = paint(styleWarn, "capped")
		}
		fmt.Fprintf(w, "%s  %s\n", row.String(), state)
	}
}

func padRight(s string, width int) string {
	return s + strings.Repeat(" ", max(width-runewidth.StringWidth(s), 0))
}

func padLeft(s string, width int) string {
	return strings.Repeat(" ", max(width-runewidth.StringWidth(s), 0)) + s
}

package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
)

// isInteractive reports whether stdout is a terminal, the same TTY check
// cmd/cryptorun/main.go uses to decide between colorized console output
// and plain/JSON output for piped or redirected invocations.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// renderTable draws tw with box-drawing borders when stdout is a terminal,
// and a plain, script-friendly style (no borders, single-space separators)
// when it's piped or redirected.
func renderTable(tw table.Writer) {
	if !isInteractive() {
		tw.SetStyle(table.StyleLight)
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
		tw.Style().Options.SeparateRows = false
	}
	tw.Render()
}

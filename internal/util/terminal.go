package util

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether the descriptor is attached to an
// interactive terminal rather than a pipe or file. Console colors and
// progress rendering key off this.
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// GetTerminalWidth returns the terminal column count, or 80 when
// stdout is redirected.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return width
}

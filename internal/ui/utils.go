package ui

import (
	"os"

	"golang.org/x/term"
)

// IsInteractive checks if stdout is a terminal.
// Commands print JSON instead of styled output when it is not.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

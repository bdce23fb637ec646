package common

import "github.com/olekukonko/ts"

// DefaultTerminalWidth is used when stdout is not a terminal
const DefaultTerminalWidth = 80

// TerminalWidth returns the width of the controlling terminal
func TerminalWidth() int {
	size, err := ts.GetSize()
	if err != nil || size.Col() <= 0 {
		return DefaultTerminalWidth
	}
	return size.Col()
}

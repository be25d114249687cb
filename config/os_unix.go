//go:build !windows

package config

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// PageFileName turns page path (possibly inside archive) into a single file
// name: path separators become "_", leading dots are dropped.
func PageFileName(page string) string {
	out := strings.TrimLeft(strings.Map(func(sym rune) rune {
		switch {
		case sym == '/' || sym == os.PathSeparator:
			return '_'
		case sym == 0 || sym == os.PathListSeparator:
			return -1
		}
		return sym
	}, page), "._")
	if len(out) == 0 {
		out = "page.mei"
	}
	return out
}

// ColorOutput reports if stream is a terminal able to show colors.
func ColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}

//go:build windows

package config

import (
	"os"
	"strings"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
	"golang.org/x/term"
)

// PageFileName turns page path (possibly inside archive) into a single file
// name: path separators become "_", characters Windows does not allow and
// leading dots are dropped.
func PageFileName(page string) string {
	out := strings.TrimLeft(strings.Map(func(sym rune) rune {
		switch {
		case sym == '/' || sym == '\\':
			return '_'
		case sym == 0 || strings.ContainsRune(`<>":|?*`+string(os.PathListSeparator), sym):
			return -1
		}
		return sym
	}, page), "._")
	if len(out) == 0 {
		out = "page.mei"
	}
	return out
}

// ColorOutput reports if stream is a terminal able to show colors. Console
// of Windows 10 and later is switched to VT100 processing.
func ColorOutput(stream *os.File) bool {
	if !term.IsTerminal(int(stream.Fd())) || !vtCapable() {
		return false
	}

	const enableVirtualTerminalProcessing uint32 = 0x4

	var mode uint32
	h := windows.Handle(stream.Fd())
	if err := windows.GetConsoleMode(h, &mode); err != nil {
		return false
	}
	return windows.SetConsoleMode(h, mode|enableVirtualTerminalProcessing) == nil
}

func vtCapable() bool {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows NT\CurrentVersion`, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	defer k.Close()

	v, _, err := k.GetIntegerValue("CurrentMajorVersionNumber")
	return err == nil && v >= 10
}

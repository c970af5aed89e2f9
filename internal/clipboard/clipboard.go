// Package clipboard backs the get_clipboard/set_clipboard tools with
// cross-platform access to the system clipboard.
package clipboard

import (
	"time"

	"github.com/atotto/clipboard"
)

// DefaultTimeout bounds how long a clipboard read/write is allowed to block,
// matching the budget given to other synchronous platform calls.
const DefaultTimeout = 3 * time.Second

// CopyToClipboard writes value to the system clipboard.
func CopyToClipboard(value string) error {
	return clipboard.WriteAll(value)
}

// ReadFromClipboard reads the current text content of the system clipboard.
func ReadFromClipboard() (string, error) {
	return clipboard.ReadAll()
}

// Available reports whether a clipboard backend was found on this platform
// (e.g. no X11 clipboard utility present on a headless Linux host).
func Available() bool {
	return !clipboard.Unsupported
}

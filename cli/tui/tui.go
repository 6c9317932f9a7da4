package tui

import "fmt"

// viewTypes names every view derpctl can render interactively.
var viewTypes = map[string]bool{
	"topology": true,
	"ping":     true,
}

// Run starts the appropriate TUI based on the view type. Returns an
// error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	return RunWatchTUI(viewType, data)
}

// IsTUISupported returns true if the view type supports TUI mode. Only
// derpctl's read-only views (topology, ping) do; start/kill mutate state
// and version never contacts the control socket.
func IsTUISupported(viewType string) bool {
	return viewTypes[viewType]
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{"topology", "ping"}
}

package tools

import "strings"

// IsDeferred reports whether a tool name belongs to the deferred tier — any
// name containing a "__" separator, the convention external tool servers use
// (e.g. "mcp__playwright__click").
func IsDeferred(name string) bool {
	return strings.Contains(name, "__")
}

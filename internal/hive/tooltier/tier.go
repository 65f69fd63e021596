// Package tooltier implements the coordinator's two-tier tool loading
// policy: a small core set of tools is always sent to the model, while a
// larger deferred set (external/MCP-style tools) is withheld until a
// ToolSearch call or a keyword match in the conversation activates it. This
// keeps a typical turn's tool-definition payload small without permanently
// hiding capability the model might need.
package tooltier

import "strings"

// activationPatterns are generic phrases that imply the deferred tier (e.g.
// browser automation, external documentation lookup) is needed even before
// the model calls ToolSearch.
var activationPatterns = []string{
	"browser",
	"screenshot",
	"navigate",
	"chrome",
	"mcp",
	"web page",
	"webpage",
	"click on",
	"open the page",
	"devtools",
}

// ShouldActivate reports whether text — typically the task body or the
// latest user turn — implies the deferred tier should be activated,
// checking known external-tool-server names first, then generic patterns.
func ShouldActivate(text string, knownServerNames []string) bool {
	lower := strings.ToLower(text)

	for _, name := range knownServerNames {
		if name == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(name)) {
			return true
		}
	}

	for _, pattern := range activationPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}

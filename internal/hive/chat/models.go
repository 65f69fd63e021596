package chat

import "strings"

// aliases maps short conversational model names to the full model IDs the
// Anthropic API expects. A plan's "model:" line is almost always one of
// these short names.
var aliases = map[string]string{
	"opus":   "claude-opus-4-20250514",
	"sonnet": "claude-sonnet-4-20250514",
	"haiku":  "claude-haiku-4-20250514",
}

// bedrockAliases maps the same short names to Bedrock's inference-profile
// model IDs, which carry a region prefix and version suffix that differ
// from the direct-API IDs.
var bedrockAliases = map[string]string{
	"opus":   "us.anthropic.claude-opus-4-20250514-v1:0",
	"sonnet": "us.anthropic.claude-sonnet-4-20250514-v1:0",
	"haiku":  "us.anthropic.claude-haiku-4-20250514-v1:0",
}

// ResolveModel expands a short alias to its full model ID for the direct
// Anthropic backend. A vendor-prefixed ID ("claude-...") passes through
// unchanged. An empty or unrecognized name falls back to defaultModel.
func ResolveModel(name, defaultModel string) string {
	return resolve(name, defaultModel, aliases)
}

// ResolveBedrockModel expands a short alias to its full Bedrock inference
// profile ID. A value that already looks like a Bedrock model ID (contains
// a dot-separated region prefix, e.g. "us.anthropic...") passes through
// unchanged.
func ResolveBedrockModel(name, defaultModel string) string {
	return resolve(name, defaultModel, bedrockAliases)
}

func resolve(name, defaultModel string, table map[string]string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultModel
	}
	if full, ok := table[strings.ToLower(name)]; ok {
		return full
	}
	if strings.HasPrefix(name, "claude-") || strings.Contains(name, "anthropic.claude") {
		return name
	}
	return defaultModel
}

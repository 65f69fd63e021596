// Package compress applies heuristic, idempotent compression to large tool
// outputs before they re-enter conversation history. It never compresses
// error output, never exceeds the input length, and always preserves file
// paths and line numbers bit-for-bit where it touches them at all.
package compress

// MinCompressLength is the minimum content length (in bytes) considered for
// compression. Shorter output, and all error output, passes through
// unchanged.
const MinCompressLength = 500

// Output compresses tool output for re-entry into conversation history.
// Pattern-specific reducers run in priority order; the first one that
// applies wins. If none applies, the original content is returned.
func Output(content string, isError bool) string {
	if isError || len(content) < MinCompressLength {
		return content
	}

	if compressed, ok := tryCompressVCS(content); ok {
		return compressed
	}
	if compressed, ok := tryCompressTestOutput(content); ok {
		return compressed
	}
	if compressed, ok := tryCompressRepeatedLines(content); ok {
		return compressed
	}

	return content
}

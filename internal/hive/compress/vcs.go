package compress

import (
	"fmt"
	"strings"
)

// tryCompressVCS collapses long unified-diff output (as produced by `git
// diff`, `git show`, etc.) by eliding the body of large hunks while leaving
// every "diff --git", "+++", "---", and "@@" line — the lines that carry
// file paths and line numbers — untouched.
func tryCompressVCS(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	if !looksLikeUnifiedDiff(lines) {
		return "", false
	}

	const keepEdge = 3
	const minHunkLines = keepEdge*2 + 4

	var out []string
	i := 0
	for i < len(lines) {
		line := lines[i]
		if !strings.HasPrefix(line, "@@") {
			out = append(out, line)
			i++
			continue
		}

		out = append(out, line)
		i++

		hunkStart := i
		for i < len(lines) && !isHunkBoundary(lines[i]) {
			i++
		}
		hunk := lines[hunkStart:i]

		if len(hunk) <= minHunkLines {
			out = append(out, hunk...)
			continue
		}

		out = append(out, hunk[:keepEdge]...)
		omitted := len(hunk) - keepEdge*2
		out = append(out, fmt.Sprintf("... (%d lines omitted)", omitted))
		out = append(out, hunk[len(hunk)-keepEdge:]...)
	}

	result := strings.Join(out, "\n")
	if len(result) >= len(content) {
		return content, true
	}
	return result, true
}

func isHunkBoundary(line string) bool {
	return strings.HasPrefix(line, "@@") ||
		strings.HasPrefix(line, "diff --git") ||
		strings.HasPrefix(line, "commit ")
}

func looksLikeUnifiedDiff(lines []string) bool {
	for _, l := range lines {
		if strings.HasPrefix(l, "diff --git") || strings.HasPrefix(l, "@@") {
			return true
		}
	}
	return false
}

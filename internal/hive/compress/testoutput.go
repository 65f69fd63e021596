package compress

import (
	"fmt"
	"strings"
)

// passingTestPrefixes matches the boilerplate emitted per-package/per-test
// on success by common test runners (go test, pytest, jest). Failure lines
// never match and are always preserved verbatim.
var passingTestPrefixes = []string{
	"ok  ",
	"--- PASS:",
	"PASSED",
}

// tryCompressTestOutput collapses runs of passing-test boilerplate into a
// single count line, leaving failures, panics, and summary lines intact.
func tryCompressTestOutput(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	if !looksLikeTestOutput(lines) {
		return "", false
	}

	var out []string
	passStreak := 0

	flush := func() {
		if passStreak == 0 {
			return
		}
		if passStreak == 1 {
			return
		}
		out = out[:len(out)-passStreak]
		out = append(out, fmt.Sprintf("(%d passing tests omitted)", passStreak))
		passStreak = 0
	}

	for _, line := range lines {
		if isPassingTestLine(line) {
			out = append(out, line)
			passStreak++
			continue
		}
		flush()
		passStreak = 0
		out = append(out, line)
	}
	flush()

	result := strings.Join(out, "\n")
	if len(result) >= len(content) {
		return content, true
	}
	return result, true
}

func isPassingTestLine(line string) bool {
	for _, p := range passingTestPrefixes {
		if strings.HasPrefix(strings.TrimSpace(line), p) {
			return true
		}
	}
	return false
}

func looksLikeTestOutput(lines []string) bool {
	for _, l := range lines {
		if isPassingTestLine(l) || strings.Contains(l, "FAIL") || strings.HasPrefix(strings.TrimSpace(l), "--- FAIL:") {
			return true
		}
	}
	return false
}

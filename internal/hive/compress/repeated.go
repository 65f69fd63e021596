package compress

import (
	"fmt"
	"strings"
)

// minRepeatRun is the minimum number of consecutive identical lines before
// they're collapsed. Below this a repeat is more likely meaningful
// (e.g. two blank lines) than noise.
const minRepeatRun = 4

// tryCompressRepeatedLines collapses long runs of an identical line —
// typical of a verbose build tool re-printing the same progress line — into
// one copy of the line plus a repeat count.
func tryCompressRepeatedLines(content string) (string, bool) {
	lines := strings.Split(content, "\n")

	var out []string
	i := 0
	collapsedAny := false
	for i < len(lines) {
		j := i + 1
		for j < len(lines) && lines[j] == lines[i] {
			j++
		}
		run := j - i
		if run >= minRepeatRun {
			out = append(out, lines[i], fmt.Sprintf("... (line repeated %d times)", run))
			collapsedAny = true
		} else {
			out = append(out, lines[i:j]...)
		}
		i = j
	}

	if !collapsedAny {
		return "", false
	}

	result := strings.Join(out, "\n")
	if len(result) >= len(content) {
		return content, true
	}
	return result, true
}

package contextwin

import (
	"strings"
	"testing"
)

func bigText(n int) string {
	return strings.Repeat("x", n)
}

func TestTruncateBelowGateIsNoop(t *testing.T) {
	messages := make([]Message, 3)
	for i := range messages {
		messages[i] = Message{Role: "user", Blocks: []Block{{Kind: BlockText, Text: bigText(1_000_000)}}}
	}
	got := Truncate(messages)
	if len(got) != len(messages) {
		t.Fatalf("expected no truncation below message-count gate")
	}
}

func TestTruncateFiresOnBothGates(t *testing.T) {
	var messages []Message
	messages = append(messages, Message{Role: "user", Blocks: []Block{{Kind: BlockText, Text: "first turn"}}})
	for i := 0; i < 20; i++ {
		messages = append(messages, Message{
			Role: "assistant",
			Blocks: []Block{
				{Kind: BlockToolResult, Text: bigText(50_000)},
			},
		})
	}

	got := Truncate(messages)

	if got[0].Blocks[0].Text != "first turn" {
		t.Fatalf("expected first message preserved verbatim")
	}

	tail := got[len(got)-TruncationMinMessages:]
	for _, m := range tail {
		for _, b := range m.Blocks {
			if b.Kind == BlockToolResult && strings.Contains(b.Text, "truncated") {
				t.Fatalf("tail tool-result should remain verbatim")
			}
		}
	}

	if estimateTotal(got) > TruncationThresholdTokens {
		t.Fatalf("truncated result still over budget: %d tokens", estimateTotal(got))
	}
}

func TestTruncateIsIdempotent(t *testing.T) {
	var messages []Message
	messages = append(messages, Message{Role: "user", Blocks: []Block{{Kind: BlockText, Text: "first turn"}}})
	for i := 0; i < 12; i++ {
		messages = append(messages, Message{
			Role:   "assistant",
			Blocks: []Block{{Kind: BlockToolResult, Text: bigText(60_000)}},
		})
	}

	once := Truncate(messages)
	twice := Truncate(once)

	if len(once) != len(twice) {
		t.Fatalf("truncation not idempotent: %d vs %d messages", len(once), len(twice))
	}
	for i := range once {
		if len(once[i].Blocks) != len(twice[i].Blocks) {
			t.Fatalf("truncation not idempotent at message %d", i)
		}
		for j := range once[i].Blocks {
			if once[i].Blocks[j].Text != twice[i].Blocks[j].Text {
				t.Fatalf("truncation not idempotent at block %d,%d", i, j)
			}
		}
	}
}

func TestTruncateToolResultPlaceholder(t *testing.T) {
	m := Message{Role: "assistant", Blocks: []Block{{Kind: BlockToolResult, Text: bigText(600)}}}
	out := truncateToolResults(m)
	if !strings.Contains(out.Blocks[0].Text, "[result truncated — 600 chars]") {
		t.Fatalf("unexpected placeholder: %q", out.Blocks[0].Text)
	}
}

func TestOverBudgetAfterTruncateWithOversizedTail(t *testing.T) {
	var messages []Message
	messages = append(messages, Message{Role: "user", Blocks: []Block{{Kind: BlockText, Text: "first turn"}}})
	for i := 0; i < 10; i++ {
		messages = append(messages, Message{
			Role:   "assistant",
			Blocks: []Block{{Kind: BlockText, Text: bigText(200_000)}},
		})
	}

	got := Truncate(messages)
	if !OverBudget(got) {
		t.Fatalf("expected an oversized protected tail to stay over budget")
	}

	small := []Message{{Role: "user", Blocks: []Block{{Kind: BlockText, Text: "hi"}}}}
	if OverBudget(small) {
		t.Fatalf("small conversation must not report over budget")
	}
}

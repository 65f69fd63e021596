// Package chat implements the coordinator's streaming Messages-API client:
// a primary Anthropic backend and an Anthropic-on-Bedrock alternate backend
// sharing one request/response shape, plus the server-sent-event
// accumulator that turns either stream into a single assembled assistant
// message and usage counters.
package chat

import (
	"encoding/json"
	"strings"
)

// Message is one turn of conversation sent to or received from the model.
type Message struct {
	Role    string  `json:"role"`
	Content []Block `json:"content"`
}

// BlockType enumerates the content block shapes this system exchanges with
// the model.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Block is one content block within a Message.
type Block struct {
	Type      BlockType       `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// ToolDef is a tool definition sent alongside a request.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Request is a single completion request.
type Request struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolDef
	MaxTokens int

	// ThinkingBudget enables the model's extended-reasoning mode with the
	// given token budget when > 0. Only AnthropicClient sends it;
	// BedrockClient ignores it.
	ThinkingBudget int
}

// Usage is token accounting for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ToolCall is one fully-assembled tool_use block.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Chunk is one unit of a streamed completion. Exactly one of its fields (or
// the zero-value boundary flags) is meaningful per chunk, mirroring the
// typed server-sent-event stream it was derived from.
type Chunk struct {
	ThinkingStart bool
	ThinkingEnd   bool
	Thinking      string
	Text          string
	ToolCall      *ToolCall
	Done          bool
	Usage         Usage
	StopReason    string
	Err           error
}

// Client streams one completion request as a channel of Chunks, which
// Accumulate assembles into the final message plus usage. Implementations
// check the given abort flag while a stream is open: BedrockClient polls it
// every abortPollInterval (50ms); AnthropicClient checks it before each
// request attempt and before handling each stream event, so it does not cut
// short a stream that has stopped delivering events.
type Client interface {
	Name() string
	Models() []ModelInfo
	Stream(req Request, abort func() bool) (<-chan *Chunk, error)
}

// ModelInfo describes one model a Client can serve.
type ModelInfo struct {
	ID          string
	DisplayName string
}

// Accumulate drains a chunk stream into one assembled Message, its Usage,
// and the stream's final stop reason. It is the single place that
// understands how text/thinking/tool_use blocks are built up across many
// chunks, used identically by both backends since they emit the same Chunk
// shape.
func Accumulate(chunks <-chan *Chunk) (Message, Usage, string, error) {
	msg := Message{Role: "assistant"}

	var textBuilder, thinkingBuilder strings.Builder
	var currentTool *ToolCall
	var usage Usage
	var stopReason string
	inThinking := false

	flushText := func() {
		if textBuilder.Len() > 0 {
			msg.Content = append(msg.Content, Block{Type: BlockText, Text: textBuilder.String()})
			textBuilder.Reset()
		}
	}
	flushThinking := func() {
		if thinkingBuilder.Len() > 0 {
			msg.Content = append(msg.Content, Block{Type: BlockThinking, Thinking: thinkingBuilder.String()})
			thinkingBuilder.Reset()
		}
	}

	for c := range chunks {
		switch {
		case c.Err != nil:
			return msg, usage, stopReason, c.Err
		case c.ThinkingStart:
			flushText()
			inThinking = true
		case c.ThinkingEnd:
			flushThinking()
			inThinking = false
		case c.Thinking != "":
			thinkingBuilder.WriteString(c.Thinking)
		case c.Text != "":
			if inThinking {
				flushThinking()
				inThinking = false
			}
			textBuilder.WriteString(c.Text)
		case c.ToolCall != nil:
			flushText()
			currentTool = c.ToolCall
			msg.Content = append(msg.Content, Block{
				Type:      BlockToolUse,
				ToolUseID: currentTool.ID,
				ToolName:  currentTool.Name,
				Input:     currentTool.Input,
			})
		case c.Done:
			flushText()
			flushThinking()
			usage = c.Usage
			stopReason = c.StopReason
		}
	}

	return msg, usage, stopReason, nil
}

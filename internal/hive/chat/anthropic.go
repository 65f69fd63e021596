package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// maxEmptyStreamEvents guards against a malformed stream that never
// produces a message_stop: after this many consecutive events that carry no
// meaningful delta, the stream is treated as an error.
const maxEmptyStreamEvents = 300

// abortPollInterval is how often BedrockClient's stream loop checks the
// caller's abort flag while a stream is open.
const abortPollInterval = 50 * time.Millisecond

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string

	// OnRetry, when set, is called once per retried request with the
	// reason (an HTTP status code, or "connection").
	OnRetry func(reason string)
}

// AnthropicClient streams completions through Anthropic's Messages API
// directly.
type AnthropicClient struct {
	client       anthropic.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
	onRetry      func(reason string)
}

// NewAnthropicClient builds a client, applying sensible defaults for any
// unset optional field.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
		onRetry:      cfg.OnRetry,
	}, nil
}

func (c *AnthropicClient) Name() string { return "anthropic" }

func (c *AnthropicClient) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "claude-opus-4-20250514", DisplayName: "Claude Opus 4"},
		{ID: "claude-sonnet-4-20250514", DisplayName: "Claude Sonnet 4"},
		{ID: "claude-haiku-4-20250514", DisplayName: "Claude Haiku 4"},
	}
}

// Stream sends one completion request and streams back Chunks. Retries only
// happen at this layer, before the first byte of a response is read — once
// a stream starts delivering events it is never restarted mid-flight.
func (c *AnthropicClient) Stream(req Request, abort func() bool) (<-chan *Chunk, error) {
	chunks := make(chan *Chunk, 16)

	go func() {
		defer close(chunks)

		model := req.Model
		if model == "" {
			model = c.defaultModel
		}

		params, err := c.buildParams(req, model)
		if err != nil {
			chunks <- &Chunk{Err: err}
			return
		}

		var lastErr error
		for attempt := 0; attempt <= c.maxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Duration(float64(c.retryDelay) * math.Pow(2, float64(attempt-1)))
				select {
				case <-time.After(backoff):
				}
			}
			if abort != nil && abort() {
				chunks <- &Chunk{Err: errors.New("aborted")}
				return
			}

			stream := c.client.Messages.NewStreaming(context.Background(), params)
			lastErr = nil
			started := c.processStream(stream, chunks, model, abort)
			if err := stream.Err(); err != nil && !started && isRetryable(err) {
				lastErr = err
				// Count only retries that will actually re-issue the
				// request, not the final attempt's failure.
				if c.onRetry != nil && attempt < c.maxRetries {
					c.onRetry(retryReason(err))
				}
				continue
			}
			return
		}
		if lastErr != nil {
			chunks <- &Chunk{Err: fmt.Errorf("anthropic: %s: %w", model, lastErr)}
		}
	}()

	return chunks, nil
}

func (c *AnthropicClient) buildParams(req Request, model string) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	tools, err := convertTools(req.Tools)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
		Tools:     tools,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.ThinkingBudget > 0 {
		budget := int64(req.ThinkingBudget)
		if budget < 1024 {
			budget = 1024
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}
	return params, nil
}

func convertMessages(messages []Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion
		for _, b := range msg.Content {
			switch b.Type {
			case BlockText:
				content = append(content, anthropic.NewTextBlock(b.Text))
			case BlockToolResult:
				content = append(content, anthropic.NewToolResultBlock(b.ToolUseID, b.Text, b.IsError))
			case BlockToolUse:
				var input map[string]any
				if err := json.Unmarshal(b.Input, &input); err != nil {
					return nil, fmt.Errorf("invalid tool_use input: %w", err)
				}
				content = append(content, anthropic.NewToolUseBlock(b.ToolUseID, input, b.ToolName))
			}
		}
		if msg.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertTools(defs []ToolDef) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, d := range defs {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(d.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("invalid schema for tool %s: %w", d.Name, err)
		}
		result = append(result, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: schema,
			},
		})
	}
	return result, nil
}

// processStream converts Anthropic's typed SSE events into Chunks,
// polling abort between reads and bailing out after too many consecutive
// events produce no observable output (a malformed-stream guard). It
// reports whether the stream delivered any event; a retryable error that
// arrives before the first event is not sent on chunks but left to Stream
// to retry.
func (c *AnthropicClient) processStream(stream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
}, chunks chan<- *Chunk, model string, abort func() bool) (started bool) {
	var currentTool *ToolCall
	var toolInput strings.Builder
	emptyEvents := 0
	inThinking := false
	var inputTokens, outputTokens int
	var stopReason string

	for stream.Next() {
		started = true
		if abort != nil && abort() {
			chunks <- &Chunk{Err: errors.New("aborted")}
			return
		}

		event := stream.Current()
		processed := false

		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}
			processed = true

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			switch block.Type {
			case "thinking":
				inThinking = true
				chunks <- &Chunk{ThinkingStart: true}
				processed = true
			case "tool_use":
				toolUse := block.AsToolUse()
				currentTool = &ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				toolInput.Reset()
				processed = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					chunks <- &Chunk{Text: delta.Text}
					processed = true
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					chunks <- &Chunk{Thinking: delta.Thinking}
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					toolInput.WriteString(delta.PartialJSON)
					processed = true
				}
			}

		case "content_block_stop":
			if inThinking {
				chunks <- &Chunk{ThinkingEnd: true}
				inThinking = false
				processed = true
			} else if currentTool != nil {
				currentTool.Input = json.RawMessage(toolInput.String())
				chunks <- &Chunk{ToolCall: currentTool}
				currentTool = nil
				processed = true
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}
			if md.Delta.StopReason != "" {
				stopReason = string(md.Delta.StopReason)
			}
			processed = true

		case "message_stop":
			chunks <- &Chunk{Done: true, Usage: Usage{InputTokens: inputTokens, OutputTokens: outputTokens}, StopReason: stopReason}
			return

		case "error":
			chunks <- &Chunk{Err: fmt.Errorf("anthropic: %s: stream error", model)}
			return
		}

		if processed {
			emptyEvents = 0
		} else {
			emptyEvents++
			if emptyEvents >= maxEmptyStreamEvents {
				chunks <- &Chunk{Err: fmt.Errorf("anthropic: %s: stream appears malformed after %d empty events", model, emptyEvents)}
				return
			}
		}
	}

	if err := stream.Err(); err != nil && (started || !isRetryable(err)) {
		chunks <- &Chunk{Err: fmt.Errorf("anthropic: %s: %w", model, err)}
	}
	return started
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504, 529:
			return true
		}
	}
	return false
}

// retryReason labels a retryable error for the retry counter: the HTTP
// status code when one is known, "connection" otherwise.
func retryReason(err error) string {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return strconv.Itoa(apiErr.StatusCode)
	}
	return "connection"
}

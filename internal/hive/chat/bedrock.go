package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockConfig configures a BedrockClient.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	MaxRetries      int
	RetryDelay      time.Duration

	// OnRetry, when set, is called once per retried request with the
	// matched throttling/status token as the reason.
	OnRetry func(reason string)
}

// BedrockClient streams completions through Anthropic models hosted on AWS
// Bedrock's Converse API, sharing the same Request/Chunk shape as
// AnthropicClient so the rest of the system is indifferent to which backend
// a worker was configured to use.
type BedrockClient struct {
	client       *bedrockruntime.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
	onRetry      func(reason string)
}

// NewBedrockClient builds a client from AWS credentials (explicit, or the
// default chain — environment, shared config, IAM role — when none are
// given).
func NewBedrockClient(cfg BedrockConfig) (*BedrockClient, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "us.anthropic.claude-sonnet-4-20250514-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(context.Background(), config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	return &BedrockClient{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		onRetry:      cfg.OnRetry,
	}, nil
}

func (c *BedrockClient) Name() string { return "bedrock" }

func (c *BedrockClient) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "us.anthropic.claude-opus-4-20250514-v1:0", DisplayName: "Claude Opus 4 (Bedrock)"},
		{ID: "us.anthropic.claude-sonnet-4-20250514-v1:0", DisplayName: "Claude Sonnet 4 (Bedrock)"},
		{ID: "us.anthropic.claude-haiku-4-20250514-v1:0", DisplayName: "Claude Haiku 4 (Bedrock)"},
	}
}

// Stream sends one completion request via Bedrock's ConverseStream API.
// Retries happen only before the stream is opened, matching AnthropicClient.
func (c *BedrockClient) Stream(req Request, abort func() bool) (<-chan *Chunk, error) {
	chunks := make(chan *Chunk, 16)

	go func() {
		defer close(chunks)

		model := req.Model
		if model == "" {
			model = c.defaultModel
		}

		messages, err := bedrockConvertMessages(req.Messages)
		if err != nil {
			chunks <- &Chunk{Err: err}
			return
		}

		converseReq := &bedrockruntime.ConverseStreamInput{
			ModelId:  aws.String(model),
			Messages: messages,
		}
		if req.System != "" {
			converseReq.System = []types.SystemContentBlock{
				&types.SystemContentBlockMemberText{Value: req.System},
			}
		}
		if req.MaxTokens > 0 {
			maxTokens := min(req.MaxTokens, math.MaxInt32)
			converseReq.InferenceConfig = &types.InferenceConfiguration{
				MaxTokens: aws.Int32(int32(maxTokens)),
			}
		}
		if len(req.Tools) > 0 {
			toolConfig, err := bedrockConvertTools(req.Tools)
			if err != nil {
				chunks <- &Chunk{Err: err}
				return
			}
			converseReq.ToolConfig = toolConfig
		}

		var lastErr error
		for attempt := 0; attempt <= c.maxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Duration(float64(c.retryDelay) * math.Pow(2, float64(attempt-1)))
				time.Sleep(backoff)
			}
			if abort != nil && abort() {
				chunks <- &Chunk{Err: errors.New("aborted")}
				return
			}

			stream, err := c.client.ConverseStream(context.Background(), converseReq)
			if err != nil {
				lastErr = err
				if isBedrockRetryable(err) {
					if c.onRetry != nil && attempt < c.maxRetries {
						c.onRetry(bedrockRetryReason(err))
					}
					continue
				}
				chunks <- &Chunk{Err: fmt.Errorf("bedrock: %s: %w", model, err)}
				return
			}

			c.processStream(stream, chunks, model, abort)
			return
		}
		if lastErr != nil {
			chunks <- &Chunk{Err: fmt.Errorf("bedrock: %s: %w", model, lastErr)}
		}
	}()

	return chunks, nil
}

func (c *BedrockClient) processStream(stream *bedrockruntime.ConverseStreamOutput, chunks chan<- *Chunk, model string, abort func() bool) {
	eventStream := stream.GetStream()
	defer eventStream.Close()

	var currentTool *ToolCall
	var toolInput strings.Builder
	var inputTokens, outputTokens int
	var stopReason string

	eventChan := eventStream.Events()
	pollTicker := time.NewTicker(abortPollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-pollTicker.C:
			if abort != nil && abort() {
				chunks <- &Chunk{Err: errors.New("aborted")}
				return
			}
		case event, ok := <-eventChan:
			if !ok {
				if err := eventStream.Err(); err != nil {
					chunks <- &Chunk{Err: fmt.Errorf("bedrock: %s: %w", model, err)}
				} else {
					chunks <- &Chunk{Done: true, Usage: Usage{InputTokens: inputTokens, OutputTokens: outputTokens}, StopReason: stopReason}
				}
				return
			}

			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if toolUse, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					currentTool = &ToolCall{ID: aws.ToString(toolUse.Value.ToolUseId), Name: aws.ToString(toolUse.Value.Name)}
					toolInput.Reset()
				}

			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						chunks <- &Chunk{Text: delta.Value}
					}
				case *types.ContentBlockDeltaMemberReasoningContent:
					if text, ok := delta.Value.(*types.ReasoningContentBlockDeltaMemberText); ok && text.Value != "" {
						chunks <- &Chunk{Thinking: text.Value}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						toolInput.WriteString(*delta.Value.Input)
					}
				}

			case *types.ConverseStreamOutputMemberContentBlockStop:
				if currentTool != nil {
					currentTool.Input = json.RawMessage(toolInput.String())
					chunks <- &Chunk{ToolCall: currentTool}
					currentTool = nil
				}

			case *types.ConverseStreamOutputMemberMetadata:
				if ev.Value.Usage != nil {
					inputTokens = int(aws.ToInt32(ev.Value.Usage.InputTokens))
					outputTokens = int(aws.ToInt32(ev.Value.Usage.OutputTokens))
				}

			case *types.ConverseStreamOutputMemberMessageStop:
				// Usage arrives in the trailing metadata event, after
				// message stop; keep draining until the stream closes.
				stopReason = bedrockStopReason(ev.Value.StopReason)
			}
		}
	}
}

func bedrockConvertMessages(messages []Message) ([]types.Message, error) {
	result := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		var content []types.ContentBlock
		for _, b := range msg.Content {
			switch b.Type {
			case BlockText:
				content = append(content, &types.ContentBlockMemberText{Value: b.Text})
			case BlockToolResult:
				content = append(content, &types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(b.ToolUseID),
						Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: b.Text}},
						Status:    bedrockToolResultStatus(b.IsError),
					},
				})
			case BlockToolUse:
				var input any
				if err := json.Unmarshal(b.Input, &input); err != nil {
					return nil, fmt.Errorf("invalid tool_use input: %w", err)
				}
				content = append(content, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(b.ToolUseID),
						Name:      aws.String(b.ToolName),
						Input:     document.NewLazyDocument(input),
					},
				})
			}
		}

		role := types.ConversationRoleUser
		if msg.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		if len(content) > 0 {
			result = append(result, types.Message{Role: role, Content: content})
		}
	}
	return result, nil
}

// bedrockStopReason maps Bedrock's stop-reason vocabulary onto the
// Messages-API one the rest of the system speaks.
func bedrockStopReason(r types.StopReason) string {
	switch r {
	case types.StopReasonMaxTokens:
		return "max_tokens"
	case types.StopReasonToolUse:
		return "tool_use"
	case types.StopReasonEndTurn:
		return "end_turn"
	default:
		return string(r)
	}
}

func bedrockToolResultStatus(isError bool) types.ToolResultStatus {
	if isError {
		return types.ToolResultStatusError
	}
	return types.ToolResultStatusSuccess
}

func bedrockConvertTools(defs []ToolDef) (*types.ToolConfiguration, error) {
	tools := make([]types.Tool, 0, len(defs))
	for _, d := range defs {
		var schema any
		if err := json.Unmarshal(d.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("invalid schema for tool %s: %w", d.Name, err)
		}
		tools = append(tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(d.Name),
				Description: aws.String(d.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: tools}, nil
}

func isBedrockRetryable(err error) bool {
	return err != nil && bedrockRetryReason(err) != ""
}

// bedrockRetryReason returns the retryable token err matched, or "" when
// the error is not retryable. Bedrock surfaces throttling as typed
// exception names rather than bare status codes, so matching is textual.
func bedrockRetryReason(err error) string {
	msg := strings.ToLower(err.Error())
	retryable := []string{
		"throttlingexception", "toomanyrequestsexception", "serviceunavailableexception",
		"rate limit", "429", "500", "502", "503", "504", "529", "timeout", "deadline exceeded",
	}
	for _, s := range retryable {
		if strings.Contains(msg, s) {
			return s
		}
	}
	return ""
}

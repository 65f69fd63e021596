// Package worker implements the agentic loop that drives one task to
// completion: assemble a prompt, call the chat client, dispatch any
// tool-use blocks, and detect a terminal signal — repeating until the
// model signals completion or blockage, or a turn/token budget is
// exhausted.
package worker

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mbourmaud/hive/internal/hive/chat"
	"github.com/mbourmaud/hive/internal/hive/compress"
	"github.com/mbourmaud/hive/internal/hive/contextwin"
	"github.com/mbourmaud/hive/internal/hive/events"
	"github.com/mbourmaud/hive/internal/hive/metrics"
	"github.com/mbourmaud/hive/internal/hive/notes"
	"github.com/mbourmaud/hive/internal/hive/plan"
	"github.com/mbourmaud/hive/internal/hive/tools"
	"github.com/mbourmaud/hive/internal/hive/tooltier"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxTurns is the turn budget applied when Config.MaxTurns is unset.
const DefaultMaxTurns = 25

// DefaultMaxTokens is the completion token cap applied when
// Config.MaxTokens is unset.
const DefaultMaxTokens = 8192

var tracer = otel.Tracer("hive/worker")

// Status is a worker's terminal outcome kind.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusBlocked   Status = "blocked"
	StatusFailed    Status = "failed"
)

// Outcome is what one call to Run produces.
type Outcome struct {
	Status  Status
	Summary string // populated when Status == StatusCompleted
	Reason  string // populated when Status == StatusBlocked
	Err     error  // populated when Status == StatusFailed
}

// Config configures one Run call.
type Config struct {
	Workspace        string
	DefaultModel     string
	MaxTurns         int
	MaxTokens        int
	ThinkingBudget   int
	RolePrompt       string
	KnownServerNames []string
}

// Deps are the collaborators a worker needs, all supplied by the
// scheduler.
type Deps struct {
	Chat           chat.Client
	Tools          *tools.Registry
	Notes          *notes.Store
	Events         *events.Emitter
	Metrics        *metrics.Metrics
	ProjectContext *ContextCache
	Abort          *events.AbortFlag
}

// Run drives task to a terminal Outcome.
func Run(ctx context.Context, task plan.Task, deps Deps, cfg Config) Outcome {
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	ctx, span := tracer.Start(ctx, "worker.run", trace.WithAttributes(
		attribute.Int("task.number", task.Number),
		attribute.String("task.title", task.Title),
	))
	defer span.End()

	depNotes, err := deps.Notes.ForDependencies(task.DependsOn)
	if err != nil {
		return fail(span, err)
	}
	pc := deps.ProjectContext.Get(ctx, cfg.Workspace)

	system := BuildSystemPrompt(cfg.RolePrompt)
	initial := BuildInitialMessage(task, depNotes, pc)
	conv := []chat.Message{{Role: "user", Content: []chat.Block{{Type: chat.BlockText, Text: initial}}}}

	toolTierActive := tooltier.ShouldActivate(task.Body, cfg.KnownServerNames)
	model := resolveModel(deps.Chat, task.Model, cfg.DefaultModel)

	for turn := 0; turn < maxTurns; turn++ {
		if deps.Abort.IsSet() {
			return fail(span, ErrAborted)
		}

		var overBudget bool
		conv, overBudget = truncateConversation(conv)
		if overBudget {
			return fail(span, ErrContextBudget)
		}
		toolDefs := toChatToolDefs(deps.Tools.Definitions(toolTierActive))

		req := chat.Request{
			Model:          model,
			System:         system,
			Messages:       conv,
			Tools:          toolDefs,
			MaxTokens:      maxTokens,
			ThinkingBudget: cfg.ThinkingBudget,
		}

		turnStart := time.Now()
		chunks, err := deps.Chat.Stream(req, deps.Abort.IsSet)
		if err != nil {
			return fail(span, err)
		}
		assistantMsg, usage, stopReason, err := chat.Accumulate(chunks)
		if deps.Metrics != nil {
			deps.Metrics.ObserveChatRequest(deps.Chat.Name(), model, time.Since(turnStart), usage.InputTokens, usage.OutputTokens)
		}
		if deps.Events != nil {
			_ = deps.Events.Cost(taskID(task), usage.InputTokens, usage.OutputTokens)
		}
		if err != nil {
			if deps.Abort.IsSet() {
				return fail(span, ErrAborted)
			}
			return fail(span, err)
		}
		if stopReason == "max_tokens" {
			return fail(span, ErrMaxTokens)
		}

		conv = append(conv, assistantMsg)

		toolUses := collectToolUse(assistantMsg)
		if len(toolUses) > 0 {
			results := make([]chat.Block, 0, len(toolUses))
			for _, tu := range toolUses {
				toolStart := time.Now()
				result, execErr := deps.Tools.Execute(ctx, tu.ToolName, tu.Input)
				if execErr != nil {
					// Tool failures are never fatal: the model sees them as
					// an is_error result and decides what to do next.
					result = &tools.Result{Content: execErr.Error(), IsError: true}
				}
				if tu.ToolName == tools.ToolSearchName {
					toolTierActive = true
				}
				if deps.Metrics != nil {
					deps.Metrics.ObserveTool(tu.ToolName, result.IsError, time.Since(toolStart))
				}
				if deps.Events != nil {
					_ = deps.Events.ToolDone(taskID(task), tu.ToolName, time.Since(toolStart), result.IsError)
				}
				results = append(results, chat.Block{
					Type:      chat.BlockToolResult,
					ToolUseID: tu.ToolUseID,
					Text:      compress.Output(result.Content, result.IsError),
					IsError:   result.IsError,
				})
			}
			conv = append(conv, chat.Message{Role: "user", Content: results})
			continue
		}

		text := extractText(assistantMsg)
		status, detail, matched := detectSignal(text)
		if !matched {
			// The model produced no tool-use and no terminal literal.
			// Treated as an implicit completion rather than another turn;
			// re-examine before a stricter mode is added.
			return finishCompleted(ctx, task, deps, cfg.Workspace, trimSummary(text))
		}
		if status == StatusCompleted {
			return finishCompleted(ctx, task, deps, cfg.Workspace, detail)
		}
		return Outcome{Status: StatusBlocked, Reason: detail}
	}

	return fail(span, ErrMaxTurns)
}

// fail tags the worker's span with the failure's taxonomy Kind before
// returning, so traces carry the classification alongside the error.
func fail(span trace.Span, err error) Outcome {
	span.SetAttributes(attribute.String("error.kind", string(Classify(err))))
	return Outcome{Status: StatusFailed, Err: err}
}

// finishCompleted records the worker note for a Completed task and
// returns the corresponding Outcome. files_changed comes from a `git diff
// --name-only HEAD` run in the worktree, matching what a human reviewer
// would see as "what this task touched".
func finishCompleted(ctx context.Context, task plan.Task, deps Deps, workspace, summary string) Outcome {
	files := gitDiffNameOnly(ctx, workspace)
	if err := deps.Notes.Append(notes.Note{
		TaskNumber:   task.Number,
		TaskTitle:    task.Title,
		FilesChanged: files,
		Summary:      summary,
	}); err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}
	return Outcome{Status: StatusCompleted, Summary: summary}
}

func resolveModel(client chat.Client, modelField, defaultModel string) string {
	if client != nil && client.Name() == "bedrock" {
		return chat.ResolveBedrockModel(modelField, defaultModel)
	}
	return chat.ResolveModel(modelField, defaultModel)
}

func taskID(task plan.Task) string {
	return strconv.Itoa(task.Number)
}

func toChatToolDefs(defs []tools.Definition) []chat.ToolDef {
	out := make([]chat.ToolDef, len(defs))
	for i, d := range defs {
		out[i] = chat.ToolDef{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema}
	}
	return out
}

func collectToolUse(msg chat.Message) []chat.Block {
	var out []chat.Block
	for _, b := range msg.Content {
		if b.Type == chat.BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

func extractText(msg chat.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == chat.BlockText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// signalComplete and signalBlocked are the two literal sentinel strings a
// worker's assistant text can contain to transition to a terminal state.
const (
	signalComplete = "TASK_COMPLETE"
	signalBlocked  = "TASK_BLOCKED"
)

// detectSignal scans text for the two terminal literals. If both appear,
// whichever occurs later in the text wins (a reverse scan), matching the
// boundary behaviour of a model that corrects itself mid-message.
func detectSignal(text string) (status Status, detail string, matched bool) {
	completeIdx := strings.LastIndex(text, signalComplete)
	blockedIdx := strings.LastIndex(text, signalBlocked)

	if completeIdx < 0 && blockedIdx < 0 {
		return "", "", false
	}
	if completeIdx >= blockedIdx {
		return StatusCompleted, trimSummary(strings.TrimSpace(text[:completeIdx])), true
	}
	after := strings.TrimSpace(text[blockedIdx+len(signalBlocked):])
	return StatusBlocked, after, true
}

func trimSummary(s string) string {
	if len(s) > notes.MaxSummaryLen {
		return s[len(s)-notes.MaxSummaryLen:]
	}
	return s
}

func toContextwinMessages(msgs []chat.Message) []contextwin.Message {
	out := make([]contextwin.Message, len(msgs))
	for i, m := range msgs {
		blocks := make([]contextwin.Block, len(m.Content))
		for j, b := range m.Content {
			blocks[j] = contextwin.Block{
				Kind:      contextwin.BlockKind(b.Type),
				Text:      blockText(b),
				ToolUseID: b.ToolUseID,
				ToolName:  b.ToolName,
				Input:     b.Input,
				IsError:   b.IsError,
			}
		}
		out[i] = contextwin.Message{Role: m.Role, Blocks: blocks}
	}
	return out
}

func fromContextwinMessages(msgs []contextwin.Message) []chat.Message {
	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		blocks := make([]chat.Block, len(m.Blocks))
		for j, b := range m.Blocks {
			blk := chat.Block{
				Type:      chat.BlockType(b.Kind),
				ToolUseID: b.ToolUseID,
				ToolName:  b.ToolName,
				Input:     b.Input,
				IsError:   b.IsError,
			}
			if b.Kind == contextwin.BlockThinking {
				blk.Thinking = b.Text
			} else {
				blk.Text = b.Text
			}
			blocks[j] = blk
		}
		out[i] = chat.Message{Role: m.Role, Content: blocks}
	}
	return out
}

func blockText(b chat.Block) string {
	if b.Type == chat.BlockThinking {
		return b.Thinking
	}
	return b.Text
}

// truncateConversation applies the context manager's truncation policy
// via a lossless round trip through contextwin's own Message/Block
// types, so the budget/idempotence algorithm has exactly one implementation
// in the whole repository. The second return is true when the conversation
// is still over budget after every permitted cut — going further would
// drop the protected tail, which is a budget failure, not a truncation.
func truncateConversation(msgs []chat.Message) ([]chat.Message, bool) {
	cw := contextwin.Truncate(toContextwinMessages(msgs))
	return fromContextwinMessages(cw), contextwin.OverBudget(cw)
}

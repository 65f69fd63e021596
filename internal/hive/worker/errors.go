package worker

import "errors"

// Sentinel errors identifying the non-tool failure kinds. Tool
// errors never reach this layer as Go errors — the registry converts them
// to an is_error tool-result instead.
var (
	// ErrAborted is returned when the worker observes the abort flag.
	ErrAborted = errors.New("aborted")

	// ErrMaxTurns is returned when a task exceeds its turn budget without
	// reaching a terminal signal.
	ErrMaxTurns = errors.New("max turns")

	// ErrMaxTokens is returned when a completion stops on its max-tokens
	// cap, whatever the truncated message contains.
	ErrMaxTokens = errors.New("max tokens")

	// ErrContextBudget is returned when truncation cannot bring the
	// conversation under budget without dropping the retained tail.
	ErrContextBudget = errors.New("context budget exceeded")
)

// Kind classifies a worker failure for the trace span it is recorded on.
// Protocol errors are dropped inside the stream and transient API errors
// are retried inside the chat client; everything that reaches this point
// and is not an abort or a budget exhaustion, including a transient error
// that outlasted its retries, is classified as a hard API error.
type Kind string

const (
	KindHardAPI Kind = "hard_api"
	KindBudget  Kind = "budget"
	KindAbort   Kind = "abort"
)

// Classify returns the Kind for a non-nil worker failure.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrAborted):
		return KindAbort
	case errors.Is(err, ErrMaxTurns), errors.Is(err, ErrMaxTokens), errors.Is(err, ErrContextBudget):
		return KindBudget
	default:
		return KindHardAPI
	}
}

// Package plan parses a structured engineering plan document into an
// in-memory task list.
//
// A plan is a markdown document with a "## Tasks" section. Each task is a
// "### <number>. <title>" subheading followed by optional "- key: value"
// metadata lines and free-form body text. A YAML form with the same task
// fields is also accepted for callers that would rather emit structured
// data than markdown.
package plan

// TaskType classifies what a task does.
type TaskType string

const (
	// TaskSetup runs once with no dependency tracking beyond declared deps.
	TaskSetup TaskType = "setup"
	// TaskWork is schedulable; only Work tasks are admitted by the scheduler.
	TaskWork TaskType = "work"
	// TaskPR marks the final pull-request task of a plan.
	TaskPR TaskType = "pr"
)

// Task is one node of the engineering plan's task DAG.
type Task struct {
	Number     int      `json:"number" yaml:"number"`
	Title      string   `json:"title" yaml:"title"`
	Body       string   `json:"body" yaml:"body"`
	Type       TaskType `json:"type" yaml:"type"`
	Model      string   `json:"model,omitempty" yaml:"model,omitempty"`
	Parallel   bool     `json:"parallel" yaml:"parallel"`
	Files      []string `json:"files,omitempty" yaml:"files,omitempty"`
	DependsOn  []int    `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

package worker

import (
	"fmt"
	"strings"

	"github.com/mbourmaud/hive/internal/hive/notes"
	"github.com/mbourmaud/hive/internal/hive/plan"
)

// operatorSystemPrompt is the fixed instruction every worker receives,
// explaining tool usage, brevity, and the two terminal signals. It is
// merged with the caller-supplied per-task role prompt.
const operatorSystemPrompt = `You are an autonomous engineering agent executing one task of a larger plan
against a real repository. Use the provided tools to read, write, and edit
files, run shell commands, and search the codebase; do not ask the user for
permission or confirmation, since no user is present to answer.

Be direct and economical — prefer making the change over describing it at
length. Only narrate what is non-obvious.

When the task is fully done, end your final message with the literal text
TASK_COMPLETE followed by a short summary of what changed.

If the task cannot be completed — a missing credential, an ambiguous
requirement, a conflicting instruction — end your message with the literal
text TASK_BLOCKED followed by a short, specific reason.`

// BuildSystemPrompt merges the fixed operator instruction with a per-task
// role prompt, if any.
func BuildSystemPrompt(rolePrompt string) string {
	rolePrompt = strings.TrimSpace(rolePrompt)
	if rolePrompt == "" {
		return operatorSystemPrompt
	}
	return operatorSystemPrompt + "\n\n" + rolePrompt
}

// BuildInitialMessage assembles the first user turn from the task body, its
// file hints, its dependencies' worker notes, and a fresh project-context
// block.
func BuildInitialMessage(task plan.Task, depNotes []notes.Note, pc *ProjectContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Task %d: %s\n\n", task.Number, task.Title)
	b.WriteString(task.Body)
	b.WriteString("\n")

	if len(task.Files) > 0 {
		b.WriteString("\n## Relevant files\n\n")
		for _, f := range task.Files {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if frag := notes.FormatForPrompt(depNotes); frag != "" {
		b.WriteString("\n")
		b.WriteString(frag)
	}

	if pc != nil {
		b.WriteString("\n## Repository state\n\n")
		fmt.Fprintf(&b, "Branch: %s\n", orNone(pc.Branch))
		if len(pc.DirtyFiles) > 0 {
			fmt.Fprintf(&b, "Dirty files: %s\n", strings.Join(pc.DirtyFiles, ", "))
		} else {
			b.WriteString("Dirty files: none\n")
		}
		if pc.DiffStat != "" {
			fmt.Fprintf(&b, "Diff stat:\n%s\n", pc.DiffStat)
		}
		if len(pc.RecentCommits) > 0 {
			b.WriteString("Recent commits:\n")
			for _, c := range pc.RecentCommits {
				fmt.Fprintf(&b, "- %s\n", c)
			}
		}
	}

	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(unknown)"
	}
	return s
}

package worker

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// projectContextTTL is how long a fetched ProjectContext is reused before
// the next worker to ask for one triggers a refetch.
const projectContextTTL = 30 * time.Second

// ProjectContext is the repo-state snapshot folded into every task's
// opening prompt: current branch, dirty files, a diff stat, and recent
// history.
type ProjectContext struct {
	Branch        string
	DirtyFiles    []string
	DiffStat      string
	RecentCommits []string
}

// ContextCache is the single process-wide 30-second cache for
// ProjectContext. The exclusive guard covers only the cached cell —
// the git commands that refresh it run outside the lock so one worker's
// fetch never blocks another's read of the stale-but-still-valid value.
type ContextCache struct {
	mu        sync.Mutex
	workspace string
	value     *ProjectContext
	fetchedAt time.Time
}

// NewContextCache returns an empty cache.
func NewContextCache() *ContextCache { return &ContextCache{} }

// Get returns the cached ProjectContext for workspace, refetching if it is
// stale, for a different workspace, or has never been fetched.
func (c *ContextCache) Get(ctx context.Context, workspace string) *ProjectContext {
	c.mu.Lock()
	if c.value != nil && c.workspace == workspace && time.Since(c.fetchedAt) < projectContextTTL {
		v := c.value
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	fresh := fetchProjectContext(ctx, workspace)

	c.mu.Lock()
	c.value = fresh
	c.workspace = workspace
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return fresh
}

func fetchProjectContext(ctx context.Context, workspace string) *ProjectContext {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pc := &ProjectContext{}
	pc.Branch = strings.TrimSpace(gitOutput(runCtx, workspace, "rev-parse", "--abbrev-ref", "HEAD"))

	if status := gitOutput(runCtx, workspace, "status", "--porcelain"); status != "" {
		for _, line := range strings.Split(strings.TrimRight(status, "\n"), "\n") {
			if strings.TrimSpace(line) != "" {
				pc.DirtyFiles = append(pc.DirtyFiles, strings.TrimSpace(line))
			}
		}
	}

	pc.DiffStat = strings.TrimSpace(gitOutput(runCtx, workspace, "diff", "--stat", "HEAD"))

	if log := gitOutput(runCtx, workspace, "log", "-5", "--oneline"); log != "" {
		for _, line := range strings.Split(strings.TrimRight(log, "\n"), "\n") {
			if strings.TrimSpace(line) != "" {
				pc.RecentCommits = append(pc.RecentCommits, strings.TrimSpace(line))
			}
		}
	}

	return pc
}

// gitDiffNameOnly returns the repo-relative paths changed since HEAD in
// workspace, the source of a completed task's worker note.
func gitDiffNameOnly(ctx context.Context, workspace string) []string {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := gitOutput(runCtx, workspace, "diff", "--name-only", "HEAD")
	if strings.TrimSpace(out) == "" {
		return nil
	}
	var files []string
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			files = append(files, strings.TrimSpace(line))
		}
	}
	return files
}

func gitOutput(ctx context.Context, workspace string, args ...string) string {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workspace
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}

// Package scheduler implements the coordinator's deterministic scheduler:
// it maintains the task DAG, admits tasks to run under
// concurrency/model/file constraints, spawns one worker per admitted task,
// and applies abort policy — all state transitions flow through the event
// emitter and snapshot writer.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mbourmaud/hive/internal/hive/events"
	"github.com/mbourmaud/hive/internal/hive/metrics"
	"github.com/mbourmaud/hive/internal/hive/plan"
	"github.com/mbourmaud/hive/internal/hive/worker"
)

// TickInterval is the scheduler's idle poll cadence: at most this long
// passes between re-evaluations of admissibility, short-circuited whenever
// a worker completes.
const TickInterval = 100 * time.Millisecond

// Status is a scheduled task's current lifecycle state.
type Status string

const (
	Pending   Status = "Pending"
	Ready     Status = "Ready"
	Running   Status = "Running"
	Completed Status = "Completed"
	Blocked   Status = "Blocked"
	Failed    Status = "Failed"
)

func (s Status) terminal() bool {
	return s == Completed || s == Blocked || s == Failed
}

type taskState struct {
	task   plan.Task
	status Status
	owner  string
}

// Config holds the scheduler's operator-supplied knobs.
type Config struct {
	MaxConcurrency int
	MaxTurns       int
	ThinkingBudget int
	DefaultModel   string
	Workspace      string
	DroneDir       string

	// OnTransition, when set, is called once per task state transition
	// (the CLI uses it for its one-line-per-transition stderr output).
	OnTransition func(number int, status string)
}

// Scheduler owns the task set exclusively; workers only ever see an
// immutable copy of one task.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[int]*taskState
	order   []int // ascending task numbers, Work tasks only
	claimed map[string]int

	cfg     Config
	deps    worker.Deps
	emitter *events.Emitter
	metrics *metrics.Metrics
	abort   *events.AbortFlag
}

type workerResult struct {
	number  int
	outcome worker.Outcome
}

// New builds a scheduler over a plan's Work tasks, in ascending task-number
// order. Setup and Pr tasks are dropped: they are never scheduled and do
// not appear in the snapshot or the event log.
func New(tasks []plan.Task, cfg Config, deps worker.Deps, emitter *events.Emitter, m *metrics.Metrics) *Scheduler {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}

	s := &Scheduler{
		tasks:   make(map[int]*taskState),
		claimed: make(map[string]int),
		cfg:     cfg,
		deps:    deps,
		emitter: emitter,
		metrics: m,
		abort:   deps.Abort,
	}
	for _, t := range tasks {
		if t.Type != plan.TaskWork {
			continue
		}
		s.tasks[t.Number] = &taskState{task: t, status: Pending}
		s.order = append(s.order, t.Number)
	}
	sort.Ints(s.order)
	return s
}

// Resume overlays a previously written snapshot onto a freshly constructed
// Scheduler: Completed/Blocked/Failed tasks keep their terminal status and
// are never re-admitted; Pending/Ready tasks are re-admitted from scratch.
// Failed tasks stay Failed — the operator must manually revert one before
// a --resume will retry it.
func (s *Scheduler) Resume(snap events.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tv := range snap.Tasks {
		ts, ok := s.tasks[tv.Number]
		if !ok {
			continue
		}
		switch Status(tv.Status) {
		case Completed, Blocked, Failed:
			ts.status = Status(tv.Status)
		default:
			ts.status = Pending
		}
	}
}

// Run drives the scheduler's main loop until every Work task is terminal
// or the abort signal appears, then writes the completion marker.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.emitter.Start(s.cfg.DefaultModel); err != nil {
		return fmt.Errorf("emit start: %w", err)
	}
	s.mu.Lock()
	for _, num := range s.order {
		t := s.tasks[num].task
		if err := s.emitter.TaskCreate(fmt.Sprintf("%d. %s", t.Number, t.Title), t.Body); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("emit task create: %w", err)
		}
	}
	s.mu.Unlock()

	if err := s.writeSnapshot(); err != nil {
		return err
	}

	stopWatch := events.WatchAbort(s.cfg.DroneDir, s.abort)
	defer stopWatch()

	results := make(chan workerResult, len(s.order))
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		if events.IsAborted(s.cfg.DroneDir) {
			s.abort.Set()
		}

		s.refreshReadiness()
		if !s.abort.IsSet() {
			if s.admit(ctx, results) {
				if err := s.writeSnapshot(); err != nil {
					return err
				}
			}
		}

		if s.allTerminal() {
			break
		}
		// A cyclic dependency leaves its tasks Pending forever; the
		// only way such a run ends is abort once nothing is left running.
		if s.abort.IsSet() && s.noneRunning() {
			break
		}

		select {
		case res := <-results:
			s.applyResult(res)
			if err := s.writeSnapshot(); err != nil {
				return err
			}
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := s.emitter.Stop(); err != nil {
		return err
	}
	return events.WriteCompletionMarker(s.cfg.DroneDir)
}

// refreshReadiness promotes Pending tasks whose every dependency is
// Completed to Ready.
func (s *Scheduler) refreshReadiness() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, num := range s.order {
		ts := s.tasks[num]
		if ts.status != Pending {
			continue
		}
		if s.depsCompletedLocked(ts.task.DependsOn) {
			ts.status = Ready
			if s.metrics != nil {
				s.metrics.ObserveTransition("ready")
			}
		}
	}
}

func (s *Scheduler) depsCompletedLocked(deps []int) bool {
	for _, d := range deps {
		dep, ok := s.tasks[d]
		if !ok {
			// A dependency outside the Work-task set (a Setup/Pr hint, or
			// an unknown number) cannot block admission — only declared
			// Work dependencies gate readiness.
			continue
		}
		if dep.status != Completed {
			return false
		}
	}
	return true
}

// admit spawns a worker for every currently admissible Ready task, in
// ascending task-number order. It reports whether
// any task was admitted, so the caller knows a snapshot rewrite is due.
func (s *Scheduler) admit(ctx context.Context, results chan<- workerResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	running := 0
	for _, num := range s.order {
		if s.tasks[num].status == Running {
			running++
		}
	}

	admitted := false
	for _, num := range s.order {
		ts := s.tasks[num]
		if ts.status != Ready {
			continue
		}
		if running >= s.cfg.MaxConcurrency {
			break
		}
		// A non-parallel task starts only when nothing else is running at
		// all — not merely when no other non-parallel task is. The reverse
		// is deliberately looser: a parallel task may still be admitted
		// alongside an already-running non-parallel one.
		if !ts.task.Parallel && running > 0 {
			continue
		}
		if s.filesConflictLocked(ts.task.Files) {
			continue
		}

		for _, f := range ts.task.Files {
			s.claimed[f] = num
		}
		ts.status = Running
		ts.owner = workerName(num)
		running++
		admitted = true
		if s.metrics != nil {
			s.metrics.ObserveTransition("running")
			s.metrics.WorkerStarted()
		}
		if s.cfg.OnTransition != nil {
			s.cfg.OnTransition(num, string(Running))
		}
		owner := ts.owner
		_ = s.emitter.TaskUpdate(strconv.Itoa(num), string(Running), &owner)

		task := ts.task
		go func() {
			outcome := worker.Run(ctx, task, s.deps, worker.Config{
				Workspace:      s.cfg.Workspace,
				DefaultModel:   s.cfg.DefaultModel,
				MaxTurns:       s.cfg.MaxTurns,
				ThinkingBudget: s.cfg.ThinkingBudget,
			})
			results <- workerResult{number: task.Number, outcome: outcome}
		}()
	}
	return admitted
}

func (s *Scheduler) filesConflictLocked(files []string) bool {
	for _, f := range files {
		if _, taken := s.claimed[f]; taken {
			return true
		}
	}
	return false
}

// applyResult records one worker's terminal outcome and releases its file
// claims.
func (s *Scheduler) applyResult(res workerResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.tasks[res.number]
	if !ok {
		return
	}
	for _, f := range ts.task.Files {
		if s.claimed[f] == res.number {
			delete(s.claimed, f)
		}
	}

	switch res.outcome.Status {
	case worker.StatusCompleted:
		ts.status = Completed
	case worker.StatusBlocked:
		ts.status = Blocked
	default:
		ts.status = Failed
	}
	owner := ts.owner
	ts.owner = ""

	if s.metrics != nil {
		s.metrics.ObserveTransition(strings.ToLower(string(ts.status)))
		s.metrics.WorkerFinished()
	}
	if s.cfg.OnTransition != nil {
		s.cfg.OnTransition(res.number, string(ts.status))
	}
	_ = s.emitter.TaskUpdate(strconv.Itoa(res.number), string(ts.status), &owner)
}

func (s *Scheduler) noneRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, num := range s.order {
		if s.tasks[num].status == Running {
			return false
		}
	}
	return true
}

func (s *Scheduler) allTerminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, num := range s.order {
		if !s.tasks[num].status.terminal() {
			return false
		}
	}
	return true
}

func (s *Scheduler) writeSnapshot() error {
	s.mu.Lock()
	snap := events.Snapshot{}
	for _, num := range s.order {
		ts := s.tasks[num]
		snap.Tasks = append(snap.Tasks, events.TaskView{
			Number: ts.task.Number,
			Title:  ts.task.Title,
			Status: string(ts.status),
			Owner:  ts.owner,
		})
		if ts.status == Running {
			snap.Members = append(snap.Members, events.Member{
				Name:      ts.owner,
				AgentType: "coder",
				Model:     ts.task.Model,
				Liveness:  "alive",
			})
		}
	}
	s.mu.Unlock()

	return events.WriteSnapshot(snapshotPath(s.cfg.DroneDir), snap)
}

func snapshotPath(droneDir string) string {
	return filepath.Join(droneDir, "tasks-snapshot.json")
}

func workerName(taskNumber int) string {
	return fmt.Sprintf("worker-%d", taskNumber)
}

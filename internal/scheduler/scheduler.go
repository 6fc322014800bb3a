// ABOUTME: Ready-queue scheduler and tick loop driving task dispatch, transitions,
// ABOUTME: iteration caps, goal gates, and the termination predicate (spec.md §4.5)

package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sarlalian/newton/internal/artifact"
	"github.com/sarlalian/newton/internal/checkpoint"
	"github.com/sarlalian/newton/internal/expr"
	"github.com/sarlalian/newton/pkg/types"
)

// OperatorRegistry is the minimal lookup surface the scheduler dispatches
// through; satisfied by *operator.Registry without an import cycle.
type OperatorRegistry interface {
	Get(name string) (types.Operator, bool)
}

// Scheduler executes one canonical document to completion (or failure).
// A single Scheduler instance serves a single execution; its internal
// state is owned exclusively by the goroutine running Run — the
// "supervisor" of spec.md §5 — while dispatched operators run as worker
// goroutines reporting back over a completion channel.
type Scheduler struct {
	doc          *types.Document
	workflowHash string
	registry     OperatorRegistry
	eval         *expr.Evaluator
	artifacts    *artifact.Store
	checkpoints  *checkpoint.Store
	logger       types.Logger

	workspacePath string
	executionID   uuid.UUID

	tasksByID     map[string]*types.RawTask
	goalGateGroup map[string][]string // group label -> task ids tagged goal_gate in that group

	parallelLimit  int
	maxTaskIters   int
	maxWorkflowIt  int
	maxTime        time.Duration
	settings       types.Settings
}

// New builds a Scheduler for one execution of doc (the transform
// pipeline's canonical output), identified by workflowHash.
func New(doc *types.Document, workflowHash string, registry OperatorRegistry, eval *expr.Evaluator,
	artifacts *artifact.Store, checkpoints *checkpoint.Store, logger types.Logger,
	workspacePath string, executionID uuid.UUID, overrides types.ExecutionOverrides) *Scheduler {

	settings := doc.Workflow.Settings
	parallelLimit := settings.ParallelLimit
	if overrides.ParallelLimit != nil {
		parallelLimit = *overrides.ParallelLimit
	}
	maxTimeSeconds := settings.MaxTimeSeconds
	if overrides.MaxTimeSeconds != nil {
		maxTimeSeconds = *overrides.MaxTimeSeconds
	}

	tasksByID := make(map[string]*types.RawTask, len(doc.Workflow.Tasks))
	goalGateGroup := make(map[string][]string)
	for i := range doc.Workflow.Tasks {
		task := &doc.Workflow.Tasks[i]
		tasksByID[task.ID] = task
		if task.GoalGate {
			group := task.GoalGateGroup
			if group == "" {
				group = task.ID
			}
			goalGateGroup[group] = append(goalGateGroup[group], task.ID)
		}
	}

	return &Scheduler{
		doc:           doc,
		workflowHash:  workflowHash,
		registry:      registry,
		eval:          eval,
		artifacts:     artifacts,
		checkpoints:   checkpoints,
		logger:        logger,
		workspacePath: workspacePath,
		executionID:   executionID,
		tasksByID:     tasksByID,
		goalGateGroup: goalGateGroup,
		parallelLimit: parallelLimit,
		maxTaskIters:  settings.MaxTaskIterations,
		maxWorkflowIt: settings.MaxWorkflowIterations,
		maxTime:       time.Duration(maxTimeSeconds) * time.Second,
		settings:      settings,
	}
}

type dispatched struct {
	taskID  string
	runSeq  int
	params  map[string]interface{}
	model   types.ReadModel
	startAt time.Time
}

type completion struct {
	dispatched dispatched
	output     interface{}
	err        error
	cancelled  bool
}

// run is the mutable state the supervisor goroutine owns exclusively.
type run struct {
	readyQueue     []string
	readySet       map[string]bool
	running        map[string]bool
	taskIterations map[string]int
	totalIters     int
	completed      map[string]types.CompletedEntry
	nextRunSeq     map[string]int
	execution      *types.Execution
	anyFailure     bool
}

// Run drives the tick loop to completion, returning the final Execution
// record (also persisted via the checkpoint store as it progresses).
func (s *Scheduler) Run(ctx context.Context, trigger *types.TriggerPayload) (*types.Execution, error) {
	r := &run{
		readyQueue:     []string{s.settings.EntryTask},
		readySet:       map[string]bool{s.settings.EntryTask: true},
		running:        make(map[string]bool),
		taskIterations: make(map[string]int),
		completed:      make(map[string]types.CompletedEntry),
		nextRunSeq:     make(map[string]int),
		execution: &types.Execution{
			ID:           s.executionID,
			WorkflowHash: s.workflowHash,
			Status:       types.ExecutionRunning,
			StartedAt:    time.Now(),
			Trigger:      trigger,
		},
	}
	return s.driveLoop(ctx, r)
}

// Resume restores the last checkpointed state for this Scheduler's
// executionID and continues the tick loop from there (spec.md §4.6). The
// persisted workflow hash is re-verified against s.workflowHash — the hash
// of the canonical document the caller re-loaded and re-transformed before
// constructing this Scheduler — and WFG-CKPT-001 fails resume on a
// mismatch rather than risk running a stale or edited graph against a
// checkpoint it never produced.
func (s *Scheduler) Resume(ctx context.Context) (*types.Execution, error) {
	exec, state, err := s.checkpoints.Resume(s.executionID, s.workflowHash)
	if err != nil {
		return nil, err
	}

	r := &run{
		readyQueue:     append([]string(nil), state.ReadyQueue...),
		readySet:       make(map[string]bool, len(state.ReadyQueue)),
		running:        make(map[string]bool),
		taskIterations: state.TaskIterations,
		totalIters:     state.TotalIterations,
		completed:      state.Completed,
		nextRunSeq:     state.NextRunSeq,
		execution:      exec,
	}
	for _, id := range r.readyQueue {
		r.readySet[id] = true
	}
	for _, entry := range r.completed {
		if entry.Status == types.TaskFailure {
			r.anyFailure = true
		}
	}
	r.execution.Status = types.ExecutionRunning
	r.execution.FinishedAt = nil

	return s.driveLoop(ctx, r)
}

// driveLoop runs the tick loop shared by Run and Resume: dispatch up to
// the parallel limit, wait for the next completion or timeout, apply it,
// checkpoint, and re-check termination (spec.md §4.5).
func (s *Scheduler) driveLoop(ctx context.Context, r *run) (*types.Execution, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.maxTime > 0 {
		var timeoutCancel context.CancelFunc
		runCtx, timeoutCancel = context.WithTimeout(runCtx, s.maxTime)
		defer timeoutCancel()
	}

	completions := make(chan completion)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if done, status := s.checkQueueExhaustion(r); done {
			return s.finalize(r, status)
		}

		for len(r.running) < s.parallelLimit && len(r.readyQueue) > 0 {
			taskID := r.readyQueue[0]
			r.readyQueue = r.readyQueue[1:]
			delete(r.readySet, taskID)

			d, err := s.prepareDispatch(r, taskID)
			if err != nil {
				return s.abort(r, err)
			}

			r.running[taskID] = true
			wg.Add(1)
			go s.dispatch(runCtx, d, completions, &wg)
		}

		if len(r.running) == 0 {
			// Nothing is running and nothing was dispatched this pass (a
			// prepareDispatch failure aborts above); re-check termination.
			if len(r.readyQueue) == 0 {
				if done, status := s.checkQueueExhaustion(r); done {
					return s.finalize(r, status)
				}
			}
		}

		select {
		case <-runCtx.Done():
			return s.finalizeOnTimeout(r)
		case c := <-completions:
			delete(r.running, c.dispatched.taskID)
			if err := s.processCompletion(r, c); err != nil {
				return s.abort(r, err)
			}
			if err := s.persist(r); err != nil {
				s.logger.Warn().Err(err).Str("task_id", c.dispatched.taskID).Msg("checkpoint write failed")
			}
			if terminal, status := s.termination(r); terminal {
				return s.finalize(r, status)
			}
		}
	}
}

func (s *Scheduler) checkQueueExhaustion(r *run) (bool, types.ExecutionStatus) {
	if len(r.readyQueue) == 0 && len(r.running) == 0 {
		if r.anyFailure && !s.settings.ContinueOnError && s.settings.Completion.SuccessRequiresNoTaskFailures {
			return true, types.ExecutionFailed
		}
		return true, types.ExecutionCompleted
	}
	return false, ""
}

// prepareDispatch checks and increments both iteration counters before a
// task is allowed to run (spec.md §4.5 step 1); iteration-cap exceedance
// is always fatal to the execution.
func (s *Scheduler) prepareDispatch(r *run, taskID string) (dispatched, error) {
	task, ok := s.tasksByID[taskID]
	if !ok {
		return dispatched{}, types.NewError(types.ErrControlFileInvalid, fmt.Sprintf("scheduled unknown task %q", taskID), nil)
	}

	limit := s.maxTaskIters
	if task.MaxIterationsOverride > 0 {
		limit = task.MaxIterationsOverride
	}
	if r.taskIterations[taskID]+1 > limit {
		return dispatched{}, types.NewLocatedError(types.ErrTaskIterationCap,
			fmt.Sprintf("task %q exceeded max_task_iterations (%d)", taskID, limit), "workflow.tasks["+taskID+"]", nil)
	}
	if r.totalIters+1 > s.maxWorkflowIt {
		return dispatched{}, types.NewError(types.ErrWorkflowIteration,
			fmt.Sprintf("workflow exceeded max_workflow_iterations (%d)", s.maxWorkflowIt), nil)
	}
	r.taskIterations[taskID]++
	r.totalIters++

	r.nextRunSeq[taskID]++
	runSeq := r.nextRunSeq[taskID]

	model := s.readModel(r)
	resolvedParams, err := resolveParamTree(task.Params, s.eval, model)
	if err != nil {
		return dispatched{}, err
	}
	params, _ := resolvedParams.(map[string]interface{})

	r.execution.TaskRuns = append(r.execution.TaskRuns, types.TaskRun{
		TaskID:        taskID,
		RunSeq:        runSeq,
		Status:        types.TaskRunning,
		StartedAt:     time.Now(),
		Params:        params,
		GoalGateGroup: task.GoalGateGroup,
	})

	return dispatched{taskID: taskID, runSeq: runSeq, params: params, model: model, startAt: time.Now()}, nil
}

func (s *Scheduler) dispatch(ctx context.Context, d dispatched, out chan<- completion, wg *sync.WaitGroup) {
	defer wg.Done()

	task := s.tasksByID[d.taskID]
	op, ok := s.registry.Get(task.Operator)
	if !ok {
		out <- completion{dispatched: d, err: fmt.Errorf("no operator registered for %q", task.Operator)}
		return
	}

	execCtx := types.ExecutionContext{
		WorkspacePath: s.workspacePath,
		ExecutionID:   s.executionID,
		TaskID:        d.taskID,
		Iteration:     d.runSeq,
		StateView:     d.model,
	}

	result, err := op.Execute(ctx, d.params, execCtx)
	select {
	case out <- completion{dispatched: d, output: result, err: err, cancelled: ctx.Err() != nil}:
	case <-ctx.Done():
	}
}

// processCompletion persists the task run, routes its output through the
// artifact store, evaluates outgoing transitions, and enqueues targets
// (deduped against what is already ready or running this tick).
func (s *Scheduler) processCompletion(r *run, c completion) error {
	task := s.tasksByID[c.dispatched.taskID]

	status := types.TaskSuccess
	message := ""
	switch {
	case c.cancelled:
		status = types.TaskTerminated
		message = "cancelled: execution exceeded max_time_seconds"
	case c.err != nil:
		status = types.TaskFailure
		message = c.err.Error()
		r.anyFailure = true
	}

	var outputRef *types.OutputRef
	if status == types.TaskSuccess {
		ref, err := s.artifacts.Put(s.executionID.String(), c.dispatched.taskID, c.dispatched.runSeq, c.output)
		if err != nil {
			return err
		}
		outputRef = &ref

		if task.Operator == "set_context" {
			if updates, ok := c.output.(map[string]interface{}); ok {
				for k, v := range updates {
					s.doc.Workflow.Context[k] = v
				}
			}
		}
	}

	s.updateTaskRun(r, c.dispatched, status, message, outputRef)
	r.completed[c.dispatched.taskID] = types.CompletedEntry{RunSeq: c.dispatched.runSeq, Status: status, GoalGateGroup: task.GoalGateGroup}

	if status != types.TaskSuccess {
		if !s.settings.ContinueOnError {
			return nil // no transitions fire; termination predicate handles the failure
		}
	}

	return s.enqueueTransitions(r, task)
}

func (s *Scheduler) updateTaskRun(r *run, d dispatched, status types.TaskStatus, message string, output *types.OutputRef) {
	for i := range r.execution.TaskRuns {
		tr := &r.execution.TaskRuns[i]
		if tr.TaskID == d.taskID && tr.RunSeq == d.runSeq {
			tr.Status = status
			tr.FinishedAt = time.Now()
			tr.Output = output
			tr.Message = message
			return
		}
	}
}

func (s *Scheduler) enqueueTransitions(r *run, task *types.RawTask) error {
	model := s.readModel(r)

	sorted := make([]types.Transition, len(task.Transitions))
	copy(sorted, task.Transitions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	for _, t := range sorted {
		eligible := true
		if t.When != nil {
			ok, err := s.eval.EvalBool(t.When.Expr, model)
			if err != nil {
				return err
			}
			eligible = ok
		}
		if !eligible {
			continue
		}
		if r.readySet[t.To] || r.running[t.To] {
			continue // per-tick dedup (spec.md §4.5, §5)
		}
		r.readyQueue = append(r.readyQueue, t.To)
		r.readySet[t.To] = true
	}
	return nil
}

func (s *Scheduler) readModel(r *run) types.ReadModel {
	tasks := make(map[string]types.TaskView, len(r.completed))
	for id, entry := range r.completed {
		var output interface{}
		for i := len(r.execution.TaskRuns) - 1; i >= 0; i-- {
			tr := r.execution.TaskRuns[i]
			if tr.TaskID == id && tr.RunSeq == entry.RunSeq {
				if tr.Output != nil {
					output = tr.Output.Value
				}
				break
			}
		}
		tasks[id] = types.TaskView{Status: entry.Status, Output: output}
	}
	var payload map[string]interface{}
	if s.doc.Triggers != nil {
		payload = s.doc.Triggers.Payload
	}
	// A runtime trigger payload takes precedence over the document's default.
	if r.execution.Trigger != nil {
		payload = r.execution.Trigger.Payload
	}
	triggers := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		triggers[k] = v
	}
	// Context is copied, not aliased: this snapshot is handed to dispatch
	// goroutines as part of ExecutionContext.StateView, while the
	// supervisor goroutine keeps mutating doc.Workflow.Context on later
	// set_context completions — aliasing the live map would race.
	context := make(map[string]interface{}, len(s.doc.Workflow.Context))
	for k, v := range s.doc.Workflow.Context {
		context[k] = v
	}
	return types.ReadModel{Context: context, Triggers: triggers, Tasks: tasks}
}

// termination evaluates the predicate of spec.md §4.5 after a completion.
func (s *Scheduler) termination(r *run) (bool, types.ExecutionStatus) {
	policy := s.settings.Completion

	if r.anyFailure && !s.settings.ContinueOnError && policy.SuccessRequiresNoTaskFailures {
		return true, types.ExecutionFailed
	}

	for taskID, entry := range r.completed {
		task := s.tasksByID[taskID]
		if task.Terminal == types.TerminalFailure && policy.StopOnTerminal {
			return true, types.ExecutionFailed
		}
		if task.Terminal == types.TerminalSuccess && policy.StopOnTerminal && entry.Status == types.TaskSuccess {
			if !policy.RequireGoalGates || s.goalGatesSatisfied(r) {
				return true, types.ExecutionCompleted
			}
		}
	}

	if done, status := s.checkQueueExhaustion(r); done {
		return true, status
	}

	return false, ""
}

func (s *Scheduler) goalGatesSatisfied(r *run) bool {
	for _, members := range s.goalGateGroup {
		satisfied := false
		for _, id := range members {
			if entry, ok := r.completed[id]; ok && entry.Status == types.TaskSuccess {
				satisfied = true
				break
			}
		}
		if !satisfied && s.settings.Completion.GoalGateFailureBehavior != types.GoalGateContinue {
			return false
		}
	}
	return true
}

func (s *Scheduler) finalize(r *run, status types.ExecutionStatus) (*types.Execution, error) {
	now := time.Now()
	r.execution.Status = status
	r.execution.FinishedAt = &now
	_ = s.persist(r)
	return r.execution, nil
}

func (s *Scheduler) finalizeOnTimeout(r *run) (*types.Execution, error) {
	now := time.Now()
	for i := range r.execution.TaskRuns {
		tr := &r.execution.TaskRuns[i]
		if tr.Status == types.TaskRunning {
			tr.Status = types.TaskTerminated
			tr.FinishedAt = now
			tr.Message = "execution exceeded max_time_seconds"
		}
	}
	r.execution.Status = types.ExecutionTerminated
	r.execution.FinishedAt = &now
	_ = s.persist(r)
	return r.execution, nil
}

func (s *Scheduler) abort(r *run, err error) (*types.Execution, error) {
	now := time.Now()
	r.execution.Status = types.ExecutionFailed
	r.execution.FinishedAt = &now
	_ = s.persist(r)
	return r.execution, err
}

func (s *Scheduler) persist(r *run) error {
	if s.checkpoints == nil {
		return nil
	}
	if err := s.checkpoints.WriteExecution(r.execution); err != nil {
		return err
	}
	state := &types.SchedulerState{
		Completed:       r.completed,
		TaskIterations:  r.taskIterations,
		TotalIterations: r.totalIters,
		ReadyQueue:      append([]string(nil), r.readyQueue...),
		NextRunSeq:      r.nextRunSeq,
		WorkflowHash:    s.workflowHash,
	}
	return s.checkpoints.WriteCheckpoint(s.executionID, state)
}

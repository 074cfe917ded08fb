package task

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrEmptyWorkflow is returned when a workflow is created without steps.
var ErrEmptyWorkflow = errors.New("workflow has no steps")

// WorkflowStep defines one task of a workflow.
type WorkflowStep struct {
	// Name is the human-readable label for the step's task
	Name string

	// Fn is the work the step performs
	Fn Func

	// Priority applies to the step's task; zero means normal
	Priority Priority
}

// CreateWorkflow registers one task per step and returns the workflow id
// together with the ordered task ids. The tasks are plain registry
// entries; the workflow itself is not persisted beyond them.
func (s *Scheduler) CreateWorkflow(name string, steps []WorkflowStep) (string, []string, error) {
	if len(steps) == 0 {
		return "", nil, ErrEmptyWorkflow
	}

	workflowID := "workflow_" + uuid.NewString()
	ids := make([]string, 0, len(steps))
	for _, step := range steps {
		priority := step.Priority
		if priority == 0 {
			priority = PriorityNormal
		}
		id, err := s.Create(step.Name, step.Fn, priority)
		if err != nil {
			return "", nil, err
		}
		ids = append(ids, id)
	}

	s.logger.Info("created workflow",
		"workflow_id", workflowID,
		"workflow_name", name,
		"task_count", len(ids))
	return workflowID, ids, nil
}

// RunWorkflow executes the tasks synchronously in order, collecting
// their results. It stops after the first task that settles as failed,
// returning only the results gathered so far; a cancelled task aborts
// the workflow the same way, since it can never produce a result for the
// steps after it.
func (s *Scheduler) RunWorkflow(ctx context.Context, ids []string) []any {
	results := make([]any, 0, len(ids))
	for _, id := range ids {
		result, err := s.Execute(ctx, id)
		results = append(results, result)
		if err != nil {
			s.logger.Error("workflow step could not run", "task_id", id, "error", err)
			break
		}

		snap, err := s.Status(id)
		if err != nil {
			break
		}
		if snap.Status == StatusFailed || snap.Status == StatusCancelled {
			s.logger.Error("workflow stopped on task failure",
				"task_id", id,
				"status", string(snap.Status))
			break
		}
	}
	return results
}

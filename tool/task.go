package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/cobaltline/foreman/fault"
	"github.com/cobaltline/foreman/resolve"
	"github.com/cobaltline/foreman/store"
)

var statusEnum = []string{
	string(store.StatusPending), string(store.StatusInvited), string(store.StatusAccepted),
	string(store.StatusOngoing), string(store.StatusCompleted), string(store.StatusRejected),
}

var priorityEnum = []string{
	string(store.PriorityLow), string(store.PriorityMedium), string(store.PriorityHigh),
}

// listTasksTool lists tasks with optional status and assignee filters.
type listTasksTool struct {
	tasks    store.Tasks
	resolver *resolve.Resolver
}

func (t *listTasksTool) Name() string { return "list_tasks" }

func (t *listTasksTool) Description() string {
	return "List tasks, optionally filtered by status or assignee."
}

func (t *listTasksTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "status", Type: TypeString, Description: "Only tasks in this status.", Enum: statusEnum},
		{Name: "assignee", Type: TypeString, Description: "Only tasks assigned to this employee (name or id)."},
		{Name: "limit", Type: TypeInteger, Description: "Maximum tasks to return.", Min: ptr(1), Max: ptr(100)},
	}}
}

func (t *listTasksTool) RequiresConfirmation() bool { return false }

func (t *listTasksTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	var filter store.TaskFilter
	if s := stringArg(args, "status"); s != "" {
		status := store.TaskStatus(s)
		filter.Status = &status
	}
	if ref := stringArg(args, "assignee"); ref != "" {
		res, err := t.resolver.ResolveEmployee(ctx, ref)
		if err != nil {
			return nil, err
		}
		if res.Ambiguous() {
			return disambiguation(resolve.KindEmployee, ref, res.Candidates), nil
		}
		filter.AssigneeID = res.Employee.ID
	}
	if n, ok := numberArg(args, "limit"); ok {
		filter.Limit = int(n)
	}

	tasks, err := t.tasks.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tasks": tasks, "count": len(tasks)}, nil
}

// findTaskTool resolves one task by title or id. Registered for both roles.
type findTaskTool struct {
	resolver *resolve.Resolver
}

func (t *findTaskTool) Name() string { return "find_task" }

func (t *findTaskTool) Description() string {
	return "Look up a single task by title or id. Returns candidate options when the title is ambiguous."
}

func (t *findTaskTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "task", Type: TypeString, Description: "Task title or id.", Required: true},
	}}
}

func (t *findTaskTool) RequiresConfirmation() bool { return false }

func (t *findTaskTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	ref := stringArg(args, "task")
	res, err := t.resolver.ResolveTask(ctx, ref)
	if err != nil {
		return nil, err
	}
	if res.Ambiguous() {
		return disambiguation(resolve.KindTask, ref, res.Candidates), nil
	}
	return res.Task, nil
}

// createTaskTool creates a new task in pending status.
type createTaskTool struct {
	tasks store.Tasks
}

func (t *createTaskTool) Name() string { return "create_task" }

func (t *createTaskTool) Description() string {
	return "Create a new task. New tasks start unassigned in pending status."
}

func (t *createTaskTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "title", Type: TypeString, Description: "Task title.", Required: true},
		{Name: "description", Type: TypeString, Description: "Longer task description."},
		{Name: "priority", Type: TypeString, Description: "Task priority, default medium.", Enum: priorityEnum},
		{Name: "required_skills", Type: TypeArray, Description: "Skills the assignee should have."},
		{Name: "estimated_hours", Type: TypeNumber, Description: "Expected effort in hours.", Min: ptr(0)},
		{Name: "complexity", Type: TypeNumber, Description: "Complexity multiplier, 1.0 for routine work.", Min: ptr(1)},
		{Name: "deadline", Type: TypeString, Description: "Deadline as RFC 3339 or YYYY-MM-DD."},
	}}
}

func (t *createTaskTool) RequiresConfirmation() bool { return false }

func (t *createTaskTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	rec := &store.TaskRecord{
		Title:          stringArg(args, "title"),
		Description:    stringArg(args, "description"),
		Status:         store.StatusPending,
		Priority:       store.PriorityMedium,
		RequiredSkills: stringSliceArg(args, "required_skills"),
		Complexity:     1.0,
	}
	if p := stringArg(args, "priority"); p != "" {
		rec.Priority = store.Priority(p)
	}
	if n, ok := numberArg(args, "estimated_hours"); ok {
		rec.EstimatedHours = n
	}
	if n, ok := numberArg(args, "complexity"); ok {
		rec.Complexity = n
	}
	if d := stringArg(args, "deadline"); d != "" {
		deadline, err := parseDeadline(d)
		if err != nil {
			return nil, err
		}
		rec.Deadline = &deadline
	}

	id, err := t.tasks.CreateTask(ctx, rec)
	if err != nil {
		return nil, err
	}
	return t.tasks.GetTask(ctx, id)
}

// updateTaskTool applies partial edits to an existing task.
type updateTaskTool struct {
	tasks    store.Tasks
	resolver *resolve.Resolver
}

func (t *updateTaskTool) Name() string { return "update_task" }

func (t *updateTaskTool) Description() string {
	return "Update fields of an existing task. Only the provided fields change."
}

func (t *updateTaskTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "task", Type: TypeString, Description: "Task title or id.", Required: true},
		{Name: "title", Type: TypeString, Description: "New title."},
		{Name: "description", Type: TypeString, Description: "New description."},
		{Name: "status", Type: TypeString, Description: "New status.", Enum: statusEnum},
		{Name: "priority", Type: TypeString, Description: "New priority.", Enum: priorityEnum},
		{Name: "progress", Type: TypeInteger, Description: "Completion percent.", Min: ptr(0), Max: ptr(100)},
		{Name: "estimated_hours", Type: TypeNumber, Description: "Expected effort in hours.", Min: ptr(0)},
		{Name: "actual_hours", Type: TypeNumber, Description: "Hours actually worked.", Min: ptr(0)},
		{Name: "complexity", Type: TypeNumber, Description: "Complexity multiplier.", Min: ptr(1)},
		{Name: "deadline", Type: TypeString, Description: "New deadline as RFC 3339 or YYYY-MM-DD."},
	}}
}

func (t *updateTaskTool) RequiresConfirmation() bool { return false }

func (t *updateTaskTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	ref := stringArg(args, "task")
	res, err := t.resolver.ResolveTask(ctx, ref)
	if err != nil {
		return nil, err
	}
	if res.Ambiguous() {
		return disambiguation(resolve.KindTask, ref, res.Candidates), nil
	}
	rec := res.Task

	if v := stringArg(args, "title"); v != "" {
		rec.Title = v
	}
	if v := stringArg(args, "description"); v != "" {
		rec.Description = v
	}
	if v := stringArg(args, "status"); v != "" {
		applyStatus(rec, store.TaskStatus(v))
	}
	if v := stringArg(args, "priority"); v != "" {
		rec.Priority = store.Priority(v)
	}
	if n, ok := numberArg(args, "progress"); ok {
		rec.Progress = int(n)
	}
	if n, ok := numberArg(args, "estimated_hours"); ok {
		rec.EstimatedHours = n
	}
	if n, ok := numberArg(args, "actual_hours"); ok {
		rec.ActualHours = n
	}
	if n, ok := numberArg(args, "complexity"); ok {
		rec.Complexity = n
	}
	if d := stringArg(args, "deadline"); d != "" {
		deadline, err := parseDeadline(d)
		if err != nil {
			return nil, err
		}
		rec.Deadline = &deadline
	}

	if err := t.tasks.UpdateTask(ctx, rec); err != nil {
		return nil, err
	}
	return t.tasks.GetTask(ctx, rec.ID)
}

// applyStatus sets a new status and stamps the matching lifecycle timestamp
// the first time the status is reached.
func applyStatus(rec *store.TaskRecord, status store.TaskStatus) {
	rec.Status = status
	now := time.Now().UTC()
	switch status {
	case store.StatusAccepted:
		if rec.AcceptedAt == nil {
			rec.AcceptedAt = &now
		}
	case store.StatusOngoing:
		if rec.StartedAt == nil {
			rec.StartedAt = &now
		}
	case store.StatusCompleted:
		if rec.CompletedAt == nil {
			rec.CompletedAt = &now
		}
		rec.Progress = 100
	}
}

// assignTaskTool invites an employee to a task.
type assignTaskTool struct {
	tasks    store.Tasks
	resolver *resolve.Resolver
}

func (t *assignTaskTool) Name() string { return "assign_task" }

func (t *assignTaskTool) Description() string {
	return "Assign a task to an employee. The employee is invited and must accept before work starts."
}

func (t *assignTaskTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "task", Type: TypeString, Description: "Task title or id.", Required: true},
		{Name: "employee", Type: TypeString, Description: "Employee name or id.", Required: true},
	}}
}

func (t *assignTaskTool) RequiresConfirmation() bool { return false }

func (t *assignTaskTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	taskRef := stringArg(args, "task")
	taskRes, err := t.resolver.ResolveTask(ctx, taskRef)
	if err != nil {
		return nil, err
	}
	if taskRes.Ambiguous() {
		return disambiguation(resolve.KindTask, taskRef, taskRes.Candidates), nil
	}

	empRef := stringArg(args, "employee")
	empRes, err := t.resolver.ResolveEmployee(ctx, empRef)
	if err != nil {
		return nil, err
	}
	if empRes.Ambiguous() {
		return disambiguation(resolve.KindEmployee, empRef, empRes.Candidates), nil
	}

	rec := taskRes.Task
	if rec.Status == store.StatusCompleted {
		return nil, fault.New(fault.Validation, "task %q is already completed", rec.Title)
	}
	rec.AssigneeID = empRes.Employee.ID
	rec.Status = store.StatusInvited

	if err := t.tasks.UpdateTask(ctx, rec); err != nil {
		return nil, err
	}
	updated, err := t.tasks.GetTask(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"task":     updated,
		"assignee": empRes.Employee.Name,
		"note":     fmt.Sprintf("%s has been invited and must accept the task", empRes.Employee.Name),
	}, nil
}

// deleteTaskTool permanently removes a task. Confirmation gated: the task
// reference is resolved at proposal time and the canonical id is bound into
// the arguments, so approval deletes exactly the record the user saw.
type deleteTaskTool struct {
	tasks    store.Tasks
	resolver *resolve.Resolver
}

func (t *deleteTaskTool) Name() string { return "delete_task" }

func (t *deleteTaskTool) Description() string {
	return "Permanently delete a task. Requires explicit user confirmation."
}

func (t *deleteTaskTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "task", Type: TypeString, Description: "Task title or id.", Required: true},
	}}
}

func (t *deleteTaskTool) RequiresConfirmation() bool { return true }

func (t *deleteTaskTool) Propose(ctx context.Context, args map[string]any) (map[string]any, string, error) {
	ref := stringArg(args, "task")
	res, err := t.resolver.ResolveTask(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	if res.Ambiguous() {
		return nil, "", disambiguationErr(resolve.KindTask, ref, res.Candidates)
	}
	rec := res.Task
	desc := fmt.Sprintf("Delete task %q (%s, %s priority). This cannot be undone.",
		rec.Title, rec.Status, rec.Priority)
	return map[string]any{"task": rec.ID}, desc, nil
}

func (t *deleteTaskTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	id := stringArg(args, "task")
	rec, err := t.tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.tasks.DeleteTask(ctx, id); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": true, "id": id, "title": rec.Title}, nil
}

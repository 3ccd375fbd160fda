package tool

import (
	"context"
	"time"

	"github.com/cobaltline/foreman/fault"
	"github.com/cobaltline/foreman/resolve"
	"github.com/cobaltline/foreman/store"
)

// Employee-facing tools. Scoping always comes from the caller identity in
// the context; there is no argument that lets an employee act as someone
// else.

// myProfileTool returns the caller's own directory record.
type myProfileTool struct {
	directory store.Directory
}

func (t *myProfileTool) Name() string { return "my_profile" }

func (t *myProfileTool) Description() string {
	return "Show your own profile: skills, availability, workload, and completed task count."
}

func (t *myProfileTool) Schema() Schema { return Schema{} }

func (t *myProfileTool) RequiresConfirmation() bool { return false }

func (t *myProfileTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	id, _ := IdentityFromContext(ctx)
	return t.directory.GetEmployee(ctx, id.ID)
}

// myTasksTool lists the caller's own tasks.
type myTasksTool struct {
	tasks store.Tasks
}

func (t *myTasksTool) Name() string { return "my_tasks" }

func (t *myTasksTool) Description() string {
	return "List tasks assigned to you, optionally filtered by status."
}

func (t *myTasksTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "status", Type: TypeString, Description: "Only tasks in this status.", Enum: statusEnum},
	}}
}

func (t *myTasksTool) RequiresConfirmation() bool { return false }

func (t *myTasksTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	id, _ := IdentityFromContext(ctx)
	filter := store.TaskFilter{AssigneeID: id.ID}
	if s := stringArg(args, "status"); s != "" {
		status := store.TaskStatus(s)
		filter.Status = &status
	}
	tasks, err := t.tasks.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tasks": tasks, "count": len(tasks)}, nil
}

// ownedTask resolves a task reference and checks it belongs to the caller.
func ownedTask(ctx context.Context, resolver *resolve.Resolver, ref string) (*store.TaskRecord, map[string]any, error) {
	res, err := resolver.ResolveTask(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	if res.Ambiguous() {
		return nil, disambiguation(resolve.KindTask, ref, res.Candidates), nil
	}
	id, _ := IdentityFromContext(ctx)
	if res.Task.AssigneeID != id.ID {
		return nil, nil, fault.New(fault.Validation, "task %q is not assigned to you", res.Task.Title)
	}
	return res.Task, nil, nil
}

// updateProgressTool records progress on one of the caller's tasks.
type updateProgressTool struct {
	tasks    store.Tasks
	resolver *resolve.Resolver
}

func (t *updateProgressTool) Name() string { return "update_task_progress" }

func (t *updateProgressTool) Description() string {
	return "Update the completion percentage on one of your tasks. Reaching 100 marks the task completed."
}

func (t *updateProgressTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "task", Type: TypeString, Description: "Task title or id.", Required: true},
		{Name: "progress", Type: TypeInteger, Description: "Completion percent.", Required: true, Min: ptr(0), Max: ptr(100)},
		{Name: "actual_hours", Type: TypeNumber, Description: "Total hours worked so far.", Min: ptr(0)},
	}}
}

func (t *updateProgressTool) RequiresConfirmation() bool { return false }

func (t *updateProgressTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	rec, dis, err := ownedTask(ctx, t.resolver, stringArg(args, "task"))
	if err != nil {
		return nil, err
	}
	if dis != nil {
		return dis, nil
	}
	if rec.Status != store.StatusAccepted && rec.Status != store.StatusOngoing {
		return nil, fault.New(fault.Validation, "task %q is %s; accept it before reporting progress",
			rec.Title, rec.Status)
	}

	progress, _ := numberArg(args, "progress")
	rec.Progress = int(progress)
	if n, ok := numberArg(args, "actual_hours"); ok {
		rec.ActualHours = n
	}

	now := time.Now().UTC()
	switch {
	case rec.Progress >= 100:
		applyStatus(rec, store.StatusCompleted)
	case rec.Status == store.StatusAccepted && rec.Progress > 0:
		rec.Status = store.StatusOngoing
		if rec.StartedAt == nil {
			rec.StartedAt = &now
		}
	}

	if err := t.tasks.UpdateTask(ctx, rec); err != nil {
		return nil, err
	}
	return t.tasks.GetTask(ctx, rec.ID)
}

// acceptTaskTool accepts a task invitation.
type acceptTaskTool struct {
	tasks    store.Tasks
	resolver *resolve.Resolver
}

func (t *acceptTaskTool) Name() string { return "accept_task" }

func (t *acceptTaskTool) Description() string {
	return "Accept a task you were invited to."
}

func (t *acceptTaskTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "task", Type: TypeString, Description: "Task title or id.", Required: true},
	}}
}

func (t *acceptTaskTool) RequiresConfirmation() bool { return false }

func (t *acceptTaskTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	rec, dis, err := ownedTask(ctx, t.resolver, stringArg(args, "task"))
	if err != nil {
		return nil, err
	}
	if dis != nil {
		return dis, nil
	}
	if rec.Status != store.StatusInvited {
		return nil, fault.New(fault.Validation, "task %q is %s, not awaiting your acceptance",
			rec.Title, rec.Status)
	}
	applyStatus(rec, store.StatusAccepted)
	if err := t.tasks.UpdateTask(ctx, rec); err != nil {
		return nil, err
	}
	return t.tasks.GetTask(ctx, rec.ID)
}

// rejectTaskTool declines a task invitation. The task goes to rejected and
// unassigned so the manager can find and reassign it.
type rejectTaskTool struct {
	tasks    store.Tasks
	resolver *resolve.Resolver
}

func (t *rejectTaskTool) Name() string { return "reject_task" }

func (t *rejectTaskTool) Description() string {
	return "Decline a task you were invited to. The task becomes unassigned and marked rejected."
}

func (t *rejectTaskTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "task", Type: TypeString, Description: "Task title or id.", Required: true},
		{Name: "reason", Type: TypeString, Description: "Why you are declining."},
	}}
}

func (t *rejectTaskTool) RequiresConfirmation() bool { return false }

func (t *rejectTaskTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	rec, dis, err := ownedTask(ctx, t.resolver, stringArg(args, "task"))
	if err != nil {
		return nil, err
	}
	if dis != nil {
		return dis, nil
	}
	if rec.Status != store.StatusInvited {
		return nil, fault.New(fault.Validation, "task %q is %s, not awaiting your acceptance",
			rec.Title, rec.Status)
	}

	rec.Status = store.StatusRejected
	rec.AssigneeID = ""
	if err := t.tasks.UpdateTask(ctx, rec); err != nil {
		return nil, err
	}

	out := map[string]any{"rejected": true, "task": rec.Title}
	if reason := stringArg(args, "reason"); reason != "" {
		out["reason"] = reason
	}
	return out, nil
}

// findColleagueTool looks up another employee, returning a trimmed view
// without compensation or performance data.
type findColleagueTool struct {
	resolver *resolve.Resolver
}

func (t *findColleagueTool) Name() string { return "find_colleague" }

func (t *findColleagueTool) Description() string {
	return "Look up a colleague by name. Returns contact and skill information only."
}

func (t *findColleagueTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "employee", Type: TypeString, Description: "Colleague name or id.", Required: true},
	}}
}

func (t *findColleagueTool) RequiresConfirmation() bool { return false }

func (t *findColleagueTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	ref := stringArg(args, "employee")
	res, err := t.resolver.ResolveEmployee(ctx, ref)
	if err != nil {
		return nil, err
	}
	if res.Ambiguous() {
		return disambiguation(resolve.KindEmployee, ref, res.Candidates), nil
	}
	e := res.Employee
	return map[string]any{
		"id":          e.ID,
		"name":        e.Name,
		"email":       e.Email,
		"department":  e.Department,
		"designation": e.Designation,
		"skills":      e.Skills,
		"available":   e.Available,
	}, nil
}

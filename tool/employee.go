package tool

import (
	"context"
	"fmt"

	"github.com/cobaltline/foreman/rank"
	"github.com/cobaltline/foreman/resolve"
	"github.com/cobaltline/foreman/store"
)

// listEmployeesTool lists the workforce directory, optionally limited to
// available employees.
type listEmployeesTool struct {
	directory store.Directory
}

func (t *listEmployeesTool) Name() string { return "list_employees" }

func (t *listEmployeesTool) Description() string {
	return "List all employees with their skills, availability, and current workload."
}

func (t *listEmployeesTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "available_only", Type: TypeBoolean, Description: "Only include employees marked available."},
	}}
}

func (t *listEmployeesTool) RequiresConfirmation() bool { return false }

func (t *listEmployeesTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	employees, err := t.directory.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	if boolArg(args, "available_only") {
		filtered := employees[:0]
		for _, e := range employees {
			if e.Available {
				filtered = append(filtered, e)
			}
		}
		employees = filtered
	}
	return map[string]any{"employees": employees, "count": len(employees)}, nil
}

// findEmployeeTool resolves one employee by name or id.
type findEmployeeTool struct {
	resolver *resolve.Resolver
}

func (t *findEmployeeTool) Name() string { return "find_employee" }

func (t *findEmployeeTool) Description() string {
	return "Look up a single employee by name or id. Returns candidate options when the name is ambiguous."
}

func (t *findEmployeeTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "employee", Type: TypeString, Description: "Employee name or id.", Required: true},
	}}
}

func (t *findEmployeeTool) RequiresConfirmation() bool { return false }

func (t *findEmployeeTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	ref := stringArg(args, "employee")
	res, err := t.resolver.ResolveEmployee(ctx, ref)
	if err != nil {
		return nil, err
	}
	if res.Ambiguous() {
		return disambiguation(resolve.KindEmployee, ref, res.Candidates), nil
	}
	return res.Employee, nil
}

// suggestAssigneesTool ranks employees against a task's required skills.
type suggestAssigneesTool struct {
	directory store.Directory
	resolver  *resolve.Resolver
}

func (t *suggestAssigneesTool) Name() string { return "suggest_assignees" }

func (t *suggestAssigneesTool) Description() string {
	return "Rank available employees by skill fit for a task. Give either a task reference or an explicit skill list."
}

func (t *suggestAssigneesTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "task", Type: TypeString, Description: "Task title or id whose required skills drive the ranking."},
		{Name: "skills", Type: TypeArray, Description: "Explicit required skills, used when no task is given."},
		{Name: "limit", Type: TypeInteger, Description: "Maximum suggestions to return, default 5.", Min: ptr(1), Max: ptr(20)},
	}}
}

func (t *suggestAssigneesTool) RequiresConfirmation() bool { return false }

func (t *suggestAssigneesTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	required := stringSliceArg(args, "skills")
	if ref := stringArg(args, "task"); ref != "" {
		res, err := t.resolver.ResolveTask(ctx, ref)
		if err != nil {
			return nil, err
		}
		if res.Ambiguous() {
			return disambiguation(resolve.KindTask, ref, res.Candidates), nil
		}
		required = res.Task.RequiredSkills
	}

	employees, err := t.directory.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	available := employees[:0]
	for _, e := range employees {
		if e.Available {
			available = append(available, e)
		}
	}

	ranked := rank.Rank(required, available)
	limit := 5
	if n, ok := numberArg(args, "limit"); ok {
		limit = int(n)
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	suggestions := make([]map[string]any, 0, len(ranked))
	for _, c := range ranked {
		suggestions = append(suggestions, map[string]any{
			"id":             c.Employee.ID,
			"name":           c.Employee.Name,
			"score":          c.Score,
			"matched_skills": c.Matched,
			"workload":       c.Employee.Workload,
			"performance":    c.Employee.PerformanceScore,
		})
	}
	return map[string]any{
		"required_skills": required,
		"suggestions":     suggestions,
		"note":            fmt.Sprintf("%d candidates ranked by skill match, then workload, then performance", len(suggestions)),
	}, nil
}

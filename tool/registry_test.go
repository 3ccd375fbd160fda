package tool

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/cobaltline/foreman/fault"
	"github.com/cobaltline/foreman/payment"
	"github.com/cobaltline/foreman/resolve"
	"github.com/cobaltline/foreman/store"
)

type fixture struct {
	store    *store.SQLiteStore
	registry *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	r, err := DefaultRegistry(Deps{
		Store:     s,
		Resolver:  resolve.New(s, s),
		Estimator: payment.New(payment.Config{}),
	})
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	return &fixture{store: s, registry: r}
}

func (f *fixture) addEmployee(t *testing.T, name string, skills ...string) *store.EmployeeRecord {
	t.Helper()
	rec := &store.EmployeeRecord{
		Name:             name,
		Email:            "x@example.com",
		Department:       "engineering",
		Skills:           skills,
		Available:        true,
		PerformanceScore: 0.9,
		OnTimeRate:       0.8,
		QualityScore:     0.85,
		HourlyRate:       30,
	}
	id, err := f.store.CreateEmployee(context.Background(), rec)
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	rec.ID = id
	return rec
}

func (f *fixture) addTask(t *testing.T, title string, status store.TaskStatus, assigneeID string) *store.TaskRecord {
	t.Helper()
	rec := &store.TaskRecord{
		Title:          title,
		Status:         status,
		Priority:       store.PriorityHigh,
		AssigneeID:     assigneeID,
		EstimatedHours: 8,
		Complexity:     1.0,
	}
	id, err := f.store.CreateTask(context.Background(), rec)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	rec.ID = id
	return rec
}

func managerCtx(id string) context.Context {
	return WithIdentity(context.Background(), Identity{ID: id, Role: RoleManager})
}

func employeeCtx(id string) context.Context {
	return WithIdentity(context.Background(), Identity{ID: id, Role: RoleEmployee})
}

func TestExecuteRefusesGatedTool(t *testing.T) {
	f := newFixture(t)
	task := f.addTask(t, "Cleanup", store.StatusPending, "")

	_, err := f.registry.Execute(managerCtx("mgr"), RoleManager, "delete_task",
		map[string]any{"task": task.ID})
	if !fault.Is(err, fault.ConfirmationRequired) {
		t.Fatalf("err = %v, want confirmation_required", err)
	}

	// Nothing was deleted.
	if _, err := f.store.GetTask(context.Background(), task.ID); err != nil {
		t.Fatalf("task mutated by refused call: %v", err)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.Execute(managerCtx("mgr"), RoleManager, "launch_missiles", nil)
	if !fault.Is(err, fault.Validation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestExecuteRequiresIdentity(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.Execute(context.Background(), RoleManager, "list_employees", nil)
	if !fault.Is(err, fault.Validation) {
		t.Fatalf("err = %v, want validation without identity", err)
	}

	// A mismatched role is refused too.
	_, err = f.registry.Execute(employeeCtx("emp"), RoleManager, "list_employees", nil)
	if !fault.Is(err, fault.Validation) {
		t.Fatalf("err = %v, want validation on role mismatch", err)
	}
}

func TestRoleScopedCatalogs(t *testing.T) {
	f := newFixture(t)

	// Manager-only tools are invisible to employees.
	_, err := f.registry.Execute(employeeCtx("emp"), RoleEmployee, "delete_task",
		map[string]any{"task": "x"})
	if !fault.Is(err, fault.Validation) {
		t.Fatalf("err = %v, want validation for out-of-role tool", err)
	}

	names := func(role Role) []string {
		var out []string
		for _, d := range f.registry.Defs(role) {
			out = append(out, d.Name)
		}
		return out
	}

	mgr := names(RoleManager)
	if len(mgr) != 12 {
		t.Errorf("manager roster has %d tools, want 12: %v", len(mgr), mgr)
	}
	emp := names(RoleEmployee)
	if len(emp) != 7 {
		t.Errorf("employee roster has %d tools, want 7: %v", len(emp), emp)
	}
	if !sort.StringsAreSorted(mgr) || !sort.StringsAreSorted(emp) {
		t.Error("tool definitions are not sorted by name")
	}
}

func TestSchemaValidationBeforeSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := managerCtx("mgr")

	// Missing required field.
	_, err := f.registry.Execute(ctx, RoleManager, "create_task", map[string]any{})
	if !fault.Is(err, fault.Validation) {
		t.Fatalf("err = %v, want validation", err)
	}

	// Enum violation.
	_, err = f.registry.Execute(ctx, RoleManager, "list_tasks",
		map[string]any{"status": "in_review"})
	if !fault.Is(err, fault.Validation) {
		t.Fatalf("err = %v, want validation for bad enum", err)
	}

	// Range violation.
	_, err = f.registry.Execute(ctx, RoleManager, "update_task",
		map[string]any{"task": "anything", "progress": float64(150)})
	if !fault.Is(err, fault.Validation) {
		t.Fatalf("err = %v, want validation for out-of-range progress", err)
	}

	tasks, err := f.store.ListTasks(context.Background(), store.TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("rejected calls left %d tasks behind", len(tasks))
	}
}

func TestProposeBindsCanonicalID(t *testing.T) {
	f := newFixture(t)
	task := f.addTask(t, "Decommission staging", store.StatusPending, "")
	ctx := managerCtx("mgr")

	bound, desc, err := f.registry.Propose(ctx, RoleManager, "delete_task",
		map[string]any{"task": "decommission"})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if bound["task"] != task.ID {
		t.Errorf("bound task = %v, want canonical id %s", bound["task"], task.ID)
	}
	if desc == "" {
		t.Error("empty proposal description")
	}

	out, err := f.registry.ExecuteApproved(ctx, RoleManager, "delete_task", bound)
	if err != nil {
		t.Fatalf("ExecuteApproved: %v", err)
	}
	if m, ok := out.(map[string]any); !ok || m["deleted"] != true {
		t.Fatalf("unexpected result: %v", out)
	}
	if _, err := f.store.GetTask(context.Background(), task.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("task still present after approved delete: %v", err)
	}
}

func TestProposeAmbiguousReference(t *testing.T) {
	f := newFixture(t)
	f.addTask(t, "Fix login bug", store.StatusPending, "")
	f.addTask(t, "Fix logout bug", store.StatusPending, "")

	_, _, err := f.registry.Propose(managerCtx("mgr"), RoleManager, "delete_task",
		map[string]any{"task": "bug"})
	if !fault.Is(err, fault.Disambiguation) {
		t.Fatalf("err = %v, want disambiguation", err)
	}
}

func TestUnclassifiedErrorsWrappedAsUpstream(t *testing.T) {
	f := newFixture(t)
	// find_employee against a canonical-format id that does not exist is a
	// classified not_found, not a bare store error.
	_, err := f.registry.Execute(managerCtx("mgr"), RoleManager, "find_employee",
		map[string]any{"employee": "b2c7a6d1-0000-4000-8000-000000000000"})
	if !fault.Is(err, fault.NotFound) {
		t.Fatalf("err = %v, want not_found", err)
	}
}

package resolve

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cobaltline/foreman/fault"
	"github.com/cobaltline/foreman/store"
)

func newFixture(t *testing.T) (*Resolver, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, s), s
}

func addEmployee(t *testing.T, s *store.SQLiteStore, name, department string) string {
	t.Helper()
	id, err := s.CreateEmployee(context.Background(), &store.EmployeeRecord{
		Name:       name,
		Email:      "x@example.com",
		Department: department,
		Available:  true,
		Skills:     []string{"go"},
	})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	return id
}

func addTask(t *testing.T, s *store.SQLiteStore, title string) string {
	t.Helper()
	id, err := s.CreateTask(context.Background(), &store.TaskRecord{
		Title:    title,
		Status:   store.StatusPending,
		Priority: store.PriorityLow,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return id
}

func TestResolveEmployeeByCanonicalID(t *testing.T) {
	r, s := newFixture(t)
	id := addEmployee(t, s, "Jane Doe", "engineering")

	res, err := r.ResolveEmployee(context.Background(), id)
	if err != nil {
		t.Fatalf("ResolveEmployee: %v", err)
	}
	if res.Ambiguous() || res.Employee == nil || res.Employee.ID != id {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestCanonicalIDNeverFallsBackToSearch(t *testing.T) {
	r, s := newFixture(t)
	// An employee whose display name happens to contain the missing id's
	// text must not be matched.
	missing := "b2c7a6d1-0000-4000-8000-000000000000"
	addEmployee(t, s, "Agent "+missing, "ops")

	_, err := r.ResolveEmployee(context.Background(), missing)
	if !fault.Is(err, fault.NotFound) {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestResolveEmployeeByName(t *testing.T) {
	r, s := newFixture(t)
	id := addEmployee(t, s, "Jane Doe", "engineering")
	addEmployee(t, s, "Bob Smith", "sales")

	res, err := r.ResolveEmployee(context.Background(), "jane")
	if err != nil {
		t.Fatalf("ResolveEmployee: %v", err)
	}
	if res.Employee == nil || res.Employee.ID != id {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	// The single match is re-fetched so derived fields come along.
	if len(res.Employee.Skills) == 0 {
		t.Error("skills not populated on single-match resolution")
	}
}

func TestResolveEmployeeAmbiguous(t *testing.T) {
	r, s := newFixture(t)
	addEmployee(t, s, "Alex Kim", "engineering")
	addEmployee(t, s, "Alex Kim", "design")

	res, err := r.ResolveEmployee(context.Background(), "Alex Kim")
	if err != nil {
		t.Fatalf("ResolveEmployee: %v", err)
	}
	if !res.Ambiguous() {
		t.Fatal("expected an ambiguous resolution")
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(res.Candidates))
	}
	for _, c := range res.Candidates {
		if c.ID == "" || c.Label != "Alex Kim" || c.Detail == "" {
			t.Errorf("incomplete candidate: %+v", c)
		}
	}
}

func TestResolveEmployeeCandidateCap(t *testing.T) {
	r, s := newFixture(t)
	for i := 0; i < 8; i++ {
		addEmployee(t, s, "Sam Clone", "engineering")
	}

	res, err := r.ResolveEmployee(context.Background(), "Sam")
	if err != nil {
		t.Fatalf("ResolveEmployee: %v", err)
	}
	if len(res.Candidates) != maxCandidates {
		t.Fatalf("got %d candidates, want %d", len(res.Candidates), maxCandidates)
	}
}

func TestResolveEmployeeNotFound(t *testing.T) {
	r, _ := newFixture(t)

	_, err := r.ResolveEmployee(context.Background(), "nobody")
	if !fault.Is(err, fault.NotFound) {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestResolveEmployeeEmptyReference(t *testing.T) {
	r, _ := newFixture(t)

	_, err := r.ResolveEmployee(context.Background(), "   ")
	if !fault.Is(err, fault.Validation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestResolveTaskByTitle(t *testing.T) {
	r, s := newFixture(t)
	id := addTask(t, s, "Migrate billing database")
	addTask(t, s, "Write release notes")

	res, err := r.ResolveTask(context.Background(), "billing")
	if err != nil {
		t.Fatalf("ResolveTask: %v", err)
	}
	if res.Task == nil || res.Task.ID != id {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestResolveTaskAmbiguous(t *testing.T) {
	r, s := newFixture(t)
	addTask(t, s, "Fix login bug")
	addTask(t, s, "Fix logout bug")

	res, err := r.ResolveTask(context.Background(), "bug")
	if err != nil {
		t.Fatalf("ResolveTask: %v", err)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(res.Candidates))
	}
}

func TestIsCanonicalID(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"b2c7a6d1-1234-4abc-8def-0123456789ab", true},
		{"b2c7a6d11234-4abc-8def-0123456789ab", false}, // wrong shape
		{"B2C7A6D1-1234-4ABC-8DEF-0123456789AB", true}, // case-insensitive
		{"urn:uuid:b2c7a6d1-1234-4abc-8def-01", false},
		{"jane doe", false},
		{"", false},
	}
	for _, c := range cases {
		if got := isCanonicalID(c.in); got != c.want {
			t.Errorf("isCanonicalID(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

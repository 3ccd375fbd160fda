// Package resolve turns free-text or identifier references into concrete
// employee or task records. A reference in the canonical identifier format
// is looked up exactly and never falls back to text search; anything else is
// matched case-insensitively against display names. Multiple matches always
// surface as a disambiguation, never an arbitrary pick.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cobaltline/foreman/fault"
	"github.com/cobaltline/foreman/store"
)

// Kind selects which record type a reference should resolve to.
type Kind string

const (
	KindEmployee Kind = "employee"
	KindTask     Kind = "task"
)

// maxCandidates bounds the disambiguation list shown to the user.
const maxCandidates = 5

// Candidate is a lightweight projection of one ambiguous match. It carries
// enough secondary information for the user to pick, nothing more.
type Candidate struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Detail string `json:"detail"`
}

// Resolution is the outcome of resolving a reference. Exactly one of
// Employee or Task is set on an unambiguous match; Candidates is set when
// more than one record matched.
type Resolution struct {
	Employee   *store.EmployeeRecord `json:"employee,omitempty"`
	Task       *store.TaskRecord     `json:"task,omitempty"`
	Candidates []Candidate           `json:"candidates,omitempty"`
}

// Ambiguous reports whether the reference matched more than one record.
func (r *Resolution) Ambiguous() bool { return len(r.Candidates) > 0 }

// Resolver resolves entity references against the datastore.
type Resolver struct {
	employees store.Directory
	tasks     store.Tasks
	titler    cases.Caser
}

// New creates a Resolver over the given datastore surfaces.
func New(employees store.Directory, tasks store.Tasks) *Resolver {
	return &Resolver{
		employees: employees,
		tasks:     tasks,
		titler:    cases.Title(language.English),
	}
}

// Resolve resolves an identifier of the given kind.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, identifier string) (*Resolution, error) {
	switch kind {
	case KindEmployee:
		return r.ResolveEmployee(ctx, identifier)
	case KindTask:
		return r.ResolveTask(ctx, identifier)
	}
	return nil, fault.New(fault.Validation, "unknown entity kind %q", kind)
}

// ResolveEmployee resolves an employee by ID or name substring.
func (r *Resolver) ResolveEmployee(ctx context.Context, identifier string) (*Resolution, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fault.New(fault.Validation, "empty employee reference")
	}

	if isCanonicalID(identifier) {
		e, err := r.employees.GetEmployee(ctx, identifier)
		if err != nil {
			return nil, classifyLookup(err, "employee", identifier)
		}
		return &Resolution{Employee: e}, nil
	}

	matches, err := r.employees.SearchEmployees(ctx, identifier)
	if err != nil {
		return nil, fault.Wrap(fault.Upstream, err, "search employees %q", identifier)
	}
	switch {
	case len(matches) == 0:
		return nil, fault.New(fault.NotFound,
			"no employee matching %q; check the name or identifier", identifier)
	case len(matches) == 1:
		// Re-fetch by ID so derived fields (skills, workload) are populated.
		// The two reads are not transactional; a record deleted in between
		// surfaces as not found.
		e, err := r.employees.GetEmployee(ctx, matches[0].ID)
		if err != nil {
			return nil, classifyLookup(err, "employee", matches[0].ID)
		}
		return &Resolution{Employee: e}, nil
	}

	res := &Resolution{}
	for _, e := range matches {
		if len(res.Candidates) == maxCandidates {
			break
		}
		res.Candidates = append(res.Candidates, Candidate{
			ID:     e.ID,
			Label:  e.Name,
			Detail: fmt.Sprintf("%s, %s", e.Email, r.titler.String(e.Department)),
		})
	}
	return res, nil
}

// ResolveTask resolves a task by ID or title substring.
func (r *Resolver) ResolveTask(ctx context.Context, identifier string) (*Resolution, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fault.New(fault.Validation, "empty task reference")
	}

	if isCanonicalID(identifier) {
		t, err := r.tasks.GetTask(ctx, identifier)
		if err != nil {
			return nil, classifyLookup(err, "task", identifier)
		}
		return &Resolution{Task: t}, nil
	}

	matches, err := r.tasks.SearchTasks(ctx, identifier)
	if err != nil {
		return nil, fault.Wrap(fault.Upstream, err, "search tasks %q", identifier)
	}
	switch {
	case len(matches) == 0:
		return nil, fault.New(fault.NotFound,
			"no task matching %q; check the title or identifier", identifier)
	case len(matches) == 1:
		// Same two-step read as employees: re-fetch for required skills.
		t, err := r.tasks.GetTask(ctx, matches[0].ID)
		if err != nil {
			return nil, classifyLookup(err, "task", matches[0].ID)
		}
		return &Resolution{Task: t}, nil
	}

	res := &Resolution{}
	for _, t := range matches {
		if len(res.Candidates) == maxCandidates {
			break
		}
		res.Candidates = append(res.Candidates, Candidate{
			ID:     t.ID,
			Label:  t.Title,
			Detail: fmt.Sprintf("%s, %s priority", t.Status, t.Priority),
		})
	}
	return res, nil
}

// isCanonicalID reports whether s is a canonical hyphenated identifier.
// Length 36 rules out the compact and urn forms uuid.Parse also accepts.
func isCanonicalID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func classifyLookup(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fault.Wrap(fault.NotFound, err, "%s %s does not exist; check the identifier", kind, id)
	}
	return fault.Wrap(fault.Upstream, err, "look up %s %s", kind, id)
}

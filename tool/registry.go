package tool

import (
	"context"
	"log/slog"
	"sort"

	"github.com/cobaltline/foreman/fault"
	"github.com/cobaltline/foreman/metrics"
	"github.com/cobaltline/foreman/provider"
)

// Registry is the role-partitioned tool catalog. Every execution goes
// through its pipeline: caller identity check, schema validation, the
// confirmation guard for gated tools, then the tool body with unclassified
// errors wrapped as upstream failures.
type Registry struct {
	byRole  map[Role]map[string]Tool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(m *metrics.Metrics, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byRole:  make(map[Role]map[string]Tool),
		metrics: m,
		logger:  logger,
	}
}

// Register adds a tool to a role's catalog. Registering the same name twice
// for one role is a programming error.
func (r *Registry) Register(role Role, t Tool) error {
	if !ValidRole(role) {
		return fault.New(fault.Validation, "unknown role %q", role)
	}
	tools := r.byRole[role]
	if tools == nil {
		tools = make(map[string]Tool)
		r.byRole[role] = tools
	}
	if _, dup := tools[t.Name()]; dup {
		return fault.New(fault.Validation, "tool %q already registered for role %s", t.Name(), role)
	}
	tools[t.Name()] = t
	return nil
}

// Lookup returns the named tool for a role.
func (r *Registry) Lookup(role Role, name string) (Tool, bool) {
	t, ok := r.byRole[role][name]
	return t, ok
}

// Defs returns the provider-facing definitions for a role, sorted by name
// so the tool list presented to the model is stable.
func (r *Registry) Defs(role Role) []provider.ToolDef {
	tools := r.byRole[role]
	defs := make([]provider.ToolDef, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, Definition(t))
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute runs a tool through the full pipeline. Confirmation-gated tools
// are refused here; callers route them through Propose and, after user
// approval, ExecuteApproved.
func (r *Registry) Execute(ctx context.Context, role Role, name string, args map[string]any) (any, error) {
	t, err := r.admit(ctx, role, name, args)
	if err != nil {
		return nil, err
	}
	if t.RequiresConfirmation() {
		return nil, fault.New(fault.ConfirmationRequired,
			"tool %q is destructive or financial and needs explicit user confirmation", name)
	}
	return r.run(ctx, t, args)
}

// Propose validates a gated tool call and asks it to bind its arguments,
// resolving entity references now so later approval executes exactly what
// was shown to the user.
func (r *Registry) Propose(ctx context.Context, role Role, name string, args map[string]any) (bound map[string]any, description string, err error) {
	t, err := r.admit(ctx, role, name, args)
	if err != nil {
		return nil, "", err
	}
	p, ok := t.(Proposer)
	if !ok {
		return nil, "", fault.New(fault.Validation, "tool %q does not support confirmation proposals", name)
	}
	bound, description, err = p.Propose(ctx, args)
	if err != nil {
		return nil, "", classify(err, name)
	}
	r.metrics.IncConfirmationProposed()
	return bound, description, nil
}

// ExecuteApproved runs a previously proposed, user-approved tool call with
// its bound arguments. The confirmation guard is satisfied by construction.
func (r *Registry) ExecuteApproved(ctx context.Context, role Role, name string, bound map[string]any) (any, error) {
	t, err := r.admit(ctx, role, name, bound)
	if err != nil {
		return nil, err
	}
	r.metrics.IncConfirmationApproved()
	return r.run(ctx, t, bound)
}

// admit performs the checks common to every entry point.
func (r *Registry) admit(ctx context.Context, role Role, name string, args map[string]any) (Tool, error) {
	t, ok := r.Lookup(role, name)
	if !ok {
		return nil, fault.New(fault.Validation, "unknown tool %q for role %s", name, role)
	}
	id, ok := IdentityFromContext(ctx)
	if !ok || id.Role != role {
		return nil, fault.New(fault.Validation, "missing or mismatched caller identity for tool %q", name)
	}
	if err := t.Schema().Validate(args); err != nil {
		r.metrics.IncSchemaRejection()
		return nil, err
	}
	return t, nil
}

func (r *Registry) run(ctx context.Context, t Tool, args map[string]any) (any, error) {
	r.metrics.IncTool(t.Name())
	out, err := t.Execute(ctx, args)
	if err != nil {
		r.metrics.IncToolFailure(t.Name())
		err = classify(err, t.Name())
		r.logger.Debug("tool failed", slog.String("tool", t.Name()), slog.Any("err", err))
		return nil, err
	}
	return out, nil
}

// classify wraps errors that carry no taxonomy kind as upstream failures.
func classify(err error, tool string) error {
	if fault.KindOf(err) != "" {
		return err
	}
	return fault.Wrap(fault.Upstream, err, "tool %s", tool)
}

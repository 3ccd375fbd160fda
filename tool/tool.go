// Package tool declares the role-scoped operations the assistant may invoke
// and mediates their execution: schema validation before any side effect,
// an explicit confirmation guard on destructive and financial tools, and
// translation of lower-level errors into the shared taxonomy.
package tool

import (
	"context"

	"github.com/cobaltline/foreman/provider"
)

// Role partitions the tool surface.
type Role string

const (
	// RoleManager has full read/write access to employee and task management.
	RoleManager Role = "manager"

	// RoleEmployee is limited to self-scoped task tools plus read-only
	// lookups of colleagues and tasks.
	RoleEmployee Role = "employee"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	return r == RoleManager || r == RoleEmployee
}

// Identity is the immutable per-turn caller context. Tools derive any
// "my tasks"/"my profile" scoping from it and never accept a caller-supplied
// identity override.
type Identity struct {
	ID   string
	Role Role
}

type identityKey struct{}

// WithIdentity returns a context carrying the caller identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller identity, if set.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Tool is a named, schema-typed operation the orchestrator may invoke.
type Tool interface {
	// Name returns the unique tool identifier.
	Name() string

	// Description returns the human-readable description used for selection.
	Description() string

	// Schema returns the tool's typed input schema.
	Schema() Schema

	// RequiresConfirmation reports whether the tool is destructive or
	// financial and must be gated behind an explicit user confirmation.
	RequiresConfirmation() bool

	// Execute runs the tool with validated arguments.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Proposer is implemented by confirmation-gated tools. Propose resolves the
// tool's entity references exactly once and returns bound arguments carrying
// canonical identities, plus a consequence description for the user. The
// later execution uses the bound arguments as-is, so no second lookup can
// silently bind to a different record.
type Proposer interface {
	Propose(ctx context.Context, args map[string]any) (bound map[string]any, description string, err error)
}

// Definition returns the provider-facing tool definition for t.
func Definition(t Tool) provider.ToolDef {
	return provider.ToolDef{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Schema().Parameters(),
	}
}

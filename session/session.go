// Package session orchestrates conversations. A session is the unit of
// conversational state: transcript, pending confirmation, and caller
// identity. Sessions are held in a bounded LRU registry keyed by role and
// caller, and each session serializes its own turns, so concurrent turns for
// different callers proceed in parallel while one caller's turns stay ordered.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cobaltline/foreman/confirm"
	"github.com/cobaltline/foreman/fault"
	"github.com/cobaltline/foreman/metrics"
	"github.com/cobaltline/foreman/provider"
	"github.com/cobaltline/foreman/tool"
)

const (
	defaultStepBudget  = 8
	minStepBudget      = 5
	maxStepBudget      = 20
	defaultMaxSessions = 128

	// maxHistory bounds the transcript carried between turns. Older messages
	// fall off the front.
	maxHistory = 40
)

// Config configures a Manager.
type Config struct {
	Provider provider.Provider
	Registry *tool.Registry
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// StepBudget is the maximum tool invocations per turn. Values outside
	// [5, 20] are clamped; zero means the default of 8.
	StepBudget int

	// MaxSessions bounds the session registry; least recently used sessions
	// are evicted. Zero means the default of 128.
	MaxSessions int

	// ConfirmGraceTurns is how many unrelated turns a pending confirmation
	// survives before silent expiry. Zero means 1.
	ConfirmGraceTurns int
}

// Manager owns the session registry and runs turns.
type Manager struct {
	provider   provider.Provider
	registry   *tool.Registry
	metrics    *metrics.Metrics
	logger     *slog.Logger
	stepBudget int
	graceTurns int

	mu       sync.Mutex
	sessions *lru.Cache[string, *session]
}

type session struct {
	mu       sync.Mutex
	identity tool.Identity
	history  []provider.Message
	confirm  *confirm.Workflow
}

// NewManager creates a Manager, applying defaults for zero config fields.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("session manager requires a provider")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("session manager requires a tool registry")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StepBudget == 0 {
		cfg.StepBudget = defaultStepBudget
	}
	if cfg.StepBudget < minStepBudget {
		cfg.StepBudget = minStepBudget
	}
	if cfg.StepBudget > maxStepBudget {
		cfg.StepBudget = maxStepBudget
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	if cfg.ConfirmGraceTurns <= 0 {
		cfg.ConfirmGraceTurns = 1
	}

	cache, err := lru.New[string, *session](cfg.MaxSessions)
	if err != nil {
		return nil, fmt.Errorf("session registry: %w", err)
	}
	return &Manager{
		provider:   cfg.Provider,
		registry:   cfg.Registry,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		stepBudget: cfg.StepBudget,
		graceTurns: cfg.ConfirmGraceTurns,
		sessions:   cache,
	}, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions.Len()
}

// End discards the session for a caller, if any.
func (m *Manager) End(role tool.Role, callerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Remove(sessionKey(role, callerID))
}

// Reset discards all sessions.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Purge()
}

// SubmitTurn processes one user message for the given caller and returns the
// assistant's reply. Turns for the same caller are serialized; a failure
// leaves the session usable for the next turn.
func (m *Manager) SubmitTurn(ctx context.Context, role tool.Role, callerID, userText string) (string, error) {
	if !tool.ValidRole(role) {
		return "", fault.New(fault.Validation, "unknown role %q", role)
	}
	if strings.TrimSpace(userText) == "" {
		return "", fault.New(fault.Validation, "empty message")
	}
	m.metrics.IncTurn()

	s := m.getOrCreate(role, callerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = tool.WithIdentity(ctx, s.identity)

	reply, err := m.runTurn(ctx, s, userText)
	if err != nil {
		m.metrics.IncTurnFailure()
		return "", err
	}
	return reply, nil
}

func (m *Manager) getOrCreate(role tool.Role, callerID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(role, callerID)
	if s, ok := m.sessions.Get(key); ok {
		return s
	}
	s := &session{
		identity: tool.Identity{ID: callerID, Role: role},
		confirm:  confirm.New(m.graceTurns),
	}
	m.sessions.Add(key, s)
	return s
}

func sessionKey(role tool.Role, callerID string) string {
	return string(role) + "/" + callerID
}

func (m *Manager) runTurn(ctx context.Context, s *session, userText string) (string, error) {
	s.append(provider.Message{Role: provider.RoleUser, Content: userText})

	switch d := s.confirm.Observe(userText); d.Action {
	case confirm.ActionApprove:
		return m.executeApproved(ctx, s, d.Pending)
	case confirm.ActionDecline:
		reply := "Understood, I won't do that. The action has been cancelled."
		s.append(provider.Message{Role: provider.RoleAssistant, Content: reply})
		return reply, nil
	case confirm.ActionHold:
		p := s.confirm.Pending()
		reply := fmt.Sprintf("Still waiting on your confirmation: %s Reply yes to proceed or no to cancel.",
			p.Description)
		s.append(provider.Message{Role: provider.RoleAssistant, Content: reply})
		return reply, nil
	}
	// ActionNone and ActionExpire both fall through to a normal turn; an
	// expired proposal is dropped without comment.

	return m.loop(ctx, s)
}

// executeApproved runs the pending tool call exactly as proposed. The bound
// arguments already carry canonical identities; no reference is re-resolved.
func (m *Manager) executeApproved(ctx context.Context, s *session, p *confirm.Pending) (string, error) {
	out, err := m.registry.ExecuteApproved(ctx, s.identity.Role, p.Tool, p.Args)
	if err != nil {
		reply := fmt.Sprintf("That didn't work: %v", err)
		s.append(provider.Message{Role: provider.RoleAssistant, Content: reply})
		return reply, nil
	}
	reply := "Done. " + summarize(out)
	s.append(provider.Message{Role: provider.RoleAssistant, Content: reply})
	return reply, nil
}

// loop drives the model with tool access until it produces a final text
// reply, a confirmation proposal, or the step budget is exhausted.
func (m *Manager) loop(ctx context.Context, s *session) (string, error) {
	defs := m.registry.Defs(s.identity.Role)
	system := provider.Message{Role: provider.RoleSystem, Content: systemPrompt(s.identity.Role)}

	steps := 0
	for {
		msgs := append([]provider.Message{system}, s.history...)
		resp, err := m.provider.Chat(ctx, msgs, defs)
		if err != nil {
			return "", fault.Wrap(fault.Upstream, err, "model call failed")
		}

		if len(resp.ToolCalls) == 0 {
			s.append(provider.Message{Role: provider.RoleAssistant, Content: resp.Content})
			return resp.Content, nil
		}

		if resp.Content != "" {
			s.append(provider.Message{Role: provider.RoleAssistant, Content: resp.Content})
		}

		for _, call := range resp.ToolCalls {
			steps++
			if steps > m.stepBudget {
				return "", fault.New(fault.StepBudget,
					"turn exceeded its budget of %d tool invocations", m.stepBudget)
			}

			if t, ok := m.registry.Lookup(s.identity.Role, call.Name); ok && t.RequiresConfirmation() {
				reply, proposed := m.propose(ctx, s, call)
				if proposed {
					return reply, nil
				}
				s.append(provider.Message{Role: provider.RoleTool, ToolCallID: call.ID, Content: reply})
				continue
			}

			out, err := m.registry.Execute(ctx, s.identity.Role, call.Name, call.Arguments)
			content := summarize(out)
			if err != nil {
				content = "error: " + err.Error()
			}
			m.logger.Debug("tool call",
				slog.String("tool", call.Name),
				slog.Int("step", steps),
				slog.Bool("failed", err != nil))
			s.append(provider.Message{Role: provider.RoleTool, ToolCallID: call.ID, Content: content})
		}
	}
}

// propose validates and binds a gated tool call, then parks it pending
// confirmation. On a proposal failure (unresolvable or ambiguous reference,
// bad input) the error text is returned as a tool result so the model can
// relay it, and proposed is false.
func (m *Manager) propose(ctx context.Context, s *session, call provider.ToolCall) (reply string, proposed bool) {
	bound, desc, err := m.registry.Propose(ctx, s.identity.Role, call.Name, call.Arguments)
	if err != nil {
		return "error: " + err.Error(), false
	}
	s.confirm.Propose(call.Name, bound, desc)
	reply = desc + " Reply yes to proceed or no to cancel."
	s.append(provider.Message{Role: provider.RoleAssistant, Content: reply})
	return reply, true
}

func (s *session) append(msg provider.Message) {
	s.history = append(s.history, msg)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
}

// summarize renders a tool result for the transcript.
func summarize(out any) string {
	if out == nil {
		return "ok"
	}
	if s, ok := out.(string); ok {
		return s
	}
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("%v", out)
	}
	return string(b)
}

func systemPrompt(role tool.Role) string {
	switch role {
	case tool.RoleManager:
		return "You are a task management assistant for a team manager. " +
			"Use the provided tools to look up employees and tasks, create and assign work, " +
			"and handle payments. When a lookup returns multiple candidates, list the numbered " +
			"options and ask the user to choose; never pick one yourself. " +
			"Destructive and payment actions require the user's explicit confirmation."
	default:
		return "You are a task management assistant for an employee. " +
			"Use the provided tools to review your profile and tasks, accept or decline " +
			"invitations, and report progress. When a lookup returns multiple candidates, " +
			"list the numbered options and ask the user to choose; never pick one yourself."
	}
}

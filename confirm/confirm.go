// Package confirm implements the conversation-scoped protocol gating
// destructive and financial tool calls behind an explicit user affirmation.
// A pending proposal holds the tool name and its fully bound arguments,
// including already-resolved entity identities, so approval executes exactly
// what was proposed with no second lookup.
package confirm

import "strings"

// State of the workflow.
type State string

const (
	StateIdle     State = "idle"
	StateProposed State = "proposed"
)

// Action is what the caller should do after observing a user turn.
type Action int

const (
	// ActionNone means nothing was pending; process the turn normally.
	ActionNone Action = iota

	// ActionApprove means the user affirmed; execute Decision.Pending as
	// proposed, with no re-resolution of references.
	ActionApprove

	// ActionDecline means the user refused; nothing is executed.
	ActionDecline

	// ActionExpire means the proposal went stale and was discarded silently;
	// process the turn normally.
	ActionExpire

	// ActionHold means the proposal is still pending; the caller should
	// re-prompt for confirmation.
	ActionHold
)

// Pending is a proposed, not-yet-confirmed tool call. It is ephemeral
// conversation state and is never persisted.
type Pending struct {
	Tool        string
	Args        map[string]any
	Description string // human-readable consequences
	turnsLeft   int
}

// Decision is the outcome of observing one user turn.
type Decision struct {
	Action  Action
	Pending *Pending // set for ActionApprove
}

// Workflow tracks at most one pending proposal for a conversation. It is not
// internally synchronized; the owning session serializes turns for its key.
type Workflow struct {
	graceTurns int
	pending    *Pending
}

// New creates a Workflow. graceTurns is how many non-matching user turns a
// proposal survives before silent expiry; values below 1 get the default of 1.
func New(graceTurns int) *Workflow {
	if graceTurns < 1 {
		graceTurns = 1
	}
	return &Workflow{graceTurns: graceTurns}
}

// State returns the current workflow state.
func (w *Workflow) State() State {
	if w.pending != nil {
		return StateProposed
	}
	return StateIdle
}

// Pending returns the current proposal, or nil.
func (w *Workflow) Pending() *Pending { return w.pending }

// Propose records a tool call awaiting confirmation, replacing any prior
// proposal. Args must already carry resolved entity identities.
func (w *Workflow) Propose(tool string, args map[string]any, description string) {
	w.pending = &Pending{
		Tool:        tool,
		Args:        args,
		Description: description,
		turnsLeft:   w.graceTurns,
	}
}

// Observe applies one user turn to the workflow. Affirmative text approves
// the pending proposal; negative text declines it; anything else consumes
// the grace window and eventually expires the proposal silently.
func (w *Workflow) Observe(userText string) Decision {
	if w.pending == nil {
		return Decision{Action: ActionNone}
	}
	switch {
	case Affirmative(userText):
		p := w.pending
		w.pending = nil
		return Decision{Action: ActionApprove, Pending: p}
	case Negative(userText):
		w.pending = nil
		return Decision{Action: ActionDecline}
	}

	w.pending.turnsLeft--
	if w.pending.turnsLeft <= 0 {
		w.pending = nil
		return Decision{Action: ActionExpire}
	}
	return Decision{Action: ActionHold}
}

// Reset discards any pending proposal.
func (w *Workflow) Reset() { w.pending = nil }

var affirmativeTokens = map[string]struct{}{
	"yes": {}, "y": {}, "yeah": {}, "yep": {}, "confirm": {}, "confirmed": {},
	"approve": {}, "approved": {}, "ok": {}, "okay": {}, "sure": {},
	"proceed": {}, "go ahead": {}, "do it": {},
}

var negativeTokens = map[string]struct{}{
	"no": {}, "n": {}, "nope": {}, "cancel": {}, "stop": {}, "abort": {},
	"reject": {}, "decline": {}, "don't": {}, "dont": {}, "nevermind": {},
	"never mind": {},
}

// Affirmative reports whether text is an explicit yes.
func Affirmative(text string) bool {
	_, ok := affirmativeTokens[normalizeToken(text)]
	return ok
}

// Negative reports whether text is an explicit no.
func Negative(text string) bool {
	_, ok := negativeTokens[normalizeToken(text)]
	return ok
}

func normalizeToken(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRight(t, ".!?,")
	return t
}

package tool

import (
	"fmt"
	"strings"
	"time"

	"github.com/cobaltline/foreman/fault"
	"github.com/cobaltline/foreman/resolve"
)

// disambiguation builds the structured payload returned when a reference
// matches multiple records. It is a successful tool result, not an error:
// the model relays the numbered options and the user picks one.
func disambiguation(kind resolve.Kind, ref string, cands []resolve.Candidate) map[string]any {
	opts := make([]map[string]any, 0, len(cands))
	for i, c := range cands {
		opts = append(opts, map[string]any{
			"option": i + 1,
			"id":     c.ID,
			"label":  c.Label,
			"detail": c.Detail,
		})
	}
	return map[string]any{
		"disambiguation": true,
		"message": fmt.Sprintf("multiple %ss match %q; ask the user to choose one option and retry with its id",
			kind, ref),
		"candidates": opts,
	}
}

// disambiguationErr is the proposal-path equivalent: proposals cannot carry
// a structured payload, so the candidates are folded into the message.
func disambiguationErr(kind resolve.Kind, ref string, cands []resolve.Candidate) error {
	var b strings.Builder
	fmt.Fprintf(&b, "multiple %ss match %q; ask the user to choose one and retry with its id:", kind, ref)
	for i, c := range cands {
		fmt.Fprintf(&b, " %d) %s (%s, id %s)", i+1, c.Label, c.Detail, c.ID)
	}
	return fault.New(fault.Disambiguation, "%s", b.String())
}

// parseDeadline accepts RFC 3339 timestamps or bare dates.
func parseDeadline(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fault.New(fault.Validation,
			"deadline %q must be an RFC 3339 timestamp or a YYYY-MM-DD date", s)
	}
	return t, nil
}

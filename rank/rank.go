// Package rank scores candidate employees against a task's required skills.
// Ranking never filters anyone out: an employee with zero matched skills is
// still reported, just with a low score, so the caller can always offer the
// best available person.
package rank

import (
	"sort"
	"strings"

	"github.com/cobaltline/foreman/store"
)

// Ranked is one scored candidate.
type Ranked struct {
	Employee *store.EmployeeRecord `json:"employee"`
	Matched  []string              `json:"matched_skills"`
	Score    float64               `json:"score"`
}

// Rank orders candidates by skill fit. Score is |matched| / |required| when
// required is non-empty; ties break by ascending workload, then descending
// performance score. With no required skills, candidates are ranked purely
// by ascending workload then descending performance. Output is deterministic
// for a fixed candidate ordering.
func Rank(required []string, candidates []*store.EmployeeRecord) []Ranked {
	req := normalize(required)

	out := make([]Ranked, 0, len(candidates))
	for _, e := range candidates {
		matched := matchSkills(req, e.Skills)
		var score float64
		if len(req) > 0 {
			score = float64(len(matched)) / float64(len(req))
		}
		out = append(out, Ranked{Employee: e, Matched: matched, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Employee.Workload != b.Employee.Workload {
			return a.Employee.Workload < b.Employee.Workload
		}
		return a.Employee.PerformanceScore > b.Employee.PerformanceScore
	})
	return out
}

// matchSkills returns the required tags matched by the candidate's skills,
// in required order. Matching is case-insensitive substring containment in
// either direction, to tolerate phrasing variance ("react" vs "reactjs").
func matchSkills(required, skills []string) []string {
	var matched []string
	for _, r := range required {
		for _, s := range skills {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if strings.Contains(s, r) || strings.Contains(r, s) {
				matched = append(matched, r)
				break
			}
		}
	}
	return matched
}

// normalize lower-cases, trims, and de-duplicates tags, preserving order.
func normalize(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

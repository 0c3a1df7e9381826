package domain

import (
	"sort"
	"strings"
)

// MuscleGroupRule maps a name fragment to the muscle groups it trains.
type MuscleGroupRule struct {
	Pattern      string
	MuscleGroups []string
}

// MuscleGroupTable infers muscle groups from an exercise's display name by
// case-insensitive substring match. The longest matching pattern wins, so
// "leg curl" is not tagged like a biceps curl.
type MuscleGroupTable struct {
	rules []MuscleGroupRule
}

// NewMuscleGroupTable builds a table from rules. Patterns are matched in lower case.
func NewMuscleGroupTable(rules []MuscleGroupRule) *MuscleGroupTable {
	t := &MuscleGroupTable{}
	for _, r := range rules {
		t.Add(r)
	}
	return t
}

// DefaultMuscleGroupTable returns the built-in lookup table.
func DefaultMuscleGroupTable() *MuscleGroupTable {
	return NewMuscleGroupTable([]MuscleGroupRule{
		{Pattern: "bench", MuscleGroups: []string{"chest", "triceps", "shoulders"}},
		{Pattern: "chest", MuscleGroups: []string{"chest"}},
		{Pattern: "fly", MuscleGroups: []string{"chest"}},
		{Pattern: "push-up", MuscleGroups: []string{"chest", "triceps"}},
		{Pattern: "push up", MuscleGroups: []string{"chest", "triceps"}},
		{Pattern: "dip", MuscleGroups: []string{"chest", "triceps"}},
		{Pattern: "overhead press", MuscleGroups: []string{"shoulders", "triceps"}},
		{Pattern: "shoulder", MuscleGroups: []string{"shoulders"}},
		{Pattern: "lateral raise", MuscleGroups: []string{"shoulders"}},
		{Pattern: "military", MuscleGroups: []string{"shoulders", "triceps"}},
		{Pattern: "tricep", MuscleGroups: []string{"triceps"}},
		{Pattern: "skull", MuscleGroups: []string{"triceps"}},
		{Pattern: "curl", MuscleGroups: []string{"biceps"}},
		{Pattern: "bicep", MuscleGroups: []string{"biceps"}},
		{Pattern: "row", MuscleGroups: []string{"back", "biceps"}},
		{Pattern: "pull-up", MuscleGroups: []string{"back", "biceps"}},
		{Pattern: "pull up", MuscleGroups: []string{"back", "biceps"}},
		{Pattern: "chin", MuscleGroups: []string{"back", "biceps"}},
		{Pattern: "pulldown", MuscleGroups: []string{"back", "biceps"}},
		{Pattern: "deadlift", MuscleGroups: []string{"back", "hamstrings", "glutes"}},
		{Pattern: "squat", MuscleGroups: []string{"quadriceps", "glutes"}},
		{Pattern: "lunge", MuscleGroups: []string{"quadriceps", "glutes"}},
		{Pattern: "leg press", MuscleGroups: []string{"quadriceps", "glutes"}},
		{Pattern: "leg extension", MuscleGroups: []string{"quadriceps"}},
		{Pattern: "leg curl", MuscleGroups: []string{"hamstrings"}},
		{Pattern: "hip thrust", MuscleGroups: []string{"glutes"}},
		{Pattern: "calf", MuscleGroups: []string{"calves"}},
		{Pattern: "crunch", MuscleGroups: []string{"core"}},
		{Pattern: "plank", MuscleGroups: []string{"core"}},
		{Pattern: "ab ", MuscleGroups: []string{"core"}},
		{Pattern: "shrug", MuscleGroups: []string{"traps"}},
	})
}

// Add registers another rule. On equal pattern length the earlier rule wins.
func (t *MuscleGroupTable) Add(rule MuscleGroupRule) {
	rule.Pattern = strings.ToLower(rule.Pattern)
	t.rules = append(t.rules, rule)
}

// Lookup returns the muscle groups of the longest pattern that occurs in
// name. ok is false when nothing matched; the returned slice is then empty,
// never nil.
func (t *MuscleGroupTable) Lookup(name string) (groups []string, ok bool) {
	lower := strings.ToLower(name) + " "
	var best *MuscleGroupRule
	for i := range t.rules {
		r := &t.rules[i]
		if !strings.Contains(lower, r.Pattern) {
			continue
		}
		if best == nil || len(r.Pattern) > len(best.Pattern) {
			best = r
		}
	}
	if best == nil {
		return []string{}, false
	}
	groups = append([]string(nil), best.MuscleGroups...)
	sort.Strings(groups)
	return groups, true
}

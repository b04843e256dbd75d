package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OrGroups is a tile's unlock requirement: the expression is satisfied when
// at least one inner group is satisfied, and a group is satisfied when every
// tile id in it is satisfied. An empty expression is vacuously satisfied.
type OrGroups [][]string

// Flags is the aggregated per-tile progress of one team.
type Flags struct {
	HasSubmission  bool
	Complete       bool
	Verified       bool
	RequiresAction bool
}

// ParsePrereq parses the raw prerequisite text of a tile. Two encodings are
// accepted: a JSON array of arrays of tile ids, or a flat comma-separated
// list which becomes a single AND group. Malformed JSON degrades to the
// comma-split path; ParsePrereq never fails.
func ParsePrereq(raw string) OrGroups {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		if groups, ok := parseJSONGroups(trimmed); ok {
			return groups
		}
	}
	return commaGroup(trimmed)
}

func parseJSONGroups(raw string) (OrGroups, bool) {
	var outer []any
	if err := json.Unmarshal([]byte(raw), &outer); err != nil {
		return nil, false
	}
	if len(outer) == 0 {
		return OrGroups{}, true
	}
	if _, ok := outer[0].([]any); !ok {
		return nil, false
	}
	var groups OrGroups
	for _, item := range outer {
		inner, ok := item.([]any)
		if !ok {
			continue
		}
		group := make([]string, 0, len(inner))
		for _, el := range inner {
			id := strings.TrimSpace(coerceID(el))
			if id != "" {
				group = append(group, id)
			}
		}
		groups = append(groups, group)
	}
	return groups, true
}

func coerceID(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func commaGroup(raw string) OrGroups {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return OrGroups{ids}
}

// Satisfied reports whether the expression holds against a team's progress.
// With strict=true only verified tiles count; otherwise complete tiles count
// too. Ids missing from progress are unsatisfied.
func (g OrGroups) Satisfied(progress map[string]Flags, strict bool) bool {
	if len(g) == 0 {
		return true
	}
	for _, group := range g {
		if groupSatisfied(group, progress, strict) {
			return true
		}
	}
	return false
}

func groupSatisfied(ids []string, progress map[string]Flags, strict bool) bool {
	for _, id := range ids {
		f := progress[id]
		if strict {
			if !f.Verified {
				return false
			}
		} else if !f.Verified && !f.Complete {
			return false
		}
	}
	return true
}

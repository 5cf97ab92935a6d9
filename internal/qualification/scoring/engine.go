// Package scoring turns lead attributes into a 0..100 score using a
// configurable rule set. Scoring is pure: the same attributes and rule set
// always produce the same Result.
package scoring

import (
	"strconv"
	"strings"

	"leadflow_backend/platform/textnorm"
)

const maxTotal = 100

// Attributes is a lead flattened to field → value.
type Attributes map[string]string

// Result is the outcome of scoring one lead.
type Result struct {
	Total            int            `json:"total"`
	WeightedTotal    int            `json:"weighted_total"`
	Breakdown        map[string]int `json:"breakdown"`
	MaxPossible      int            `json:"max_possible"`
	InstantQualifier bool           `json:"instant_qualifier"`
	RuleSet          string         `json:"rule_set"`
	Version          string         `json:"version,omitempty"`
}

// Engine scores leads against one rule set.
type Engine struct {
	rules *RuleSet
}

// NewEngine binds an engine to rs.
func NewEngine(rs *RuleSet) *Engine {
	return &Engine{rules: rs}
}

// RuleSet returns the rule set the engine scores with.
func (e *Engine) RuleSet() *RuleSet {
	return e.rules
}

// Score evaluates attrs. Fields without a matching rule contribute nothing.
func (e *Engine) Score(attrs Attributes) Result {
	rs := e.rules
	result := Result{
		Breakdown:   make(map[string]int, len(rs.Categories)),
		MaxPossible: rs.MaxPossible(),
		RuleSet:     rs.Name,
		Version:     rs.Version,
	}

	for _, rule := range rs.Rules {
		if rule.InstantQualifier && rule.matches(attrs) {
			result.InstantQualifier = true
			break
		}
	}

	raw := make(map[string]int, len(rs.Categories))
	for _, rule := range rs.Rules {
		if rule.InstantQualifier || !rule.matches(attrs) {
			continue
		}
		raw[rule.Category] += rule.Points
	}

	for _, cat := range rs.Categories {
		points := clamp(raw[cat.Name], 0, cat.Weight)
		result.Breakdown[cat.Name] = points
		result.WeightedTotal += points
	}
	result.WeightedTotal = clamp(result.WeightedTotal, 0, maxTotal)

	if result.InstantQualifier {
		result.Total = clamp(rs.QualifierScore, 0, maxTotal)
	} else {
		result.Total = result.WeightedTotal
	}
	return result
}

// Compare orders results for queueing: instant qualifiers first, then higher
// totals. It returns a negative number when a ranks ahead of b.
func Compare(a, b Result) int {
	if a.InstantQualifier != b.InstantQualifier {
		if a.InstantQualifier {
			return -1
		}
		return 1
	}
	return b.Total - a.Total
}

func (r Rule) matches(attrs Attributes) bool {
	raw, ok := attrs[r.Field]
	raw = strings.TrimSpace(raw)

	switch r.Operator {
	case OpPresent:
		return ok && raw != ""
	case OpEq:
		return ok && textnorm.Equal(raw, r.Value)
	case OpNeq:
		return ok && raw != "" && !textnorm.Equal(raw, r.Value)
	case OpIn:
		if !ok || raw == "" {
			return false
		}
		folded := textnorm.Fold(raw)
		for _, v := range r.candidates() {
			if textnorm.Fold(v) == folded {
				return true
			}
		}
		return false
	case OpContains:
		needle := textnorm.Fold(r.Value)
		return ok && needle != "" && strings.Contains(textnorm.Fold(raw), needle)
	case OpGt, OpGte, OpLt, OpLte:
		return ok && compareNumeric(r.Operator, raw, r.Value)
	}
	return false
}

func (r Rule) candidates() []string {
	if len(r.Values) > 0 {
		return r.Values
	}
	return strings.Split(r.Value, ",")
}

func compareNumeric(op Operator, raw, threshold string) bool {
	got, err := parseNumber(raw)
	if err != nil {
		return false
	}
	want, err := parseNumber(threshold)
	if err != nil {
		return false
	}
	switch op {
	case OpGt:
		return got > want
	case OpGte:
		return got >= want
	case OpLt:
		return got < want
	case OpLte:
		return got <= want
	}
	return false
}

// parseNumber accepts plain numbers and pt-BR grouping such as "150.000,50".
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

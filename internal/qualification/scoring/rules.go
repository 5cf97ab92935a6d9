package scoring

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules/*.yaml
var builtinRules embed.FS

// Operator names a comparison applied to one lead field.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpIn       Operator = "in"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpPresent  Operator = "present"
	OpContains Operator = "contains"
)

func (o Operator) valid() bool {
	switch o {
	case OpEq, OpNeq, OpIn, OpGt, OpGte, OpLt, OpLte, OpPresent, OpContains:
		return true
	}
	return false
}

// Category is a scored dimension. Weight is the ceiling in points.
type Category struct {
	Name   string `yaml:"name" json:"name"`
	Weight int    `yaml:"weight" json:"weight"`
}

// Rule awards Points to Category when Field satisfies Operator against Value.
// A rule flagged InstantQualifier forces the qualifier score instead and may
// omit the category.
type Rule struct {
	Category         string   `yaml:"category" json:"category"`
	Field            string   `yaml:"field" json:"field"`
	Operator         Operator `yaml:"operator" json:"operator"`
	Value            string   `yaml:"value" json:"value,omitempty"`
	Values           []string `yaml:"values" json:"values,omitempty"`
	Points           int      `yaml:"points" json:"points"`
	InstantQualifier bool     `yaml:"instant_qualifier" json:"instant_qualifier"`
}

// RuleSet is one named scoring configuration.
type RuleSet struct {
	Name           string     `yaml:"name" json:"name"`
	Version        string     `yaml:"version" json:"version"`
	Categories     []Category `yaml:"categories" json:"categories"`
	Rules          []Rule     `yaml:"rules" json:"rules"`
	QualifierScore int        `yaml:"qualifier_score" json:"qualifier_score"`
	HotThreshold   int        `yaml:"hot_threshold" json:"hot_threshold,omitempty"`
	WarmThreshold  int        `yaml:"warm_threshold" json:"warm_threshold,omitempty"`
}

type ruleFile struct {
	RuleSets []RuleSet `yaml:"rule_sets"`
}

// Catalog indexes rule sets by name.
type Catalog map[string]*RuleSet

// Get returns the named rule set.
func (c Catalog) Get(name string) (*RuleSet, error) {
	rs, ok := c[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("scoring: unknown rule set %q", name)
	}
	return rs, nil
}

// Parse decodes and validates a YAML rule file.
func Parse(data []byte) (Catalog, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("scoring: decode rules: %w", err)
	}

	catalog := make(Catalog, len(file.RuleSets))
	for i := range file.RuleSets {
		rs := file.RuleSets[i]
		if rs.QualifierScore == 0 {
			rs.QualifierScore = maxTotal
		}
		if err := rs.Validate(); err != nil {
			return nil, err
		}
		if _, dup := catalog[rs.Name]; dup {
			return nil, fmt.Errorf("scoring: duplicate rule set %q", rs.Name)
		}
		catalog[rs.Name] = &rs
	}
	return catalog, nil
}

// Builtin returns the embedded rule sets.
func Builtin() (Catalog, error) {
	entries, err := builtinRules.ReadDir("rules")
	if err != nil {
		return nil, fmt.Errorf("scoring: read builtin rules: %w", err)
	}

	catalog := make(Catalog)
	for _, entry := range entries {
		data, err := builtinRules.ReadFile("rules/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("scoring: read %s: %w", entry.Name(), err)
		}
		parsed, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		for name, rs := range parsed {
			catalog[name] = rs
		}
	}
	return catalog, nil
}

// Load returns the rule sets from path, or the builtin ones when path is empty.
func Load(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Builtin()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scoring: read %s: %w", path, err)
	}
	return Parse(data)
}

// Validate rejects unknown operators, rules in undeclared categories,
// negative weights and weights that add up past the 100 point scale.
func (rs *RuleSet) Validate() error {
	if strings.TrimSpace(rs.Name) == "" {
		return fmt.Errorf("scoring: rule set without name")
	}

	weights := make(map[string]int, len(rs.Categories))
	for _, cat := range rs.Categories {
		if cat.Weight < 0 {
			return fmt.Errorf("scoring: %s: category %q has negative weight", rs.Name, cat.Name)
		}
		if _, dup := weights[cat.Name]; dup {
			return fmt.Errorf("scoring: %s: duplicate category %q", rs.Name, cat.Name)
		}
		weights[cat.Name] = cat.Weight
	}
	if total := rs.MaxPossible(); total > maxTotal {
		return fmt.Errorf("scoring: %s: category weights sum to %d, above %d", rs.Name, total, maxTotal)
	}

	for i, rule := range rs.Rules {
		if !rule.Operator.valid() {
			return fmt.Errorf("scoring: %s: rule %d: unknown operator %q", rs.Name, i, rule.Operator)
		}
		if strings.TrimSpace(rule.Field) == "" {
			return fmt.Errorf("scoring: %s: rule %d: missing field", rs.Name, i)
		}
		if rule.InstantQualifier && rule.Category == "" {
			continue
		}
		if _, ok := weights[rule.Category]; !ok {
			return fmt.Errorf("scoring: %s: rule %d: undeclared category %q", rs.Name, i, rule.Category)
		}
	}

	if rs.HotThreshold != 0 && rs.HotThreshold <= rs.WarmThreshold {
		return fmt.Errorf("scoring: %s: hot_threshold must exceed warm_threshold", rs.Name)
	}
	return nil
}

// MaxPossible is the sum of category weights.
func (rs *RuleSet) MaxPossible() int {
	total := 0
	for _, cat := range rs.Categories {
		total += cat.Weight
	}
	return total
}

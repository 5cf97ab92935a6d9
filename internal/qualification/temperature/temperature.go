// Package temperature classifies scored leads into hot, warm and cold tiers.
package temperature

import "fmt"

// Temperature is a lead tier. Values match the stored column.
type Temperature string

const (
	Hot  Temperature = "quente"
	Warm Temperature = "morno"
	Cold Temperature = "frio"
)

// Thresholds are the inclusive lower bounds of the hot and warm tiers.
type Thresholds struct {
	Hot  int `json:"hot_threshold"`
	Warm int `json:"warm_threshold"`
}

// DefaultThresholds mirrors the configuration defaults.
var DefaultThresholds = Thresholds{Hot: 75, Warm: 50}

// Validate requires Hot > Warm.
func (t Thresholds) Validate() error {
	if t.Hot <= t.Warm {
		return fmt.Errorf("temperature: hot threshold %d must exceed warm threshold %d", t.Hot, t.Warm)
	}
	return nil
}

// Override returns t with hot and warm applied where positive.
func (t Thresholds) Override(hot, warm int) Thresholds {
	if hot > 0 {
		t.Hot = hot
	}
	if warm > 0 {
		t.Warm = warm
	}
	return t
}

// Classify maps a score to a tier. Instant qualifiers are always hot.
func Classify(score int, instantQualifier bool, t Thresholds) Temperature {
	switch {
	case instantQualifier || score >= t.Hot:
		return Hot
	case score >= t.Warm:
		return Warm
	default:
		return Cold
	}
}

// Parse accepts the stored Portuguese values and their English names.
func Parse(s string) (Temperature, bool) {
	switch s {
	case "quente", "hot":
		return Hot, true
	case "morno", "warm":
		return Warm, true
	case "frio", "cold":
		return Cold, true
	}
	return "", false
}

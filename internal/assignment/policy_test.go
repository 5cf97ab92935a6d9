package assignment

import (
	"testing"

	"leadflow_backend/internal/stats"

	"github.com/google/uuid"
)

func closer(capacity, active int, tags ...string) stats.CloserLoad {
	return stats.CloserLoad{
		CloserID:        uuid.New(),
		Capacity:        capacity,
		ActiveCount:     active,
		UtilizationPct:  stats.Utilization(active, capacity),
		Specializations: tags,
		IsActive:        true,
	}
}

func TestSelectSkipsFullCloser(t *testing.T) {
	a := closer(10, 10)
	b := closer(10, 3)

	got, ok := Select("", []stats.CloserLoad{a, b})
	if !ok || got.CloserID != b.CloserID {
		t.Fatalf("expected closer B, got %v (ok=%v)", got.CloserID, ok)
	}
}

func TestSelectNoCapacity(t *testing.T) {
	if _, ok := Select("", []stats.CloserLoad{closer(5, 5)}); ok {
		t.Fatal("expected no eligible closer")
	}
	if _, ok := Select("", nil); ok {
		t.Fatal("expected no eligible closer for empty roster")
	}
}

func TestSelectLowestUtilizationThenFewestActive(t *testing.T) {
	busy := closer(4, 2)
	light := closer(10, 3)
	got, _ := Select("", []stats.CloserLoad{busy, light})
	if got.CloserID != light.CloserID {
		t.Fatal("expected lowest utilization to win")
	}

	// Both at 20%.
	big := closer(10, 2)
	small := closer(5, 1)
	got, _ = Select("", []stats.CloserLoad{big, small})
	if got.CloserID != small.CloserID {
		t.Fatal("expected fewest active leads to break the tie")
	}

	first := closer(5, 1)
	second := closer(5, 1)
	got, _ = Select("", []stats.CloserLoad{first, second})
	if got.CloserID != first.CloserID {
		t.Fatal("expected roster order to break a full tie")
	}
}

func TestSelectCategoryEligibility(t *testing.T) {
	specialist := closer(10, 8, "Saúde")
	generalist := closer(10, 9)
	other := closer(10, 0, "varejo")
	roster := []stats.CloserLoad{specialist, generalist, other}

	got, ok := Select("saude", roster)
	if !ok || got.CloserID != specialist.CloserID {
		t.Fatalf("expected specialist, got %v", got.CloserID)
	}

	specialist.ActiveCount = 10
	got, ok = Select("saude", []stats.CloserLoad{specialist, generalist, other})
	if !ok || got.CloserID != generalist.CloserID {
		t.Fatalf("expected generalist fallback, got %v", got.CloserID)
	}

	got, _ = Select("", roster)
	if got.CloserID != other.CloserID {
		t.Fatal("expected every closer to be eligible without a category")
	}
}

func TestSelectExcludesInactiveAndExcluded(t *testing.T) {
	inactive := closer(10, 0)
	inactive.IsActive = false
	current := closer(10, 1)
	next := closer(10, 5)

	got, ok := Select("", []stats.CloserLoad{inactive, current, next}, current.CloserID)
	if !ok || got.CloserID != next.CloserID {
		t.Fatalf("expected next closer, got %v", got.CloserID)
	}
}

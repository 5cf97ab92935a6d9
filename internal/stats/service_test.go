package stats

import (
	"context"
	"errors"
	"testing"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeReader struct {
	closers []CloserRow
	counts  map[string]int
	reach   []SequenceReach
	err     error
	calls   int
}

func (f *fakeReader) ListClosers(context.Context, uuid.UUID) ([]CloserRow, error) {
	f.calls++
	return f.closers, f.err
}

func (f *fakeReader) CountExecutionsByStatus(context.Context, *uuid.UUID) (map[string]int, error) {
	return f.counts, f.err
}

func (f *fakeReader) ListSequenceReach(context.Context, *uuid.UUID) ([]SequenceReach, error) {
	return f.reach, f.err
}

func TestUtilization(t *testing.T) {
	cases := []struct {
		active, capacity int
		want             float64
	}{
		{3, 10, 30},
		{10, 10, 100},
		{1, 3, 33.33},
		{0, 0, 100},
	}
	for _, tc := range cases {
		if got := Utilization(tc.active, tc.capacity); got != tc.want {
			t.Errorf("Utilization(%d, %d) = %v, want %v", tc.active, tc.capacity, got, tc.want)
		}
	}
}

func TestSnapshotIsFreshPerCall(t *testing.T) {
	reader := &fakeReader{closers: []CloserRow{{ID: uuid.New(), Capacity: 10, ActiveCount: 3, IsActive: true}}}
	svc := NewService(reader)

	first, err := svc.Snapshot(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reader.closers[0].ActiveCount = 4
	second, err := svc.Snapshot(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reader.calls != 2 {
		t.Fatalf("expected two store reads, got %d", reader.calls)
	}
	if first[0].UtilizationPct != 30 || second[0].UtilizationPct != 40 {
		t.Fatalf("unexpected utilization %v then %v", first[0].UtilizationPct, second[0].UtilizationPct)
	}
}

func TestTeamTotalsSkipInactiveClosers(t *testing.T) {
	reader := &fakeReader{closers: []CloserRow{
		{ID: uuid.New(), Capacity: 10, ActiveCount: 10, IsActive: true},
		{ID: uuid.New(), Capacity: 10, ActiveCount: 3, IsActive: true},
		{ID: uuid.New(), Capacity: 5, ActiveCount: 0, IsActive: false},
	}}

	summary, err := NewService(reader).Team(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalCapacity != 20 || summary.TotalActive != 13 || summary.AvailableSlots != 7 {
		t.Fatalf("unexpected totals %+v", summary)
	}
	if summary.UtilizationPct != 65 {
		t.Fatalf("expected 65%% utilization, got %v", summary.UtilizationPct)
	}
}

func TestExecutionCountsZeroFill(t *testing.T) {
	reader := &fakeReader{counts: map[string]int{"active": 4, "completed": 2}}

	summary, err := NewService(reader).ExecutionCounts(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Counts["postponed"] != 0 || summary.Counts["cancelled"] != 0 {
		t.Fatalf("expected zero-filled statuses, got %v", summary.Counts)
	}
	if summary.Total != 6 {
		t.Fatalf("expected total 6, got %d", summary.Total)
	}
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	svc := NewService(&fakeReader{err: errors.New("connection refused")})

	_, err := svc.Snapshot(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

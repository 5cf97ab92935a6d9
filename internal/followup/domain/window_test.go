package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowContains(t *testing.T) {
	day := func(h int) time.Time { return time.Date(2025, 3, 10, h, 30, 0, 0, time.UTC) }

	business := Window{Start: 9, End: 18, Location: time.UTC}
	assert.False(t, business.Contains(day(8)))
	assert.True(t, business.Contains(day(9)))
	assert.True(t, business.Contains(day(17)))
	assert.False(t, business.Contains(day(18)))

	allDay := Window{Start: 0, End: 0}
	assert.True(t, allDay.Contains(day(3)))

	overnight := Window{Start: 22, End: 6, Location: time.UTC}
	assert.True(t, overnight.Contains(day(23)))
	assert.True(t, overnight.Contains(day(2)))
	assert.False(t, overnight.Contains(day(12)))
}

func TestWindowForUsesSequenceZone(t *testing.T) {
	seq := Sequence{StartHour: 9, EndHour: 18, Timezone: "America/Sao_Paulo"}
	w := WindowFor(seq, time.UTC)

	// 11:00 UTC is 08:00 in São Paulo.
	assert.False(t, w.Contains(time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)))
}

func TestWindowForFallsBackOnUnknownZone(t *testing.T) {
	w := WindowFor(Sequence{StartHour: 9, EndHour: 18, Timezone: "Mars/Olympus"}, time.UTC)
	assert.Equal(t, time.UTC, w.Location)

	w = WindowFor(Sequence{}, nil)
	assert.Equal(t, time.UTC, w.Location)
}

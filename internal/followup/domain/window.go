package domain

import "time"

// Window is the daily send window [Start, End) in local hours. Start == End
// means all day; Start > End wraps past midnight.
type Window struct {
	Start    int
	End      int
	Location *time.Location
}

// WindowFor builds the sequence's window, falling back to fallback when the
// sequence has no zone or an unknown one.
func WindowFor(seq Sequence, fallback *time.Location) Window {
	loc := fallback
	if seq.Timezone != "" {
		if l, err := time.LoadLocation(seq.Timezone); err == nil {
			loc = l
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	return Window{Start: seq.StartHour, End: seq.EndHour, Location: loc}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.Start == w.End {
		return true
	}
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	h := t.In(loc).Hour()
	if w.Start < w.End {
		return h >= w.Start && h < w.End
	}
	return h >= w.Start || h < w.End
}

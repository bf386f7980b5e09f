package raids

import (
	"testing"
	"time"
)

func testWindow(start time.Time, span time.Duration) Window {
	return Window{GuildID: "g1", Name: "orfen", Start: start, End: start.Add(span)}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 3, 2, 21, 0, 0, 0, time.UTC)
	w := testWindow(start, 4*time.Hour)

	tests := []struct {
		name string
		now  time.Time
		want Phase
	}{
		{name: "well before", now: start.Add(-10 * time.Hour), want: Pending},
		{name: "instant before open", now: start.Add(-time.Nanosecond), want: Pending},
		{name: "exactly at open", now: start, want: Active},
		{name: "inside window", now: start.Add(2 * time.Hour), want: Active},
		{name: "instant before close", now: w.End.Add(-time.Nanosecond), want: Active},
		{name: "exactly at close", now: w.End, want: Expired},
		{name: "long after", now: w.End.Add(48 * time.Hour), want: Expired},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(w, tt.now); got != tt.want {
				t.Fatalf("Classify at %v = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestRemaining(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 3, 2, 21, 0, 0, 0, time.UTC)
	w := testWindow(start, 4*time.Hour)

	if got := Remaining(w, start.Add(-5*time.Hour)); got != 5*time.Hour {
		t.Fatalf("pending remaining = %v, want 5h", got)
	}
	if got := Remaining(w, start.Add(time.Hour)); got != 3*time.Hour {
		t.Fatalf("active remaining = %v, want 3h", got)
	}
	if got := Remaining(w, w.End.Add(time.Minute)); got != 0 {
		t.Fatalf("expired remaining = %v, want 0", got)
	}
}

func TestDecideMilestones(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 3, 2, 21, 0, 0, 0, time.UTC)
	lead := 30 * time.Minute
	w := testWindow(start, 4*time.Hour)

	tests := []struct {
		name string
		w    Window
		now  time.Time
		want Due
	}{
		{name: "before lead", w: w, now: start.Add(-lead - time.Minute), want: Due{}},
		{name: "exactly at lead", w: w, now: start.Add(-lead), want: Due{Warning: true}},
		{name: "inside lead", w: w, now: start.Add(-10 * time.Minute), want: Due{Warning: true}},
		{name: "exactly at open", w: w, now: start, want: Due{Open: true}},
		{name: "mid window", w: w, now: start.Add(time.Hour), want: Due{Open: true}},
		{name: "exactly at close", w: w, now: w.End, want: Due{Close: true}},

		{
			name: "warning already sent",
			w:    Window{GuildID: "g1", Name: "orfen", Start: start, End: w.End, WarningSent: true},
			now:  start.Add(-10 * time.Minute),
			want: Due{},
		},
		{
			name: "open already sent",
			w:    Window{GuildID: "g1", Name: "orfen", Start: start, End: w.End, OpenSent: true},
			now:  start.Add(time.Hour),
			want: Due{},
		},
		{
			// Close ignores the flags so a pass after both sends still
			// closes the window.
			name: "close despite both flags",
			w:    Window{GuildID: "g1", Name: "orfen", Start: start, End: w.End, WarningSent: true, OpenSent: true},
			now:  w.End.Add(time.Minute),
			want: Due{Close: true},
		},
		{
			// A pass that first sees the window mid-flight owes open but
			// never the stale warning.
			name: "downtime skips warning",
			w:    w,
			now:  start.Add(time.Minute),
			want: Due{Open: true},
		},
		{
			// Whole window fell between two passes: close only.
			name: "downtime skips to close",
			w:    w,
			now:  w.End.Add(time.Hour),
			want: Due{Close: true},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.w, tt.now, lead); got != tt.want {
				t.Fatalf("Decide = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecideNeverWarnsAndOpensTogether(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 3, 2, 21, 0, 0, 0, time.UTC)
	w := testWindow(start, 4*time.Hour)
	for _, now := range []time.Time{
		start.Add(-time.Hour), start.Add(-time.Second), start,
		start.Add(time.Second), w.End, w.End.Add(time.Hour),
	} {
		d := Decide(w, now, 30*time.Minute)
		if d.Warning && d.Open {
			t.Fatalf("warning and open both due at %v", now)
		}
	}
}

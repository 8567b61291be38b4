package tracker

import (
	"testing"
	"time"
)

func TestWindowedDelta(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		samples []Sample
		window  time.Duration
		want    int64
	}{
		{
			name:   "unknown token",
			window: Window1m,
			want:   0,
		},
		{
			name:    "single sample",
			samples: []Sample{{now.Add(-5 * time.Second), 1000}},
			window:  Window1m,
			want:    0,
		},
		{
			name: "two samples in window",
			samples: []Sample{
				{now.Add(-40 * time.Second), 1000},
				{now.Add(-5 * time.Second), 1600},
			},
			window: Window1m,
			want:   600,
		},
		{
			name: "oldest sample outside window excluded",
			samples: []Sample{
				{now.Add(-50 * time.Second), 1000},
				{now.Add(-20 * time.Second), 1400},
				{now.Add(-5 * time.Second), 1600},
			},
			window: Window30s,
			want:   200,
		},
		{
			name: "only one sample inside window",
			samples: []Sample{
				{now.Add(-4 * time.Minute), 1000},
				{now.Add(-5 * time.Second), 1600},
			},
			window: Window10s,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			const token = 42
			for _, s := range tt.samples {
				tr.Record(token, s.At, s.Volume)
			}
			got := tr.WindowedDelta(token, tt.window, now)
			if got != tt.want {
				t.Errorf("WindowedDelta() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRecordPrunesRetention(t *testing.T) {
	tr := New()
	const token = 7
	now := time.Now()

	tr.Record(token, now.Add(-10*time.Minute), 100)
	tr.Record(token, now.Add(-6*time.Minute), 200)
	tr.Record(token, now.Add(-2*time.Minute), 300)
	tr.Record(token, now, 400)

	if got := tr.Len(token); got != 2 {
		t.Errorf("expected 2 retained samples after prune, got %d", got)
	}
	// the surviving -2m sample is outside the 1m window but still retained
	if got := tr.WindowedDelta(token, Window5m, now); got != 100 {
		t.Errorf("WindowedDelta(5m) = %d, want 100", got)
	}
	if got := tr.WindowedDelta(token, Window1m, now); got != 0 {
		t.Errorf("WindowedDelta(1m) = %d, want 0", got)
	}
}

func TestRecordVolumeResetStartsNewSession(t *testing.T) {
	tr := New()
	const token = 9
	now := time.Now()

	tr.Record(token, now.Add(-30*time.Second), 50000)
	tr.Record(token, now.Add(-20*time.Second), 51000)
	// new session: cumulative volume drops
	tr.Record(token, now.Add(-10*time.Second), 120)
	tr.Record(token, now, 300)

	if got := tr.Len(token); got != 2 {
		t.Errorf("expected history reset to 2 samples, got %d", got)
	}
	if got := tr.WindowedDelta(token, Window1m, now); got != 180 {
		t.Errorf("WindowedDelta after reset = %d, want 180", got)
	}
}

func TestSpikes(t *testing.T) {
	tr := New()
	const token = 11
	now := time.Now()

	tr.Record(token, now.Add(-280*time.Second), 1000)
	tr.Record(token, now.Add(-150*time.Second), 2000)
	tr.Record(token, now.Add(-45*time.Second), 2600)
	tr.Record(token, now.Add(-8*time.Second), 2900)
	tr.Record(token, now, 3000)

	got := tr.Spikes(token, now)
	want := Spikes{
		Vol10s: 100,  // 3000-2900
		Vol30s: 100,  // 3000-2900 (only two samples within 30s)
		Vol1m:  400,  // 3000-2600
		Vol3m:  1000, // 3000-2000
		Vol5m:  2000, // 3000-1000
	}
	if got != want {
		t.Errorf("Spikes() = %+v, want %+v", got, want)
	}
}

func TestSpikesUnknownTokenAllZero(t *testing.T) {
	tr := New()
	if got := tr.Spikes(99, time.Now()); got != (Spikes{}) {
		t.Errorf("Spikes for unknown token = %+v, want all zero", got)
	}
}

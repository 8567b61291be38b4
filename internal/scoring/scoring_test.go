package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/optick/optionpulse/internal/models"
)

func row(symbol string) models.ContractRow {
	return models.ContractRow{
		Symbol:    symbol,
		Strike:    24850,
		Type:      "CE",
		Timestamp: time.Now(),
	}
}

func TestScoreBatchEmpty(t *testing.T) {
	if got := ScoreBatch(nil); len(got) != 0 {
		t.Errorf("ScoreBatch(nil) returned %d rows, want 0", len(got))
	}
	if got := ScoreBatch([]models.ContractRow{}); len(got) != 0 {
		t.Errorf("ScoreBatch(empty) returned %d rows, want 0", len(got))
	}
}

func TestVolumeNormalization(t *testing.T) {
	a, b, c := row("A"), row("B"), row("C")
	a.Volume, b.Volume, c.Volume = 100, 50, 0

	scored := ScoreBatch([]models.ContractRow{a, b, c})

	bySymbol := map[string]models.ContractRow{}
	for _, r := range scored {
		bySymbol[r.Symbol] = r
	}
	want := map[string]float64{"A": 1.0, "B": 0.5, "C": 0.0}
	for sym, w := range want {
		if got := bySymbol[sym].VolumeScore; got != w {
			t.Errorf("volume score for %s = %v, want %v", sym, got, w)
		}
	}
}

func TestZeroFactorGuard(t *testing.T) {
	// every factor zero in every row: no division error, all scores zero
	a, b := row("A"), row("B")
	scored := ScoreBatch([]models.ContractRow{a, b})

	for _, r := range scored {
		if r.VolumeScore != 0 || r.OIScore != 0 || r.OIChangeScore != 0 || r.IVScore != 0 {
			t.Errorf("row %s has non-zero factor score with all-zero inputs: %+v", r.Symbol, r)
		}
		if r.Score != 0 {
			t.Errorf("row %s composite = %v, want 0", r.Symbol, r.Score)
		}
		if r.Confidence != 0 {
			t.Errorf("row %s confidence = %v, want 0.00", r.Symbol, r.Confidence)
		}
		if r.VolumeBurst {
			t.Errorf("row %s burst flag set with zero spikes", r.Symbol)
		}
	}
}

func TestSpikeScoreWeights(t *testing.T) {
	a := row("A")
	a.Vol10s, a.Vol30s, a.Vol1m = 100, 100, 100
	a.Vol3m, a.Vol5m = 100000, 100000 // informational only, must not move the score

	scored := ScoreBatch([]models.ContractRow{a})
	got := scored[0].VolSpikeScore
	want := 0.2*100 + 0.3*100 + 0.5*100
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("spike score = %v, want %v", got, want)
	}
}

func TestBurstFlag(t *testing.T) {
	// A's 10s delta (1000) against a batch mean spike score of ~100:
	// 1000 > 1.5*mean, so A bursts and the quiet rows do not.
	a, b, c := row("A"), row("B"), row("C")
	a.Vol10s = 1000
	b.Vol1m = 150
	c.Vol30s = 100

	scored := ScoreBatch([]models.ContractRow{a, b, c})
	for _, r := range scored {
		wantBurst := r.Symbol == "A"
		if r.VolumeBurst != wantBurst {
			t.Errorf("burst flag for %s = %v, want %v", r.Symbol, r.VolumeBurst, wantBurst)
		}
	}
}

func TestCompositeAndConfidence(t *testing.T) {
	// single row: every non-zero factor normalizes to 1.0
	a := row("A")
	a.Volume, a.OI, a.OIChange = 500, 800, 120
	a.IV = 14.2
	a.Vol10s = 50

	scored := ScoreBatch([]models.ContractRow{a})
	r := scored[0]
	if math.Abs(r.Score-1.0) > 1e-9 {
		t.Errorf("composite = %v, want 1.0", r.Score)
	}
	if r.Confidence != 100.00 {
		t.Errorf("confidence = %v, want 100.00", r.Confidence)
	}
}

func TestConfidenceRounding(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{0.123456, 12.35},
		{0.5, 50.00},
		{0.00012, 0.01},
		{0, 0},
	}
	for _, tt := range tests {
		if got := round2(tt.score * 100); got != tt.want {
			t.Errorf("round2(%v*100) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestRankingOrderAndStability(t *testing.T) {
	a, b, c := row("A"), row("B"), row("C")
	a.Volume = 10
	b.Volume = 100
	c.Volume = 10 // ties with A, must stay after it

	scored := ScoreBatch([]models.ContractRow{a, b, c})
	gotOrder := []string{scored[0].Symbol, scored[1].Symbol, scored[2].Symbol}
	wantOrder := []string{"B", "A", "C"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("rank order = %v, want %v", gotOrder, wantOrder)
		}
	}
}

func TestScoresInvariantToInputOrder(t *testing.T) {
	build := func() (models.ContractRow, models.ContractRow, models.ContractRow) {
		a, b, c := row("A"), row("B"), row("C")
		a.Volume, a.OI, a.Vol1m = 100, 500, 40
		b.Volume, b.OI, b.Vol1m = 60, 900, 10
		c.Volume, c.IV = 30, 18.5
		return a, b, c
	}

	a1, b1, c1 := build()
	a2, b2, c2 := build()
	first := ScoreBatch([]models.ContractRow{a1, b1, c1})
	second := ScoreBatch([]models.ContractRow{c2, b2, a2})

	scores := func(rows []models.ContractRow) map[string]float64 {
		m := map[string]float64{}
		for _, r := range rows {
			m[r.Symbol] = r.Score
		}
		return m
	}
	s1, s2 := scores(first), scores(second)
	for sym, v := range s1 {
		if math.Abs(s2[sym]-v) > 1e-12 {
			t.Errorf("score for %s differs across input orders: %v vs %v", sym, v, s2[sym])
		}
	}
}

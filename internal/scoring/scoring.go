// Package scoring ranks a batch of contract snapshots by a composite
// attractiveness score blended from volume, open interest, OI change,
// implied volatility, and short-horizon volume spikes.
package scoring

import (
	"math"
	"sort"

	"github.com/optick/optionpulse/internal/models"
)

// Spike score window weights. The 3m and 5m deltas are carried on the row
// for display but do not enter the score.
const (
	Weight10s = 0.2
	Weight30s = 0.3
	Weight1m  = 0.5
)

// FactorWeight is the equal weight given to each of the five normalized
// components of the composite score.
const FactorWeight = 0.2

// BurstMultiplier flags a contract whose short-window delta exceeds this
// multiple of the batch's mean raw spike score.
const BurstMultiplier = 1.5

// ScoreBatch fills in the normalized component scores, composite score,
// confidence, and burst flag for every row, then returns the batch sorted
// by composite score descending (stable, so ties keep input order).
//
// Normalization divides by the batch maximum per factor; a zero maximum
// yields 0 for every row, which guards the division rather than making a
// statistical statement. An empty batch returns immediately with no
// reductions computed.
func ScoreBatch(rows []models.ContractRow) []models.ContractRow {
	if len(rows) == 0 {
		return rows
	}

	var maxVolume, maxOI, maxOIChange, maxIV, maxSpike, spikeSum float64
	for i := range rows {
		r := &rows[i]
		maxVolume = math.Max(maxVolume, float64(r.Volume))
		maxOI = math.Max(maxOI, float64(r.OI))
		maxOIChange = math.Max(maxOIChange, float64(r.OIChange))
		maxIV = math.Max(maxIV, r.IV)

		r.VolSpikeScore = Weight10s*float64(r.Vol10s) +
			Weight30s*float64(r.Vol30s) +
			Weight1m*float64(r.Vol1m)
		maxSpike = math.Max(maxSpike, r.VolSpikeScore)
		spikeSum += r.VolSpikeScore
	}
	meanSpike := spikeSum / float64(len(rows))
	burstBar := BurstMultiplier * meanSpike

	for i := range rows {
		r := &rows[i]
		r.VolumeScore = normalize(float64(r.Volume), maxVolume)
		r.OIScore = normalize(float64(r.OI), maxOI)
		r.OIChangeScore = normalize(float64(r.OIChange), maxOIChange)
		r.IVScore = normalize(r.IV, maxIV)
		spikeNorm := normalize(r.VolSpikeScore, maxSpike)

		r.Score = FactorWeight * (r.VolumeScore + r.OIScore + r.OIChangeScore + r.IVScore + spikeNorm)
		r.Confidence = round2(r.Score * 100)
		r.VolumeBurst = float64(r.Vol10s) > burstBar ||
			float64(r.Vol30s) > burstBar ||
			float64(r.Vol1m) > burstBar
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Score > rows[j].Score
	})
	return rows
}

func normalize(value, max float64) float64 {
	if max == 0 {
		return 0
	}
	return value / max
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package models

import (
	"errors"
	"time"
)

// ContractRow is one option contract in a scored batch: the raw quote
// fields, the five trailing volume deltas, and the normalized scores filled
// in by the scoring pass. Rows are built fresh every poll cycle and never
// mutated after scoring.
type ContractRow struct {
	Symbol   string  `json:"symbol"`
	Strike   float64 `json:"strike"`
	Type     string  `json:"type"`
	LTP      float64 `json:"ltp"`
	Volume   int64   `json:"volume"`
	OI       int64   `json:"oi"`
	OIChange int64   `json:"oi_change"`
	IV       float64 `json:"iv"`

	Vol10s int64 `json:"vol_10s"`
	Vol30s int64 `json:"vol_30s"`
	Vol1m  int64 `json:"vol_1m"`
	Vol3m  int64 `json:"vol_3m"`
	Vol5m  int64 `json:"vol_5m"`

	VolumeScore   float64 `json:"volume_score"`
	OIScore       float64 `json:"oi_score"`
	OIChangeScore float64 `json:"oi_change_score"`
	IVScore       float64 `json:"iv_score"`
	VolSpikeScore float64 `json:"vol_spike_score"`

	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
	VolumeBurst bool    `json:"volume_power"`

	Timestamp time.Time `json:"timestamp"`
}

// Validate checks row field constraints before persistence.
func (r *ContractRow) Validate() error {
	if r.Symbol == "" {
		return errors.New("symbol must not be empty")
	}
	if r.Type != "CE" && r.Type != "PE" {
		return errors.New("type must be CE or PE")
	}
	if r.Strike <= 0 {
		return errors.New("strike must be positive")
	}
	if r.Volume < 0 {
		return errors.New("volume must not be negative")
	}
	if r.OI < 0 {
		return errors.New("open interest must not be negative")
	}
	if r.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	return nil
}

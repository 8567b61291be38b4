// Package models defines the core domain entities: instruments, quotes, and
// scored contract rows.
package models

import "errors"

// Instrument is one row of the Kite instrument dump (CSV). Tokens are the
// broker's opaque per-contract identifiers and key all per-contract state.
type Instrument struct {
	InstrumentToken uint32  `csv:"instrument_token" json:"instrument_token"`
	ExchangeToken   uint32  `csv:"exchange_token" json:"exchange_token"`
	Tradingsymbol   string  `csv:"tradingsymbol" json:"tradingsymbol"`
	Name            string  `csv:"name" json:"name"`
	Expiry          string  `csv:"expiry" json:"expiry"`
	Strike          float64 `csv:"strike" json:"strike"`
	TickSize        float64 `csv:"tick_size" json:"tick_size"`
	LotSize         uint    `csv:"lot_size" json:"lot_size"`
	InstrumentType  string  `csv:"instrument_type" json:"instrument_type"`
	Segment         string  `csv:"segment" json:"segment"`
	Exchange        string  `csv:"exchange" json:"exchange"`
}

// Validate checks instrument field constraints.
func (i *Instrument) Validate() error {
	if i.InstrumentToken == 0 {
		return errors.New("instrument token must not be zero")
	}
	if i.Tradingsymbol == "" {
		return errors.New("tradingsymbol must not be empty")
	}
	if i.Segment == "" {
		return errors.New("segment must not be empty")
	}
	return nil
}

// Quote is a live market snapshot for one instrument as returned by the
// quote endpoint. Fields absent from the payload decode as zero, matching
// the broker's behavior for indices and illiquid contracts.
type Quote struct {
	LastPrice         float64 `json:"last_price"`
	Volume            int64   `json:"volume"`
	OI                int64   `json:"oi"`
	OIDayHigh         int64   `json:"oi_day_high"`
	OIDayLow          int64   `json:"oi_day_low"`
	ImpliedVolatility float64 `json:"implied_volatility"`
}

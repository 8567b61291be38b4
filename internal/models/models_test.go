package models

import (
	"testing"
	"time"
)

func TestInstrumentValidate(t *testing.T) {
	tests := []struct {
		name       string
		instrument Instrument
		wantErr    bool
	}{
		{
			name: "valid option contract",
			instrument: Instrument{
				InstrumentToken: 12345,
				Tradingsymbol:   "NIFTY2590224850CE",
				Name:            "NIFTY",
				Segment:         "NFO-OPT",
				Strike:          24850,
				InstrumentType:  "CE",
			},
			wantErr: false,
		},
		{
			name: "zero token",
			instrument: Instrument{
				Tradingsymbol: "NIFTY2590224850CE",
				Segment:       "NFO-OPT",
			},
			wantErr: true,
		},
		{
			name: "empty tradingsymbol",
			instrument: Instrument{
				InstrumentToken: 12345,
				Segment:         "NFO-OPT",
			},
			wantErr: true,
		},
		{
			name: "empty segment",
			instrument: Instrument{
				InstrumentToken: 12345,
				Tradingsymbol:   "NIFTY2590224850CE",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.instrument.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Instrument.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestContractRowValidate(t *testing.T) {
	valid := ContractRow{
		Symbol:    "NIFTY2590224850CE",
		Strike:    24850,
		Type:      "CE",
		LTP:       102.5,
		Volume:    3380,
		OI:        10595,
		Timestamp: time.Now(),
	}

	tests := []struct {
		name    string
		mutate  func(r *ContractRow)
		wantErr bool
	}{
		{"valid row", func(r *ContractRow) {}, false},
		{"empty symbol", func(r *ContractRow) { r.Symbol = "" }, true},
		{"bad type", func(r *ContractRow) { r.Type = "FUT" }, true},
		{"zero strike", func(r *ContractRow) { r.Strike = 0 }, true},
		{"negative volume", func(r *ContractRow) { r.Volume = -1 }, true},
		{"negative oi", func(r *ContractRow) { r.OI = -1 }, true},
		{"zero timestamp", func(r *ContractRow) { r.Timestamp = time.Time{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := valid
			tt.mutate(&row)
			err := row.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("ContractRow.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

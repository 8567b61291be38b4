// Package engine runs one poll cycle: refresh the instrument catalog,
// filter the option chain around the index spot, fetch live quotes, update
// volume histories, and hand the assembled batch to scoring and storage.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/optick/optionpulse/internal/logger"
	"github.com/optick/optionpulse/internal/models"
	"github.com/optick/optionpulse/internal/scoring"
	"github.com/optick/optionpulse/internal/tracker"
)

// ErrNoData means the cycle produced nothing: the upstream was unavailable
// or the filtered universe was empty. Both resolve the same way for the
// caller, which logs and waits for the next tick.
var ErrNoData = errors.New("engine: no data this cycle")

// QuoteSource is the market-data collaborator the engine polls.
type QuoteSource interface {
	FetchInstruments(ctx context.Context) ([]models.Instrument, error)
	FetchQuotes(ctx context.Context, ids []string) (map[string]models.Quote, error)
	FetchLTP(ctx context.Context, id string) (float64, error)
}

// Sink durably stores a scored batch. Insert failures never abort a cycle.
type Sink interface {
	InsertBatch(cycleID string, rows []models.ContractRow) error
}

// Config controls the chain selection and catalog cadence.
type Config struct {
	Index          string        // instrument name, e.g. "NIFTY"
	SpotInstrument string        // quote identifier for the index spot, e.g. "NSE:NIFTY 50"
	StrikeRange    float64       // strikes within spot ± range
	MaxContracts   int           // cap on contracts per cycle
	CatalogRefresh time.Duration // instrument dump cache TTL
}

// Batch is the scored output of one poll cycle, ordered by composite score
// descending. It is immutable once published.
type Batch struct {
	CycleID string               `json:"cycle_id"`
	At      time.Time            `json:"timestamp"`
	Rows    []models.ContractRow `json:"rows"`
}

// Engine owns the cross-cycle state: the volume tracker, the cached
// instrument catalog, and the latest published batch.
type Engine struct {
	src     QuoteSource
	sink    Sink
	tracker *tracker.Tracker
	config  Config

	catalog   []models.Instrument
	catalogAt time.Time
	latest    atomic.Pointer[Batch]
	clock     func() time.Time
}

// New creates an engine. sink may be nil when persistence is disabled.
func New(src QuoteSource, sink Sink, config Config) *Engine {
	return &Engine{
		src:     src,
		sink:    sink,
		tracker: tracker.New(),
		config:  config,
		clock:   time.Now,
	}
}

// Latest returns the most recently completed batch, or nil before the first
// successful cycle. Safe to call concurrently with RunCycle.
func (e *Engine) Latest() *Batch {
	return e.latest.Load()
}

// RunCycle performs one synchronous poll cycle and publishes the scored
// batch. All upstream failures map to ErrNoData; the volume tracker is the
// only state mutated, and only after quotes arrive.
func (e *Engine) RunCycle(ctx context.Context) (*Batch, error) {
	contracts, err := e.selectContracts(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(contracts))
	for i, inst := range contracts {
		ids[i] = strconv.FormatUint(uint64(inst.InstrumentToken), 10)
	}
	quotes, err := e.src.FetchQuotes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: quotes: %v", ErrNoData, err)
	}

	now := e.clock()
	rows := make([]models.ContractRow, 0, len(contracts))
	for i, inst := range contracts {
		q := quotes[ids[i]] // zero quote when the broker omitted the contract

		e.tracker.Record(inst.InstrumentToken, now, q.Volume)
		spikes := e.tracker.Spikes(inst.InstrumentToken, now)

		rows = append(rows, models.ContractRow{
			Symbol:    inst.Tradingsymbol,
			Strike:    inst.Strike,
			Type:      inst.InstrumentType,
			LTP:       q.LastPrice,
			Volume:    q.Volume,
			OI:        q.OI,
			OIChange:  q.OIDayHigh - q.OIDayLow,
			IV:        q.ImpliedVolatility,
			Vol10s:    spikes.Vol10s,
			Vol30s:    spikes.Vol30s,
			Vol1m:     spikes.Vol1m,
			Vol3m:     spikes.Vol3m,
			Vol5m:     spikes.Vol5m,
			Timestamp: now,
		})
	}

	batch := &Batch{
		CycleID: uuid.New().String(),
		At:      now,
		Rows:    scoring.ScoreBatch(rows),
	}
	e.latest.Store(batch)

	if e.sink != nil {
		if err := e.sink.InsertBatch(batch.CycleID, batch.Rows); err != nil {
			logger.Error("Failed to persist batch %s: %v", batch.CycleID, err)
		}
	}
	return batch, nil
}

// selectContracts filters the cached catalog down to the near-the-money
// chain of the nearest expiry.
func (e *Engine) selectContracts(ctx context.Context) ([]models.Instrument, error) {
	if err := e.refreshCatalog(ctx); err != nil {
		return nil, err
	}

	spot, err := e.src.FetchLTP(ctx, e.config.SpotInstrument)
	if err != nil {
		return nil, fmt.Errorf("%w: spot price: %v", ErrNoData, err)
	}
	if spot <= 0 {
		return nil, fmt.Errorf("%w: spot price is zero", ErrNoData)
	}

	var chain []models.Instrument
	for _, inst := range e.catalog {
		if inst.Name != e.config.Index || !strings.Contains(inst.Segment, "OPT") {
			continue
		}
		chain = append(chain, inst)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: no option contracts for %s", ErrNoData, e.config.Index)
	}

	expiry := nearestExpiry(chain)
	var selected []models.Instrument
	for _, inst := range chain {
		if inst.Expiry != expiry {
			continue
		}
		if inst.Strike <= spot-e.config.StrikeRange || inst.Strike >= spot+e.config.StrikeRange {
			continue
		}
		selected = append(selected, inst)
		if len(selected) == e.config.MaxContracts {
			break
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no strikes within %.0f of spot %.2f", ErrNoData, e.config.StrikeRange, spot)
	}
	return selected, nil
}

// refreshCatalog reloads the instrument dump when the cache expires. A
// refresh failure keeps serving the stale catalog rather than losing the
// cycle; only an empty cache is fatal for the cycle.
func (e *Engine) refreshCatalog(ctx context.Context) error {
	now := e.clock()
	if len(e.catalog) > 0 && now.Sub(e.catalogAt) < e.config.CatalogRefresh {
		return nil
	}

	instruments, err := e.src.FetchInstruments(ctx)
	if err != nil {
		if len(e.catalog) > 0 {
			logger.Warn("Catalog refresh failed, keeping %d cached instruments: %v", len(e.catalog), err)
			return nil
		}
		return fmt.Errorf("%w: instrument catalog: %v", ErrNoData, err)
	}
	e.catalog = instruments
	e.catalogAt = now
	logger.Debug("Instrument catalog refreshed: %d instruments", len(instruments))
	return nil
}

// nearestExpiry picks the earliest expiry present in the chain. Expiries
// are ISO dates, so lexicographic order is chronological.
func nearestExpiry(chain []models.Instrument) string {
	expiries := make([]string, 0, 8)
	seen := make(map[string]bool)
	for _, inst := range chain {
		if inst.Expiry == "" || seen[inst.Expiry] {
			continue
		}
		seen[inst.Expiry] = true
		expiries = append(expiries, inst.Expiry)
	}
	sort.Strings(expiries)
	if len(expiries) == 0 {
		return ""
	}
	return expiries[0]
}

package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/delivery"
	"fuelstation/internal/domain/ledger"
	"fuelstation/internal/domain/pricing"
	"fuelstation/internal/domain/registry"
)

// Deliveries is the delivery.Repository view.
type Deliveries struct{ s *Store }

// Deliveries returns the delivery view.
func (s *Store) Deliveries() *Deliveries { return &Deliveries{s} }

var _ delivery.Repository = (*Deliveries)(nil)

func (r *Deliveries) Create(ctx context.Context, d *delivery.Delivery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d.CreatedAt = r.s.tick()
	r.s.d.deliveries[d.ID] = *d
	return nil
}

func (r *Deliveries) SumByTankDate(ctx context.Context, tankID id.ID, date time.Time) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, d := range r.s.d.deliveries {
		if d.TankID == tankID && sameDay(d.DeliveryDate, date) {
			total = total.Add(d.VolumeLiters)
		}
	}
	return total, nil
}

func (r *Deliveries) List(ctx context.Context, filter delivery.Filter) ([]delivery.Delivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []delivery.Delivery
	for _, d := range r.s.d.deliveries {
		if filter.TankID != nil && d.TankID != *filter.TankID {
			continue
		}
		if filter.StationID != nil && r.s.d.tanks[d.TankID].StationID != *filter.StationID {
			continue
		}
		if !inRange(d.DeliveryDate, filter.From, filter.To) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

// Ledger is the ledger.Repository view.
type Ledger struct{ s *Store }

// Ledger returns the ledger view.
func (s *Store) Ledger() *Ledger { return &Ledger{s} }

var _ ledger.Repository = (*Ledger)(nil)

func (r *Ledger) InsertEntries(ctx context.Context, entries []ledger.Entry) error {
	if err := r.s.injected("InsertEntries"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range entries {
		e.CreatedAt = r.s.tick()
		r.s.d.entries[e.ID] = e
	}
	return nil
}

func (r *Ledger) DeleteByReconciliation(ctx context.Context, reconciliationID id.ID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, e := range r.s.d.entries {
		if e.ReconciliationID != nil && *e.ReconciliationID == reconciliationID {
			delete(r.s.d.entries, k)
			n++
		}
	}
	return n, nil
}

func (r *Ledger) match(e ledger.Entry, f ledger.Filter) bool {
	if f.StationID != nil && e.StationID != *f.StationID {
		return false
	}
	if f.ReconciliationID != nil && (e.ReconciliationID == nil || *e.ReconciliationID != *f.ReconciliationID) {
		return false
	}
	if f.AccountType != nil && e.AccountType != *f.AccountType {
		return false
	}
	return inRange(e.EntryDate, f.From, f.To)
}

func (r *Ledger) List(ctx context.Context, filter ledger.Filter) ([]ledger.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []ledger.Entry
	for _, e := range r.s.d.entries {
		if r.match(e, filter) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Ledger) Totals(ctx context.Context, filter ledger.Filter) (ledger.Totals, error) {
	entries, err := r.List(ctx, filter)
	if err != nil {
		return ledger.Totals{}, err
	}
	return ledger.Sum(entries), nil
}

// Prices is the pricing.Repository view.
type Prices struct{ s *Store }

// Prices returns the pricing view.
func (s *Store) Prices() *Prices { return &Prices{s} }

var _ pricing.Repository = (*Prices)(nil)

func (r *Prices) FindActive(ctx context.Context, stationID id.ID, fuel registry.FuelType, asOf time.Time) (*pricing.Price, error) {
	if err := r.s.injected("FindActive"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *pricing.Price
	for _, p := range r.s.d.prices {
		if p.StationID != stationID || p.FuelType != fuel || !p.Applies(asOf) {
			continue
		}
		if best == nil || p.EffectiveFrom.After(best.EffectiveFrom) {
			best = &p
		}
	}
	if best == nil {
		return nil, apperror.NewNotFound("fuel price", string(fuel))
	}
	return best, nil
}

// AddPrice seeds a price.
func (s *Store) AddPrice(p pricing.Price) pricing.Price {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	s.d.prices[p.ID] = p
	return p
}

// Entries returns all ledger entries.
func (s *Store) Entries() []ledger.Entry {
	out, _ := s.Ledger().List(context.Background(), ledger.Filter{})
	return out
}

package memstore

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/readings"
)

// Readings is the readings.Repository view.
type Readings struct{ s *Store }

// Readings returns the readings view.
func (s *Store) Readings() *Readings { return &Readings{s} }

var _ readings.Repository = (*Readings)(nil)

func sameDay(a, b time.Time) bool {
	return types.DateOnly(a).Equal(types.DateOnly(b))
}

func (r *Readings) findMeterReading(meterID id.ID, date time.Time) (*readings.MeterReading, error) {
	for _, m := range r.s.d.meterReadings {
		if m.MeterID == meterID && sameDay(m.ReadingDate, date) {
			return &m, nil
		}
	}
	return nil, apperror.NewNotFound("meter reading", meterID)
}

func (r *Readings) GetMeterReading(ctx context.Context, meterID id.ID, date time.Time) (*readings.MeterReading, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.findMeterReading(meterID, date)
}

func (r *Readings) GetMeterReadingForUpdate(ctx context.Context, meterID id.ID, date time.Time) (*readings.MeterReading, error) {
	return r.GetMeterReading(ctx, meterID, date)
}

func (r *Readings) LatestMeterReadingBefore(ctx context.Context, meterID id.ID, date time.Time) (*readings.MeterReading, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *readings.MeterReading
	for _, m := range r.s.d.meterReadings {
		if m.MeterID != meterID || !m.ReadingDate.Before(types.DateOnly(date)) {
			continue
		}
		if best == nil || m.ReadingDate.After(best.ReadingDate) {
			best = &m
		}
	}
	if best == nil {
		return nil, apperror.NewNotFound("meter reading", meterID)
	}
	return best, nil
}

func (r *Readings) CreateMeterReading(ctx context.Context, m *readings.MeterReading) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, err := r.findMeterReading(m.MeterID, m.ReadingDate); err == nil {
		return apperror.NewDuplicate("meter reading", "date", types.FormatDate(m.ReadingDate))
	}
	m.CreatedAt = r.s.tick()
	m.UpdatedAt = m.CreatedAt
	r.s.d.meterReadings[m.ID] = *m
	return nil
}

func (r *Readings) CloseMeterReading(ctx context.Context, readingID id.ID, closing decimal.Decimal, closedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.d.meterReadings[readingID]
	if !ok {
		return apperror.NewNotFound("meter reading", readingID)
	}
	m.ClosingReadingLiters = closing
	m.ClosedAt = &closedAt
	m.UpdatedAt = r.s.tick()
	r.s.d.meterReadings[readingID] = m
	return nil
}

func (r *Readings) ListMeterReadings(ctx context.Context, tankID id.ID, date time.Time, activeOnly bool) ([]readings.MeterReading, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []readings.MeterReading
	for _, m := range r.s.d.meterReadings {
		meter, ok := r.s.d.meters[m.MeterID]
		if !ok || meter.TankID != tankID || !sameDay(m.ReadingDate, date) {
			continue
		}
		if activeOnly && !meter.IsActive {
			continue
		}
		m.MeterActive = meter.IsActive
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].MeterID[:], out[j].MeterID[:]) < 0 })
	return out, nil
}

func (r *Readings) findDaily(tankID id.ID, date time.Time) (*readings.DailyReading, error) {
	for _, d := range r.s.d.dailyReadings {
		if d.TankID == tankID && sameDay(d.ReadingDate, date) {
			return &d, nil
		}
	}
	return nil, apperror.NewNotFound("daily reading", tankID)
}

func (r *Readings) GetDailyReading(ctx context.Context, tankID id.ID, date time.Time) (*readings.DailyReading, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.findDaily(tankID, date)
}

func (r *Readings) GetDailyReadingForUpdate(ctx context.Context, tankID id.ID, date time.Time) (*readings.DailyReading, error) {
	return r.GetDailyReading(ctx, tankID, date)
}

func (r *Readings) CreateDailyReading(ctx context.Context, d *readings.DailyReading) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, err := r.findDaily(d.TankID, d.ReadingDate); err == nil {
		return apperror.NewDuplicate("daily reading", "date", types.FormatDate(d.ReadingDate))
	}
	d.CreatedAt = r.s.tick()
	d.UpdatedAt = d.CreatedAt
	r.s.d.dailyReadings[d.ID] = *d
	return nil
}

func (r *Readings) RecordEveningDip(ctx context.Context, d *readings.DailyReading) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.dailyReadings[d.ID]; !ok {
		return apperror.NewNotFound("daily reading", d.ID)
	}
	d.UpdatedAt = r.s.tick()
	r.s.d.dailyReadings[d.ID] = *d
	return nil
}

func (r *Readings) ListDailyReadings(ctx context.Context, tankID id.ID, from, to time.Time) ([]readings.DailyReading, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []readings.DailyReading
	for _, d := range r.s.d.dailyReadings {
		if d.TankID != tankID || d.ReadingDate.Before(from) || d.ReadingDate.After(to) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReadingDate.Before(out[j].ReadingDate) })
	return out, nil
}

// PutDailyReading stores a dip row as is, bypassing intake rules.
func (s *Store) PutDailyReading(d readings.DailyReading) readings.DailyReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNil(d.ID) {
		d.ID = id.New()
	}
	s.d.dailyReadings[d.ID] = d
	return d
}

// PutMeterReading stores a meter reading as is, bypassing intake rules.
func (s *Store) PutMeterReading(m readings.MeterReading) readings.MeterReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNil(m.ID) {
		m.ID = id.New()
	}
	s.d.meterReadings[m.ID] = m
	return m
}

// DailyReadingCount returns the number of dip rows.
func (s *Store) DailyReadingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.d.dailyReadings)
}

package memstore

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/registry"
)

// Registry is the registry.Repository view.
type Registry struct{ s *Store }

// Registry returns the registry view.
func (s *Store) Registry() *Registry { return &Registry{s} }

var _ registry.Repository = (*Registry)(nil)

func (r *Registry) GetStation(ctx context.Context, stationID id.ID) (*registry.Station, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.d.stations[stationID]
	if !ok {
		return nil, apperror.NewNotFound("station", stationID)
	}
	return &st, nil
}

func (r *Registry) GetTank(ctx context.Context, tankID id.ID) (*registry.Tank, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.d.tanks[tankID]
	if !ok {
		return nil, apperror.NewNotFound("tank", tankID)
	}
	return &t, nil
}

func (r *Registry) ListTanks(ctx context.Context, filter registry.TankFilter) ([]registry.Tank, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []registry.Tank
	for _, t := range r.s.d.tanks {
		if filter.StationID != nil && t.StationID != *filter.StationID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TankNumber < out[j].TankNumber })
	return out, nil
}

func (r *Registry) GetMeter(ctx context.Context, meterID id.ID) (*registry.Meter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.d.meters[meterID]
	if !ok {
		return nil, apperror.NewNotFound("meter", meterID)
	}
	return &m, nil
}

func (r *Registry) ListMeters(ctx context.Context, tankID id.ID) ([]registry.Meter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []registry.Meter
	for _, m := range r.s.d.meters {
		if m.TankID == tankID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MeterNumber < out[j].MeterNumber })
	return out, nil
}

func (r *Registry) UpdateTankVolume(ctx context.Context, tankID id.ID, volume decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.d.tanks[tankID]
	if !ok {
		return apperror.NewNotFound("tank", tankID)
	}
	t.CurrentVolumeLiters = volume
	r.s.d.tanks[tankID] = t
	return nil
}

func (r *Registry) AddTankVolume(ctx context.Context, tankID id.ID, delta decimal.Decimal) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.d.tanks[tankID]
	if !ok {
		return decimal.Zero, apperror.NewNotFound("tank", tankID)
	}
	t.CurrentVolumeLiters = t.CurrentVolumeLiters.Add(delta)
	r.s.d.tanks[tankID] = t
	return t.CurrentVolumeLiters, nil
}

func (r *Registry) UpdateMeterReading(ctx context.Context, meterID id.ID, reading decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.d.meters[meterID]
	if !ok {
		return apperror.NewNotFound("meter", meterID)
	}
	m.CurrentReadingLiters = reading
	r.s.d.meters[meterID] = m
	return nil
}

// AddStation seeds a station.
func (s *Store) AddStation(st registry.Station) registry.Station {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNil(st.ID) {
		st.ID = id.New()
	}
	s.d.stations[st.ID] = st
	return st
}

// AddTank seeds a tank.
func (s *Store) AddTank(t registry.Tank) registry.Tank {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNil(t.ID) {
		t.ID = id.New()
	}
	s.d.tanks[t.ID] = t
	return t
}

// AddMeter seeds a meter.
func (s *Store) AddMeter(m registry.Meter) registry.Meter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNil(m.ID) {
		m.ID = id.New()
	}
	s.d.meters[m.ID] = m
	return m
}

// Tank returns the stored tank.
func (s *Store) Tank(tankID id.ID) registry.Tank {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.tanks[tankID]
}

// Meter returns the stored meter.
func (s *Store) Meter(meterID id.ID) registry.Meter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.meters[meterID]
}

package memstore

import (
	"context"
	"sort"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/fifo"
)

// FIFO is the fifo.Repository view.
type FIFO struct{ s *Store }

// FIFO returns the FIFO view.
func (s *Store) FIFO() *FIFO { return &FIFO{s} }

var _ fifo.Repository = (*FIFO)(nil)

func (f *FIFO) NextSequence(ctx context.Context, tankID id.ID) (int64, error) {
	if err := f.s.injected("NextSequence"); err != nil {
		return 0, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var top int64
	for _, l := range f.s.d.layers {
		if l.TankID == tankID && l.LayerSequence > top {
			top = l.LayerSequence
		}
	}
	return top + 1, nil
}

func (f *FIFO) CreateLayer(ctx context.Context, layer *fifo.Layer) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, l := range f.s.d.layers {
		if l.TankID == layer.TankID && l.LayerSequence == layer.LayerSequence {
			return apperror.NewDuplicate("fifo layer", "layer_sequence", "")
		}
	}
	layer.CreatedAt = f.s.tick()
	layer.UpdatedAt = layer.CreatedAt
	f.s.d.layers[layer.ID] = *layer
	return nil
}

func (f *FIFO) tankLayers(tankID id.ID, includeExhausted bool) []fifo.Layer {
	var out []fifo.Layer
	for _, l := range f.s.d.layers {
		if l.TankID != tankID || (!includeExhausted && l.IsExhausted) {
			continue
		}
		out = append(out, l)
	}
	fifo.SortLayers(out)
	return out
}

func (f *FIFO) ListOpenLayersForUpdate(ctx context.Context, tankID id.ID) ([]fifo.Layer, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.tankLayers(tankID, false), nil
}

func (f *FIFO) GetLayersForUpdate(ctx context.Context, layerIDs []id.ID) ([]fifo.Layer, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	seen := map[id.ID]bool{}
	var out []fifo.Layer
	for _, lid := range layerIDs {
		if seen[lid] {
			continue
		}
		seen[lid] = true
		if l, ok := f.s.d.layers[lid]; ok {
			out = append(out, l)
		}
	}
	fifo.SortLayers(out)
	return out, nil
}

func (f *FIFO) ListLayers(ctx context.Context, tankID id.ID, includeExhausted bool) ([]fifo.Layer, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.tankLayers(tankID, includeExhausted), nil
}

func (f *FIFO) UpdateRemaining(ctx context.Context, layers []fifo.Layer) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range layers {
		l, ok := f.s.d.layers[u.ID]
		if !ok {
			return apperror.NewNotFound("fifo layer", u.ID)
		}
		l.RemainingVolumeLiters = u.RemainingVolumeLiters
		l.IsExhausted = u.IsExhausted
		l.UpdatedAt = f.s.tick()
		f.s.d.layers[u.ID] = l
	}
	return nil
}

func (f *FIFO) InsertConsumptionLogs(ctx context.Context, logs []fifo.ConsumptionLog) error {
	if err := f.s.injected("InsertConsumptionLogs"); err != nil {
		return err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, l := range logs {
		f.s.d.logs[l.ID] = l
	}
	return nil
}

func (f *FIFO) ListConsumptionLogs(ctx context.Context, filter fifo.ConsumptionFilter) ([]fifo.ConsumptionLog, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []fifo.ConsumptionLog
	for _, l := range f.s.d.logs {
		if filter.ReconciliationID != nil && l.ReconciliationID != *filter.ReconciliationID {
			continue
		}
		if filter.TankID != nil && l.TankID != *filter.TankID {
			continue
		}
		if filter.StationID != nil && f.s.d.tanks[l.TankID].StationID != *filter.StationID {
			continue
		}
		if filter.From != nil || filter.To != nil {
			rec, ok := f.s.d.recs[l.ReconciliationID]
			if !ok || (filter.From != nil && rec.ReconciliationDate.Before(*filter.From)) ||
				(filter.To != nil && rec.ReconciliationDate.After(*filter.To)) {
				continue
			}
		}
		out = append(out, l)
	}
	layerSeq := func(l fifo.ConsumptionLog) int64 { return f.s.d.layers[l.FIFOLayerID].LayerSequence }
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return layerSeq(out[i]) < layerSeq(out[j])
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *FIFO) DeleteConsumptionLogs(ctx context.Context, reconciliationID id.ID) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for k, l := range f.s.d.logs {
		if l.ReconciliationID == reconciliationID {
			delete(f.s.d.logs, k)
			n++
		}
	}
	return n, nil
}

// AddLayer seeds a layer as is.
func (s *Store) AddLayer(l fifo.Layer) fifo.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNil(l.ID) {
		l.ID = id.New()
	}
	l.IsExhausted = l.RemainingVolumeLiters.IsZero()
	s.d.layers[l.ID] = l
	return l
}

// Layer returns the stored layer.
func (s *Store) Layer(layerID id.ID) fifo.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.layers[layerID]
}

// LogCount returns the number of consumption logs.
func (s *Store) LogCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.d.logs)
}

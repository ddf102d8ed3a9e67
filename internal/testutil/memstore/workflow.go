package memstore

import (
	"context"
	"slices"
	"sort"
	"time"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/reconciliation"
	"fuelstation/internal/domain/variance"
)

// Variance is the variance.Repository view.
type Variance struct{ s *Store }

// Variance returns the notification view.
func (s *Store) Variance() *Variance { return &Variance{s} }

var _ variance.Repository = (*Variance)(nil)

func (r *Variance) FindLatestForUpdate(ctx context.Context, tankID id.ID, date time.Time, notificationType string) (*variance.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *variance.Notification
	for _, n := range r.s.d.notifications {
		if n.TankID != tankID || n.NotificationType != notificationType || !sameDay(n.NotificationDate, date) {
			continue
		}
		if best == nil || n.CreatedAt.After(best.CreatedAt) {
			best = &n
		}
	}
	if best == nil {
		return nil, apperror.NewNotFound("variance notification", tankID)
	}
	return best, nil
}

func (r *Variance) Get(ctx context.Context, notificationID id.ID) (*variance.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.d.notifications[notificationID]
	if !ok {
		return nil, apperror.NewNotFound("variance notification", notificationID)
	}
	return &n, nil
}

func (r *Variance) GetForUpdate(ctx context.Context, notificationID id.ID) (*variance.Notification, error) {
	return r.Get(ctx, notificationID)
}

func (r *Variance) Create(ctx context.Context, n *variance.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.d.notifications {
		if o.TankID == n.TankID && o.NotificationType == n.NotificationType &&
			sameDay(o.NotificationDate, n.NotificationDate) && o.Status != variance.StatusResolved {
			return apperror.NewDuplicate("variance notification", "date", types.FormatDate(n.NotificationDate))
		}
	}
	n.CreatedAt = r.s.tick()
	n.UpdatedAt = n.CreatedAt
	r.s.d.notifications[n.ID] = *n
	return nil
}

func (r *Variance) Update(ctx context.Context, n *variance.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.notifications[n.ID]; !ok {
		return apperror.NewNotFound("variance notification", n.ID)
	}
	n.UpdatedAt = r.s.tick()
	r.s.d.notifications[n.ID] = *n
	return nil
}

func (r *Variance) DeleteUnresolvedByReconciliation(ctx context.Context, reconciliationID id.ID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, v := range r.s.d.notifications {
		if v.ReconciliationID != nil && *v.ReconciliationID == reconciliationID && v.Status != variance.StatusResolved {
			delete(r.s.d.notifications, k)
			n++
		}
	}
	return n, nil
}

func (r *Variance) List(ctx context.Context, filter variance.Filter) ([]variance.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []variance.Notification
	for _, n := range r.s.d.notifications {
		if filter.TankID != nil && n.TankID != *filter.TankID {
			continue
		}
		if filter.StationID != nil && r.s.d.tanks[n.TankID].StationID != *filter.StationID {
			continue
		}
		if filter.Status != nil && n.Status != *filter.Status {
			continue
		}
		if filter.Severity != nil && n.Severity != *filter.Severity {
			continue
		}
		if !inRange(n.NotificationDate, filter.From, filter.To) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Notifications returns all notifications.
func (s *Store) Notifications() []variance.Notification {
	out, _ := s.Variance().List(context.Background(), variance.Filter{})
	return out
}

// Reconciliations is the reconciliation.Repository view.
type Reconciliations struct{ s *Store }

// Reconciliations returns the reconciliation view.
func (s *Store) Reconciliations() *Reconciliations { return &Reconciliations{s} }

var _ reconciliation.Repository = (*Reconciliations)(nil)

func faultKey(tankID id.ID, date time.Time) string {
	return tankID.String() + "|" + types.FormatDate(date)
}

func (r *Reconciliations) Get(ctx context.Context, reconciliationID id.ID) (*reconciliation.DailyReconciliation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.d.recs[reconciliationID]
	if !ok {
		return nil, apperror.NewNotFound("reconciliation", reconciliationID)
	}
	return &rec, nil
}

func (r *Reconciliations) find(tankID id.ID, date time.Time) (*reconciliation.DailyReconciliation, bool) {
	for _, rec := range r.s.d.recs {
		if rec.TankID == tankID && sameDay(rec.ReconciliationDate, date) {
			return &rec, true
		}
	}
	return nil, false
}

func (r *Reconciliations) GetByTankDate(ctx context.Context, tankID id.ID, date time.Time) (*reconciliation.DailyReconciliation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.find(tankID, date)
	if !ok {
		return nil, apperror.NewNotFound("reconciliation", tankID)
	}
	return rec, nil
}

func (r *Reconciliations) LatestBefore(ctx context.Context, tankID id.ID, date time.Time) (*reconciliation.DailyReconciliation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *reconciliation.DailyReconciliation
	for _, rec := range r.s.d.recs {
		if rec.TankID != tankID || !rec.ReconciliationDate.Before(types.DateOnly(date)) {
			continue
		}
		if best == nil || rec.ReconciliationDate.After(best.ReconciliationDate) {
			best = &rec
		}
	}
	if best == nil {
		return nil, apperror.NewNotFound("reconciliation", tankID)
	}
	return best, nil
}

func (r *Reconciliations) Create(ctx context.Context, rec *reconciliation.DailyReconciliation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.find(rec.TankID, rec.ReconciliationDate); ok {
		return apperror.NewDuplicate("reconciliation", "date", types.FormatDate(rec.ReconciliationDate))
	}
	r.s.d.recs[rec.ID] = *rec
	return nil
}

func (r *Reconciliations) SetJournalNumber(ctx context.Context, reconciliationID id.ID, number string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.d.recs[reconciliationID]
	if !ok {
		return apperror.NewNotFound("reconciliation", reconciliationID)
	}
	rec.JournalNumber = &number
	r.s.d.recs[reconciliationID] = rec
	return nil
}

func (r *Reconciliations) Delete(ctx context.Context, reconciliationID id.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.recs[reconciliationID]; !ok {
		return apperror.NewNotFound("reconciliation", reconciliationID)
	}
	delete(r.s.d.recs, reconciliationID)
	return nil
}

func (r *Reconciliations) List(ctx context.Context, filter reconciliation.Filter) ([]reconciliation.DailyReconciliation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []reconciliation.DailyReconciliation
	for _, rec := range r.s.d.recs {
		if filter.TankID != nil && rec.TankID != *filter.TankID {
			continue
		}
		if filter.StationID != nil && rec.StationID != *filter.StationID {
			continue
		}
		if !inRange(rec.ReconciliationDate, filter.From, filter.To) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReconciliationDate.Before(out[j].ReconciliationDate) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *Reconciliations) IsReconciled(ctx context.Context, tankID id.ID, date time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.find(tankID, date)
	return ok, nil
}

func (r *Reconciliations) GetFault(ctx context.Context, tankID id.ID, date time.Time) (*reconciliation.Fault, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.d.faults[faultKey(tankID, date)]
	if !ok {
		return nil, apperror.NewNotFound("reconciliation fault", tankID)
	}
	return &f, nil
}

func (r *Reconciliations) SaveFault(ctx context.Context, f *reconciliation.Fault) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.faults[faultKey(f.TankID, f.FaultDate)] = *f
	return nil
}

func (r *Reconciliations) ClearFault(ctx context.Context, tankID id.ID, date time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.d.faults, faultKey(tankID, date))
	return nil
}

func (r *Reconciliations) ListGaps(ctx context.Context, stationID *id.ID, from, to time.Time) ([]reconciliation.Gap, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []reconciliation.Gap
	for _, d := range r.s.d.dailyReadings {
		tank := r.s.d.tanks[d.TankID]
		if stationID != nil && tank.StationID != *stationID {
			continue
		}
		if !d.HasEvening() || !inRange(d.ReadingDate, &from, &to) {
			continue
		}
		if _, ok := r.find(d.TankID, d.ReadingDate); ok {
			continue
		}
		_, faulty := r.s.d.faults[faultKey(d.TankID, d.ReadingDate)]
		out = append(out, reconciliation.Gap{TankID: d.TankID, StationID: tank.StationID, Date: d.ReadingDate, Faulty: faulty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// PutReconciliation stores a record as is.
func (s *Store) PutReconciliation(rec reconciliation.DailyReconciliation) reconciliation.DailyReconciliation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNil(rec.ID) {
		rec.ID = id.New()
	}
	s.d.recs[rec.ID] = rec
	return rec
}

// ReconciliationCount returns the number of stored reconciliations.
func (s *Store) ReconciliationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.d.recs)
}

// Outbox is the reconciliation.EventPublisher view. Events roll back with the transaction.
type Outbox struct{ s *Store }

// Outbox returns the event recorder view.
func (s *Store) Outbox() *Outbox { return &Outbox{s} }

var _ reconciliation.EventPublisher = (*Outbox)(nil)

func (o *Outbox) Publish(ctx context.Context, event reconciliation.Event) error {
	if err := o.s.injected("Publish"); err != nil {
		return err
	}
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	o.s.d.events = append(o.s.d.events, event)
	return nil
}

// Events returns the committed events in publish order.
func (s *Store) Events() []reconciliation.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.d.events)
}

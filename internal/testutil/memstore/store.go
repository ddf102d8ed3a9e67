// Package memstore is an in-memory implementation of every domain repository.
// Transactions snapshot the whole store and restore it when fn fails, which lets
// tests observe all-or-nothing behavior without a database.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/tx"
	"fuelstation/internal/domain/delivery"
	"fuelstation/internal/domain/fifo"
	"fuelstation/internal/domain/ledger"
	"fuelstation/internal/domain/pricing"
	"fuelstation/internal/domain/readings"
	"fuelstation/internal/domain/reconciliation"
	"fuelstation/internal/domain/registry"
	"fuelstation/internal/domain/variance"
)

type data struct {
	stations      map[id.ID]registry.Station
	tanks         map[id.ID]registry.Tank
	meters        map[id.ID]registry.Meter
	meterReadings map[id.ID]readings.MeterReading
	dailyReadings map[id.ID]readings.DailyReading
	layers        map[id.ID]fifo.Layer
	logs          map[id.ID]fifo.ConsumptionLog
	deliveries    map[id.ID]delivery.Delivery
	entries       map[id.ID]ledger.Entry
	notifications map[id.ID]variance.Notification
	recs          map[id.ID]reconciliation.DailyReconciliation
	faults        map[string]reconciliation.Fault
	prices        map[id.ID]pricing.Price
	seqs          map[string]int64
	events        []reconciliation.Event
}

func newData() *data {
	return &data{
		stations:      map[id.ID]registry.Station{},
		tanks:         map[id.ID]registry.Tank{},
		meters:        map[id.ID]registry.Meter{},
		meterReadings: map[id.ID]readings.MeterReading{},
		dailyReadings: map[id.ID]readings.DailyReading{},
		layers:        map[id.ID]fifo.Layer{},
		logs:          map[id.ID]fifo.ConsumptionLog{},
		deliveries:    map[id.ID]delivery.Delivery{},
		entries:       map[id.ID]ledger.Entry{},
		notifications: map[id.ID]variance.Notification{},
		recs:          map[id.ID]reconciliation.DailyReconciliation{},
		faults:        map[string]reconciliation.Fault{},
		prices:        map[id.ID]pricing.Price{},
		seqs:          map[string]int64{},
	}
}

func (d *data) clone() *data {
	return &data{
		stations:      maps.Clone(d.stations),
		tanks:         maps.Clone(d.tanks),
		meters:        maps.Clone(d.meters),
		meterReadings: maps.Clone(d.meterReadings),
		dailyReadings: maps.Clone(d.dailyReadings),
		layers:        maps.Clone(d.layers),
		logs:          maps.Clone(d.logs),
		deliveries:    maps.Clone(d.deliveries),
		entries:       maps.Clone(d.entries),
		notifications: maps.Clone(d.notifications),
		recs:          maps.Clone(d.recs),
		faults:        maps.Clone(d.faults),
		prices:        maps.Clone(d.prices),
		seqs:          maps.Clone(d.seqs),
		events:        slices.Clone(d.events),
	}
}

// Store holds all state.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	d    *data

	keyMu      sync.Mutex
	keys       map[string]chan struct{}
	lockWaits  int
	interleave bool

	failMu sync.Mutex
	fail   map[string]error

	clock   time.Time
	commits int
	aborts  int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		d:     newData(),
		keys:  map[string]chan struct{}{},
		fail:  map[string]error{},
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

var (
	_ tx.Manager   = (*Store)(nil)
	_ tx.KeyLocker = (*Store)(nil)
)

type txKey struct{}

// txState tracks the keys held by one outermost transaction.
type txState struct {
	held map[string]struct{}
}

// Interleave lets transactions run concurrently, so only LockKey serializes them.
// A rollback still restores the whole store; use it for transactions that commit.
// Call while no transaction is running.
func (s *Store) Interleave() {
	s.interleave = true
}

// RunInTransaction runs fn against a snapshot-protected store. Transactions are
// serialized unless Interleave was called.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	if !s.interleave {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}

	st := &txState{held: map[string]struct{}{}}
	// Keys are released after commit or rollback, like advisory xact locks.
	defer s.release(st)

	s.mu.Lock()
	snap := s.d.clone()
	s.mu.Unlock()

	err := fn(context.WithValue(ctx, txKey{}, st))
	if err == nil {
		err = ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.d = snap
		s.aborts++
		return err
	}
	s.commits++
	return nil
}

// LockKey blocks until key is free and holds it until the enclosing transaction ends.
// Re-locking a held key is a no-op. Outside a transaction it does nothing.
func (s *Store) LockKey(ctx context.Context, key string) error {
	if err := s.injected("LockKey"); err != nil {
		return err
	}
	st, _ := ctx.Value(txKey{}).(*txState)
	if st == nil {
		return nil
	}
	if _, ok := st.held[key]; ok {
		return nil
	}
	for {
		s.keyMu.Lock()
		busy, taken := s.keys[key]
		if !taken {
			s.keys[key] = make(chan struct{})
			s.keyMu.Unlock()
			st.held[key] = struct{}{}
			return nil
		}
		s.lockWaits++
		s.keyMu.Unlock()

		select {
		case <-busy:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Store) release(st *txState) {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	for key := range st.held {
		close(s.keys[key])
		delete(s.keys, key)
	}
}

// LockWaits counts how often LockKey had to wait for another transaction.
func (s *Store) LockWaits() int {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	return s.lockWaits
}

// FailNext makes the next call of op return err.
func (s *Store) FailNext(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.fail[op] = err
}

func (s *Store) injected(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err, ok := s.fail[op]; ok {
		delete(s.fail, op)
		return err
	}
	return nil
}

// Aborts counts rolled back transactions.
func (s *Store) Aborts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborts
}

// tick returns a strictly increasing timestamp.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

// QueryRow serves the journal numerator's sys_sequences upsert.
func (s *Store) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, _ := args[0].(string)
	s.d.seqs[key]++
	return seqRow(s.d.seqs[key])
}

type seqRow int64

func (r seqRow) Scan(dest ...any) error {
	p, ok := dest[0].(*int64)
	if !ok {
		return fmt.Errorf("memstore: unexpected scan target %T", dest[0])
	}
	*p = int64(r)
	return nil
}

// Sequence returns the current value of a numbering key.
func (s *Store) Sequence(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.seqs[key]
}

package cache

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/pricing"
	"fuelstation/internal/domain/registry"
	"fuelstation/internal/infrastructure/storage/postgres"
	"fuelstation/internal/infrastructure/storage/postgres/migrations"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
	failSet bool
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errors.New("connection refused")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("connection refused")
	}
	m.data[key] = value
	return nil
}

func (m *memStore) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type countingRepo struct {
	calls int
	price *pricing.Price
	err   error
}

func (r *countingRepo) FindActive(context.Context, id.ID, registry.FuelType, time.Time) (*pricing.Price, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	p := *r.price
	return &p, nil
}

var day = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func newPrice(station id.ID) *pricing.Price {
	return &pricing.Price{
		ID:               id.New(),
		StationID:        station,
		FuelType:         registry.FuelPetrol,
		PricePerLiterUGX: decimal.RequireFromString("5150.00"),
		EffectiveFrom:    day.AddDate(0, -1, 0),
		IsActive:         true,
	}
}

func TestPriceKey(t *testing.T) {
	station := id.MustParse("0190a0c2-0000-7000-8000-000000000001")
	assert.Equal(t, "price:0190a0c2-0000-7000-8000-000000000001:petrol:2026-05-04",
		PriceKey(station, registry.FuelPetrol, day.Add(15*time.Hour)))
}

func TestPriceCache_ReadThrough(t *testing.T) {
	ctx := context.Background()
	station := id.New()
	repo := &countingRepo{price: newPrice(station)}
	c := NewPriceCache(repo, newMemStore(), time.Minute)

	first, err := c.FindActive(ctx, station, registry.FuelPetrol, day)
	require.NoError(t, err)
	second, err := c.FindActive(ctx, station, registry.FuelPetrol, day)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls)
	assert.True(t, first.PricePerLiterUGX.Equal(second.PricePerLiterUGX))
	assert.Equal(t, first.ID, second.ID)
}

func TestPriceCache_MissIsNotCached(t *testing.T) {
	ctx := context.Background()
	station := id.New()
	store := newMemStore()
	repo := &countingRepo{err: apperror.NewNotFound("price", station)}
	c := NewPriceCache(repo, store, time.Minute)

	_, err := c.FindActive(ctx, station, registry.FuelPetrol, day)
	assert.True(t, apperror.IsNotFound(err))
	_, err = c.FindActive(ctx, station, registry.FuelPetrol, day)
	assert.True(t, apperror.IsNotFound(err))

	assert.Equal(t, 2, repo.calls)
	assert.Empty(t, store.data)
}

func TestPriceCache_StoreFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	station := id.New()
	repo := &countingRepo{price: newPrice(station)}
	store := newMemStore()
	store.failGet, store.failSet = true, true
	c := NewPriceCache(repo, store, time.Minute)

	p, err := c.FindActive(ctx, station, registry.FuelPetrol, day)
	require.NoError(t, err)
	assert.Equal(t, "5150", p.PricePerLiterUGX.String())
}

func TestPriceCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	station := id.New()
	store := newMemStore()
	repo := &countingRepo{price: newPrice(station)}
	c := NewPriceCache(repo, store, time.Minute)

	_, err := c.FindActive(ctx, station, registry.FuelPetrol, day)
	require.NoError(t, err)
	_, err = c.FindActive(ctx, station, registry.FuelPetrol, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, store.data, 2)

	require.NoError(t, c.Invalidate(ctx, station, registry.FuelDiesel))
	assert.Len(t, store.data, 2)

	require.NoError(t, c.Invalidate(ctx, station, registry.FuelPetrol))
	assert.Empty(t, store.data)
}

func TestPriceListener_Handle(t *testing.T) {
	ctx := context.Background()
	station := id.New()
	store := newMemStore()
	c := NewPriceCache(&countingRepo{price: newPrice(station)}, store, time.Minute)
	other := id.New()
	store.data[PriceKey(station, registry.FuelPetrol, day)] = []byte("{}")
	store.data[PriceKey(other, registry.FuelPetrol, day)] = []byte("{}")

	l := NewPriceListener(nil, c)
	l.handle(ctx, station.String()+":petrol")
	assert.Len(t, store.data, 1)

	l.handle(ctx, "garbage")
	assert.Empty(t, store.data)
}

func TestPriceChangedChannelMatchesTrigger(t *testing.T) {
	b, err := fs.ReadFile(migrations.FS(), "000004_price_notify.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "pg_notify('"+PriceChangedChannel+"'")
}

type fakeObtainer struct {
	err  error
	keys []string
}

func (f *fakeObtainer) Obtain(_ context.Context, key string, _ time.Duration, _ *redislock.Options) (*redislock.Lock, error) {
	f.keys = append(f.keys, key)
	return nil, f.err
}

func TestReconciliationLocker_NotObtained(t *testing.T) {
	fake := &fakeObtainer{err: redislock.ErrNotObtained}
	l := newReconciliationLocker(fake, time.Minute)

	release, err := l.Obtain(context.Background(), "reconcile:tank:2026-05-04")
	require.Error(t, err)
	assert.ErrorIs(t, err, redislock.ErrNotObtained)
	require.NotNil(t, release)
	assert.NotPanics(t, release)
	assert.Equal(t, []string{"lock:reconcile:tank:2026-05-04"}, fake.keys)
}

func TestReconciliationLocker_RedisDown(t *testing.T) {
	l := newReconciliationLocker(&fakeObtainer{err: errors.New("dial tcp: refused")}, 0)

	release, err := l.Obtain(context.Background(), "k")
	require.Error(t, err)
	assert.NotPanics(t, release)
	assert.Equal(t, 30*time.Second, l.ttl)
}

type fakePublisher struct {
	channel string
	message any
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channel, f.message = channel, message
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(2)
	}
	return cmd
}

func TestEventBroadcaster_Handle(t *testing.T) {
	msg := &postgres.OutboxMessage{ID: id.New(), EventType: "variance.raised", Payload: []byte(`{"severity":"critical"}`)}

	t.Run("Publishes", func(t *testing.T) {
		pub := &fakePublisher{}
		b := &EventBroadcaster{client: pub}
		require.NoError(t, b.Handle(context.Background(), msg))
		assert.Equal(t, "fuelstation:events:variance.raised", pub.channel)
		assert.Equal(t, msg.Payload, pub.message)
	})

	t.Run("BrokerDown", func(t *testing.T) {
		b := &EventBroadcaster{client: &fakePublisher{err: errors.New("connection refused")}}
		err := b.Handle(context.Background(), msg)
		assert.ErrorContains(t, err, "publish fuelstation:events:variance.raised")
	})
}

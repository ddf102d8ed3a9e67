package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates sys_sequences with one counter per key.
type mockQuerier struct {
	mu   sync.Mutex
	seqs map[string]int64
	err  error
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return &mockRow{err: m.err}
	}
	if m.seqs == nil {
		m.seqs = make(map[string]int64)
	}
	key := args[0].(string)
	m.seqs[key]++
	return &mockRow{val: m.seqs[key]}
}

func TestNext_Sequential(t *testing.T) {
	q := &mockQuerier{}
	svc := NewStatic(q, JournalConfig())
	ctx := context.Background()
	period := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	num, err := svc.Next(ctx, period)
	require.NoError(t, err)
	assert.Equal(t, "JV-2026-00001", num)

	num, err = svc.Next(ctx, period)
	require.NoError(t, err)
	assert.Equal(t, "JV-2026-00002", num)
}

func TestNext_ResetsPerYear(t *testing.T) {
	q := &mockQuerier{}
	svc := NewStatic(q, JournalConfig())
	ctx := context.Background()

	_, err := svc.Next(ctx, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	num, err := svc.Next(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "JV-2026-00001", num)
	assert.Equal(t, int64(1), q.seqs["JV_2025"])
}

func TestNext_Concurrent(t *testing.T) {
	q := &mockQuerier{}
	svc := NewStatic(q, JournalConfig())
	period := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := svc.Next(context.Background(), period)
			if assert.NoError(t, err) {
				_, dup := seen.LoadOrStore(num, true)
				assert.False(t, dup, "duplicate number %s", num)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), q.seqs["JV_2026"])
}

func TestNext_Error(t *testing.T) {
	svc := NewStatic(&mockQuerier{err: errors.New("boom")}, JournalConfig())
	_, err := svc.Next(context.Background(), time.Now())
	assert.ErrorContains(t, err, "boom")

	var nilSvc *Service
	_, err = nilSvc.Next(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestFormatAndParse(t *testing.T) {
	svc := NewStatic(&mockQuerier{}, Config{Prefix: "JV", PadWidth: 3, ResetPeriod: "never"})
	assert.Equal(t, "JV-007", svc.formatNumber(time.Now(), 7))
	assert.Equal(t, "JV", svc.buildKey(time.Now()))

	assert.Equal(t, int64(42), ParseNumber("JV-2026-00042"))
	assert.Equal(t, int64(7), ParseNumber("JV-007"))
	assert.Equal(t, int64(-1), ParseNumber("garbage"))
}

package settings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airtime/internal/models"
)

type fakeSource struct {
	rows  []models.Setting
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (f *fakeSource) AllSettings(ctx context.Context) ([]models.Setting, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func newSource() *fakeSource {
	return &fakeSource{rows: []models.Setting{
		{Category: "transfer", Key: "transfer.country", Value: "OM"},
		{Category: "transfer", Key: "transfer.phone_lengths", Value: "8, 11 ,"},
		{Category: "transfer", Key: "transfer.minor_unit_factor", Value: "1000"},
		{Category: "transfer", Key: "transfer.extend_expiry.enabled", Value: "true"},
		{Category: "transfer", Key: "transfer.max_balance_percentage", Value: "0.5"},
		{Category: "transfer", Key: "transfer.broken_int", Value: "ten"},
		{Category: "bands", Key: "bands.extension.thresholds", Value: "1,5,10"},
		{Category: "bands", Key: "bands.broken", Value: "1,x"},
		{Category: "messages", Key: "error.INVALID_PIN", Value: "Wrong PIN"},
		{Category: "messages", Key: "blank", Value: "   "},
	}}
}

func TestStore_TypedGetters(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newSource(), nil)

	assert.Equal(t, "OM", store.String(ctx, "transfer.country", "XX"))
	assert.Equal(t, "fallback", store.String(ctx, "missing", "fallback"))
	assert.Equal(t, "fallback", store.String(ctx, "blank", "fallback"))

	assert.Equal(t, 1000, store.Int(ctx, "transfer.minor_unit_factor", 1))
	assert.Equal(t, 7, store.Int(ctx, "transfer.broken_int", 7))

	assert.True(t, store.Bool(ctx, "transfer.extend_expiry.enabled", false))
	assert.True(t, store.Bool(ctx, "missing", true))

	assert.True(t, decimal.RequireFromString("0.5").Equal(
		store.Decimal(ctx, "transfer.max_balance_percentage", decimal.NewFromInt(1))))

	assert.Equal(t, []string{"8", "11"}, store.Strings(ctx, "transfer.phone_lengths", nil))
	assert.Equal(t, []string{"x"}, store.Strings(ctx, "missing", []string{"x"}))

	ds, err := store.Decimals(ctx, "bands.extension.thresholds")
	require.NoError(t, err)
	require.Len(t, ds, 3)
	assert.True(t, decimal.NewFromInt(10).Equal(ds[2]))

	_, err = store.Decimals(ctx, "bands.broken")
	assert.Error(t, err)

	ds, err = store.Decimals(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestStore_Category(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newSource(), nil)

	msgs := store.Category(ctx, "messages")
	assert.Equal(t, "Wrong PIN", msgs["error.INVALID_PIN"])
	assert.Len(t, msgs, 2)

	msgs["error.INVALID_PIN"] = "mutated"
	assert.Equal(t, "Wrong PIN", store.String(ctx, "error.INVALID_PIN", ""))
	assert.Empty(t, store.Category(ctx, "nope"))
}

func TestStore_LoadsOnceUnderConcurrency(t *testing.T) {
	src := newSource()
	src.delay = 20 * time.Millisecond
	store := NewStore(src, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "OM", store.String(context.Background(), "transfer.country", ""))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
}

func TestStore_InvalidateReloads(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	store := NewStore(src, nil)

	assert.Equal(t, "OM", store.String(ctx, "transfer.country", ""))
	src.rows = []models.Setting{{Category: "transfer", Key: "transfer.country", Value: "AE"}}
	assert.Equal(t, "OM", store.String(ctx, "transfer.country", ""))

	store.Invalidate()
	assert.Equal(t, "AE", store.String(ctx, "transfer.country", ""))
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestStore_LoadFailureServesDefaultsAndRetries(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{err: errors.New("db down")}
	store := NewStore(src, nil)

	assert.Equal(t, "def", store.String(ctx, "transfer.country", "def"))
	assert.Equal(t, "def", store.String(ctx, "transfer.country", "def"))
	assert.Equal(t, int32(2), src.calls.Load())

	src.err = nil
	src.rows = []models.Setting{{Category: "transfer", Key: "transfer.country", Value: "OM"}}
	assert.Equal(t, "OM", store.String(ctx, "transfer.country", "def"))
}

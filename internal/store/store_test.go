package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/moi-etl/internal/models"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "moi.db"), quiet())
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Storage{"memory": NewMemoryStore(), "sqlite": sq}
}

func TestStorageContract(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := st.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, st.Set(ctx, "a", []byte("1")))
			require.NoError(t, st.Set(ctx, "a", []byte("2")))
			require.NoError(t, st.Set(ctx, "b", []byte("3")))
			v, ok, err := st.Get(ctx, "a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "2", string(v))

			require.NoError(t, st.Delete(ctx, "a"))
			_, ok, _ = st.Get(ctx, "a")
			assert.False(t, ok)
			require.NoError(t, st.Delete(ctx, "a"), "deleting a missing key is fine")

			require.NoError(t, st.Clear(ctx))
			_, ok, _ = st.Get(ctx, "b")
			assert.False(t, ok)
		})
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, st.Set(ctx, "k", buf))
	buf[0] = 'X'
	v, _, _ := st.Get(ctx, "k")
	assert.Equal(t, "abc", string(v))
	assert.Equal(t, []string{"k"}, st.Keys())
}

func TestSQLiteReopenKeepsDataAndSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "moi.db")
	st, err := OpenSQLite(path, quiet())
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "k", []byte("v")))
	require.NoError(t, st.Close())

	st, err = OpenSQLite(path, quiet())
	require.NoError(t, err)
	defer st.Close()
	v, ok, err := st.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(v))

	ver, err := schemaVersion(st.conn)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, ver)

	keys, err := st.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
	assert.Equal(t, path, st.Path())
}

func entry(date string, spend float64) models.DailyDataEntry {
	return models.DailyDataEntry{Date: date, TopLevel: models.IntegratedDailyMetrics{Date: date, MetaSpend: models.Known(spend)}}
}

func TestCumulativeStoreQueryReset(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := NewCumulative(st, quiet())
			require.NoError(t, c.StoreDailyData(ctx, entry("2025-09-11", 1), entry("2025-09-10", 2)))
			require.NoError(t, c.StoreDailyData(ctx, entry("2025-09-11", 5), entry("2025-09-12", 3)))

			all, err := c.Entries(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"2025-09-10", "2025-09-11", "2025-09-12"},
				[]string{all[0].Date, all[1].Date, all[2].Date})
			assert.Equal(t, models.Known(5), all[1].TopLevel.MetaSpend, "same day overwrites")
			assert.False(t, all[0].UploadedAt.IsZero())

			some, err := c.Query(ctx, "2025-09-11", "")
			require.NoError(t, err)
			assert.Len(t, some, 2)

			data, err := c.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, CumulativeVersion, data.Version)

			require.NoError(t, c.Reset(ctx))
			all, err = c.Entries(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestCumulativeDiscardsOtherVersions(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	require.NoError(t, st.Set(ctx, KeyCumulative, []byte(`{"dailyEntries":{"2025-01-01":{"date":"2025-01-01"}},"version":99}`)))
	data, err := NewCumulative(st, quiet()).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, data.DailyEntries)
}

func TestOutputCacheTTL(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	c := NewOutputCache(st, time.Hour)
	now := time.Date(2025, 9, 12, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, ok, err := c.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Save(ctx, Output{RunID: "r1"}))
	out, ok, err := c.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1", out.RunID)

	now = now.Add(2 * time.Hour)
	_, ok, err = c.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, present, _ := st.Get(ctx, KeyOutputData)
	assert.False(t, present, "expired output is removed")
}

func TestServerCache(t *testing.T) {
	ctx := context.Background()
	c := NewServerCache(NewMemoryStore())
	_, _, ok, err := c.TopLevel(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Save(ctx, "top", "adset"))
	top, ts, ok, err := c.TopLevel(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "top", top)
	assert.False(t, ts.IsZero())

	adset, _, ok, err := c.Adset(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "adset", adset)
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AngelCh415/moi-etl/internal/models"
)

const (
	KeyCumulative = "moi-cumulative-data"

	CumulativeVersion = 1
)

// Cumulative is the per-calendar-day history built up from successive
// uploads. It grows by StoreDailyData and is only ever cleared whole.
type Cumulative struct {
	mu  sync.Mutex
	st  Storage
	log *slog.Logger
	now func() time.Time
}

func NewCumulative(st Storage, log *slog.Logger) *Cumulative {
	return &Cumulative{st: st, log: log, now: time.Now}
}

func empty() models.CumulativeData {
	return models.CumulativeData{DailyEntries: map[string]models.DailyDataEntry{}, Version: CumulativeVersion}
}

func (c *Cumulative) Load(ctx context.Context) (models.CumulativeData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *Cumulative) load(ctx context.Context) (models.CumulativeData, error) {
	b, ok, err := c.st.Get(ctx, KeyCumulative)
	if err != nil || !ok {
		return empty(), err
	}
	var data models.CumulativeData
	if err := json.Unmarshal(b, &data); err != nil {
		return empty(), fmt.Errorf("decode cumulative data: %w", err)
	}
	if data.Version != CumulativeVersion {
		c.log.Warn("discarding cumulative data of another version", slog.Int("version", data.Version))
		return empty(), nil
	}
	if data.DailyEntries == nil {
		data.DailyEntries = map[string]models.DailyDataEntry{}
	}
	return data, nil
}

// StoreDailyData replaces any entry for the same date.
func (c *Cumulative) StoreDailyData(ctx context.Context, entries ...models.DailyDataEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := c.load(ctx)
	if err != nil {
		return err
	}
	now := c.now()
	for _, e := range entries {
		if e.UploadedAt.IsZero() {
			e.UploadedAt = now
		}
		data.DailyEntries[e.Date] = e
	}
	data.LastUpdated = now
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode cumulative data: %w", err)
	}
	return c.st.Set(ctx, KeyCumulative, b)
}

// Entries returns all entries ordered by date.
func (c *Cumulative) Entries(ctx context.Context) ([]models.DailyDataEntry, error) {
	return c.Query(ctx, "", "")
}

// Query returns entries whose date lies in [from, to]; an empty bound is open.
func (c *Cumulative) Query(ctx context.Context, from, to string) ([]models.DailyDataEntry, error) {
	data, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.DailyDataEntry
	for d, e := range data.DailyEntries {
		if (from == "" || d >= from) && (to == "" || d <= to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (c *Cumulative) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.Delete(ctx, KeyCumulative)
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AngelCh415/moi-etl/internal/models"
)

const (
	KeyOutputData      = "moi-output-data"
	KeyOutputTimestamp = "moi-output-timestamp"
	KeyServerTopLevel  = "moi-server-topLevel"
	KeyServerAdset     = "moi-server-adset"

	timestampSuffix = "-timestamp"

	DefaultOutputTTL = 24 * time.Hour
)

// Output is the last processed result as the dashboard reads it back.
type Output struct {
	RunID     string                          `json:"runId"`
	DateRange models.DateRange                `json:"dateRange"`
	Daily     []models.IntegratedDailyMetrics `json:"dailyMetrics"`
	Adset     []models.AdsetMetricsRow        `json:"adsetData"`
	Dashboard models.DashboardData            `json:"dashboardData"`
}

// OutputCache holds the last Output for a limited time.
type OutputCache struct {
	st  Storage
	ttl time.Duration
	now func() time.Time
}

func NewOutputCache(st Storage, ttl time.Duration) *OutputCache {
	if ttl <= 0 {
		ttl = DefaultOutputTTL
	}
	return &OutputCache{st: st, ttl: ttl, now: time.Now}
}

func (c *OutputCache) Save(ctx context.Context, out Output) error {
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	if err := c.st.Set(ctx, KeyOutputData, b); err != nil {
		return err
	}
	return c.st.Set(ctx, KeyOutputTimestamp, []byte(c.now().UTC().Format(time.RFC3339Nano)))
}

// Load reports false when nothing is cached or the entry is past its TTL.
// Expired entries are removed.
func (c *OutputCache) Load(ctx context.Context) (*Output, bool, error) {
	ts, ok, err := readTimestamp(ctx, c.st, KeyOutputTimestamp)
	if err != nil || !ok {
		return nil, false, err
	}
	if c.now().Sub(ts) > c.ttl {
		_ = c.st.Delete(ctx, KeyOutputData)
		_ = c.st.Delete(ctx, KeyOutputTimestamp)
		return nil, false, nil
	}
	b, ok, err := c.st.Get(ctx, KeyOutputData)
	if err != nil || !ok {
		return nil, false, err
	}
	var out Output
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false, fmt.Errorf("decode output: %w", err)
	}
	return &out, true, nil
}

// ServerCache keeps the generated CSV documents for download.
type ServerCache struct {
	st  Storage
	now func() time.Time
}

func NewServerCache(st Storage) *ServerCache {
	return &ServerCache{st: st, now: time.Now}
}

func (c *ServerCache) Save(ctx context.Context, topLevelCSV, adsetCSV string) error {
	ts := []byte(c.now().UTC().Format(time.RFC3339Nano))
	for key, v := range map[string]string{KeyServerTopLevel: topLevelCSV, KeyServerAdset: adsetCSV} {
		if err := c.st.Set(ctx, key, []byte(v)); err != nil {
			return err
		}
		if err := c.st.Set(ctx, key+timestampSuffix, ts); err != nil {
			return err
		}
	}
	return nil
}

func (c *ServerCache) TopLevel(ctx context.Context) (string, time.Time, bool, error) {
	return c.read(ctx, KeyServerTopLevel)
}

func (c *ServerCache) Adset(ctx context.Context) (string, time.Time, bool, error) {
	return c.read(ctx, KeyServerAdset)
}

func (c *ServerCache) read(ctx context.Context, key string) (string, time.Time, bool, error) {
	b, ok, err := c.st.Get(ctx, key)
	if err != nil || !ok {
		return "", time.Time{}, false, err
	}
	ts, _, err := readTimestamp(ctx, c.st, key+timestampSuffix)
	if err != nil {
		return "", time.Time{}, false, err
	}
	return string(b), ts, true, nil
}

func readTimestamp(ctx context.Context, st Storage, key string) (time.Time, bool, error) {
	b, ok, err := st.Get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	ts, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return ts, true, nil
}

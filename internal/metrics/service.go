package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/AngelCh415/moi-etl/internal/models"
	"github.com/AngelCh415/moi-etl/internal/store"
)

// Service answers paginated reads over the cumulative store.
type Service struct{ c *store.Cumulative }

func NewService(c *store.Cumulative) *Service { return &Service{c: c} }

// Page is one window of stored days.
type Page struct {
	Total  int                             `json:"total"`
	Limit  int                             `json:"limit"`
	Offset int                             `json:"offset"`
	Rows   []models.IntegratedDailyMetrics `json:"rows"`
}

// QueryDaily reads from, to (YYYY-MM-DD, inclusive, optional), limit and offset.
func (s *Service) QueryDaily(ctx context.Context, v url.Values) (Page, error) {
	from, to := v.Get("from"), v.Get("to")
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return Page{}, fmt.Errorf("bad date %q: %w", d, err)
		}
	}
	entries, err := s.c.Query(ctx, from, to)
	if err != nil {
		return Page{}, err
	}
	rows := make([]models.IntegratedDailyMetrics, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, e.TopLevel)
	}
	limit := atoiDef(v.Get("limit"), 100)
	offset := atoiDef(v.Get("offset"), 0)
	limit, offset = clampLimitOffset(limit, offset, len(rows))
	return Page{Total: len(rows), Limit: limit, Offset: offset, Rows: paginate(rows, limit, offset)}, nil
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func atoiDef(s string, d int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func clampLimitOffset(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset > n {
		offset = n
	}
	return limit, offset
}

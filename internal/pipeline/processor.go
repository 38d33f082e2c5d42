// Package pipeline runs the ordered stages that turn the three platform
// exports into combined daily metrics, adset rows and dashboard KPIs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AngelCh415/moi-etl/internal/aggregate"
	"github.com/AngelCh415/moi-etl/internal/config"
	"github.com/AngelCh415/moi-etl/internal/daterange"
	"github.com/AngelCh415/moi-etl/internal/dates"
	"github.com/AngelCh415/moi-etl/internal/ingest"
	"github.com/AngelCh415/moi-etl/internal/models"
	"github.com/AngelCh415/moi-etl/internal/report"
	"github.com/AngelCh415/moi-etl/internal/store"
	"github.com/AngelCh415/moi-etl/internal/utils"
)

var ErrShopifyRequired = errors.New("shopify export is required")

// StepResult records what one stage did.
type StepResult struct {
	Name     string        `json:"name"`
	Summary  string        `json:"summary"`
	Duration time.Duration `json:"duration"`
}

type Result struct {
	RunID        string                          `json:"runId"`
	DateRange    models.DateRange                `json:"dateRange"`
	DailyMetrics []models.IntegratedDailyMetrics `json:"dailyMetrics"`
	AdsetData    []models.AdsetMetricsRow        `json:"adsetData"`
	Dashboard    models.DashboardData            `json:"dashboardData"`
	Pivot        []models.PivotRow               `json:"pivot"`
	Steps        []StepResult                    `json:"steps"`
}

// Preamble is the report header for this run's CSV and XLSX output.
func (r *Result) Preamble(at time.Time) report.Preamble {
	return report.Preamble{DateRange: r.DateRange.Label(), GeneratedAt: at}
}

// Processor is safe for concurrent use; runs are serialized.
type Processor struct {
	mu         sync.Mutex
	st         store.Storage
	c          ingest.HTTPClient
	log        *slog.Logger
	cfg        config.Config
	now        func() time.Time
	server     *store.ServerCache
	cumulative *store.Cumulative
}

func New(st store.Storage, c ingest.HTTPClient, log *slog.Logger, cfg config.Config) *Processor {
	if c == nil {
		c = http.DefaultClient
	}
	return &Processor{
		st:         st,
		c:          c,
		log:        log,
		cfg:        cfg,
		now:        time.Now,
		server:     store.NewServerCache(st),
		cumulative: store.NewCumulative(st, log),
	}
}

func (p *Processor) Cumulative() *store.Cumulative { return p.cumulative }
func (p *Processor) ServerCache() *store.ServerCache { return p.server }

// OutputCache uses the configured TTL.
func (p *Processor) OutputCache() *store.OutputCache {
	return store.NewOutputCache(p.st, p.cfg.Tunables.OutputTTL)
}

// Detector is configured the way pipeline runs configure it: tunables apply
// only when useConfigurable is set.
func (p *Processor) Detector(useConfigurable bool) *daterange.Detector {
	return p.detector(p.cfg.Tunables.Effective(useConfigurable), p.log)
}

func (p *Processor) detector(tun config.Tunables, log *slog.Logger) *daterange.Detector {
	det := tun.Detector(log)
	det.Now = p.now
	return det
}

// countParsed is only called from run steps; detection parses exports too
// and must not inflate the counter.
func countParsed(pl models.Platform, n int) {
	utils.RecordsParsed.WithLabelValues(string(pl)).Add(float64(n))
}

// Run loads each source (path or URL) and processes them.
func (p *Processor) Run(ctx context.Context, src config.Sources, useConfigurable bool) (*Result, error) {
	files, err := ingest.NewLoader(p.c, p.log).LoadAll(ctx, src.Shopify, src.Meta, src.Google)
	if err != nil {
		return nil, err
	}
	return p.ProcessAllInputFiles(ctx, files, useConfigurable)
}

// ProcessAllInputFiles runs the stages strictly in order. Meta and Google
// are optional and count as zero when absent. On success the output and
// server caches are refreshed.
func (p *Processor) ProcessAllInputFiles(ctx context.Context, files ingest.Files, useConfigurable bool) (res *Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		utils.PipelineRuns.WithLabelValues(status).Inc()
		utils.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	if files.Shopify == nil {
		return nil, ErrShopifyRequired
	}
	tun := p.cfg.Tunables.Effective(useConfigurable)
	res = &Result{RunID: uuid.NewString()}
	log := p.log.With(slog.String("run_id", res.RunID))
	step := func(name string, t0 time.Time, format string, args ...any) {
		s := StepResult{Name: name, Summary: fmt.Sprintf(format, args...), Duration: time.Since(t0)}
		res.Steps = append(res.Steps, s)
		log.Debug("pipeline step", slog.String("step", name), slog.String("summary", s.Summary))
	}

	t0 := time.Now()
	r, err := p.detector(tun, log).DetectFromFiles(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("detect date range: %w", err)
	}
	res.DateRange = r
	step("detect_range", t0, "%s (%d days, degraded=%t)", r.Label(), r.DayCount, r.Degraded)

	t0 = time.Now()
	shopify, err := ingest.ParseShopify(*files.Shopify)
	if err != nil {
		return nil, fmt.Errorf("parse shopify %s: %w", files.Shopify.Name, err)
	}
	shopify = ingest.NormalizeShopifyDays(shopify, dates.Normalizer{Now: p.now, Log: log})
	countParsed(models.PlatformShopify, len(shopify))
	step("parse_shopify", t0, "%d rows", len(shopify))

	t0 = time.Now()
	var (
		meta   []models.MetaRecord
		google []models.GoogleRecord
	)
	if files.Meta != nil {
		if meta, err = ingest.ParseMeta(*files.Meta); err != nil {
			return nil, fmt.Errorf("parse meta %s: %w", files.Meta.Name, err)
		}
	}
	if files.Google != nil {
		if google, err = ingest.ParseGoogle(*files.Google); err != nil {
			return nil, fmt.Errorf("parse google %s: %w", files.Google.Name, err)
		}
	}
	countParsed(models.PlatformMeta, len(meta))
	countParsed(models.PlatformGoogle, len(google))
	step("parse_ads", t0, "meta=%d google=%d", len(meta), len(google))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t0 = time.Now()
	opts := tun.AggregateOptions()
	agg := aggregate.New(opts, log)
	var metaDaily, googleDaily []models.DailyAdsMetric
	if files.Meta != nil {
		metaDaily = agg.ProcessMetaByDay(meta, r)
	}
	if files.Google != nil {
		googleDaily = agg.ProcessGoogleByDay(google, r)
	}
	shopifyDaily := agg.ProcessShopifyByDay(shopify, r)
	step("aggregate", t0, "%d days", len(shopifyDaily))

	t0 = time.Now()
	res.DailyMetrics = CombineDaily(r, metaDaily, googleDaily, shopifyDaily)
	step("combine", t0, "%d rows", len(res.DailyMetrics))

	t0 = time.Now()
	pivot := BuildPivot(shopify, opts)
	if files.Meta != nil {
		before := len(pivot)
		pivot = FilterShopifyByMetaCoverage(pivot, meta)
		log.Info("coverage filter applied", slog.Int("kept", len(pivot)), slog.Int("dropped", before-len(pivot)))
	} else {
		log.Info("no meta export, coverage filter skipped")
	}
	res.Pivot = pivot
	res.AdsetData = BuildAdsetRows(r, meta, google, pivot)
	step("adset", t0, "%d rows, %d pivot rows", len(res.AdsetData), len(pivot))

	t0 = time.Now()
	res.Dashboard = tun.Tiers.Process(res.DailyMetrics, res.AdsetData, &r)
	step("dashboard", t0, "%d campaigns", len(res.Dashboard.Campaigns))

	if err := p.persist(ctx, res, tun); err != nil {
		return nil, err
	}
	log.Info("pipeline complete",
		slog.String("range", r.Label()),
		slog.Int("days", r.DayCount),
		slog.Int("adset_rows", len(res.AdsetData)),
		slog.Duration("took", time.Since(start)))
	return res, nil
}

func (p *Processor) persist(ctx context.Context, res *Result, tun config.Tunables) error {
	out := store.Output{
		RunID:     res.RunID,
		DateRange: res.DateRange,
		Daily:     res.DailyMetrics,
		Adset:     res.AdsetData,
		Dashboard: res.Dashboard,
	}
	if err := store.NewOutputCache(p.st, tun.OutputTTL).Save(ctx, out); err != nil {
		return fmt.Errorf("save output cache: %w", err)
	}
	pre := res.Preamble(p.now())
	top := report.GenerateTopLevelCSV(res.DailyMetrics, pre)
	adset := report.GenerateAdsetCSV(res.AdsetData, pre)
	if err := p.server.Save(ctx, top, adset); err != nil {
		return fmt.Errorf("save server cache: %w", err)
	}
	return nil
}

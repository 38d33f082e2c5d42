package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AngelCh415/moi-etl/internal/config"
	"github.com/AngelCh415/moi-etl/internal/ingest"
	"github.com/AngelCh415/moi-etl/internal/models"
	"github.com/AngelCh415/moi-etl/internal/pipeline"
	"github.com/AngelCh415/moi-etl/internal/report"
	"github.com/AngelCh415/moi-etl/internal/watch"
)

var (
	srcFlags     config.Sources
	configurable bool
	accumulate   bool
	outDir       string
	writeXLSX    bool
	exportDate   string
	recordsJSON  string
)

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&srcFlags.Shopify, "shopify", "", "Shopify export (path or URL)")
	cmd.Flags().StringVar(&srcFlags.Meta, "meta", "", "Meta export (path or URL)")
	cmd.Flags().StringVar(&srcFlags.Google, "google", "", "Google export (path or URL)")
}

// sources overlays flags on the configured defaults.
func sources() config.Sources {
	s := cfg.Sources
	if srcFlags.Shopify != "" {
		s.Shopify = srcFlags.Shopify
	}
	if srcFlags.Meta != "" {
		s.Meta = srcFlags.Meta
	}
	if srcFlags.Google != "" {
		s.Google = srcFlags.Google
	}
	return s
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the pipeline over one set of exports",
	Long: `Run the pipeline over one set of exports. Each export is a local path or an
http(s) URL; --shopify is required.

Meta and Google exports carry range totals, so their spend is spread evenly
across the days of the detected range.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, closer, err := newProcessor()
		if err != nil {
			return err
		}
		defer closer.Close()

		res, err := proc.Run(cmd.Context(), sources(), configurable)
		if err != nil {
			return err
		}
		return finish(cmd.Context(), proc, res)
	},
}

func finish(ctx context.Context, proc *pipeline.Processor, res *pipeline.Result) error {
	if accumulate {
		if err := proc.StoreCumulative(ctx, res); err != nil {
			return err
		}
	}
	if outDir != "" {
		if err := writeOutputs(res); err != nil {
			return err
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Dashboard)
}

func writeOutputs(res *pipeline.Result) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	pre := res.Preamble(time.Now())
	files := map[string]string{
		"top-level.csv": report.GenerateTopLevelCSV(res.DailyMetrics, pre),
		"adset.csv":     report.GenerateAdsetCSV(res.AdsetData, pre),
	}
	for name, text := range files {
		if err := os.WriteFile(filepath.Join(outDir, name), []byte(text), 0o644); err != nil {
			return err
		}
	}
	if !writeXLSX {
		return nil
	}
	f, err := os.Create(filepath.Join(outDir, "report.xlsx"))
	if err != nil {
		return err
	}
	defer f.Close()
	return report.WriteXLSX(f, res.DailyMetrics, res.AdsetData, pre)
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print the date range the exports cover",
	Long: `Print the date range the exports cover. With --json FILE the input is a
JSON object of already-parsed records ({"meta": [...], "google": [...],
"shopify": [...]}) and the dominant-date rule applies instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := detectRange(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d days\tdegraded=%t\tsources=%v\n", r.Label(), r.DayCount, r.Degraded, r.Sources)
		return nil
	},
}

func detectRange(ctx context.Context) (models.DateRange, error) {
	det := cfg.Tunables.Effective(configurable).Detector(logger)
	if recordsJSON != "" {
		f, err := os.Open(recordsJSON)
		if err != nil {
			return models.DateRange{}, err
		}
		defer f.Close()
		return det.DetectFromJSON(f)
	}
	s := sources()
	files, err := ingest.NewLoader(ingest.NewHTTPClient(cfg.Server.HTTPTimeout), logger).
		LoadAll(ctx, s.Shopify, s.Meta, s.Google)
	if err != nil {
		return models.DateRange{}, err
	}
	return det.DetectFromFiles(ctx, files)
}

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Re-run the pipeline whenever exports land in DIR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, closer, err := newProcessor()
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		w := watch.New(args[0], func(ctx context.Context, files ingest.Files) error {
			res, err := proc.ProcessAllInputFiles(ctx, files, configurable)
			if err != nil {
				return err
			}
			return finish(ctx, proc, res)
		}, logger)
		return w.Run(ctx)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Send one stored day to the configured sink",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := time.Parse("2006-01-02", exportDate); err != nil {
			return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
		proc, closer, err := newProcessor()
		if err != nil {
			return err
		}
		defer closer.Close()
		n, err := proc.ExportDay(cmd.Context(), exportDate)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries for %s\n", n, exportDate)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{processCmd, detectCmd} {
		addSourceFlags(c)
	}
	detectCmd.Flags().BoolVar(&configurable, "configurable", false, "Use configured tunables instead of defaults")
	detectCmd.Flags().StringVar(&recordsJSON, "json", "", "Detect from a JSON file of parsed records")
	for _, c := range []*cobra.Command{processCmd, watchCmd} {
		c.Flags().BoolVar(&configurable, "configurable", false, "Use configured tunables instead of defaults")
		c.Flags().BoolVar(&accumulate, "accumulate", false, "Store each day in the cumulative store")
		c.Flags().StringVar(&outDir, "out", "", "Write top-level.csv and adset.csv here")
		c.Flags().BoolVar(&writeXLSX, "xlsx", false, "Also write report.xlsx (needs --out)")
	}
	exportCmd.Flags().StringVar(&exportDate, "date", "", "Day to export (YYYY-MM-DD)")
	exportCmd.MarkFlagRequired("date")
}

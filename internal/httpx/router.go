package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AngelCh415/moi-etl/internal/ingest"
	"github.com/AngelCh415/moi-etl/internal/metrics"
	"github.com/AngelCh415/moi-etl/internal/models"
	"github.com/AngelCh415/moi-etl/internal/pipeline"
	"github.com/AngelCh415/moi-etl/internal/report"
	"github.com/AngelCh415/moi-etl/internal/utils"
)

const maxUploadBytes = 64 << 20

func NewRouter(log *slog.Logger, proc *pipeline.Processor, mSvc *metrics.Service) http.Handler {
	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ready")) })
	mux.Method(http.MethodGet, "/metrics", utils.MetricsHandler())

	mux.Post("/pipeline/run", func(w http.ResponseWriter, r *http.Request) {
		files, err := readUploads(r)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		q := r.URL.Query()
		res, err := proc.ProcessAllInputFiles(r.Context(), files, q.Get("configurable") == "true")
		if errors.Is(err, pipeline.ErrShopifyRequired) {
			http.Error(w, err.Error(), 422)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if q.Get("accumulate") == "true" {
			if err := proc.StoreCumulative(r.Context(), res); err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
		}
		writeJSON(w, res)
	})

	// A JSON body carries already-parsed records; anything else is read as
	// multipart uploads of the raw exports.
	mux.Post("/daterange/detect", func(w http.ResponseWriter, r *http.Request) {
		det := proc.Detector(r.URL.Query().Get("configurable") == "true")
		var (
			dr  models.DateRange
			err error
		)
		if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
			dr, err = det.DetectFromJSON(http.MaxBytesReader(w, r.Body, maxUploadBytes))
		} else {
			var files ingest.Files
			if files, err = readUploads(r); err == nil {
				dr, err = det.DetectFromFiles(r.Context(), files)
			}
		}
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		writeJSON(w, dr)
	})

	mux.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		out, ok, err := proc.OutputCache().Load(r.Context())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if !ok {
			http.Error(w, "no processed output", 404)
			return
		}
		writeJSON(w, out)
	})

	mux.Get("/export/top-level.csv", func(w http.ResponseWriter, r *http.Request) {
		text, ts, ok, err := proc.ServerCache().TopLevel(r.Context())
		writeCSV(w, "top-level.csv", text, ts, ok, err)
	})
	mux.Get("/export/adset.csv", func(w http.ResponseWriter, r *http.Request) {
		text, ts, ok, err := proc.ServerCache().Adset(r.Context())
		writeCSV(w, "adset.csv", text, ts, ok, err)
	})

	mux.Get("/export/report.xlsx", func(w http.ResponseWriter, r *http.Request) {
		out, ok, err := proc.OutputCache().Load(r.Context())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if !ok {
			http.Error(w, "no processed output", 404)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="moi-report.xlsx"`)
		pre := report.Preamble{DateRange: out.DateRange.Label(), GeneratedAt: time.Now()}
		if err := report.WriteXLSX(w, out.Daily, out.Adset, pre); err != nil {
			log.Error("xlsx export failed", slog.String("err", err.Error()))
		}
	})

	mux.Get("/cumulative", func(w http.ResponseWriter, r *http.Request) {
		entries, err := proc.Cumulative().Entries(r.Context())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, entries)
	})
	mux.Delete("/cumulative", func(w http.ResponseWriter, r *http.Request) {
		if err := proc.Cumulative().Reset(r.Context()); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.WriteHeader(204)
	})

	mux.Get("/metrics/daily", func(w http.ResponseWriter, r *http.Request) {
		page, err := mSvc.QueryDaily(r.Context(), r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		writeJSON(w, page)
	})

	mux.Post("/export/run", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("date")
		if q == "" {
			http.Error(w, "date required (YYYY-MM-DD)", 400)
			return
		}
		if _, err := time.Parse("2006-01-02", q); err != nil {
			http.Error(w, "bad date", 400)
			return
		}
		n, err := proc.ExportDay(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), 502)
			return
		}
		writeJSON(w, map[string]any{"exported": n})
	})

	return mux
}

// readUploads takes the named parts shopify, meta and google, plus any
// number of "files" parts classified by content.
func readUploads(r *http.Request) (ingest.Files, error) {
	var fs ingest.Files
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return fs, fmt.Errorf("bad multipart form: %w", err)
	}
	for field, dst := range map[string]**ingest.SourceFile{
		"shopify": &fs.Shopify,
		"meta":    &fs.Meta,
		"google":  &fs.Google,
	} {
		hs := r.MultipartForm.File[field]
		if len(hs) == 0 {
			continue
		}
		f, err := readPart(hs[0])
		if err != nil {
			return fs, fmt.Errorf("%s: %w", field, err)
		}
		*dst = &f
	}
	for _, h := range r.MultipartForm.File["files"] {
		f, err := readPart(h)
		if err != nil {
			return fs, fmt.Errorf("%s: %w", h.Filename, err)
		}
		if !fs.Assign(f) {
			return fs, fmt.Errorf("%s: unrecognized export", h.Filename)
		}
	}
	return fs, nil
}

func readPart(h *multipart.FileHeader) (ingest.SourceFile, error) {
	f, err := h.Open()
	if err != nil {
		return ingest.SourceFile{}, err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return ingest.SourceFile{}, err
	}
	return ingest.SourceFile{Name: h.Filename, Content: b}, nil
}

func writeCSV(w http.ResponseWriter, name, text string, ts time.Time, ok bool, err error) {
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if !ok {
		http.Error(w, "no cached report", 404)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Last-Modified", ts.UTC().Format(http.TimeFormat))
	w.Write([]byte(text))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}

// Package export writes captured activity out of the database as CSV files
// plus one combined JSON document, for use outside the pipeline.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/runnerr0/dwell/internal/storage"
)

// Store is the read slice of the storage layer the exporter needs.
type Store interface {
	VisitsSince(ctx context.Context, since time.Time) ([]storage.VisitRow, error)
	AppUsageSince(ctx context.Context, since time.Time) ([]storage.AppUsageRow, error)
	SearchQueriesSince(ctx context.Context, since time.Time) ([]storage.SearchQueryRow, error)
}

// Result summarizes one export run.
type Result struct {
	Dir      string
	Visits   int
	AppUsage int
	Queries  int
}

type Exporter struct {
	store Store
	log   *slog.Logger
}

func New(store Store, log *slog.Logger) *Exporter {
	return &Exporter{store: store, log: log}
}

// Export writes browsing_visits.csv, application_usage.csv,
// search_queries.csv and activity_export.json into dir, creating it if
// needed. A zero since exports everything.
func (e *Exporter) Export(ctx context.Context, dir string, since time.Time) (*Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	visits, err := e.store.VisitsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	usage, err := e.store.AppUsageSince(ctx, since)
	if err != nil {
		return nil, err
	}
	queries, err := e.store.SearchQueriesSince(ctx, since)
	if err != nil {
		return nil, err
	}

	if err := e.writeVisitsCSV(filepath.Join(dir, "browsing_visits.csv"), visits); err != nil {
		return nil, err
	}
	if err := e.writeUsageCSV(filepath.Join(dir, "application_usage.csv"), usage); err != nil {
		return nil, err
	}
	if err := e.writeQueriesCSV(filepath.Join(dir, "search_queries.csv"), queries); err != nil {
		return nil, err
	}
	if err := e.writeJSON(filepath.Join(dir, "activity_export.json"), visits, usage, queries); err != nil {
		return nil, err
	}

	res := &Result{Dir: dir, Visits: len(visits), AppUsage: len(usage), Queries: len(queries)}
	e.log.Info("export complete", "dir", dir,
		"visits", res.Visits, "app_usage", res.AppUsage, "queries", res.Queries)
	return res, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func fmtOut(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (e *Exporter) writeVisitsCSV(path string, visits []storage.VisitRow) error {
	rows := make([][]string, 0, len(visits))
	for _, v := range visits {
		rows = append(rows, []string{
			v.URL, v.Title,
			fmtOut(v.VisitTime), fmtOut(v.LeaveTime),
			strconv.FormatInt(v.DurationSeconds, 10),
			strconv.FormatBool(v.IsActive),
			strconv.FormatInt(v.ActiveSeconds, 10),
		})
	}
	header := []string{"url", "title", "visit_time", "leave_time", "duration_seconds", "is_active", "active_duration_seconds"}
	return writeCSV(path, header, rows)
}

func (e *Exporter) writeUsageCSV(path string, usage []storage.AppUsageRow) error {
	rows := make([][]string, 0, len(usage))
	for _, u := range usage {
		rows = append(rows, []string{
			u.AppName, u.BundleID, u.WindowTitle,
			fmtOut(u.StartTime), fmtOut(u.EndTime),
			strconv.FormatInt(u.DurationSeconds, 10),
			strconv.FormatBool(u.IsBrowser),
		})
	}
	header := []string{"app_name", "bundle_id", "window_title", "start_time", "end_time", "duration_seconds", "is_browser"}
	return writeCSV(path, header, rows)
}

func (e *Exporter) writeQueriesCSV(path string, queries []storage.SearchQueryRow) error {
	rows := make([][]string, 0, len(queries))
	for _, q := range queries {
		rows = append(rows, []string{
			q.Query, q.SearchEngine, fmtOut(q.SearchTime), q.ClickedURLs,
		})
	}
	header := []string{"query", "search_engine", "search_time", "clicked_urls"}
	return writeCSV(path, header, rows)
}

type exportDoc struct {
	ExportedAt    string                   `json:"exported_at"`
	Visits        []storage.VisitRow       `json:"browsing_visits"`
	AppUsage      []storage.AppUsageRow    `json:"application_usage"`
	SearchQueries []storage.SearchQueryRow `json:"search_queries"`
}

func (e *Exporter) writeJSON(path string, visits []storage.VisitRow, usage []storage.AppUsageRow, queries []storage.SearchQueryRow) error {
	doc := exportDoc{
		ExportedAt:    time.Now().UTC().Format(time.RFC3339),
		Visits:        visits,
		AppUsage:      usage,
		SearchQueries: queries,
	}
	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

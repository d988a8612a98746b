package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/wire"
)

// Intervals shorter than this are discarded at the storage boundary, never
// persisted.
const minVisitSeconds = 1

// topSitesLimit bounds the by-time ranking returned by TodayStats.
const topSitesLimit = 5

// Store defines the interface for activity data operations. All writes are
// serialized internally; the ingestion dispatch loop and the window sampler
// reconciler share one Store and never interleave partial writes.
type Store interface {
	SaveBatch(ctx context.Context, items []wire.Item) (int, error)
	InsertAppUsage(ctx context.Context, u AppUsage) error
	TodayStats(ctx context.Context, now time.Time) (*wire.Stats, error)
	Settings(ctx context.Context) (*Settings, error)
	UpdateSettings(ctx context.Context, patch wire.SettingsPatch) error
	ClearData(ctx context.Context) error
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
	VisitsSince(ctx context.Context, since time.Time) ([]VisitRow, error)
	AppUsageSince(ctx context.Context, since time.Time) ([]AppUsageRow, error)
	SearchQueriesSince(ctx context.Context, since time.Time) ([]SearchQueryRow, error)
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// One writer at a time. Reads serialize on the same lock; the query set
	// is tiny and this keeps the write discipline single-path.
	mu sync.Mutex

	excl *config.Exclusions

	// Prepared statements for the hot single-row paths.
	insertAppUsage *sql.Stmt
	getSettings    *sql.Stmt
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and
// migrated database. The exclusion matcher is applied to every incoming item
// as defense in depth, even when the capture side filtered already.
func NewSQLiteStore(db *sql.DB, excl *config.Exclusions) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, excl: excl}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertAppUsage, err = s.db.Prepare(`
		INSERT INTO application_usage (app_name, bundle_id, window_title, start_time, end_time, duration_seconds, is_browser)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getSettings, err = s.db.Prepare(`
		SELECT tracking_enabled, retention_days, updated_at FROM tracking_settings WHERE id = 1
	`)
	if err != nil {
		return err
	}

	return nil
}

// fmtTime formats a timestamp for storage. All stored instants are UTC
// RFC3339 so string comparison is range-query safe.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// pendingInsert is a validated, decoded item awaiting its transaction.
type pendingInsert struct {
	kind    wire.ItemKind
	payload any
}

// validate decodes and filters a batch before any transaction is opened.
// Excluded targets, malformed payloads, unknown kinds, and sub-minimum
// intervals are dropped here; the batch otherwise proceeds.
func (s *SQLiteStore) validate(items []wire.Item) []pendingInsert {
	out := make([]pendingInsert, 0, len(items))

	for _, it := range items {
		switch it.Kind {
		case wire.KindVisit:
			var v wire.Visit
			if it.DecodePayload(&v) != nil || v.URL == "" {
				continue
			}
			if v.DurationSeconds < minVisitSeconds {
				continue
			}
			if s.excl.Excluded(v.URL) {
				continue
			}
			out = append(out, pendingInsert{it.Kind, v})

		case wire.KindSearchQuery:
			var q wire.SearchQuery
			if it.DecodePayload(&q) != nil || q.Query == "" {
				continue
			}
			out = append(out, pendingInsert{it.Kind, q})

		case wire.KindSearchClick:
			var c wire.SearchClick
			if it.DecodePayload(&c) != nil {
				continue
			}
			if s.excl.Excluded(c.ResultURL) {
				continue
			}
			out = append(out, pendingInsert{it.Kind, c})

		case wire.KindNavigation:
			var n wire.Navigation
			if it.DecodePayload(&n) != nil || n.URL == "" {
				continue
			}
			if s.excl.Excluded(n.URL) {
				continue
			}
			out = append(out, pendingInsert{it.Kind, n})

		case wire.KindDownload:
			var d wire.Download
			if it.DecodePayload(&d) != nil {
				continue
			}
			if s.excl.Excluded(d.URL) {
				continue
			}
			out = append(out, pendingInsert{it.Kind, d})

		case wire.KindBookmark:
			var b wire.Bookmark
			if it.DecodePayload(&b) != nil {
				continue
			}
			if s.excl.Excluded(b.URL) {
				continue
			}
			out = append(out, pendingInsert{it.Kind, b})

		case wire.KindInteraction:
			var ui wire.Interaction
			if it.DecodePayload(&ui) != nil {
				continue
			}
			if s.excl.Excluded(ui.URL) {
				continue
			}
			out = append(out, pendingInsert{it.Kind, ui})

		default:
			// Unknown kind: validation drop.
		}
	}

	return out
}

// SaveBatch persists one batch atomically: validation drops happen before
// the transaction; every surviving item is inserted in batch order inside a
// single transaction; any insert failure rolls the whole batch back.
// Returns the number of rows actually written.
func (s *SQLiteStore) SaveBatch(ctx context.Context, items []wire.Item) (int, error) {
	pending := s.validate(items)
	if len(pending) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	saved := 0
	for _, p := range pending {
		inserted, err := insertPending(ctx, tx, p)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", p.kind, err)
		}
		if inserted {
			saved++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}

	return saved, nil
}

// insertPending writes one validated item inside the batch transaction.
// Returns false (no error) when the item resolves to nothing to write, e.g.
// a search click arriving before any search query exists.
func insertPending(ctx context.Context, tx *sql.Tx, p pendingInsert) (bool, error) {
	switch v := p.payload.(type) {
	case wire.Visit:
		var leave any
		if !v.LeaveTime.IsZero() {
			leave = fmtTime(v.LeaveTime)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO browsing_visits (url, title, visit_time, leave_time, duration_seconds, tab_id, is_active, active_duration_seconds)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			v.URL, v.Title, fmtTime(v.VisitTime), leave, v.DurationSeconds, v.TabID, v.IsActive, v.ActiveSeconds,
		)
		return err == nil, err

	case wire.SearchQuery:
		engine := v.SearchEngine
		if engine == "" {
			engine = "google"
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO search_queries (query, search_engine, search_time)
			VALUES (?, ?, ?)`,
			v.Query, engine, fmtTime(v.SearchTime),
		)
		return err == nil, err

	case wire.SearchClick:
		// A click belongs to the most recent query. Out-of-order arrival is
		// accepted; a click with no query at all is dropped.
		var queryID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM search_queries ORDER BY search_time DESC, id DESC LIMIT 1`,
		).Scan(&queryID)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("resolve search query: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO search_clicks (search_query_id, result_url, result_title, result_position, click_time)
			VALUES (?, ?, ?, ?, ?)`,
			queryID, v.ResultURL, v.ResultTitle, v.ResultPosition, fmtTime(v.ClickTime),
		)
		return err == nil, err

	case wire.Navigation:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO navigation_events (url, tab_id, opener_tab_id, transition_type, is_spa_navigation, event_time)
			VALUES (?, ?, ?, ?, ?, ?)`,
			v.URL, v.TabID, v.OpenerTabID, v.TransitionType, v.IsSPANavigation, fmtTime(v.EventTime),
		)
		return err == nil, err

	case wire.Download:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO downloads (filename, url, mime_type, file_size, download_time)
			VALUES (?, ?, ?, ?, ?)`,
			v.Filename, v.URL, v.MimeType, v.FileSize, fmtTime(v.DownloadTime),
		)
		return err == nil, err

	case wire.Bookmark:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bookmarks (url, title, bookmark_time)
			VALUES (?, ?, ?)`,
			v.URL, v.Title, fmtTime(v.BookmarkTime),
		)
		return err == nil, err

	case wire.Interaction:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_interactions (url, tab_id, interaction_type, interaction_data, event_time)
			VALUES (?, ?, ?, ?, ?)`,
			v.URL, v.TabID, v.InteractionType, v.InteractionData, fmtTime(v.EventTime),
		)
		return err == nil, err
	}

	return false, fmt.Errorf("unhandled payload type %T", p.payload)
}

// InsertAppUsage writes one closed application interval. Intervals below the
// persistence minimum are discarded.
func (s *SQLiteStore) InsertAppUsage(ctx context.Context, u AppUsage) error {
	if u.DurationSeconds < minVisitSeconds {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.insertAppUsage.ExecContext(ctx,
		u.AppName, u.BundleID, u.WindowTitle,
		fmtTime(u.StartTime), fmtTime(u.EndTime), u.DurationSeconds, u.IsBrowser,
	)
	if err != nil {
		return fmt.Errorf("insert app usage: %w", err)
	}
	return nil
}

// TodayStats computes the aggregate view for the local day containing now:
// distinct sites, total browsing seconds, search count, distinct apps, and
// the top sites ranking by time.
func (s *SQLiteStore) TodayStats(ctx context.Context, now time.Time) (*wire.Stats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)
	lo, hi := fmtTime(dayStart), fmtTime(dayEnd)

	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &wire.Stats{TopSites: []wire.TopSite{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT url), COALESCE(SUM(duration_seconds), 0)
		FROM browsing_visits
		WHERE visit_time >= ? AND visit_time < ?`, lo, hi,
	).Scan(&stats.SitesVisited, &stats.TotalTimeSeconds)
	if err != nil {
		return nil, fmt.Errorf("browsing totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT url, MAX(title), SUM(duration_seconds) AS total_time
		FROM browsing_visits
		WHERE visit_time >= ? AND visit_time < ?
		GROUP BY url
		ORDER BY total_time DESC
		LIMIT ?`, lo, hi, topSitesLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("top sites: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts wire.TopSite
		if err := rows.Scan(&ts.URL, &ts.Title, &ts.Time); err != nil {
			return nil, fmt.Errorf("scan top site: %w", err)
		}
		stats.TopSites = append(stats.TopSites, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM search_queries
		WHERE search_time >= ? AND search_time < ?`, lo, hi,
	).Scan(&stats.SearchQueries)
	if err != nil {
		return nil, fmt.Errorf("search count: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT app_name) FROM application_usage
		WHERE start_time >= ? AND start_time < ?`, lo, hi,
	).Scan(&stats.ApplicationsUsed)
	if err != nil {
		return nil, fmt.Errorf("application count: %w", err)
	}

	return stats, nil
}

// Settings returns the singleton settings record.
func (s *SQLiteStore) Settings(ctx context.Context) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Settings
	var updatedStr string
	err := s.getSettings.QueryRowContext(ctx).Scan(&st.TrackingEnabled, &st.RetentionDays, &updatedStr)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	st.UpdatedAt, _ = parseTimestamp(updatedStr)
	return &st, nil
}

// UpdateSettings applies an update_settings patch to the singleton record.
// Nil fields are left unchanged.
func (s *SQLiteStore) UpdateSettings(ctx context.Context, patch wire.SettingsPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.TrackingEnabled != nil {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE tracking_settings SET tracking_enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1`,
			*patch.TrackingEnabled,
		); err != nil {
			return fmt.Errorf("update tracking_enabled: %w", err)
		}
	}

	if patch.RetentionDays != nil {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE tracking_settings SET retention_days = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1`,
			*patch.RetentionDays,
		); err != nil {
			return fmt.Errorf("update retention_days: %w", err)
		}
	}

	return nil
}

// eventTables maps each event/interval table to its time column, for
// ClearData and PruneExpired. tracking_settings is deliberately absent.
var eventTables = []struct {
	name    string
	timeCol string
}{
	{"browsing_visits", "visit_time"},
	{"application_usage", "start_time"},
	{"search_clicks", "click_time"},
	{"search_queries", "search_time"},
	{"navigation_events", "event_time"},
	{"downloads", "download_time"},
	{"bookmarks", "bookmark_time"},
	{"user_interactions", "event_time"},
}

// ClearData deletes all rows from every interval and event table. Settings
// are preserved. Irreversible.
func (s *SQLiteStore) ClearData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, t := range eventTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t.name); err != nil {
			return fmt.Errorf("clear %s: %w", t.name, err)
		}
	}

	return tx.Commit()
}

// PruneExpired deletes rows older than olderThan from every interval and
// event table, returning the total number of rows removed.
func (s *SQLiteStore) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	cutoff := fmtTime(olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var total int64
	for _, t := range eventTables {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE %s < ?", t.name, t.timeCol), cutoff,
		)
		if err != nil {
			return 0, fmt.Errorf("prune %s: %w", t.name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// Close releases prepared statements. The underlying *sql.DB is NOT closed;
// that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.insertAppUsage, s.getSettings} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}

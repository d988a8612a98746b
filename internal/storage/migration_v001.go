package storage

import "database/sql"

// migrateV001 creates the initial activity schema: interval tables for
// browsing visits and application usage, event tables for searches and
// telemetry, and the singleton settings row. Every statement uses
// IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Interval tables ─────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS browsing_visits (
			id                      INTEGER PRIMARY KEY AUTOINCREMENT,
			url                     TEXT NOT NULL,
			title                   TEXT NOT NULL DEFAULT '',
			visit_time              DATETIME NOT NULL,
			leave_time              DATETIME,
			duration_seconds        INTEGER NOT NULL DEFAULT 0,
			tab_id                  INTEGER NOT NULL DEFAULT 0,
			is_active               BOOLEAN NOT NULL DEFAULT 1,
			active_duration_seconds INTEGER NOT NULL DEFAULT 0,
			created_at              DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS application_usage (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			app_name         TEXT NOT NULL,
			bundle_id        TEXT NOT NULL DEFAULT '',
			window_title     TEXT NOT NULL DEFAULT '',
			start_time       DATETIME NOT NULL,
			end_time         DATETIME NOT NULL,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			is_browser       BOOLEAN NOT NULL DEFAULT 0,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// ── Event tables ────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS search_queries (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			query         TEXT NOT NULL,
			search_engine TEXT NOT NULL DEFAULT 'google',
			search_time   DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS search_clicks (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			search_query_id INTEGER NOT NULL REFERENCES search_queries(id) ON DELETE CASCADE,
			result_url      TEXT NOT NULL,
			result_title    TEXT NOT NULL DEFAULT '',
			result_position INTEGER NOT NULL DEFAULT 0,
			click_time      DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS navigation_events (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			url               TEXT NOT NULL,
			tab_id            INTEGER NOT NULL DEFAULT 0,
			opener_tab_id     INTEGER NOT NULL DEFAULT 0,
			transition_type   TEXT NOT NULL DEFAULT '',
			is_spa_navigation BOOLEAN NOT NULL DEFAULT 0,
			event_time        DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS downloads (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			filename      TEXT NOT NULL,
			url           TEXT NOT NULL,
			mime_type     TEXT NOT NULL DEFAULT '',
			file_size     INTEGER NOT NULL DEFAULT 0,
			download_time DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS bookmarks (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			url           TEXT NOT NULL,
			title         TEXT NOT NULL DEFAULT '',
			bookmark_time DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS user_interactions (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			url              TEXT NOT NULL,
			tab_id           INTEGER NOT NULL DEFAULT 0,
			interaction_type TEXT NOT NULL,
			interaction_data TEXT NOT NULL DEFAULT '',
			event_time       DATETIME NOT NULL
		)`,

		// ── Settings singleton ──────────────────────────────────

		`CREATE TABLE IF NOT EXISTS tracking_settings (
			id               INTEGER PRIMARY KEY CHECK (id = 1),
			tracking_enabled BOOLEAN NOT NULL DEFAULT 1,
			retention_days   INTEGER NOT NULL DEFAULT 90,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// ── Indexes ─────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_visits_url         ON browsing_visits(url)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_visit_time  ON browsing_visits(visit_time)`,
		`CREATE INDEX IF NOT EXISTS idx_app_usage_name     ON application_usage(app_name)`,
		`CREATE INDEX IF NOT EXISTS idx_app_usage_start    ON application_usage(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_queries_time       ON search_queries(search_time)`,
		`CREATE INDEX IF NOT EXISTS idx_clicks_time        ON search_clicks(click_time)`,
		`CREATE INDEX IF NOT EXISTS idx_nav_events_time    ON navigation_events(event_time)`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_time     ON downloads(download_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookmarks_time     ON bookmarks(bookmark_time)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_time  ON user_interactions(event_time)`,

		// ── Settings seed ───────────────────────────────────────

		`INSERT OR IGNORE INTO tracking_settings (id) VALUES (1)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

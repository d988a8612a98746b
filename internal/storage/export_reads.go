package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// VisitsSince returns browsing visit rows with visit_time at or after since,
// newest first. A zero since returns everything.
func (s *SQLiteStore) VisitsSince(ctx context.Context, since time.Time) ([]VisitRow, error) {
	query := `
		SELECT id, url, title, visit_time, leave_time, duration_seconds, tab_id, is_active, active_duration_seconds
		FROM browsing_visits`
	var args []any
	if !since.IsZero() {
		query += " WHERE visit_time >= ?"
		args = append(args, fmtTime(since))
	}
	query += " ORDER BY visit_time DESC"

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	out := []VisitRow{}
	for rows.Next() {
		var v VisitRow
		var visitStr string
		var leaveStr sql.NullString
		if err := rows.Scan(
			&v.ID, &v.URL, &v.Title, &visitStr, &leaveStr,
			&v.DurationSeconds, &v.TabID, &v.IsActive, &v.ActiveSeconds,
		); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		v.VisitTime, _ = parseTimestamp(visitStr)
		if leaveStr.Valid {
			v.LeaveTime, _ = parseTimestamp(leaveStr.String)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// AppUsageSince returns application usage rows with start_time at or after
// since, newest first. A zero since returns everything.
func (s *SQLiteStore) AppUsageSince(ctx context.Context, since time.Time) ([]AppUsageRow, error) {
	query := `
		SELECT id, app_name, bundle_id, window_title, start_time, end_time, duration_seconds, is_browser
		FROM application_usage`
	var args []any
	if !since.IsZero() {
		query += " WHERE start_time >= ?"
		args = append(args, fmtTime(since))
	}
	query += " ORDER BY start_time DESC"

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query app usage: %w", err)
	}
	defer rows.Close()

	out := []AppUsageRow{}
	for rows.Next() {
		var u AppUsageRow
		var startStr, endStr string
		if err := rows.Scan(
			&u.ID, &u.AppName, &u.BundleID, &u.WindowTitle,
			&startStr, &endStr, &u.DurationSeconds, &u.IsBrowser,
		); err != nil {
			return nil, fmt.Errorf("scan app usage: %w", err)
		}
		u.StartTime, _ = parseTimestamp(startStr)
		u.EndTime, _ = parseTimestamp(endStr)
		out = append(out, u)
	}
	return out, rows.Err()
}

// SearchQueriesSince returns search queries joined with their clicked result
// URLs, newest first. A zero since returns everything.
func (s *SQLiteStore) SearchQueriesSince(ctx context.Context, since time.Time) ([]SearchQueryRow, error) {
	query := `
		SELECT sq.id, sq.query, sq.search_engine, sq.search_time,
		       COALESCE(GROUP_CONCAT(sc.result_url, '; '), '')
		FROM search_queries sq
		LEFT JOIN search_clicks sc ON sq.id = sc.search_query_id`
	var args []any
	if !since.IsZero() {
		query += " WHERE sq.search_time >= ?"
		args = append(args, fmtTime(since))
	}
	query += " GROUP BY sq.id ORDER BY sq.search_time DESC"

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query search queries: %w", err)
	}
	defer rows.Close()

	out := []SearchQueryRow{}
	for rows.Next() {
		var q SearchQueryRow
		var timeStr string
		if err := rows.Scan(&q.ID, &q.Query, &q.SearchEngine, &timeStr, &q.ClickedURLs); err != nil {
			return nil, fmt.Errorf("scan search query: %w", err)
		}
		q.SearchTime, _ = parseTimestamp(timeStr)
		out = append(out, q)
	}
	return out, rows.Err()
}

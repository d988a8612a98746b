package storage

import "time"

// Settings is the singleton tracking settings record.
type Settings struct {
	TrackingEnabled bool      `json:"tracking_enabled"`
	RetentionDays   int       `json:"data_retention_days"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AppUsage is one closed application attention interval written by the
// window sampler reconciler.
type AppUsage struct {
	AppName         string
	BundleID        string
	WindowTitle     string
	StartTime       time.Time
	EndTime         time.Time
	DurationSeconds int64
	IsBrowser       bool
}

// VisitRow is a browsing_visits row as read back for export.
type VisitRow struct {
	ID              int64     `json:"id"`
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	VisitTime       time.Time `json:"visit_time"`
	LeaveTime       time.Time `json:"leave_time"`
	DurationSeconds int64     `json:"duration_seconds"`
	TabID           int       `json:"tab_id"`
	IsActive        bool      `json:"is_active"`
	ActiveSeconds   int64     `json:"active_duration_seconds"`
}

// AppUsageRow is an application_usage row as read back for export.
type AppUsageRow struct {
	ID              int64     `json:"id"`
	AppName         string    `json:"app_name"`
	BundleID        string    `json:"bundle_id"`
	WindowTitle     string    `json:"window_title"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds int64     `json:"duration_seconds"`
	IsBrowser       bool      `json:"is_browser"`
}

// SearchQueryRow is a search_queries row joined with its clicked result URLs.
type SearchQueryRow struct {
	ID           int64     `json:"id"`
	Query        string    `json:"query"`
	SearchEngine string    `json:"search_engine"`
	SearchTime   time.Time `json:"search_time"`
	ClickedURLs  string    `json:"clicked_urls"`
}

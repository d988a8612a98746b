package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// ItemKind tags the payload type of a queue item.
type ItemKind string

const (
	KindVisit       ItemKind = "browsing_history"
	KindSearchQuery ItemKind = "search_query"
	KindSearchClick ItemKind = "search_click"
	KindNavigation  ItemKind = "navigation_event"
	KindDownload    ItemKind = "download"
	KindBookmark    ItemKind = "bookmark"
	KindInteraction ItemKind = "user_interaction"
)

// Item is the unit held in the capture-side batching queue and carried in a
// save_browser_data batch. Ordering within a batch is insertion order.
type Item struct {
	Kind       ItemKind        `json:"type"`
	Data       json.RawMessage `json:"data"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Visit is one closed attention interval on a browser tab.
type Visit struct {
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	VisitTime       time.Time `json:"visit_time"`
	LeaveTime       time.Time `json:"leave_time"`
	DurationSeconds int64     `json:"duration_seconds"`
	TabID           int       `json:"tab_id"`
	IsActive        bool      `json:"is_active"`
	ActiveSeconds   int64     `json:"active_duration_seconds"`
}

// SearchQuery records one search submitted by the user.
type SearchQuery struct {
	Query        string    `json:"query"`
	SearchEngine string    `json:"search_engine"`
	SearchTime   time.Time `json:"search_time"`
}

// SearchClick records a click on a search result. It logically belongs to the
// most recent SearchQuery; the link is resolved at write time.
type SearchClick struct {
	ResultURL      string    `json:"result_url"`
	ResultTitle    string    `json:"result_title"`
	ResultPosition int       `json:"result_position"`
	ClickTime      time.Time `json:"click_time"`
}

// Navigation records one page navigation.
type Navigation struct {
	URL             string    `json:"url"`
	TabID           int       `json:"tab_id"`
	OpenerTabID     int       `json:"opener_tab_id"`
	TransitionType  string    `json:"transition_type"`
	IsSPANavigation bool      `json:"is_spa_navigation"`
	EventTime       time.Time `json:"event_time"`
}

// Download records one completed download.
type Download struct {
	Filename     string    `json:"filename"`
	URL          string    `json:"url"`
	MimeType     string    `json:"mime_type"`
	FileSize     int64     `json:"file_size"`
	DownloadTime time.Time `json:"download_time"`
}

// Bookmark records one bookmark creation.
type Bookmark struct {
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	BookmarkTime time.Time `json:"bookmark_time"`
}

// Interaction records free-form interaction telemetry on a page.
type Interaction struct {
	URL             string    `json:"url"`
	TabID           int       `json:"tab_id"`
	InteractionType string    `json:"interaction_type"`
	InteractionData string    `json:"interaction_data"`
	EventTime       time.Time `json:"event_time"`
}

// NewItem wraps a typed payload into an Item.
func NewItem(kind ItemKind, payload any, enqueuedAt time.Time) (Item, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Item{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Item{Kind: kind, Data: data, EnqueuedAt: enqueuedAt}, nil
}

// DecodePayload unmarshals the item's payload into dst.
func (it Item) DecodePayload(dst any) error {
	if err := json.Unmarshal(it.Data, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", it.Kind, err)
	}
	return nil
}

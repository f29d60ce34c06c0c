package models

import "time"

// CategoryResult reports one category's refresh cycle.
type CategoryResult struct {
	PropertyType      Category `json:"property_type"`
	PagesFetched      int      `json:"pages_fetched"`
	Fetched           int      `json:"fetched"`
	// Total counts listings that passed both filters and reached reconciliation.
	Total             int      `json:"total"`
	FilteredTemporary int      `json:"filtered_temporary"`
	FilteredPrice     int      `json:"filtered_price"`
	New               int      `json:"new"`
	Updated           int      `json:"updated"`
	Removed           int      `json:"removed"`
	Unchanged         int      `json:"unchanged"`
	Duplicates        int      `json:"duplicates"`
	Skipped           int      `json:"skipped"`
	Notified          int      `json:"notified"`
	NotifyFailed      int      `json:"notify_failed"`
	Error             string   `json:"error,omitempty"`
	DurationSeconds   float64  `json:"duration_seconds"`
}

// Failed reports whether the category's changes could not be committed.
func (r CategoryResult) Failed() bool {
	return r.Error != ""
}

// RefreshSummary is returned by every refresh invocation.
type RefreshSummary struct {
	RunID           string           `json:"run_id"`
	Success         bool             `json:"success"`
	StartedAt       time.Time        `json:"started_at"`
	DurationSeconds float64          `json:"duration_seconds"`
	Results         []CategoryResult `json:"results"`
}

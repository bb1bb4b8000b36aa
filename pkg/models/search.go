package models

import "time"

// SearchRequest is a normalized "ORIGIN DESTINATION DATE" command
type SearchRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Date        string `json:"date"` // YYYY-MM-DD
}

// SearchState is the terminal state a scrape ended in
type SearchState string

const (
	StateSuccess  SearchState = "SUCCESS"
	StateNoResult SearchState = "NO_RESULTS"
	StateFailed   SearchState = "FAILED"
	StateBusy     SearchState = "BUSY"
)

// SearchResult is what the HTTP API returns for a search
type SearchResult struct {
	State      SearchState    `json:"state"`
	Request    *SearchRequest `json:"request,omitempty"`
	URL        string         `json:"url,omitempty"`
	Offers     []FlightOffer  `json:"offers"`
	Messages   []string       `json:"messages"`
	Error      string         `json:"error,omitempty"`
	Attempts   int            `json:"attempts,omitempty"`
	SnapshotID string         `json:"snapshotId,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

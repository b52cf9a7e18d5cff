package models

import "time"

// Series is one locally tracked series joined with its latest resolution.
type Series struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Year          int        `json:"year,omitempty"`
	EpisodeCount  int        `json:"episode_count"` // episodes present locally
	TotalSeasons  int        `json:"totalSeasons,omitempty"`
	TotalEpisodes int        `json:"totalEpisodes,omitempty"`
	Status        AirStatus  `json:"status,omitempty"`
	Source        string     `json:"source,omitempty"`
	Confidence    Confidence `json:"confidence,omitempty"`
	Verified      bool       `json:"verified,omitempty"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
}

// CompletionState buckets a series by how much of it is present locally.
type CompletionState string

const (
	CompletionComplete   CompletionState = "complete"
	CompletionIncomplete CompletionState = "incomplete"
	CompletionCritical   CompletionState = "critical"
	CompletionUnanalyzed CompletionState = "unanalyzed"
)

// SeriesCompletion is one series annotated with completeness math.
type SeriesCompletion struct {
	Series
	CompletionPct float64         `json:"completionPct"`
	State         CompletionState `json:"state"`
}

// LibrarySummary aggregates completion across the tracked library.
type LibrarySummary struct {
	Total         int     `json:"total"`
	Complete      int     `json:"complete"`
	Incomplete    int     `json:"incomplete"`
	Critical      int     `json:"critical"`
	CompletionPct float64 `json:"completion_pct"`
}

package models

// AirStatus is the normalized airing status of a series.
type AirStatus string

const (
	StatusContinuing AirStatus = "Continuing"
	StatusEnded      AirStatus = "Ended"
	StatusCanceled   AirStatus = "Canceled"
	StatusUpcoming   AirStatus = "Upcoming"
	StatusUnknown    AirStatus = "Unknown"
)

// Confidence labels how trustworthy a resolved result is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// EpisodeRef identifies a single episode within a season.
type EpisodeRef struct {
	Season  int `json:"season"`
	Episode int `json:"episode"`
}

// SeriesMetadata is the normalized resolution result for one series.
// Immutable once cached.
type SeriesMetadata struct {
	Title           string       `json:"title"`
	TotalSeasons    int          `json:"totalSeasons"`
	TotalEpisodes   int          `json:"totalEpisodes"`
	FirstAired      string       `json:"firstAired,omitempty"` // YYYY-MM-DD
	LastAired       string       `json:"lastAired,omitempty"`
	Status          AirStatus    `json:"status"`
	Source          string       `json:"source"` // provider id
	Confidence      Confidence   `json:"confidence"`
	MissingEpisodes []EpisodeRef `json:"missingEpisodes,omitempty"`
	FallbackUsed    bool         `json:"fallbackUsed"`
	FallbackReason  string       `json:"fallbackReason,omitempty"`
	Verified        bool         `json:"verified"`
}

// ProviderCount is one provider's season/episode claim, used for consensus.
type ProviderCount struct {
	Provider      string `json:"provider"`
	TotalSeasons  int    `json:"totalSeasons"`
	TotalEpisodes int    `json:"totalEpisodes"`
}

// ConsensusReport describes the outcome of cross-checking providers.
type ConsensusReport struct {
	Sources        []ProviderCount `json:"sources"`
	AgreedSeasons  int             `json:"agreedSeasons"`
	AgreedEpisodes int             `json:"agreedEpisodes"`
	Verified       bool            `json:"verified"`
}

// ProviderHealth is a point-in-time snapshot of one provider's resilience state.
type ProviderHealth struct {
	CircuitOpen         bool    `json:"circuitOpen"`
	ConsecutiveFailures int     `json:"consecutiveFailures"`
	TokensAvailable     float64 `json:"tokensAvailable"`
}

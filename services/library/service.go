package library

import (
	"context"
	"log"
	"math"

	"seriescomplete/models"
	"seriescomplete/services/resolver"
)

// criticalThresholdPct is the completion percentage below which a series is
// flagged critical rather than merely incomplete.
const criticalThresholdPct = 50.0

// seriesStore is the slice of the database repository the library needs.
type seriesStore interface {
	List() ([]models.Series, error)
	Upsert(title string, year, episodeCount int) (int64, error)
	SaveResolution(id int64, meta *models.SeriesMetadata) error
}

// metadataResolver resolves authoritative totals for a series.
type metadataResolver interface {
	Resolve(ctx context.Context, name string, year int, opts resolver.Options) (*models.SeriesMetadata, error)
}

// Service joins the local episode inventory with resolved provider totals
// and computes completeness.
type Service struct {
	store    seriesStore
	resolver metadataResolver
}

func NewService(store seriesStore, res metadataResolver) *Service {
	return &Service{store: store, resolver: res}
}

// Track upserts a locally observed series and resolves its totals if they
// are not known yet.
func (s *Service) Track(ctx context.Context, title string, year, episodeCount int) (*models.Series, error) {
	id, err := s.store.Upsert(title, year, episodeCount)
	if err != nil {
		return nil, err
	}

	meta, err := s.resolver.Resolve(ctx, title, year, resolver.Options{})
	if err != nil {
		return nil, err
	}
	if meta != nil {
		if err := s.store.SaveResolution(id, meta); err != nil {
			log.Printf("[library] failed to persist resolution for %q: %v", title, err)
		}
	}

	all, err := s.store.List()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, nil
}

// Snapshot returns every tracked series with completeness math plus the
// library-wide summary.
func (s *Service) Snapshot(ctx context.Context) ([]models.SeriesCompletion, models.LibrarySummary, error) {
	all, err := s.store.List()
	if err != nil {
		return nil, models.LibrarySummary{}, err
	}

	out := make([]models.SeriesCompletion, 0, len(all))
	summary := models.LibrarySummary{Total: len(all)}
	for _, series := range all {
		sc := analyze(series)
		switch sc.State {
		case models.CompletionComplete:
			summary.Complete++
		case models.CompletionIncomplete:
			summary.Incomplete++
		case models.CompletionCritical:
			summary.Critical++
		}
		out = append(out, sc)
	}

	analyzed := summary.Complete + summary.Incomplete + summary.Critical
	if analyzed > 0 {
		summary.CompletionPct = round1(float64(summary.Complete) / float64(analyzed) * 100)
	}
	return out, summary, nil
}

// analyze buckets one series: complete at 100%, critical below 50%,
// incomplete in between. Series without known totals are unanalyzed.
func analyze(series models.Series) models.SeriesCompletion {
	sc := models.SeriesCompletion{Series: series, State: models.CompletionUnanalyzed}
	if series.TotalEpisodes <= 0 {
		return sc
	}
	pct := float64(series.EpisodeCount) / float64(series.TotalEpisodes) * 100
	sc.CompletionPct = round1(pct)
	switch {
	case pct >= 100:
		sc.State = models.CompletionComplete
	case pct < criticalThresholdPct:
		sc.State = models.CompletionCritical
	default:
		sc.State = models.CompletionIncomplete
	}
	return sc
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

package resolver

import (
	"context"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"seriescomplete/models"
)

// Verify cross-checks the structured providers for the named series,
// bypassing the fallback short-circuit: every non-AI provider is queried
// independently and concurrently. The report is verified only when at least
// two providers agree on both the season and the episode count. This is
// strictly more expensive than Resolve and is never invoked by default.
func (s *Service) Verify(ctx context.Context, name string, year int) (*models.ConsensusReport, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	norm := NormalizeName(name)

	p := pool.NewWithResults[*models.ProviderCount]()
	for _, ps := range s.providers {
		if ps.role == RoleAI {
			continue
		}
		ps := ps
		p.Go(func() *models.ProviderCount {
			meta, outcome, _ := s.tryProvider(ctx, ps, norm, year)
			if outcome != OutcomeFound {
				return nil
			}
			return &models.ProviderCount{
				Provider:      ps.provider.ID(),
				TotalSeasons:  meta.TotalSeasons,
				TotalEpisodes: meta.TotalEpisodes,
			}
		})
	}

	report := &models.ConsensusReport{}
	for _, c := range p.Wait() {
		if c != nil {
			report.Sources = append(report.Sources, *c)
		}
	}
	if len(report.Sources) == 0 {
		return report, nil
	}

	report.AgreedSeasons = mode(report.Sources, func(c models.ProviderCount) int { return c.TotalSeasons })
	report.AgreedEpisodes = mode(report.Sources, func(c models.ProviderCount) int { return c.TotalEpisodes })

	agreeing := 0
	for _, c := range report.Sources {
		if c.TotalSeasons == report.AgreedSeasons && c.TotalEpisodes == report.AgreedEpisodes {
			agreeing++
		}
	}
	report.Verified = agreeing >= 2
	return report, nil
}

// mode picks the most frequent value, breaking ties in favor of the value
// reported by the higher-priority provider (earlier in the slice).
func mode(sources []models.ProviderCount, field func(models.ProviderCount) int) int {
	counts := make(map[int]int, len(sources))
	best, bestN := 0, 0
	for _, src := range sources {
		v := field(src)
		counts[v]++
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}

// applyConsensus folds a consensus report into a resolved result: a verified
// report upgrades confidence and adopts the majority counts.
func applyConsensus(meta *models.SeriesMetadata, report *models.ConsensusReport) {
	if report == nil || !report.Verified {
		return
	}
	meta.Verified = true
	meta.Confidence = models.ConfidenceHigh
	meta.TotalSeasons = report.AgreedSeasons
	meta.TotalEpisodes = report.AgreedEpisodes
}

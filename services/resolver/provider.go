package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// RawResult is what a provider adapter returns before normalization.
// A nil RawResult with a nil error means the provider had no match.
type RawResult struct {
	ID            string
	Title         string
	TotalSeasons  int
	TotalEpisodes int
	FirstAired    string // YYYY-MM-DD
	LastAired     string
	Status        string // provider-native status string
}

// Provider is the capability contract each adapter implements.
// Search returns (nil, nil) when the provider responded but found no match.
type Provider interface {
	ID() string
	Authenticate(ctx context.Context) error
	Search(ctx context.Context, name string, year int) (*RawResult, error)
	Details(ctx context.Context, id string) (*RawResult, error)
}

// Role describes where a provider sits in the fallback chain. It is used to
// compose fallback reasons like "not_found_primary".
type Role string

const (
	RolePrimary    Role = "primary"
	RoleSecondary  Role = "secondary"
	RoleAI         Role = "ai"
	RoleLastResort Role = "last_resort"
)

// Outcome classifies one provider attempt.
type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeNotFound
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusError carries an HTTP status from a provider so the retry policy can
// classify it. A zero StatusCode means no response was received at all.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: no response: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// ErrCircuitOpen is returned without any network I/O when a provider's
// breaker is open.
var ErrCircuitOpen = errors.New("circuit open")

// NormalizeName folds an entity name to a stable ASCII form used for cache
// keys, dedup keys and provider queries: unidecoded, lowercased, with runs of
// whitespace collapsed to single spaces.
func NormalizeName(name string) string {
	folded := unidecode.Unidecode(name)
	folded = strings.ToLower(strings.TrimSpace(folded))
	return strings.Join(strings.Fields(folded), " ")
}

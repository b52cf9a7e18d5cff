package resolver

import (
	"golang.org/x/sync/singleflight"

	"seriescomplete/models"
)

// Deduplicator collapses concurrent identical lookups into one in-flight
// operation. All callers for the same key share the single result, and the
// registration is dropped once the operation settles, success or failure.
type Deduplicator struct {
	group singleflight.Group
}

// Do invokes fn at most once per key at any instant. The shared return also
// reports whether this caller piggybacked on another caller's flight.
func (d *Deduplicator) Do(key string, fn func() (*models.SeriesMetadata, error)) (*models.SeriesMetadata, bool, error) {
	v, err, shared := d.group.Do(key, func() (any, error) {
		return fn()
	})
	if v == nil {
		return nil, shared, err
	}
	return v.(*models.SeriesMetadata), shared, err
}

package tabular

import (
	"context"

	"github.com/couchcryptid/collision-data-api/internal/artifact"
	"github.com/couchcryptid/collision-data-api/internal/domain"
)

// ArtifactCache stores computed artifacts.
type ArtifactCache interface {
	GetOrCompute(ctx context.Context, spec artifact.Spec, compute artifact.ComputeFunc) (artifact.Entry, error)
}

// Materializer serves aggregate CSVs through an artifact cache.
type Materializer struct {
	service *Service
	cache   ArtifactCache
}

// NewMaterializer pairs a Service with the cache its aggregates are stored in.
func NewMaterializer(service *Service, cache ArtifactCache) *Materializer {
	return &Materializer{service: service, cache: cache}
}

// Spec returns the cache key of an aggregate: its artifact name and a
// fingerprint of its SQL.
func Spec(kind domain.AggregateKind) (artifact.Spec, error) {
	query, err := AggregateQuery(kind)
	if err != nil {
		return artifact.Spec{}, err
	}
	return artifact.Spec{
		Name:        kind.ArtifactName(),
		Fingerprint: artifact.Fingerprint(string(kind), query),
	}, nil
}

// Materialize returns the cached artifact for kind, computing it on a miss.
func (m *Materializer) Materialize(ctx context.Context, kind domain.AggregateKind) (artifact.Entry, error) {
	spec, err := Spec(kind)
	if err != nil {
		return artifact.Entry{}, err
	}
	return m.cache.GetOrCompute(ctx, spec, func(ctx context.Context) ([]byte, error) {
		return m.service.FetchAggregate(ctx, kind)
	})
}

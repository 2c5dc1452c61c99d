package segments

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courselab/course-core/pkg/apperror"
	"github.com/courselab/course-core/pkg/logger"
)

// ProximitySource yields the catalog segments geometrically near a
// course path, ordered by ascending distance. Ordering is deterministic
// for identical inputs against an unchanged catalog.
type ProximitySource interface {
	NearbySegmentIDs(ctx context.Context, pathWKT string, radiusMeters float64, limit int) ([]int64, error)
}

// nearbySegmentsSQL finds segments within the radius of the course path,
// nearest first. Distances are computed on the geography type so the
// radius is in meters.
const nearbySegmentsSQL = `
SELECT s.id
FROM segments s
WHERE ST_DWithin(s.geom::geography, ST_GeomFromText($1, 4326)::geography, $2)
ORDER BY ST_Distance(s.geom::geography, ST_GeomFromText($1, 4326)::geography) ASC
LIMIT $3`

// PostGISProximitySource runs the proximity query against the segments
// catalog in PostGIS.
type PostGISProximitySource struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostGISProximitySource creates a catalog-backed proximity source.
func NewPostGISProximitySource(pool *pgxpool.Pool, log *slog.Logger) *PostGISProximitySource {
	return &PostGISProximitySource{
		pool: pool,
		log:  log.With(logger.Scope("segments.source")),
	}
}

// NearbySegmentIDs implements ProximitySource.
func (s *PostGISProximitySource) NearbySegmentIDs(ctx context.Context, pathWKT string, radiusMeters float64, limit int) ([]int64, error) {
	rows, err := s.pool.Query(ctx, nearbySegmentsSQL, pathWKT, radiusMeters, limit)
	if err != nil {
		return nil, apperror.ErrMappingSource.WithInternal(err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, apperror.ErrMappingSource.WithInternal(err)
	}
	return ids, nil
}

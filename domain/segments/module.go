package segments

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/courselab/course-core/internal/config"
)

// Module provides segment mapping dependencies. The mapper is wired
// with the COPY path as its fast writer and the entity-layer path as
// its fallback; the remaining writers exist for the benchmark harness.
var Module = fx.Module("segments",
	fx.Provide(
		NewRepository,
		fx.Annotate(NewPostGISProximitySource, fx.As(new(ProximitySource))),
		NewORMBatchWriter,
		NewPreparedBatchWriter,
		NewLoopWriter,
		NewMultiRowWriter,
		NewCopyWriter,
		newMapper,
		NewJobService,
		NewMappingWorker,
	),
)

func newMapper(
	cfg *config.Config,
	source ProximitySource,
	repo *Repository,
	fast *CopyWriter,
	safe *ORMBatchWriter,
	log *slog.Logger,
) *Mapper {
	return NewMapper(MapperParams{
		Source:       source,
		Repo:         repo,
		Fast:         fast,
		Safe:         safe,
		RadiusMeters: cfg.Mapping.RadiusMeters,
		Limit:        cfg.Mapping.CandidateLimit,
		Log:          log,
	})
}

// Writers returns every bulk-write strategy for benchmark registration,
// slowest first.
func Writers(db *bun.DB, pool *pgxpool.Pool, log *slog.Logger) []BulkWriter {
	return []BulkWriter{
		NewLoopWriter(pool, log),
		NewORMBatchWriter(db, log),
		NewPreparedBatchWriter(pool, log),
		NewMultiRowWriter(pool, log),
		NewCopyWriter(pool, log),
	}
}

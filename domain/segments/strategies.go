package segments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"

	"github.com/courselab/course-core/internal/database"
	"github.com/courselab/course-core/pkg/apperror"
	"github.com/courselab/course-core/pkg/logger"
	"github.com/courselab/course-core/pkg/pgutils"
)

// BulkWriter inserts one association row per supplied segment id, or
// fails with nothing committed. A writer acquires its connection at the
// start of Insert and releases it before returning; an empty id list is
// a valid zero-cost input, never an error.
type BulkWriter interface {
	Name() string
	Insert(ctx context.Context, courseID uuid.UUID, segmentIDs []int64) error
}

// Chunk sizes per strategy. The ORM chunk bounds the pending-write cache
// of the entity layer, the multi-row chunk respects statement-size
// limits, and the copy chunk bounds the in-memory stream buffer.
const (
	ORMChunkSize      = 50
	PreparedGroupSize = 100
	MultiRowChunkSize = 1000
	CopyChunkSize     = 5000
)

const insertMappingSQL = `INSERT INTO course_segment_mappings (course_id, segment_id) VALUES ($1, $2)`

// classifyWriteErr maps store failures onto the shared error kinds. A
// foreign key violation means the caller passed a course id the catalog
// does not know.
func classifyWriteErr(err error) error {
	if pgutils.IsForeignKeyViolation(err) {
		return apperror.ErrInvalidInput.WithMessage("unknown course id").WithInternal(err)
	}
	return apperror.ErrWriteFailed.WithInternal(err)
}

// ─── Strategy 1: row-oriented, client-side batched ───────────────────────────

// ORMBatchWriter submits rows through the entity layer in chunks of 50,
// flushing and dropping the pending slice after every chunk so peak
// memory stays bounded. Slowest path, but it routes through the same
// integrity checks as ordinary writes, which is why the mapper uses it
// as the safe fallback.
type ORMBatchWriter struct {
	db  *bun.DB
	log *slog.Logger
}

// NewORMBatchWriter creates the entity-layer strategy.
func NewORMBatchWriter(db *bun.DB, log *slog.Logger) *ORMBatchWriter {
	return &ORMBatchWriter{db: db, log: log.With(logger.Scope("segments.writer.orm"))}
}

func (w *ORMBatchWriter) Name() string { return "orm-batch" }

func (w *ORMBatchWriter) Insert(ctx context.Context, courseID uuid.UUID, segmentIDs []int64) error {
	if len(segmentIDs) == 0 {
		return nil
	}

	tx, err := database.BeginSafeTx(ctx, w.db)
	if err != nil {
		return classifyWriteErr(err)
	}
	defer tx.Rollback()

	pending := make([]*CourseSegmentMapping, 0, ORMChunkSize)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&pending).Exec(ctx); err != nil {
			return err
		}
		pending = pending[:0]
		return nil
	}

	for _, id := range segmentIDs {
		pending = append(pending, &CourseSegmentMapping{CourseID: courseID, SegmentID: id})
		if len(pending) == ORMChunkSize {
			if err := flush(); err != nil {
				return classifyWriteErr(err)
			}
		}
	}
	if err := flush(); err != nil {
		return classifyWriteErr(err)
	}

	if err := tx.Commit(); err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

// ─── Strategy 2: parameterized batch statement ───────────────────────────────

// PreparedBatchWriter prepares the insert once and executes it through
// the driver's batch pipeline in groups of 100.
type PreparedBatchWriter struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPreparedBatchWriter creates the prepared-statement strategy.
func NewPreparedBatchWriter(pool *pgxpool.Pool, log *slog.Logger) *PreparedBatchWriter {
	return &PreparedBatchWriter{pool: pool, log: log.With(logger.Scope("segments.writer.prepared"))}
}

func (w *PreparedBatchWriter) Name() string { return "prepared-batch" }

func (w *PreparedBatchWriter) Insert(ctx context.Context, courseID uuid.UUID, segmentIDs []int64) error {
	if len(segmentIDs) == 0 {
		return nil
	}

	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return classifyWriteErr(err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return classifyWriteErr(err)
	}
	defer tx.Rollback(ctx)

	const stmtName = "insert_course_segment_mapping"
	if _, err := tx.Prepare(ctx, stmtName, insertMappingSQL); err != nil {
		return classifyWriteErr(err)
	}

	for _, group := range chunkIDs(segmentIDs, PreparedGroupSize) {
		batch := &pgx.Batch{}
		for _, id := range group {
			batch.Queue(stmtName, courseID, id)
		}
		if err := sendBatch(ctx, tx, batch); err != nil {
			return classifyWriteErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

// ─── Strategy 3: unbatched parameterized loop ────────────────────────────────

// LoopWriter queues one plain statement execution per row and submits
// them all in a single batch call at the driver boundary, with no
// intermediate flush. The naive baseline for the benchmark matrix.
type LoopWriter struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewLoopWriter creates the per-row strategy.
func NewLoopWriter(pool *pgxpool.Pool, log *slog.Logger) *LoopWriter {
	return &LoopWriter{pool: pool, log: log.With(logger.Scope("segments.writer.loop"))}
}

func (w *LoopWriter) Name() string { return "row-loop" }

func (w *LoopWriter) Insert(ctx context.Context, courseID uuid.UUID, segmentIDs []int64) error {
	if len(segmentIDs) == 0 {
		return nil
	}

	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return classifyWriteErr(err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return classifyWriteErr(err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, id := range segmentIDs {
		batch.Queue(insertMappingSQL, courseID, id)
	}
	if err := sendBatch(ctx, tx, batch); err != nil {
		return classifyWriteErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

// ─── Strategy 4: multi-row single statement ──────────────────────────────────

// MultiRowWriter inlines literal value tuples into one INSERT statement,
// 1000 rows per statement.
type MultiRowWriter struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewMultiRowWriter creates the inlined-values strategy.
func NewMultiRowWriter(pool *pgxpool.Pool, log *slog.Logger) *MultiRowWriter {
	return &MultiRowWriter{pool: pool, log: log.With(logger.Scope("segments.writer.multirow"))}
}

func (w *MultiRowWriter) Name() string { return "multi-row" }

func (w *MultiRowWriter) Insert(ctx context.Context, courseID uuid.UUID, segmentIDs []int64) error {
	if len(segmentIDs) == 0 {
		return nil
	}

	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return classifyWriteErr(err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return classifyWriteErr(err)
	}
	defer tx.Rollback(ctx)

	for _, chunk := range chunkIDs(segmentIDs, MultiRowChunkSize) {
		if _, err := tx.Exec(ctx, multiRowStatement(courseID, chunk)); err != nil {
			return classifyWriteErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

// multiRowStatement builds the inlined INSERT for one chunk. Both values
// are literal-safe: the course id is a parsed UUID and segment ids are
// integers.
func multiRowStatement(courseID uuid.UUID, segmentIDs []int64) string {
	var b strings.Builder
	b.WriteString("INSERT INTO course_segment_mappings (course_id, segment_id) VALUES ")
	for i, id := range segmentIDs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "('%s', %d)", courseID, id)
	}
	return b.String()
}

// ─── Strategy 5: streaming bulk-load protocol ────────────────────────────────

// CopyWriter streams rows through the store's native COPY ingestion
// path as tab-delimited text, 5000 rows per stream. The fastest path;
// the stream either ingests fully or nothing is committed.
type CopyWriter struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewCopyWriter creates the COPY strategy.
func NewCopyWriter(pool *pgxpool.Pool, log *slog.Logger) *CopyWriter {
	return &CopyWriter{pool: pool, log: log.With(logger.Scope("segments.writer.copy"))}
}

func (w *CopyWriter) Name() string { return "copy-stream" }

const copyMappingSQL = `COPY course_segment_mappings (course_id, segment_id) FROM STDIN`

// Insert streams the rows. Zero segment ids is a documented no-op.
func (w *CopyWriter) Insert(ctx context.Context, courseID uuid.UUID, segmentIDs []int64) error {
	if len(segmentIDs) == 0 {
		return nil
	}

	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return classifyWriteErr(err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return classifyWriteErr(err)
	}
	defer tx.Rollback(ctx)

	for _, chunk := range chunkIDs(segmentIDs, CopyChunkSize) {
		payload := copyPayload(courseID, chunk)
		if _, err := tx.Conn().PgConn().CopyFrom(ctx, strings.NewReader(payload), copyMappingSQL); err != nil {
			return classifyWriteErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

// copyPayload serializes one chunk in COPY text format: tab-delimited
// columns, newline-terminated rows.
func copyPayload(courseID uuid.UUID, segmentIDs []int64) string {
	var b strings.Builder
	for _, id := range segmentIDs {
		fmt.Fprintf(&b, "%s\t%d\n", courseID, id)
	}
	return b.String()
}

// ─── Shared helpers ──────────────────────────────────────────────────────────

// chunkIDs splits ids into slices of at most size elements, preserving
// order. The returned slices alias the input.
func chunkIDs(ids []int64, size int) [][]int64 {
	if size <= 0 {
		return [][]int64{ids}
	}
	chunks := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// sendBatch submits a batch and drains every result so per-row errors
// surface before Close.
func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	return results.Close()
}

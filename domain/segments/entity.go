package segments

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CourseSegmentMapping records that a road-catalog segment is part of a
// course's path. The (course_id, segment_id) pair is unique: the mapper
// must never produce a second row for the same pair, however often it is
// re-run.
type CourseSegmentMapping struct {
	bun.BaseModel `bun:"table:course_segment_mappings,alias:csm"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	CourseID  uuid.UUID `bun:"course_id,type:uuid,notnull" json:"course_id"`
	SegmentID int64     `bun:"segment_id,notnull" json:"segment_id"`
	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
}

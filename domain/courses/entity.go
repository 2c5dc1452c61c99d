package courses

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Course is a user-drawn route. This subsystem only reads it: the course
// catalog CRUD lives elsewhere.
type Course struct {
	bun.BaseModel `bun:"table:courses,alias:c"`

	ID   uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Name string    `bun:"name,notnull" json:"name"`

	// Path is the course geometry as WKT (LineString, SRID 4326). The
	// spatial store interprets it; this code treats it as opaque text.
	Path string `bun:"path,type:geometry(LineString,4326)" json:"path"`

	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PipelineStep is one requested action within an ordered pipeline,
// translated 1:1 into a Job row at submission time (§3, §4.D).
type PipelineStep struct {
	Type   ActionKind `json:"type"`
	Params Params     `json:"params,omitempty"`
}

// PipelineSteps is the ordered sequence of steps, stored as JSONB.
type PipelineSteps []PipelineStep

func (s PipelineSteps) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *PipelineSteps) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("pipeline steps: type assertion to []byte failed")
	}
	return json.Unmarshal(b, s)
}

// Pipeline is the ordered list of actions attached at upload time.
type Pipeline struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	FileID    uuid.UUID     `db:"file_id" json:"file_id"`
	Name      string        `db:"name" json:"name"`
	Steps     PipelineSteps `db:"steps" json:"steps"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// DefaultPipelineName matches the teacher-derived original's
// "Auto Pipeline" default when the client doesn't supply one.
const DefaultPipelineName = "Auto Pipeline"

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus transitions strictly QUEUED -> RUNNING -> {COMPLETED, FAILED}.
// Backward transitions are forbidden; see Job.CanTransitionTo.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// IsTerminal reports whether status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Params is the free-form key/value map attached to a job, stored as
// JSONB and scanned through database/sql/driver like the teacher's
// imaging.CropConfig.
type Params map[string]interface{}

func (p Params) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

func (p *Params) Scan(value interface{}) error {
	if value == nil {
		*p = Params{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("params: type assertion to []byte failed")
	}
	if len(b) == 0 {
		*p = Params{}
		return nil
	}
	return json.Unmarshal(b, p)
}

// Job is one unit of work dispatched against a subject File.
type Job struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	FileID        uuid.UUID  `db:"file_id" json:"file_id"`
	PipelineID    *uuid.UUID `db:"pipeline_id" json:"pipeline_id,omitempty"`
	Type          ActionKind `db:"type" json:"type"`
	Status        JobStatus  `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	ResultFileID  *uuid.UUID `db:"result_file_id" json:"result_file_id,omitempty"`
	ErrorMessage  *string    `db:"error_message" json:"error_message,omitempty"`
	Params        Params     `db:"params" json:"params"`
	OwnerID       uuid.UUID  `db:"owner_id" json:"-"`
}

// CanTransitionTo enforces the DAG of valid status transitions
// (spec.md §3 / §8 invariant 3): never backward from a terminal state.
func (j *Job) CanTransitionTo(next JobStatus) bool {
	if j.Status.IsTerminal() {
		return false
	}
	switch j.Status {
	case JobQueued:
		return next == JobRunning
	case JobRunning:
		return next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

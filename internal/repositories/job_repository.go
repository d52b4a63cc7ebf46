package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fileforge/internal/database"
	"fileforge/internal/models"
)

// JobRepository is the typed CRUD layer over the jobs table.
type JobRepository struct {
	db *database.DB
}

func NewJobRepository(db *database.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, tx *sqlx.Tx, j *models.Job) error {
	query := `
		INSERT INTO jobs (
			id, file_id, pipeline_id, type, status, created_at, updated_at,
			result_file_id, error_message, params, owner_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	args := []interface{}{
		j.ID, j.FileID, j.PipelineID, j.Type, j.Status, j.CreatedAt, j.UpdatedAt,
		j.ResultFileID, j.ErrorMessage, j.Params, j.OwnerID,
	}
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	query := `SELECT id, file_id, pipeline_id, type, status, created_at, updated_at,
		result_file_id, error_message, params, owner_id FROM jobs WHERE id = $1`
	err := r.db.GetContext(ctx, &j, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return &j, nil
}

func (r *JobRepository) ListByFile(ctx context.Context, fileID uuid.UUID) ([]models.Job, error) {
	var jobs []models.Job
	query := `SELECT id, file_id, pipeline_id, type, status, created_at, updated_at,
		result_file_id, error_message, params, owner_id FROM jobs WHERE file_id = $1 ORDER BY created_at ASC`
	err := r.db.SelectContext(ctx, &jobs, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("list jobs by file: %w", err)
	}
	return jobs, nil
}

func (r *JobRepository) ListByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]models.Job, error) {
	var jobs []models.Job
	query := `SELECT id, file_id, pipeline_id, type, status, created_at, updated_at,
		result_file_id, error_message, params, owner_id FROM jobs WHERE pipeline_id = $1 ORDER BY created_at ASC`
	err := r.db.SelectContext(ctx, &jobs, query, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list jobs by pipeline: %w", err)
	}
	return jobs, nil
}

// TransitionStatus performs a compare-and-swap update guarded by the
// current status, so two concurrent redeliveries of the same message
// can't both apply the QUEUED->RUNNING transition (spec §8 invariant 3,
// idempotent redelivery rule).
func (r *JobRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.JobStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return false, fmt.Errorf("transition job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition job status rows affected: %w", err)
	}
	return n == 1, nil
}

// Complete marks a job COMPLETED and records the derived file, if any.
// tx may be nil for side-effect-only actions that have no derived File
// row to commit alongside the status flip; callers that insert a
// derived File must pass the same tx so both writes commit atomically
// (spec §4.E step 6 / §8 invariant 1).
func (r *JobRepository) Complete(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, resultFileID *uuid.UUID) error {
	query := `UPDATE jobs SET status = $1, result_file_id = $2, error_message = NULL, updated_at = now() WHERE id = $3`
	args := []interface{}{models.JobCompleted, resultFileID, id}
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// CompleteWithMessage marks a job COMPLETED and records an
// error_message alongside it — used by VIRUS_SCAN, whose COMPLETED
// verdict ("clean") is carried in that column per spec §3. tx may be
// nil; see Complete.
func (r *JobRepository) CompleteWithMessage(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, resultFileID *uuid.UUID, message string) error {
	query := `UPDATE jobs SET status = $1, result_file_id = $2, error_message = $3, updated_at = now() WHERE id = $4`
	args := []interface{}{models.JobCompleted, resultFileID, message, id}
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("complete job with message: %w", err)
	}
	return nil
}

// Fail marks a job FAILED with an error message.
func (r *JobRepository) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		models.JobFailed, errMsg, id)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// DeleteByFileReference removes every job that references fileID either
// as its subject or as its result, so deleting a file never leaves a
// dangling foreign key (SPEC_FULL.md supplemented feature, grounded on
// original_source/backend/app/api/files.py's delete-cascade handling of
// both file_id and result_file_id).
func (r *JobRepository) DeleteByFileReference(ctx context.Context, tx *sqlx.Tx, fileID uuid.UUID) error {
	query := `DELETE FROM jobs WHERE file_id = $1 OR result_file_id = $1`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, fileID)
	} else {
		_, err = r.db.ExecContext(ctx, query, fileID)
	}
	if err != nil {
		return fmt.Errorf("delete jobs by file reference: %w", err)
	}
	return nil
}

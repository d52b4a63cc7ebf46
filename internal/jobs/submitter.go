// Package jobs implements the Job Router & Submitter (spec §4.D):
// validates an upload request, persists a File (and Pipeline/Job rows
// for any requested actions) transactionally, then publishes one
// broker envelope per job after commit.
package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fileforge/internal/broker"
	"fileforge/internal/database"
	"fileforge/internal/models"
	"fileforge/internal/repositories"
	"fileforge/internal/storage"
)

// ActionRequest is one requested pipeline step from the upload request
// body.
type ActionRequest struct {
	Type   models.ActionKind
	Params models.Params
}

// SubmitResult is what the REST handler needs to build its response.
type SubmitResult struct {
	File     *models.File
	Pipeline *models.Pipeline
	Jobs     []models.Job
}

// Submitter wires the object store, state store, and broker together
// for the upload path.
type Submitter struct {
	db        *database.DB
	files     *repositories.FileRepository
	pipelines *repositories.PipelineRepository
	jobsRepo  *repositories.JobRepository
	store     *storage.Store
	broker    *broker.Broker
}

func NewSubmitter(db *database.DB, store *storage.Store, b *broker.Broker) *Submitter {
	return &Submitter{
		db:        db,
		files:     repositories.NewFileRepository(db),
		pipelines: repositories.NewPipelineRepository(db),
		jobsRepo:  repositories.NewJobRepository(db),
		store:     store,
		broker:    b,
	}
}

// Submit runs the full §4.D flow. pipelineName defaults to
// models.DefaultPipelineName ("Auto Pipeline") when empty, per the
// supplemented auto-naming feature.
func (s *Submitter) Submit(ctx context.Context, ownerID uuid.UUID, filename, mimeType string, body io.Reader, size int64, pipelineName string, actions []ActionRequest) (*SubmitResult, error) {
	for _, a := range actions {
		if _, ok := models.ParseAction(string(a.Type)); !ok {
			return nil, fmt.Errorf("jobs: unknown action %q", a.Type)
		}
	}

	fileID := uuid.New()
	key := models.StorageKey(ownerID, fileID, filename)

	if err := s.store.PutStream(ctx, storage.BucketRaw, key, body, size, mimeType); err != nil {
		return nil, fmt.Errorf("jobs: upload raw object: %w", err)
	}

	now := time.Now().UTC()
	file := &models.File{
		ID:           fileID,
		OwnerID:      ownerID,
		OriginalName: filename,
		Bucket:       string(storage.BucketRaw),
		Key:          key,
		SizeBytes:    size,
		MimeType:     mimeType,
		Status:       models.FileUploaded,
		CreatedAt:    now,
	}

	var pipeline *models.Pipeline
	var jobRows []models.Job

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("jobs: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.files.Create(ctx, tx, file); err != nil {
		return nil, err
	}

	if len(actions) > 0 {
		if pipelineName == "" {
			pipelineName = models.DefaultPipelineName
		}
		steps := make(models.PipelineSteps, 0, len(actions))
		for _, a := range actions {
			steps = append(steps, models.PipelineStep{Type: a.Type, Params: a.Params})
		}
		pipeline = &models.Pipeline{
			ID:        uuid.New(),
			FileID:    fileID,
			Name:      pipelineName,
			Steps:     steps,
			CreatedAt: now,
		}
		if err := s.pipelines.Create(ctx, tx, pipeline); err != nil {
			return nil, err
		}

		for _, a := range actions {
			job := models.Job{
				ID:         uuid.New(),
				FileID:     fileID,
				PipelineID: &pipeline.ID,
				Type:       a.Type,
				Status:     models.JobQueued,
				CreatedAt:  now,
				UpdatedAt:  now,
				Params:     a.Params,
				OwnerID:    ownerID,
			}
			if err := s.jobsRepo.Create(ctx, tx, &job); err != nil {
				return nil, err
			}
			jobRows = append(jobRows, job)
		}

		file.Status = models.FileProcessing
		if _, err := tx.ExecContext(ctx, `UPDATE files SET status = $1 WHERE id = $2`, file.Status, file.ID); err != nil {
			return nil, fmt.Errorf("jobs: flip file to processing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("jobs: commit submission: %w", err)
	}

	for _, job := range jobRows {
		env := broker.Envelope{
			JobID:  job.ID.String(),
			FileID: file.ID.String(),
			Bucket: file.Bucket,
			Key:    file.Key,
			Type:   job.Type,
			Params: job.Params,
		}
		queue := job.Type.Queue()
		if err := s.broker.Publish(ctx, queue, env); err != nil {
			// Per spec §4.D: a post-commit publish failure orphans the
			// job in QUEUED; this is tolerated, not retried here.
			slog.Error("jobs: publish failed, job left QUEUED", "job_id", job.ID, "queue", queue, "error", err)
		}
	}

	return &SubmitResult{File: file, Pipeline: pipeline, Jobs: jobRows}, nil
}

// Package worker implements the Worker Runtime (spec §4.E): a generic
// broker-backed consumer loop generalized from the teacher's in-process
// worker pool (internal/imaging.Service's startWorkers/worker/processJob)
// to a single-in-flight-envelope loop per process, with per-job temp
// directories and the at-least-once idempotency rule.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"fileforge/internal/broker"
	"fileforge/internal/database"
	"fileforge/internal/models"
	"fileforge/internal/repositories"
	"fileforge/internal/storage"
)

// Output is what a handler returns when its action produces a derived
// artifact. A nil Output (with a nil error) means a side-effect-only
// action (VIRUS_SCAN, AI_TAG, METADATA) completed successfully. Filename
// is the spec-mandated derived name (e.g. "cat_thumb_256x256.jpg",
// built from JobContext.OriginalName's stem) — it becomes the derived
// File's original_name and the basis for its storage key.
type Output struct {
	LocalPath string
	Bucket    storage.Bucket
	MimeType  string
	Filename  string
}

// JobContext carries everything a handler needs: the downloaded
// subject, its declared filename (for building spec-mandated
// `<stem>_...` output names), its declared params, and a scoped
// scratch directory.
type JobContext struct {
	JobID        uuid.UUID
	FileID       uuid.UUID
	InputPath    string
	OriginalName string
	Params       models.Params
	TempDir      string
}

// HandlerFunc implements one ActionKind. It may mutate File/FileMetadata
// state directly for side-effect-only actions (e.g. VIRUS_SCAN flipping
// the parent File to FAILED); the runtime handles the common case
// (derived-artifact upload + parent File → READY) when Output is non-nil.
type HandlerFunc func(ctx context.Context, rt *Runtime, jc *JobContext) (*Output, error)

// Runtime is one fleet's consumer: a fixed handler registry bound to
// the shared state store, object store, and broker.
type Runtime struct {
	db       *database.DB
	Store    *storage.Store
	Broker   *broker.Broker
	Files    *repositories.FileRepository
	Jobs     *repositories.JobRepository
	Metadata *repositories.FileMetadataRepository

	TempDir  string
	handlers map[models.ActionKind]HandlerFunc
}

// New builds a Runtime for one fleet. Register handlers with
// RegisterHandler before calling Run.
func New(db *database.DB, store *storage.Store, b *broker.Broker, tempDir string) *Runtime {
	return &Runtime{
		db:       db,
		Store:    store,
		Broker:   b,
		Files:    repositories.NewFileRepository(db),
		Jobs:     repositories.NewJobRepository(db),
		Metadata: repositories.NewFileMetadataRepository(db),
		TempDir:  tempDir,
		handlers: make(map[models.ActionKind]HandlerFunc),
	}
}

// RegisterHandler binds an action to its handler. cmd/worker wires only
// the actions relevant to the fleet it's launched as.
func (rt *Runtime) RegisterHandler(action models.ActionKind, h HandlerFunc) {
	rt.handlers[action] = h
}

// Run blocks, consuming queue until ctx is cancelled.
func (rt *Runtime) Run(ctx context.Context, queue string) error {
	return rt.Broker.Consume(ctx, queue, rt.handleEnvelope)
}

func (rt *Runtime) handleEnvelope(ctx context.Context, env broker.Envelope) error {
	jobID, err := uuid.Parse(env.JobID)
	if err != nil {
		return fmt.Errorf("worker: malformed job_id %q: %w", env.JobID, err)
	}
	fileID, err := uuid.Parse(env.FileID)
	if err != nil {
		return fmt.Errorf("worker: malformed file_id %q: %w", env.FileID, err)
	}

	log := slog.With("job_id", jobID, "file_id", fileID, "action", env.Type)

	job, err := rt.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("worker: load job: %w", err)
	}
	if job == nil {
		log.Error("worker: job row not found, dropping")
		return nil
	}

	// Idempotency rule (spec §4.E): terminal states are a no-op ack;
	// RUNNING means a previous attempt crashed and this is a retry.
	if job.Status.IsTerminal() {
		log.Info("worker: job already terminal, acking without work", "status", job.Status)
		return nil
	}
	if job.Status == models.JobQueued {
		ok, err := rt.Jobs.TransitionStatus(ctx, jobID, models.JobQueued, models.JobRunning)
		if err != nil {
			return fmt.Errorf("worker: transition to running: %w", err)
		}
		if !ok {
			// Lost the race to another redelivery; that delivery owns the job now.
			log.Info("worker: lost running transition race, acking")
			return nil
		}
	}

	parent, err := rt.Files.GetByID(ctx, fileID)
	if err != nil {
		return rt.fail(ctx, jobID, log, fmt.Errorf("load parent file: %w", err))
	}
	if parent == nil {
		return rt.fail(ctx, jobID, log, fmt.Errorf("parent file %s not found", fileID))
	}

	jobDir, err := os.MkdirTemp(rt.TempDir, "job-"+jobID.String()+"-")
	if err != nil {
		return rt.fail(ctx, jobID, log, fmt.Errorf("create scratch dir: %w", err))
	}
	defer os.RemoveAll(jobDir)

	inputPath := filepath.Join(jobDir, "input"+filepath.Ext(parent.OriginalName))
	if err := rt.Store.GetToFile(ctx, storage.Bucket(env.Bucket), env.Key, inputPath); err != nil {
		return rt.fail(ctx, jobID, log, fmt.Errorf("download subject: %w", err))
	}

	handler, ok := rt.handlers[env.Type]
	if !ok {
		return rt.fail(ctx, jobID, log, fmt.Errorf("no handler registered for action %q", env.Type))
	}

	jc := &JobContext{
		JobID:        jobID,
		FileID:       fileID,
		InputPath:    inputPath,
		OriginalName: parent.OriginalName,
		Params:       env.Params,
		TempDir:      jobDir,
	}

	out, err := handler(ctx, rt, jc)
	if err != nil {
		return rt.fail(ctx, jobID, log, err)
	}

	if out != nil {
		derivedID := uuid.New()
		name := out.Filename
		if name == "" {
			name = derivedID.String() + filepath.Ext(out.LocalPath)
		}
		key := fmt.Sprintf("%s/%s_%s", fileID.String(), derivedID.String(), name)

		data, err := os.ReadFile(out.LocalPath)
		if err != nil {
			return rt.fail(ctx, jobID, log, fmt.Errorf("read handler output: %w", err))
		}
		if err := rt.Store.Put(ctx, out.Bucket, key, data, out.MimeType); err != nil {
			return rt.fail(ctx, jobID, log, fmt.Errorf("upload derived artifact: %w", err))
		}

		derived := &models.File{
			ID:                derivedID,
			OwnerID:           parent.OwnerID,
			OriginalName:      name,
			Bucket:            string(out.Bucket),
			Key:               key,
			SizeBytes:         int64(len(data)),
			MimeType:          out.MimeType,
			Status:            models.FileReady,
			IsProcessedOutput: true,
			ParentFileID:      &fileID,
		}

		// Insert the derived File and flip the job to COMPLETED in one
		// transaction (spec §4.E step 6 / §8 invariant 1): if the
		// commit fails, neither write lands, so a dangling derived File
		// with no completed job pointing at it can never exist.
		tx, err := rt.db.BeginTx(ctx)
		if err != nil {
			return rt.fail(ctx, jobID, log, fmt.Errorf("begin completion transaction: %w", err))
		}
		committed := false
		defer func() {
			if !committed {
				tx.Rollback()
			}
		}()
		if err := rt.Files.Create(ctx, tx, derived); err != nil {
			return rt.fail(ctx, jobID, log, fmt.Errorf("insert derived file: %w", err))
		}
		if err := rt.Jobs.Complete(ctx, tx, jobID, &derivedID); err != nil {
			return rt.fail(ctx, jobID, log, fmt.Errorf("complete job: %w", err))
		}
		if err := tx.Commit(); err != nil {
			return rt.fail(ctx, jobID, log, fmt.Errorf("commit completion transaction: %w", err))
		}
		committed = true

		if err := rt.Files.UpdateStatus(ctx, fileID, models.FileReady); err != nil {
			log.Warn("worker: failed to flip parent file to ready", "error", err)
		}
	}

	log.Info("worker: job completed")
	return nil
}

func (rt *Runtime) fail(ctx context.Context, jobID uuid.UUID, log *slog.Logger, cause error) error {
	if err := rt.Jobs.Fail(ctx, jobID, cause.Error()); err != nil {
		log.Error("worker: failed to record job failure", "cause", cause, "error", err)
	} else {
		log.Error("worker: job failed", "cause", cause)
	}
	return cause
}

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

// FileRepository is the typed CRUD layer over the files table, grounded
// on imaging_repository.go's parameterized-query, sqlx-scan style.
type FileRepository struct {
	db *database.DB
}

func NewFileRepository(db *database.DB) *FileRepository {
	return &FileRepository{db: db}
}

// DB exposes the underlying handle so callers can open a transaction
// spanning multiple repositories (e.g. the delete-cascade in FileHandler.Delete).
func (r *FileRepository) DB() *database.DB {
	return r.db
}

// Create inserts a new file row, either on the outer db handle or
// within a caller-owned transaction (submission needs file, pipeline,
// and jobs to commit atomically).
func (r *FileRepository) Create(ctx context.Context, tx *sqlx.Tx, f *models.File) error {
	query := `
		INSERT INTO files (
			id, owner_id, original_name, bucket, key, size_bytes, mime_type,
			status, created_at, is_processed_output, parent_file_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	args := []interface{}{
		f.ID, f.OwnerID, f.OriginalName, f.Bucket, f.Key, f.SizeBytes, f.MimeType,
		f.Status, f.CreatedAt, f.IsProcessedOutput, f.ParentFileID,
	}
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.File, error) {
	var f models.File
	query := `SELECT id, owner_id, original_name, bucket, key, size_bytes, mime_type,
		status, created_at, is_processed_output, parent_file_id FROM files WHERE id = $1`
	err := r.db.GetContext(ctx, &f, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file by id: %w", err)
	}
	return &f, nil
}

// ListByOwner returns the owner's files, newest first. Unless
// includeDerived is set, derived outputs are left out entirely, per the
// exclude-derived-outputs listing rule (SPEC_FULL.md supplemented
// feature, grounded on original_source/backend/app/api/files.py's list
// endpoint).
func (r *FileRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, includeDerived bool) ([]models.File, error) {
	var files []models.File
	query := `SELECT id, owner_id, original_name, bucket, key, size_bytes, mime_type,
		status, created_at, is_processed_output, parent_file_id FROM files WHERE owner_id = $1`
	if !includeDerived {
		query += ` AND is_processed_output = false`
	}
	query += ` ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &files, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list files by owner: %w", err)
	}
	return files, nil
}

// ListDerived returns every derived File whose parent is fileID (spec
// §8 invariant 5's "descendant derived Files" for the delete cascade).
func (r *FileRepository) ListDerived(ctx context.Context, fileID uuid.UUID) ([]models.File, error) {
	var files []models.File
	query := `SELECT id, owner_id, original_name, bucket, key, size_bytes, mime_type,
		status, created_at, is_processed_output, parent_file_id FROM files WHERE parent_file_id = $1`
	if err := r.db.SelectContext(ctx, &files, query, fileID); err != nil {
		return nil, fmt.Errorf("list derived files: %w", err)
	}
	return files, nil
}

func (r *FileRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.FileStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE files SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update file status: %w", err)
	}
	return nil
}

// Delete removes a file row, either on the outer db handle or within a
// caller-owned transaction. Only the row is removed; the object-store
// blob is left for the caller to delete. Callers must first remove any
// jobs referencing it as file_id or result_file_id (cascade handled by
// JobRepository.DeleteByFileReference).
func (r *FileRepository) Delete(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	query := `DELETE FROM files WHERE id = $1`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, id)
	} else {
		_, err = r.db.ExecContext(ctx, query, id)
	}
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

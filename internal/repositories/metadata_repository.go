package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"fileforge/internal/database"
	"fileforge/internal/models"
)

// FileMetadataRepository is the typed CRUD layer over the
// file_metadata table. At most one row exists per file; Upsert is the
// only write path so a rerun of the METADATA action never duplicates
// rows (spec §3).
type FileMetadataRepository struct {
	db *database.DB
}

func NewFileMetadataRepository(db *database.DB) *FileMetadataRepository {
	return &FileMetadataRepository{db: db}
}

func (r *FileMetadataRepository) Upsert(ctx context.Context, m *models.FileMetadata) error {
	query := `
		INSERT INTO file_metadata (id, file_id, exif_data, video_info, ai_tags, custom_metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (file_id) DO UPDATE SET
			exif_data = EXCLUDED.exif_data,
			video_info = EXCLUDED.video_info,
			ai_tags = EXCLUDED.ai_tags,
			custom_metadata = EXCLUDED.custom_metadata,
			updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.FileID, m.ExifData, m.VideoInfo, m.AITags, m.CustomMetadata, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert file metadata: %w", err)
	}
	return nil
}

// GetByFileID loads metadata for a file, used to eager-load metadata on
// file detail responses (SPEC_FULL.md supplemented feature, grounded on
// original_source/backend/app/api/files.py's detail endpoint).
func (r *FileMetadataRepository) GetByFileID(ctx context.Context, fileID uuid.UUID) (*models.FileMetadata, error) {
	var m models.FileMetadata
	query := `SELECT id, file_id, exif_data, video_info, ai_tags, custom_metadata, created_at, updated_at
		FROM file_metadata WHERE file_id = $1`
	err := r.db.GetContext(ctx, &m, query, fileID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file metadata: %w", err)
	}
	return &m, nil
}

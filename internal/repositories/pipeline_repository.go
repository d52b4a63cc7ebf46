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

// PipelineRepository is the typed CRUD layer over the pipelines table.
type PipelineRepository struct {
	db *database.DB
}

func NewPipelineRepository(db *database.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

func (r *PipelineRepository) Create(ctx context.Context, tx *sqlx.Tx, p *models.Pipeline) error {
	query := `INSERT INTO pipelines (id, file_id, name, steps, created_at) VALUES ($1, $2, $3, $4, $5)`
	args := []interface{}{p.ID, p.FileID, p.Name, p.Steps, p.CreatedAt}
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	return nil
}

func (r *PipelineRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Pipeline, error) {
	var p models.Pipeline
	query := `SELECT id, file_id, name, steps, created_at FROM pipelines WHERE id = $1`
	err := r.db.GetContext(ctx, &p, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline by id: %w", err)
	}
	return &p, nil
}

func (r *PipelineRepository) GetByFileID(ctx context.Context, fileID uuid.UUID) (*models.Pipeline, error) {
	var p models.Pipeline
	query := `SELECT id, file_id, name, steps, created_at FROM pipelines WHERE file_id = $1`
	err := r.db.GetContext(ctx, &p, query, fileID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline by file id: %w", err)
	}
	return &p, nil
}

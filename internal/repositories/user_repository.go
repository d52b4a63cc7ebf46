package repositories

import (
	"context"
	"fmt"
	"time"

	"fileforge/internal/database"

	"github.com/google/uuid"
)

// UserRepository handles the owners referenced by files.owner_id and
// jobs.owner_id. Ownership itself comes from the bearer token (spec §6);
// this repository just ensures the referenced row exists so the foreign
// key never dangles.
type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EnsureExists upserts a placeholder user row for id if one doesn't
// already exist, so a freshly issued token can be used immediately
// without a separate signup step.
func (r *UserRepository) EnsureExists(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email) VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		id, id.String()+"@fileforge.local",
	)
	if err != nil {
		return fmt.Errorf("ensure user exists: %w", err)
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, "SELECT id, email, created_at FROM users WHERE id = $1", id).
		Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

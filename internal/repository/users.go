package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// UserRepository reads identities owned by the auth collaborator.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// GetIdentity returns the stored username and role, or ErrNotFound.
func (r *UserRepository) GetIdentity(ctx context.Context, username string) (*model.Identity, error) {
	var (
		id   model.Identity
		role int16
	)
	err := r.db.QueryRow(ctx,
		`SELECT username, role FROM credentials WHERE username = $1`,
		username,
	).Scan(&id.Username, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	id.Role = model.Role(role)
	return &id, nil
}

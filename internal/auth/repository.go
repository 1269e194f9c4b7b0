package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/apierrors"
)

// Repository handles admin user persistence. The platform has exactly one
// role (Non-goals exclude multi-tenant RBAC), so this is a single table
// instead of the teacher's role-tagged users table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAdminUser(row pgx.Row) (*models.AdminUser, error) {
	var u models.AdminUser
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apierrors.Wrap(apierrors.KindNotFound, "admin user not found", err)
		}
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "scan admin user", err)
	}
	return &u, nil
}

// GetByID returns an admin user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, email, password_hash, created_at FROM admin_users WHERE id = $1`, id)
	return scanAdminUser(row)
}

// GetByEmail returns an admin user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, email, password_hash, created_at FROM admin_users WHERE email = $1`, email)
	return scanAdminUser(row)
}

// Create inserts a new admin user. Used both by the bootstrap-admin seed
// (C7 startup) and, if ever exposed, an admin-invite endpoint.
func (r *Repository) Create(ctx context.Context, email, passwordHash string) (*models.AdminUser, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO admin_users (email, password_hash)
		VALUES ($1, $2) RETURNING id, email, password_hash, created_at`, email, passwordHash)
	return scanAdminUser(row)
}

// Count returns the number of admin users, used to decide whether the
// bootstrap admin needs seeding on startup.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&n); err != nil {
		return 0, apierrors.Wrap(apierrors.KindPermanentStorage, "count admin users", err)
	}
	return n, nil
}

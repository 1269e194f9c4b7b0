// Package companies implements C3's Company repository: CRUD plus the
// Create operation that provisions onboarding storage folders before
// inserting the database row (folders already made are not removed if the
// insert fails), grounded on
// internal/auth/repository.go's plain pgxpool.Pool + const-SQL style.
package companies

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/apierrors"
	"github.com/fegerV/arplatform/pkg/storage"
)

const columns = `id, name, slug, contact_email, storage_connection_id, storage_path,
	storage_quota_bytes, storage_used_bytes, storage_status, subscription_tier,
	subscription_expires_at, is_active, created_at, updated_at`

// Repository persists Company rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a companies Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCompany(row pgx.Row) (*models.Company, error) {
	var c models.Company
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.ContactEmail, &c.StorageConnectionID, &c.StoragePath,
		&c.StorageQuotaBytes, &c.StorageUsedBytes, &c.StorageStatus, &c.SubscriptionTier,
		&c.SubscriptionExpires, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apierrors.Wrap(apierrors.KindNotFound, "company not found", err)
		}
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "scan company", err)
	}
	return &c, nil
}

// Get returns a company by id.
func (r *Repository) Get(ctx context.Context, id int64) (*models.Company, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM companies WHERE id = $1`, id)
	return scanCompany(row)
}

// GetBySlug returns a company by slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Company, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM companies WHERE slug = $1`, slug)
	return scanCompany(row)
}

// List returns every company, most recently created first.
func (r *Repository) List(ctx context.Context) ([]models.Company, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM companies ORDER BY created_at DESC`)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "list companies", err)
	}
	defer rows.Close()
	var out []models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CreateParams holds the fields needed to onboard a new company.
type CreateParams struct {
	Name                string
	Slug                string
	ContactEmail        string
	StorageConnectionID int64
	StoragePath         string
	StorageQuotaBytes   int64
	SubscriptionTier    models.SubscriptionTier
}

// Create provisions the company's onboarding storage folders
// (markers/videos/thumbnails/content) via provider, then inserts the
// Company row. If folder provisioning fails the company is still created
// but storage_status is set to degraded (best-effort accounting per
// spec.md I5). No storage_degraded Notification is raised, neither here
// nor by the admin handler that calls Create.
func (r *Repository) Create(ctx context.Context, p CreateParams, provider storage.Provider) (*models.Company, error) {
	status := models.StorageStatusOK
	for _, folder := range storage.OnboardingFolders {
		if err := provider.CreateFolder(ctx, p.StoragePath+"/"+folder); err != nil {
			status = models.StorageStatusDegraded
			break
		}
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO companies
		(name, slug, contact_email, storage_connection_id, storage_path, storage_quota_bytes, storage_status, subscription_tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING `+columns,
		p.Name, p.Slug, p.ContactEmail, p.StorageConnectionID, p.StoragePath, p.StorageQuotaBytes, status, p.SubscriptionTier)
	return scanCompany(row)
}

// UpdateStorageUsage sets the best-effort storage_used_bytes counter.
func (r *Repository) UpdateStorageUsage(ctx context.Context, companyID int64, usedBytes int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE companies SET storage_used_bytes = $2, updated_at = NOW() WHERE id = $1`,
		companyID, usedBytes)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "update storage usage", err)
	}
	return nil
}

// SetStorageStatus flips storage_status, e.g. when a connection's
// TestConnection starts failing.
func (r *Repository) SetStorageStatus(ctx context.Context, companyID int64, status models.StorageStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE companies SET storage_status = $2, updated_at = NOW() WHERE id = $1`,
		companyID, status)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "set storage status", err)
	}
	return nil
}

// Deactivate marks a company inactive without deleting its data.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE companies SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "deactivate company", err)
	}
	return nil
}

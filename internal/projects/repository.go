// Package projects implements C3's Project repository, including the
// ExpireProject compound transactional operation that atomically cascades
// a Project's expiry to every ARContent beneath it (spec invariant I3).
package projects

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/apierrors"
)

const columns = `id, company_id, name, starts_at, expires_at, status,
	notify_before_expiry_days, last_notification_sent_at, created_at, updated_at`

// Repository persists Project rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a projects Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.CompanyID, &p.Name, &p.StartsAt, &p.ExpiresAt, &p.Status,
		&p.NotifyBeforeExpiryDays, &p.LastNotificationSentAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apierrors.Wrap(apierrors.KindNotFound, "project not found", err)
		}
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "scan project", err)
	}
	return &p, nil
}

// Get returns a project by id.
func (r *Repository) Get(ctx context.Context, id int64) (*models.Project, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM projects WHERE id = $1`, id)
	return scanProject(row)
}

// ListByCompany returns a company's projects.
func (r *Repository) ListByCompany(ctx context.Context, companyID int64) ([]models.Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM projects WHERE company_id = $1 ORDER BY created_at DESC`, companyID)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "list projects", err)
	}
	defer rows.Close()
	var out []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Create inserts a new active Project.
func (r *Repository) Create(ctx context.Context, companyID int64, name string, expiresAt *time.Time, notifyBeforeExpiryDays int) (*models.Project, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO projects (company_id, name, expires_at, notify_before_expiry_days)
		VALUES ($1, $2, $3, $4) RETURNING `+columns,
		companyID, name, expiresAt, notifyBeforeExpiryDays)
	return scanProject(row)
}

// ListPendingExpiryWarnings returns every active project that has an
// expiry set and hasn't been notified yet, for the daily expiry-warning
// sweep to filter by its own notify_before_expiry_days (dueForWarning).
// Unlike a fixed lookahead window, this never excludes a project whose
// configured lead time is longer than some hardcoded bound.
func (r *Repository) ListPendingExpiryWarnings(ctx context.Context) ([]models.Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM projects
		WHERE status = 'active' AND expires_at IS NOT NULL AND last_notification_sent_at IS NULL`)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "list expiring projects", err)
	}
	defer rows.Close()
	var out []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListPastExpiry returns active projects whose expiry has already passed,
// for the per-minute deactivation sweep. Idempotent: an already-expired
// project is never selected since status != 'active'.
func (r *Repository) ListPastExpiry(ctx context.Context) ([]models.Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM projects
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < NOW()`)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "list past-expiry projects", err)
	}
	defer rows.Close()
	var out []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// MarkNotified records that an expiry_warning notification was just sent.
func (r *Repository) MarkNotified(ctx context.Context, projectID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE projects SET last_notification_sent_at = NOW(), updated_at = NOW() WHERE id = $1`, projectID)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "mark project notified", err)
	}
	return nil
}

// NotificationAppender inserts a Notification row within the caller's
// transaction; implemented directly by internal/notifications'
// Repository.AppendTx, kept narrow here to avoid a package cycle.
type NotificationAppender interface {
	AppendTx(ctx context.Context, tx pgx.Tx, n models.Notification) error
}

// ExpireProject is C3's compound transactional operation (I3): within one
// transaction it sets status=expired, cascades is_active=false to every
// ARContent under the project, and appends an `expired` Notification.
func (r *Repository) ExpireProject(ctx context.Context, projectID int64, notifier NotificationAppender) (*models.Project, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `UPDATE projects SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'active' RETURNING `+columns, projectID)
	project, err := scanProject(row)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE ar_contents SET is_active = FALSE, updated_at = NOW() WHERE project_id = $1`, projectID); err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "cascade deactivate ar_contents", err)
	}

	if notifier != nil {
		if err := notifier.AppendTx(ctx, tx, models.Notification{
			CompanyID: &project.CompanyID,
			ProjectID: &project.ID,
			Kind:      models.NotificationExpired,
			Subject:   "project expired",
			Message:   "project " + project.Name + " expired and its content was deactivated",
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "commit tx", err)
	}
	return project, nil
}

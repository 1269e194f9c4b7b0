// Package notifications persists the append-only Notification feed and
// fans each new row out to the admin live-feed hub, grounded on the
// webinars.Handler repository pattern (plain pgxpool.Pool, const SQL,
// Scan into struct).
package notifications

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/apierrors"
)

// Broadcaster pushes a freshly created Notification to connected admin
// clients; implemented by internal/realtime's hub.
type Broadcaster interface {
	BroadcastNotification(n models.Notification)
}

// Repository persists Notification rows.
type Repository struct {
	pool *pgxpool.Pool
	hub  Broadcaster
}

// NewRepository builds a notifications Repository. hub may be nil (e.g. in
// worker processes that only need to write rows, not fan them out live).
func NewRepository(pool *pgxpool.Pool, hub Broadcaster) *Repository {
	return &Repository{pool: pool, hub: hub}
}

// Notify inserts n and broadcasts it live. It satisfies
// credentials.Notifier and any other producer of Notification events.
func (r *Repository) Notify(ctx context.Context, n models.Notification) error {
	if n.Metadata == nil {
		n.Metadata = map[string]any{}
	}
	meta, err := json.Marshal(n.Metadata)
	if err != nil {
		return apierrors.Wrap(apierrors.KindInvariant, "marshal notification metadata", err)
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO notifications (company_id, project_id, ar_content_id, kind, subject, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		n.CompanyID, n.ProjectID, n.ARContentID, n.Kind, n.Subject, n.Message, meta)
	if err := row.Scan(&n.ID, &n.CreatedAt); err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "insert notification", err)
	}
	if r.hub != nil {
		r.hub.BroadcastNotification(n)
	}
	return nil
}

// AppendTx inserts n using tx instead of the pool, so callers with their
// own transaction (e.g. projects.ExpireProject's I3 cascade) can append a
// Notification atomically alongside their other writes. It satisfies
// projects.NotificationAppender. The
// live-feed broadcast still happens (best-effort, after a successful
// insert) even though the caller's transaction has not committed yet;
// this mirrors the existing at-least-once delivery the hub already has
// for cross-instance pubsub.
func (r *Repository) AppendTx(ctx context.Context, tx pgx.Tx, n models.Notification) error {
	if n.Metadata == nil {
		n.Metadata = map[string]any{}
	}
	meta, err := json.Marshal(n.Metadata)
	if err != nil {
		return apierrors.Wrap(apierrors.KindInvariant, "marshal notification metadata", err)
	}
	row := tx.QueryRow(ctx, `INSERT INTO notifications (company_id, project_id, ar_content_id, kind, subject, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		n.CompanyID, n.ProjectID, n.ARContentID, n.Kind, n.Subject, n.Message, meta)
	if err := row.Scan(&n.ID, &n.CreatedAt); err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "insert notification", err)
	}
	if r.hub != nil {
		r.hub.BroadcastNotification(n)
	}
	return nil
}

// ListByCompany returns the most recent notifications for a company, newest
// first.
func (r *Repository) ListByCompany(ctx context.Context, companyID int64, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, project_id, ar_content_id, kind, subject, message, metadata, created_at
		FROM notifications WHERE company_id = $1 ORDER BY created_at DESC LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "list notifications", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// ListRecent returns the most recent notifications across all companies,
// newest first, for the admin feed's initial page load.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, project_id, ar_content_id, kind, subject, message, metadata, created_at
		FROM notifications ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "list recent notifications", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func scanNotifications(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]models.Notification, error) {
	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var meta []byte
		if err := rows.Scan(&n.ID, &n.CompanyID, &n.ProjectID, &n.ARContentID, &n.Kind, &n.Subject, &n.Message, &meta, &n.CreatedAt); err != nil {
			return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "scan notification", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &n.Metadata)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

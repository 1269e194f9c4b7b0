// Package content implements C3's ARContent and Video repositories,
// including the SetActiveVideo/SetActiveVideoTx compound transactional
// operation that preserves invariants I1 (active_video_id points at a
// matching, active Video) and I2 (at most one active Video per ARContent),
// and the marker pending→processing→ready/failed state machine's
// compare-and-swap update used by C4.
package content

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/apierrors"
)

const arContentColumns = `id, project_id, company_id, unique_id, title, image_path, image_url,
	marker_path, marker_url, marker_status, marker_feature_points, is_active, active_video_id,
	created_at, updated_at`

const videoColumns = `id, ar_content_id, title, video_path, video_url, duration_seconds, width, height,
	mime_type, is_active, rotation_order, created_at, updated_at`

// Repository persists ARContent and Video rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a content Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanARContent(row pgx.Row) (*models.ARContent, error) {
	var c models.ARContent
	err := row.Scan(&c.ID, &c.ProjectID, &c.CompanyID, &c.UniqueID, &c.Title, &c.ImagePath, &c.ImageURL,
		&c.MarkerPath, &c.MarkerURL, &c.MarkerStatus, &c.MarkerFeaturePoints, &c.IsActive, &c.ActiveVideoID,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apierrors.Wrap(apierrors.KindNotFound, "ar content not found", err)
		}
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "scan ar content", err)
	}
	return &c, nil
}

func scanVideo(row pgx.Row) (*models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.ARContentID, &v.Title, &v.VideoPath, &v.VideoURL, &v.DurationSec, &v.Width, &v.Height,
		&v.MimeType, &v.IsActive, &v.RotationOrder, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apierrors.Wrap(apierrors.KindNotFound, "video not found", err)
		}
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "scan video", err)
	}
	return &v, nil
}

// GetByID returns an ARContent by its internal id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.ARContent, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+arContentColumns+` FROM ar_contents WHERE id = $1`, id)
	return scanARContent(row)
}

// GetByUniqueID returns an ARContent by its public UUID, the only key the
// resolution API (C6) exposes externally.
func (r *Repository) GetByUniqueID(ctx context.Context, uid uuid.UUID) (*models.ARContent, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+arContentColumns+` FROM ar_contents WHERE unique_id = $1`, uid)
	return scanARContent(row)
}

// ListByProject returns every ARContent under a project.
func (r *Repository) ListByProject(ctx context.Context, projectID int64) ([]models.ARContent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+arContentColumns+` FROM ar_contents WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "list ar contents", err)
	}
	defer rows.Close()
	var out []models.ARContent
	for rows.Next() {
		c, err := scanARContent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Create inserts a new ARContent with marker_status=pending.
func (r *Repository) Create(ctx context.Context, projectID, companyID int64, title, imagePath string) (*models.ARContent, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO ar_contents (project_id, company_id, title, image_path)
		VALUES ($1, $2, $3, $4) RETURNING `+arContentColumns, projectID, companyID, title, imagePath)
	return scanARContent(row)
}

// SetImageURL records the resolved URL for the source marker image after
// upload.
func (r *Repository) SetImageURL(ctx context.Context, id int64, url string) error {
	_, err := r.pool.Exec(ctx, `UPDATE ar_contents SET image_url = $2, updated_at = NOW() WHERE id = $1`, id, url)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "set image url", err)
	}
	return nil
}

// BeginMarkerProcessing CAS-transitions pending/failed→processing (failed
// is included so a retried job can re-claim the row). Returns
// apierrors.KindConflict if the row was already claimed by another worker
// or sits in a terminal ready state — the idempotency guard C4 relies on.
func (r *Repository) BeginMarkerProcessing(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ar_contents SET marker_status = 'processing', updated_at = NOW()
		WHERE id = $1 AND marker_status IN ('pending', 'failed')`, id)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "begin marker processing", err)
	}
	if tag.RowsAffected() == 0 {
		return apierrors.New(apierrors.KindConflict, "ar content not in pending/failed state")
	}
	return nil
}

// CompleteMarkerSuccess CAS-transitions processing→ready, recording the
// compiled marker's path/URL and feature point count.
func (r *Repository) CompleteMarkerSuccess(ctx context.Context, id int64, markerPath, markerURL string, featurePoints int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ar_contents SET marker_status = 'ready', marker_path = $2, marker_url = $3,
		marker_feature_points = $4, updated_at = NOW() WHERE id = $1 AND marker_status = 'processing'`,
		id, markerPath, markerURL, featurePoints)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "complete marker success", err)
	}
	if tag.RowsAffected() == 0 {
		return apierrors.New(apierrors.KindConflict, "ar content not in processing state")
	}
	return nil
}

// FailMarker CAS-transitions processing→failed.
func (r *Repository) FailMarker(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ar_contents SET marker_status = 'failed', updated_at = NOW()
		WHERE id = $1 AND marker_status = 'processing'`, id)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "fail marker", err)
	}
	if tag.RowsAffected() == 0 {
		return apierrors.New(apierrors.KindConflict, "ar content not in processing state")
	}
	return nil
}

// AddVideo inserts a new, initially-inactive Video under an ARContent.
func (r *Repository) AddVideo(ctx context.Context, arContentID int64, title, videoPath string, durationSec, width, height int, mimeType string, rotationOrder int) (*models.Video, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO videos (ar_content_id, title, video_path, duration_seconds, width, height, mime_type, rotation_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING `+videoColumns,
		arContentID, title, videoPath, durationSec, width, height, mimeType, rotationOrder)
	return scanVideo(row)
}

// SetVideoURL records the resolved URL for a video after upload.
func (r *Repository) SetVideoURL(ctx context.Context, videoID int64, url string) error {
	_, err := r.pool.Exec(ctx, `UPDATE videos SET video_url = $2, updated_at = NOW() WHERE id = $1`, videoID, url)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "set video url", err)
	}
	return nil
}

// ListVideosByContent returns every video under an ARContent, ordered for
// rotation (rotation_order, then id).
func (r *Repository) ListVideosByContent(ctx context.Context, arContentID int64) ([]models.Video, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+videoColumns+` FROM videos WHERE ar_content_id = $1 ORDER BY rotation_order, id`, arContentID)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "list videos", err)
	}
	defer rows.Close()
	var out []models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// GetVideo returns a single video by id.
func (r *Repository) GetVideo(ctx context.Context, videoID int64) (*models.Video, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, videoID)
	return scanVideo(row)
}

// SetActiveVideo is the compound transactional operation preserving I1/I2:
// within one transaction it clears the previously-active video (if any),
// marks videoID active, and points ar_contents.active_video_id at it.
// videoID must belong to arContentID or KindInput is returned.
func (r *Repository) SetActiveVideo(ctx context.Context, arContentID, videoID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	if err := r.SetActiveVideoTx(ctx, tx, arContentID, videoID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "commit tx", err)
	}
	return nil
}

// SetActiveVideoTx is SetActiveVideo's logic run inside a caller-owned
// transaction, so callers that must also write other tables (e.g. C5's
// rotation sweep advancing a schedule's bookkeeping) can commit both
// writes atomically instead of risking one succeeding while the other
// fails.
func (r *Repository) SetActiveVideoTx(ctx context.Context, tx pgx.Tx, arContentID, videoID int64) error {
	var owner int64
	if err := tx.QueryRow(ctx, `SELECT ar_content_id FROM videos WHERE id = $1`, videoID).Scan(&owner); err != nil {
		if err == pgx.ErrNoRows {
			return apierrors.Wrap(apierrors.KindNotFound, "video not found", err)
		}
		return apierrors.Wrap(apierrors.KindPermanentStorage, "lookup video owner", err)
	}
	if owner != arContentID {
		return apierrors.New(apierrors.KindInput, "video does not belong to this ar content")
	}

	if _, err := tx.Exec(ctx, `UPDATE videos SET is_active = FALSE, updated_at = NOW()
		WHERE ar_content_id = $1 AND is_active`, arContentID); err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "clear previous active video", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE videos SET is_active = TRUE, updated_at = NOW() WHERE id = $1`, videoID); err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "activate video", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE ar_contents SET active_video_id = $2, updated_at = NOW() WHERE id = $1`, arContentID, videoID); err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "point ar content at active video", err)
	}
	return nil
}

// ClearActiveVideo unsets active_video_id and every video's is_active flag
// for an ARContent in one transaction. It has no callers in this module;
// ExpireProject does not use it.
func (r *Repository) ClearActiveVideo(ctx context.Context, arContentID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "begin tx", err)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `UPDATE videos SET is_active = FALSE, updated_at = NOW() WHERE ar_content_id = $1`, arContentID); err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "clear active videos", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE ar_contents SET active_video_id = NULL, updated_at = NOW() WHERE id = $1`, arContentID); err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "clear active video pointer", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "commit tx", err)
	}
	return nil
}

// SetIsActive toggles an ARContent's own is_active flag (admin manual
// publish/unpublish, independent of project expiry).
func (r *Repository) SetIsActive(ctx context.Context, id int64, active bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE ar_contents SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "set ar content active", err)
	}
	return nil
}

// IsProjectExpired reports whether the project projectID has status
// expired. It has no callers in this module; the resolution handlers do
// not use it.
func (r *Repository) IsProjectExpired(ctx context.Context, projectID int64) (bool, error) {
	var status string
	if err := r.pool.QueryRow(ctx, `SELECT status FROM projects WHERE id = $1`, projectID).Scan(&status); err != nil {
		return false, apierrors.Wrap(apierrors.KindPermanentStorage, "check project status", err)
	}
	return status == string(models.ProjectStatusExpired), nil
}

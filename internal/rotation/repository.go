package rotation

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fegerV/arplatform/internal/content"
	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/apierrors"
)

const columns = `id, ar_content_id, rotation_type, time_of_day, day_of_week, day_of_month,
	video_sequence, current_index, last_rotation_at, next_rotation_at, is_active, created_at, updated_at`

// Repository persists VideoRotationSchedule rows.
type Repository struct {
	pool    *pgxpool.Pool
	content *content.Repository
}

// NewRepository builds a rotation Repository. content is used by Rotate to
// invoke C3's SetActiveVideo under the schedule's own transaction.
func NewRepository(pool *pgxpool.Pool, contentRepo *content.Repository) *Repository {
	return &Repository{pool: pool, content: contentRepo}
}

func scanSchedule(row pgx.Row) (*models.VideoRotationSchedule, error) {
	var s models.VideoRotationSchedule
	err := row.Scan(&s.ID, &s.ARContentID, &s.RotationType, &s.TimeOfDay, &s.DayOfWeek, &s.DayOfMonth,
		&s.VideoSequence, &s.CurrentIndex, &s.LastRotationAt, &s.NextRotationAt, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apierrors.Wrap(apierrors.KindNotFound, "rotation schedule not found", err)
		}
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "scan rotation schedule", err)
	}
	return &s, nil
}

// GetByContent returns a schedule by ARContent id.
func (r *Repository) GetByContent(ctx context.Context, arContentID int64) (*models.VideoRotationSchedule, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM video_rotation_schedules WHERE ar_content_id = $1`, arContentID)
	return scanSchedule(row)
}

// Upsert creates or replaces the rotation schedule for an ARContent.
func (r *Repository) Upsert(ctx context.Context, s models.VideoRotationSchedule) (*models.VideoRotationSchedule, error) {
	if len(s.VideoSequence) == 0 {
		return nil, apierrors.New(apierrors.KindInput, "video_sequence must be non-empty")
	}
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.VideoSequence) {
		s.CurrentIndex = 0 // I4: keep current_index a valid index
	}
	next := NextFire(s, time.Now())
	row := r.pool.QueryRow(ctx, `INSERT INTO video_rotation_schedules
		(ar_content_id, rotation_type, time_of_day, day_of_week, day_of_month, video_sequence, current_index, next_rotation_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		ON CONFLICT (ar_content_id) DO UPDATE SET
			rotation_type = EXCLUDED.rotation_type,
			time_of_day = EXCLUDED.time_of_day,
			day_of_week = EXCLUDED.day_of_week,
			day_of_month = EXCLUDED.day_of_month,
			video_sequence = EXCLUDED.video_sequence,
			current_index = EXCLUDED.current_index,
			next_rotation_at = EXCLUDED.next_rotation_at,
			is_active = TRUE,
			updated_at = NOW()
		RETURNING `+columns,
		s.ARContentID, s.RotationType, s.TimeOfDay, s.DayOfWeek, s.DayOfMonth, s.VideoSequence, s.CurrentIndex, next)
	return scanSchedule(row)
}

// ListDue returns every active schedule whose next_rotation_at has passed,
// for the five-minute rotation sweep. Idempotent: once advanced past now,
// a schedule drops out of this set until its next_rotation_at arrives.
func (r *Repository) ListDue(ctx context.Context, now time.Time) ([]models.VideoRotationSchedule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM video_rotation_schedules
		WHERE is_active AND next_rotation_at <= $1`, now)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "list due schedules", err)
	}
	defer rows.Close()
	var out []models.VideoRotationSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Rotate advances one schedule: selects the next video per NextIndex, then
// commits the schedule's bookkeeping advance
// (current_index/last_rotation_at/next_rotation_at) and the
// content.SetActiveVideoTx swap (I1/I2-preserving) within a single
// transaction, so a rejected or stale video_sequence entry rolls back the
// schedule advance too rather than leaving the schedule believing a
// rotation happened that never took visible effect. A row-level lock
// (SELECT ... FOR UPDATE) on the schedule serializes concurrent rotations
// of the same ARContent, per spec.md's "two runs for the same ARContent
// are serialized" note.
func (r *Repository) Rotate(ctx context.Context, scheduleID int64, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+columns+` FROM video_rotation_schedules WHERE id = $1 FOR UPDATE`, scheduleID)
	s, err := scanSchedule(row)
	if err != nil {
		return err
	}
	if len(s.VideoSequence) == 0 {
		return apierrors.New(apierrors.KindInvariant, "rotation schedule has empty video sequence")
	}

	nextIdx := NextIndex(*s, nil)
	nextVideoID := s.VideoSequence[nextIdx]
	nextAt := NextFire(*s, now)

	if err := r.content.SetActiveVideoTx(ctx, tx, s.ARContentID, nextVideoID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE video_rotation_schedules SET current_index = $2,
		last_rotation_at = $3, next_rotation_at = $4, updated_at = NOW() WHERE id = $1`,
		scheduleID, nextIdx, now, nextAt); err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "advance rotation schedule", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "commit tx", err)
	}
	return nil
}

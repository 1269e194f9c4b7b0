package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fegerV/arplatform/internal/models"
)

// checkExpiringProjects handles JobKindCheckExpiringProjects: for every
// active project with an unset last_notification_sent_at, raise an
// expiry_warning Notification once it enters its own
// notify_before_expiry_days window (dueForWarning), then mark it notified
// so the sweep never re-sends. Unlike a fixed lookahead window, listing
// comes from ListPendingExpiryWarnings so a project configured with a
// longer lead time than any hardcoded bound is still picked up.
func (d *Dispatcher) checkExpiringProjects(ctx context.Context) error {
	now := time.Now().UTC()
	list, err := d.projects.ListPendingExpiryWarnings(ctx)
	if err != nil {
		return err
	}
	for _, p := range list {
		if !dueForWarning(p, now) {
			continue
		}
		companyID, projectID := p.CompanyID, p.ID
		if err := d.notifier.Notify(ctx, models.Notification{
			CompanyID: &companyID,
			ProjectID: &projectID,
			Kind:      models.NotificationExpiryWarning,
			Subject:   "project expiring soon",
			Message:   "project " + p.Name + " expires on " + p.ExpiresAt.Format(time.RFC3339),
			Metadata:  map[string]any{"expires_at": p.ExpiresAt.Format(time.RFC3339)},
		}); err != nil {
			d.logger.Error("raise expiry warning failed", zap.Int64("project_id", p.ID), zap.Error(err))
			continue
		}
		if err := d.projects.MarkNotified(ctx, p.ID); err != nil {
			d.logger.Error("mark project notified failed", zap.Int64("project_id", p.ID), zap.Error(err))
		}
	}
	return nil
}

// dueForWarning gates sending on the project's own notify_before_expiry_days
// lead time, so each project's configured window — not a fixed constant —
// decides when its warning first becomes due.
func dueForWarning(p models.Project, now time.Time) bool {
	if p.ExpiresAt == nil || p.LastNotificationSentAt != nil {
		return false
	}
	warnAt := p.ExpiresAt.AddDate(0, 0, -p.NotifyBeforeExpiryDays)
	return !now.Before(warnAt)
}

// deactivateExpired handles JobKindDeactivateExpired: deactivates every
// Project whose expires_at has passed via the transactional ExpireProject
// cascade (I3).
func (d *Dispatcher) deactivateExpired(ctx context.Context) error {
	list, err := d.projects.ListPastExpiry(ctx)
	if err != nil {
		return err
	}
	for _, p := range list {
		if _, err := d.projects.ExpireProject(ctx, p.ID, d.notifier); err != nil {
			d.logger.Error("expire project failed", zap.Int64("project_id", p.ID), zap.Error(err))
		}
	}
	return nil
}

// rotateVideos handles JobKindRotateVideos: advances every schedule whose
// next_rotation_at has elapsed.
func (d *Dispatcher) rotateVideos(ctx context.Context) error {
	now := time.Now().UTC()
	due, err := d.rotations.ListDue(ctx, now)
	if err != nil {
		return err
	}
	for _, sched := range due {
		if err := d.rotations.Rotate(ctx, sched.ID, now); err != nil {
			d.logger.Error("rotate schedule failed", zap.Int64("schedule_id", sched.ID), zap.Error(err))
		}
	}
	return nil
}

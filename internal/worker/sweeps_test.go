package worker

import (
	"testing"
	"time"

	"github.com/fegerV/arplatform/internal/models"
)

func TestDueForWarning(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	expiresAt := time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC) // 7 days out
	sentAt := now.Add(-time.Hour)

	tests := []struct {
		name string
		p    models.Project
		want bool
	}{
		{
			"no expiry set never due",
			models.Project{ExpiresAt: nil, NotifyBeforeExpiryDays: 7},
			false,
		},
		{
			"already notified is never due again",
			models.Project{ExpiresAt: &expiresAt, NotifyBeforeExpiryDays: 7, LastNotificationSentAt: &sentAt},
			false,
		},
		{
			"within notify window is due",
			models.Project{ExpiresAt: &expiresAt, NotifyBeforeExpiryDays: 7},
			true,
		},
		{
			"outside notify window is not due yet",
			models.Project{ExpiresAt: &expiresAt, NotifyBeforeExpiryDays: 3},
			false,
		},
		{
			"longer lead time is already due",
			models.Project{ExpiresAt: &expiresAt, NotifyBeforeExpiryDays: 8},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dueForWarning(tt.p, now); got != tt.want {
				t.Errorf("dueForWarning() = %v, want %v", got, tt.want)
			}
		})
	}
}

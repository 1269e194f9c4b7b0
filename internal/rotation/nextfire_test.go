package rotation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/fegerV/arplatform/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestNextFireDaily(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		timeOfDay *string
		want      time.Time
	}{
		{"later today", ptr("14:00"), time.Date(2026, 7, 30, 14, 0, 0, 0, time.UTC)},
		{"already passed today rolls to tomorrow", ptr("09:00"), time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := models.VideoRotationSchedule{RotationType: models.RotationDaily, TimeOfDay: tt.timeOfDay}
			got := NextFire(s, now)
			if !got.Equal(tt.want) {
				t.Errorf("NextFire() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextFireDailyMalformedTimeFallsBackFiveMinutes(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	s := models.VideoRotationSchedule{RotationType: models.RotationDaily, TimeOfDay: ptr("not-a-time")}
	got := NextFire(s, now)
	if !got.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("NextFire() = %v, want now+5m", got)
	}
}

// Unlike weekly/monthly, a missing time_of_day on a daily schedule is NOT
// defaulted to 09:00 — spec.md §4.5.3 scopes that default to weekly/monthly
// only, so daily falls through the same now+5m catch-all as malformed input.
func TestNextFireDailyMissingTimeOfDayFallsBackFiveMinutes(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	s := models.VideoRotationSchedule{RotationType: models.RotationDaily, TimeOfDay: nil}
	got := NextFire(s, now)
	if !got.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("NextFire() = %v, want now+5m", got)
	}
}

func TestNextFireWeekly(t *testing.T) {
	// 2026-07-30 is a Thursday (ISO weekday 4).
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		dayOfWeek *int
		want      time.Time
	}{
		{"next friday", ptr(5), time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)},
		{"today but already past, rolls to next week", ptr(4), time.Date(2026, 8, 6, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := models.VideoRotationSchedule{RotationType: models.RotationWeekly, DayOfWeek: tt.dayOfWeek}
			got := NextFire(s, now)
			if !got.Equal(tt.want) {
				t.Errorf("NextFire() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextFireWeeklyInvalidDayFallsBack(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	s := models.VideoRotationSchedule{RotationType: models.RotationWeekly, DayOfWeek: ptr(8)}
	got := NextFire(s, now)
	if !got.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("NextFire() = %v, want now+5m", got)
	}
}

func TestNextFireMonthly(t *testing.T) {
	tests := []struct {
		name       string
		now        time.Time
		dayOfMonth int
		want       time.Time
	}{
		{
			"later this month",
			time.Date(2026, 7, 10, 10, 0, 0, 0, time.UTC),
			15,
			time.Date(2026, 7, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			"already past rolls to next month",
			time.Date(2026, 7, 20, 10, 0, 0, 0, time.UTC),
			15,
			time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			"december rolls into next january",
			time.Date(2026, 12, 20, 10, 0, 0, 0, time.UTC),
			15,
			time.Date(2027, 1, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			"day clamped to shorter month",
			time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC),
			31,
			time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := models.VideoRotationSchedule{RotationType: models.RotationMonthly, DayOfMonth: ptr(tt.dayOfMonth)}
			got := NextFire(s, tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("NextFire() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextFireRandomAlwaysFiveMinutesOut(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	s := models.VideoRotationSchedule{RotationType: models.RotationRandom}
	got := NextFire(s, now)
	if !got.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("NextFire() = %v, want now+5m", got)
	}
}

func TestNextIndexSequentialWrapsAround(t *testing.T) {
	s := models.VideoRotationSchedule{
		RotationType:  models.RotationDaily,
		VideoSequence: []int64{10, 20, 30},
		CurrentIndex:  2,
	}
	got := NextIndex(s, nil)
	if got != 0 {
		t.Errorf("NextIndex() = %d, want 0 (wrap around)", got)
	}
}

func TestNextIndexSingleEntryIsNoOp(t *testing.T) {
	s := models.VideoRotationSchedule{
		RotationType:  models.RotationDaily,
		VideoSequence: []int64{10},
		CurrentIndex:  0,
	}
	got := NextIndex(s, nil)
	if got != 0 {
		t.Errorf("NextIndex() = %d, want 0", got)
	}
}

func TestNextIndexRandomNeverRepeatsCurrent(t *testing.T) {
	s := models.VideoRotationSchedule{
		RotationType:  models.RotationRandom,
		VideoSequence: []int64{10, 20, 30, 40},
		CurrentIndex:  1,
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		got := NextIndex(s, rng)
		if got == s.CurrentIndex {
			t.Fatalf("NextIndex() returned current index %d, want a different one", got)
		}
		if got < 0 || got >= len(s.VideoSequence) {
			t.Fatalf("NextIndex() = %d out of range", got)
		}
	}
}

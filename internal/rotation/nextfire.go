// Package rotation implements C5's video-rotation concern: the
// VideoRotationSchedule repository, the NextFire next-fire-time algorithm,
// and the next-index selection rule for the five-minute rotation sweep.
package rotation

import (
	"math/rand"
	"time"

	"github.com/fegerV/arplatform/internal/models"
)

const defaultTimeOfDay = "09:00"

// NextFire computes the next UTC fire time for a schedule, given the
// current instant now (also UTC). Unknown or malformed configuration
// falls back to now+5m per spec rather than erroring, since a scheduler
// tick must never get stuck on a bad row.
func NextFire(s models.VideoRotationSchedule, now time.Time) time.Time {
	now = now.UTC()
	switch s.RotationType {
	case models.RotationDaily:
		// Unlike weekly/monthly, spec.md §4.5.3 scopes the 09:00 default to
		// a missing time_of_day on those two types only; daily routes a nil
		// time_of_day through the same now+5m catch-all as a malformed one.
		if s.TimeOfDay == nil || *s.TimeOfDay == "" {
			return now.Add(5 * time.Minute)
		}
		hh, mm, ok := parseTimeOfDay(s.TimeOfDay, "")
		if !ok {
			return now.Add(5 * time.Minute)
		}
		target := atTime(now, hh, mm)
		if !target.After(now) {
			target = target.AddDate(0, 0, 1)
		}
		return target

	case models.RotationWeekly:
		if s.DayOfWeek == nil || *s.DayOfWeek < 1 || *s.DayOfWeek > 7 {
			return now.Add(5 * time.Minute)
		}
		hh, mm, ok := parseTimeOfDay(s.TimeOfDay, defaultTimeOfDay)
		if !ok {
			return now.Add(5 * time.Minute)
		}
		delta := (*s.DayOfWeek - isoWeekday(now) + 7) % 7
		base := atTime(now.AddDate(0, 0, delta), hh, mm)
		if !base.After(now) {
			base = base.AddDate(0, 0, 7)
		}
		return base

	case models.RotationMonthly:
		if s.DayOfMonth == nil || *s.DayOfMonth < 1 || *s.DayOfMonth > 31 {
			return now.Add(5 * time.Minute)
		}
		hh, mm, ok := parseTimeOfDay(s.TimeOfDay, defaultTimeOfDay)
		if !ok {
			return now.Add(5 * time.Minute)
		}
		year, month := now.Year(), now.Month()
		if now.Day() >= *s.DayOfMonth {
			month++
			if month > time.December {
				month = time.January
				year++
			}
		}
		day := clampDayOfMonth(year, month, *s.DayOfMonth)
		return time.Date(year, month, day, hh, mm, 0, 0, time.UTC)

	case models.RotationRandom:
		return now.Add(5 * time.Minute)

	default:
		return now.Add(5 * time.Minute)
	}
}

// NextIndex picks the next video_sequence index per the rotation type:
// random draws uniformly from every index but the current one (no-op if
// the sequence has length 1); every other type advances sequentially mod
// len(sequence). rng defaults to math/rand's package-level source if nil.
func NextIndex(s models.VideoRotationSchedule, rng *rand.Rand) int {
	n := len(s.VideoSequence)
	if n <= 1 {
		return s.CurrentIndex
	}
	if s.RotationType != models.RotationRandom {
		return (s.CurrentIndex + 1) % n
	}
	candidates := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != s.CurrentIndex {
			candidates = append(candidates, i)
		}
	}
	var pick int
	if rng != nil {
		pick = rng.Intn(len(candidates))
	} else {
		pick = rand.Intn(len(candidates))
	}
	return candidates[pick]
}

func atTime(day time.Time, hh, mm int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, time.UTC)
}

// isoWeekday maps time.Weekday (Sunday=0) onto the spec's 1-7 (Monday=1,
// Sunday=7) convention used by VideoRotationSchedule.DayOfWeek.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func parseTimeOfDay(tod *string, fallback string) (hh, mm int, ok bool) {
	s := fallback
	if tod != nil && *tod != "" {
		s = *tod
	}
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, false
	}
	return parsed.Hour(), parsed.Minute(), true
}

func clampDayOfMonth(year int, month time.Month, day int) int {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		return lastDay
	}
	return day
}

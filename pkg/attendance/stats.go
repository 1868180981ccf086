package attendance

import "time"

// WeekStats aggregates completed session durations for one Monday-anchored
// week. Index 0 is Monday.
type WeekStats struct {
	Start time.Time
	Hours [7]float64
}

// TotalHours sums the worked hours across the week.
func (w WeekStats) TotalHours() float64 {
	var total float64
	for _, h := range w.Hours {
		total += h
	}
	return total
}

// WeekOf returns the Monday midnight anchoring the week containing t.
func WeekOf(t time.Time) time.Time {
	day := dayOf(t)
	// Go weekdays start at Sunday; shift so Monday is day zero.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// ComputeWeekStats sums worked hours per weekday for sessions whose date
// falls inside the week starting at weekStart. Open-ended and orphan
// sessions contribute nothing: with no pair there is no duration to count.
func ComputeWeekStats(sessions []Session, weekStart time.Time) WeekStats {
	stats := WeekStats{Start: weekStart}
	weekEnd := weekStart.AddDate(0, 0, 7)
	for _, s := range sessions {
		if s.Date.Before(weekStart) || !s.Date.Before(weekEnd) {
			continue
		}
		if !s.Complete() {
			continue
		}
		idx := (int(s.Date.Weekday()) + 6) % 7
		stats.Hours[idx] += s.Duration().Hours()
	}
	return stats
}

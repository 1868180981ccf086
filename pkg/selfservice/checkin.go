package selfservice

import (
	"context"
	"fmt"
	"time"

	"github.com/amendsaccounting/erphr/pkg/attendance"
	"github.com/amendsaccounting/erphr/pkg/erpnext"
)

// CheckinOptions carries the optional device-position data for a check-in.
type CheckinOptions struct {
	Latitude  float64
	Longitude float64
	Location  string // reverse-geocoded label; coordinates used when empty
}

func (o CheckinOptions) label() string {
	if o.Location != "" {
		return o.Location
	}
	if o.Latitude != 0 || o.Longitude != 0 {
		return coordinateLabel(o.Latitude, o.Longitude)
	}
	return ""
}

// CheckIn records an IN event for the current employee, stamped with the
// configured device and whatever position the caller has.
func (s *Service) CheckIn(ctx context.Context, opts CheckinOptions) (*erpnext.CheckinEvent, error) {
	return s.recordCheckin(ctx, attendance.LogIn, opts)
}

// CheckOut records an OUT event.
func (s *Service) CheckOut(ctx context.Context, opts CheckinOptions) (*erpnext.CheckinEvent, error) {
	return s.recordCheckin(ctx, attendance.LogOut, opts)
}

func (s *Service) recordCheckin(ctx context.Context, logType string, opts CheckinOptions) (*erpnext.CheckinEvent, error) {
	employee, err := s.EmployeeID(ctx)
	if err != nil {
		return nil, err
	}

	doc := map[string]any{
		"employee": employee,
		"log_type": logType,
		"time":     erpDatetime(time.Now()),
	}
	if s.deviceID != "" {
		doc["device_id"] = s.deviceID
	}
	if opts.Latitude != 0 || opts.Longitude != 0 {
		doc["latitude"] = opts.Latitude
		doc["longitude"] = opts.Longitude
	}
	if label := opts.label(); label != "" {
		doc["custom_location"] = label
	}

	var created erpnext.CheckinEvent
	if err := s.erp.Insert(ctx, erpnext.DoctypeCheckin, doc, &created); err != nil {
		// Some sites whitelist the RPC insert but not the resource one.
		doc["doctype"] = erpnext.DoctypeCheckin
		if methodErr := s.erp.MethodInsert(ctx, doc, &created); methodErr != nil {
			return nil, fmt.Errorf("recording %s: %w", logType, err)
		}
	}

	s.logger.Debug("recorded checkin", "employee", employee, "log_type", logType, "name", created.Name)
	return &created, nil
}

// RecentEvents fetches the raw check-in rows for the last days.
func (s *Service) RecentEvents(ctx context.Context, days int) ([]erpnext.CheckinEvent, error) {
	if s.mockHistory {
		return mockCheckinEvents(), nil
	}

	employee, err := s.EmployeeID(ctx)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -days)
	rows, err := s.erp.ListWithFallback(ctx, erpnext.DoctypeCheckin, erpnext.ListOptions{
		Fields: []string{"name", "employee", "log_type", "time", "device_id", "latitude", "longitude", "custom_location"},
		Filters: []erpnext.Filter{
			erpnext.Eq("employee", employee),
			{Field: "time", Op: ">=", Value: erpDatetime(since)},
		},
		OrderBy: "time asc",
		Limit:   500,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching check-ins: %w", err)
	}

	events, err := erpnext.Rows[erpnext.CheckinEvent](rows)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fetched check-in events", "employee", employee, "count", len(events))
	return events, nil
}

// RecentSessions pairs the recent raw events into day sessions, oldest
// first.
func (s *Service) RecentSessions(ctx context.Context, days int) ([]attendance.Session, error) {
	events, err := s.RecentEvents(ctx, days)
	if err != nil {
		return nil, err
	}
	return attendance.Pair(toAttendanceEvents(events)), nil
}

// LastLogType reports whether the employee's latest event was an IN, used
// for the checked-in indicator. The raw event with the latest parsed
// timestamp decides: sessions pair per calendar day, so an overnight OUT
// lands after its open IN in session order but before it here. Degrades to
// "unknown" (empty) on error.
func (s *Service) LastLogType(ctx context.Context) string {
	events, err := s.RecentEvents(ctx, 2)
	if err != nil || len(events) == 0 {
		s.logger.Debug("could not determine last log type", "error", err)
		return ""
	}

	var latest time.Time
	logType := ""
	for _, ev := range events {
		ts, ok := attendance.ParseTimestamp(ev.Time)
		if !ok {
			continue
		}
		if logType == "" || ts.After(latest) {
			latest = ts
			logType = ev.LogType
		}
	}
	return logType
}

// WeekSummary is the independent facet pair shown on the attendance view.
// Each half degrades alone: a failing stats fetch leaves the history
// intact and vice versa.
type WeekSummary struct {
	Stats    attendance.WeekStats
	Sessions []attendance.Session
}

// WeekSummary fetches this week's stats and the recent session history as
// isolated fetches.
func (s *Service) WeekSummary(ctx context.Context, historyDays int) WeekSummary {
	var summary WeekSummary

	weekStart := attendance.WeekOf(time.Now())
	if sessions, err := s.RecentSessions(ctx, 8); err != nil {
		s.logger.Debug("week stats fetch failed", "error", err)
	} else {
		summary.Stats = attendance.ComputeWeekStats(sessions, weekStart)
	}
	summary.Stats.Start = weekStart

	if sessions, err := s.RecentSessions(ctx, historyDays); err != nil {
		s.logger.Debug("history fetch failed", "error", err)
	} else {
		summary.Sessions = sessions
	}

	return summary
}

func toAttendanceEvents(events []erpnext.CheckinEvent) []attendance.Event {
	out := make([]attendance.Event, 0, len(events))
	for _, ev := range events {
		location := ev.Location
		if location == "" && (ev.Latitude != 0 || ev.Longitude != 0) {
			location = coordinateLabel(ev.Latitude, ev.Longitude)
		}
		out = append(out, attendance.Event{
			Employee:  ev.Employee,
			LogType:   ev.LogType,
			Timestamp: ev.Time,
			Location:  location,
		})
	}
	return out
}

// mockCheckinEvents backs the demo flag with a plausible short history.
func mockCheckinEvents() []erpnext.CheckinEvent {
	day := func(offset int, clock string) string {
		return time.Now().AddDate(0, 0, -offset).Format("2006-01-02") + " " + clock
	}
	return []erpnext.CheckinEvent{
		{Name: "MOCK-0001", LogType: "IN", Time: day(2, "08:58:12"), Location: "Main Office"},
		{Name: "MOCK-0002", LogType: "OUT", Time: day(2, "17:31:40"), Location: "Main Office"},
		{Name: "MOCK-0003", LogType: "IN", Time: day(1, "09:02:05"), Location: "Main Office"},
		{Name: "MOCK-0004", LogType: "OUT", Time: day(1, "18:04:59"), Location: "Main Office"},
		{Name: "MOCK-0005", LogType: "IN", Time: day(0, "08:55:21"), Location: "Main Office"},
	}
}

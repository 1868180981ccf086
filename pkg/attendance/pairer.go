// Package attendance reshapes raw ERP check-in rows into day sessions.
package attendance

import (
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Log types recorded by the ERP for an Employee Checkin row.
const (
	LogIn  = "IN"
	LogOut = "OUT"
)

// Event is one raw check-in or check-out row as fetched from the ERP.
// Timestamp stays a string here: upstream rows are not guaranteed
// well-formed and unparseable ones are dropped during pairing.
type Event struct {
	Employee  string
	LogType   string
	Timestamp string
	Location  string
}

// Session is a derived pairing of one check-in and (optionally) one
// check-out on a single calendar day. It exists only for display and is
// rebuilt on every fetch.
type Session struct {
	Date        time.Time
	In          *time.Time
	Out         *time.Time
	LocationIn  string
	LocationOut string
}

// Complete reports whether the session has both an entry and an exit.
func (s Session) Complete() bool {
	return s.In != nil && s.Out != nil
}

// Duration returns the worked time of a completed session, zero otherwise.
func (s Session) Duration() time.Duration {
	if !s.Complete() {
		return 0
	}
	return s.Out.Sub(*s.In)
}

// ERP timestamps arrive as "2006-01-02 15:04:05", sometimes with a T
// separator or fractional seconds depending on site version.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000000",
	time.RFC3339,
}

var looseTimestampRegex = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})\D+(\d{1,2}):(\d{2})(?::(\d{2}))?`)

// ParseTimestamp parses an ERP timestamp leniently. Timestamps are local
// and timezone-less; the regex fallback salvages rows whose separator or
// precision does not match any known layout.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}

	m := looseTimestampRegex.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	atoi := func(v string) int {
		n, _ := strconv.Atoi(v)
		return n
	}
	sec := 0
	if m[6] != "" {
		sec = atoi(m[6])
	}
	t := time.Date(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]), atoi(m[4]), atoi(m[5]), sec, 0, time.Local)
	if t.Year() != atoi(m[1]) || int(t.Month()) != atoi(m[2]) || t.Day() != atoi(m[3]) {
		// Date components overflowed (e.g. month 13); treat as noise.
		return time.Time{}, false
	}
	return t, true
}

type parsedEvent struct {
	at       time.Time
	logType  string
	location string
}

// Pair turns raw check-in/out events into an ordered list of day sessions.
//
// Events need not be pre-sorted; rows with unparseable timestamps are
// dropped. A single "open IN" slot is carried through a left-to-right scan:
// a second IN closes the previous one as an open-ended session (newer IN
// wins the slot, nothing is discarded), and an OUT pairs with the open IN
// only when both fall on the same calendar day and the IN precedes it —
// otherwise the OUT is emitted alone. Sessions never span midnight.
//
// Output is ordered by the event that closed (or solely formed) each
// session; callers wanting most-recent-first must reverse.
func Pair(events []Event) []Session {
	parsed := make([]parsedEvent, 0, len(events))
	for _, ev := range events {
		at, ok := ParseTimestamp(ev.Timestamp)
		if !ok {
			continue
		}
		parsed = append(parsed, parsedEvent{at: at, logType: ev.LogType, location: ev.Location})
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].at.Before(parsed[j].at)
	})

	var sessions []Session
	var open *parsedEvent

	emitOpen := func() {
		in := open.at
		sessions = append(sessions, Session{
			Date:       dayOf(in),
			In:         &in,
			LocationIn: open.location,
		})
		open = nil
	}

	for i := range parsed {
		ev := parsed[i]
		switch ev.logType {
		case LogIn:
			if open != nil {
				emitOpen()
			}
			open = &parsed[i]
		case LogOut:
			if open != nil && sameDay(open.at, ev.at) && open.at.Before(ev.at) {
				in, out := open.at, ev.at
				sessions = append(sessions, Session{
					Date:        dayOf(in),
					In:          &in,
					Out:         &out,
					LocationIn:  open.location,
					LocationOut: ev.location,
				})
				open = nil
			} else {
				// Orphan OUT: no open IN, day mismatch, or ordering
				// violation. Emit it rather than lose the event.
				out := ev.at
				sessions = append(sessions, Session{
					Date:        dayOf(out),
					Out:         &out,
					LocationOut: ev.location,
				})
			}
		default:
			// Unknown log type, ignore the row.
		}
	}

	if open != nil {
		emitOpen()
	}

	return sessions
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

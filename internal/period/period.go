// Package period implements calendar-aware period arithmetic shared by
// budgets and recurring transactions: day-clamped month stepping, window
// resolution from an anchor date, and trend bucket keys.
package period

import (
	"fmt"
	"time"
)

// Period is the length of a budget window or recurrence interval.
type Period string

const (
	Daily     Period = "daily"
	Weekly    Period = "weekly"
	Monthly   Period = "monthly"
	Quarterly Period = "quarterly"
	Yearly    Period = "yearly"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case Daily, Weekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// months returns the month span of month-based periods, 0 for day-based ones.
func (p Period) months() int {
	switch p {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Yearly:
		return 12
	}
	return 0
}

// days returns the day span of day-based periods, 0 for month-based ones.
func (p Period) days() int {
	switch p {
	case Daily:
		return 1
	case Weekly:
		return 7
	}
	return 0
}

// Date truncates t to a calendar date at midnight UTC. The engine treats all
// transaction and window boundaries as whole dates.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days in the month containing year/month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonthsClamped advances t by the given number of calendar months,
// clamping the day of month to the target month's last valid day when the
// anchor day does not exist there (Jan 31 -> Feb 28/29). anchorDay is the
// day-of-month of the original schedule anchor; passing t.Day() keeps the
// current day.
func AddMonthsClamped(t time.Time, months, anchorDay int) time.Time {
	y, m, _ := t.Date()
	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	day := anchorDay
	if max := DaysInMonth(target.Year(), target.Month()); day > max {
		day = max
	}
	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, time.UTC)
}

// Step returns the date n periods after anchor. Month-based periods always
// step from the anchor, not from a previously clamped result, so a schedule
// anchored on the 31st does not drift to the 28th after February.
func Step(anchor time.Time, p Period, n int) time.Time {
	anchor = Date(anchor)
	if n == 0 {
		return anchor
	}
	if d := p.days(); d != 0 {
		return anchor.AddDate(0, 0, d*n)
	}
	return AddMonthsClamped(anchor, p.months()*n, anchor.Day())
}

// Window is a half-open date range [Start, End): Start is the first day
// covered, End the first day of the following window.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the date of t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	d := Date(t)
	return !d.Before(w.Start) && d.Before(w.End)
}

// CurrentWindow resolves the window containing ref by advancing from start
// one period at a time. It returns ok=false when ref precedes start or when
// endCap (a budget's end date, inclusive) falls before the window would
// begin. A window that straddles endCap is truncated to end the day after
// endCap so the cap date itself stays covered.
func CurrentWindow(start time.Time, p Period, ref time.Time, endCap *time.Time) (Window, bool) {
	start = Date(start)
	refDate := Date(ref)
	if refDate.Before(start) {
		return Window{}, false
	}
	if endCap != nil && refDate.After(Date(*endCap)) {
		return Window{}, false
	}

	n := 0
	for {
		w := Window{Start: Step(start, p, n), End: Step(start, p, n+1)}
		if endCap != nil {
			cap := Date(*endCap)
			if w.Start.After(cap) {
				return Window{}, false
			}
			if !w.End.After(cap) {
				// window entirely before the cap, nothing to adjust
			} else {
				w.End = cap.AddDate(0, 0, 1)
			}
		}
		if w.Contains(refDate) {
			return w, true
		}
		if !w.End.After(refDate) {
			n++
			continue
		}
		return Window{}, false
	}
}

// BucketKey formats the trend-series bucket that t belongs to:
// "2006-01-02" for daily, ISO "2006-W01" for weekly, "2006-01" for monthly.
func BucketKey(t time.Time, p Period) string {
	switch p {
	case Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Monthly:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// Package period provides date ranges, the half-open overlap predicate and
// the day counting used by capacity and conflict checks.
package period

import (
	"regexp"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain"
)

const day = 24 * time.Hour

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Period is a booked date range.
type Period struct {
	Start     time.Time `json:"start_date"`
	End       time.Time `json:"end_date"`
	StartTime string    `json:"start_time,omitempty"` // "HH:MM"
	EndTime   string    `json:"end_time,omitempty"`   // "HH:MM"
	Timezone  string    `json:"timezone,omitempty"`
	AllDay    bool      `json:"all_day"`
}

// New returns an all-day period.
func New(start, end time.Time) Period {
	return Period{Start: start, End: end, AllDay: true}
}

// Validate checks the period invariants.
func (p Period) Validate() error {
	var fields []domain.FieldError
	if p.Start.IsZero() {
		fields = append(fields, domain.FieldError{Field: "start_date", Message: "is required"})
	}
	if p.End.IsZero() {
		fields = append(fields, domain.FieldError{Field: "end_date", Message: "is required"})
	}
	if len(fields) == 0 && p.End.Before(p.Start) {
		fields = append(fields, domain.FieldError{Field: "end_date", Message: "must not be before start_date"})
	}
	if p.StartTime != "" && !clockPattern.MatchString(p.StartTime) {
		fields = append(fields, domain.FieldError{Field: "start_time", Message: "must be HH:MM"})
	}
	if p.EndTime != "" && !clockPattern.MatchString(p.EndTime) {
		fields = append(fields, domain.FieldError{Field: "end_time", Message: "must be HH:MM"})
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			fields = append(fields, domain.FieldError{Field: "timezone", Message: "is not a known IANA zone"})
		}
	}
	if len(fields) > 0 {
		return domain.NewValidation("invalid period", fields...)
	}
	return nil
}

// Overlaps reports whether two periods overlap. The comparison is half-open:
// a period ending exactly when the other starts does not overlap it.
func Overlaps(a, b Period) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Contains reports whether t falls within the period, bounds included.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Intersect returns the intersection of two periods by calendar day. The
// second result is false when they share no day.
func Intersect(a, b Period) (Period, bool) {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	if Truncate(end).Before(Truncate(start)) {
		return Period{}, false
	}
	return New(start, end), true
}

// Truncate drops the clock part of t, keeping its calendar date in UTC.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// InclusiveDays returns days(end) - days(start) + 1.
func InclusiveDays(start, end time.Time) int {
	return int(Truncate(end).Sub(Truncate(start))/day) + 1
}

// WorkingDays counts Monday to Friday days in [start, end] inclusive. No
// holiday calendar is consulted.
func WorkingDays(start, end time.Time) int {
	s, e := Truncate(start), Truncate(end)
	if e.Before(s) {
		return 0
	}
	total := InclusiveDays(s, e)
	weeks := total / 7
	count := weeks * 5
	for d := s.Add(time.Duration(weeks*7) * day); !d.After(e); d = d.Add(day) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}

// Package dates resolves relative and natural-language date phrases to
// canonical ISO calendar dates.
package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical calendar date layout.
const Layout = "2006-01-02"

// ErrUnparseable is returned when a phrase matches no recognized pattern.
var ErrUnparseable = errors.New("dates: unparseable date phrase")

// ErrBaseDate marks a base date that is not YYYY-MM-DD. It is reported
// together with ErrUnparseable.
var ErrBaseDate = errors.New("dates: invalid base date")

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"sunday": time.Sunday,
}

var (
	isoRe      = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	monthDayRe = regexp.MustCompile(`\b([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\s*,?\s*(\d{4})\b`)
	dayMonthRe = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?([a-z]+)\.?\s*,?\s*(\d{4})\b`)
	numericRe  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	weekdayRe  = regexp.MustCompile(`\b(this|next|last)\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	offsetRe   = regexp.MustCompile(`^(?:(\d+)\s+days?\s+ago|in\s+(\d+)\s+days?)$`)
)

// Resolver resolves phrases relative to a default zone and an optional pinned
// base date. It holds no mutable state.
type Resolver struct {
	// Location is the default zone; nil means UTC.
	Location *time.Location
	// BaseDate pins "today" (YYYY-MM-DD) for deterministic resolution.
	BaseDate string
	// Now overrides the wall clock; nil means time.Now.
	Now func() time.Time
}

// Resolve converts phrase to YYYY-MM-DD. An empty timezone or baseDate falls
// back to the resolver defaults; an unknown timezone also falls back.
func (r Resolver) Resolve(phrase, timezone, baseDate string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(phrase))
	if s == "" {
		return "", fmt.Errorf("%w: empty phrase", ErrUnparseable)
	}
	today, err := r.today(timezone, baseDate)
	if err != nil {
		return "", err
	}

	if m := isoRe.FindStringSubmatch(s); m != nil {
		return civil(m[1], m[2], m[3], phrase)
	}

	switch s {
	case "today", "todays date", "today's date":
		return format(today, phrase)
	case "yesterday":
		return format(today.AddDate(0, 0, -1), phrase)
	case "tomorrow":
		return format(today.AddDate(0, 0, 1), phrase)
	}

	if m := offsetRe.FindStringSubmatch(s); m != nil {
		digits, sign := m[2], 1
		if m[1] != "" {
			digits, sign = m[1], -1
		}
		n, err := strconv.Atoi(digits)
		if err != nil || n > MaxOffsetDays {
			return "", fmt.Errorf("%w: %q is too far from today", ErrUnparseable, phrase)
		}
		return format(today.AddDate(0, 0, sign*n), phrase)
	}

	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		if mon, ok := months[m[1]]; ok {
			return civil(m[3], strconv.Itoa(int(mon)), m[2], phrase)
		}
	}
	if m := dayMonthRe.FindStringSubmatch(s); m != nil {
		if mon, ok := months[m[2]]; ok {
			return civil(m[3], strconv.Itoa(int(mon)), m[1], phrase)
		}
	}
	if m := numericRe.FindStringSubmatch(s); m != nil {
		return civil(m[3], m[1], m[2], phrase)
	}
	if m := weekdayRe.FindStringSubmatch(s); m != nil {
		target := weekdays[m[2]]
		offset := (int(target) - int(today.Weekday()) + 7) % 7
		switch m[1] {
		case "next":
			offset += 7
		case "last":
			offset -= 7
		}
		return format(today.AddDate(0, 0, offset), phrase)
	}
	return "", fmt.Errorf("%w: %q", ErrUnparseable, phrase)
}

// MaxOffsetDays bounds "N days ago" and "in N days".
const MaxOffsetDays = 36600

// format renders t, rejecting years that have no four-digit form.
func format(t time.Time, phrase string) (string, error) {
	if y := t.Year(); y < 1 || y > 9999 {
		return "", fmt.Errorf("%w: %q falls outside years 0001-9999", ErrUnparseable, phrase)
	}
	return t.Format(Layout), nil
}

// Canonical validates an ISO date and returns it unchanged.
func Canonical(s string) (string, error) {
	m := isoRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrUnparseable, s)
	}
	return civil(m[1], m[2], m[3], s)
}

func (r Resolver) today(timezone, baseDate string) (time.Time, error) {
	base := strings.TrimSpace(baseDate)
	if base == "" {
		base = strings.TrimSpace(r.BaseDate)
	}
	if base != "" {
		t, err := time.Parse(Layout, base)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %w %q", ErrUnparseable, ErrBaseDate, base)
		}
		return t, nil
	}
	loc := r.Location
	if tz := strings.TrimSpace(timezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	n := now().In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC), nil
}

func civil(year, month, day, phrase string) (string, error) {
	y, errY := strconv.Atoi(year)
	m, errM := strconv.Atoi(month)
	d, errD := strconv.Atoi(day)
	if errY != nil || errM != nil || errD != nil {
		return "", fmt.Errorf("%w: %q", ErrUnparseable, phrase)
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range values; reject those instead.
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", fmt.Errorf("%w: %q is not a calendar date", ErrUnparseable, phrase)
	}
	return format(t, phrase)
}

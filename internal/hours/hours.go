// Package hours classifies worked hours against the configured full-day
// threshold and merges payroll notes.
package hours

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultFullDay is used when no threshold is configured.
var DefaultFullDay = decimal.NewFromInt(8)

// Kind tags an annotation.
type Kind string

const (
	KindNone     Kind = ""
	KindPartial  Kind = "partial"
	KindOvertime Kind = "overtime"
)

// Annotation is the derived partial/overtime marker for a day.
// The zero value means the day matched the threshold exactly.
type Annotation struct {
	Kind    Kind
	Delta   decimal.Decimal // always non-negative
	FullDay decimal.Decimal
}

// IsNone reports whether no annotation applies.
func (a Annotation) IsNone() bool { return a.Kind == KindNone }

// String renders the standardized note text, or "" for none.
func (a Annotation) String() string {
	switch a.Kind {
	case KindPartial:
		return fmt.Sprintf("Partial day — %sh short of %sh", a.Delta.String(), a.FullDay.String())
	case KindOvertime:
		return fmt.Sprintf("Overtime — +%sh over %sh", a.Delta.String(), a.FullDay.String())
	default:
		return ""
	}
}

// Classify compares hours with fullDay. A non-positive fullDay falls back to
// DefaultFullDay.
func Classify(worked, fullDay decimal.Decimal) Annotation {
	if !fullDay.IsPositive() {
		fullDay = DefaultFullDay
	}
	switch worked.Cmp(fullDay) {
	case -1:
		return Annotation{Kind: KindPartial, Delta: fullDay.Sub(worked), FullDay: fullDay}
	case 1:
		return Annotation{Kind: KindOvertime, Delta: worked.Sub(fullDay), FullDay: fullDay}
	default:
		return Annotation{FullDay: fullDay}
	}
}

// MergeNotes joins the non-empty notes with " | ", dropping duplicates while
// keeping first-seen order. Each argument may itself be a merged note.
func MergeNotes(notes ...string) string {
	seen := make(map[string]struct{}, len(notes))
	parts := make([]string, 0, len(notes))
	for _, n := range notes {
		for _, p := range strings.Split(n, " | ") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " | ")
}

package tax

import (
	"fmt"
	"time"

	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
)

// Period is one filing period: an inclusive date range.
type Period struct {
	Start time.Time
	End   time.Time
}

// PreviousPeriod derives the most recent completed period boundary relative
// to now: the prior calendar month, quarter or year. Boundaries are midnight
// UTC on the first day and midnight on the last day of the period.
func PreviousPeriod(now time.Time, periodType string) (Period, error) {
	now = now.UTC()
	year, month, _ := now.Date()

	switch periodType {
	case models.PeriodMonthly:
		start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		end := start.AddDate(0, 1, -1)
		return Period{Start: start, End: end}, nil

	case models.PeriodQuarterly:
		currentQuarterStart := time.Date(year, quarterStartMonth(month), 1, 0, 0, 0, 0, time.UTC)
		start := currentQuarterStart.AddDate(0, -3, 0)
		end := currentQuarterStart.AddDate(0, 0, -1)
		return Period{Start: start, End: end}, nil

	case models.PeriodAnnually:
		start := time.Date(year-1, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(year-1, time.December, 31, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: end}, nil
	}

	return Period{}, fmt.Errorf("%w: unknown period type %q", store.ErrInvalidInput, periodType)
}

// CurrentQuarter returns the calendar quarter containing now. Used when an
// invoice is folded into a filing at mark-as-paid time.
func CurrentQuarter(now time.Time) Period {
	now = now.UTC()
	year, month, _ := now.Date()
	start := time.Date(year, quarterStartMonth(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, -1)
	return Period{Start: start, End: end}
}

// Year returns the full calendar year period for annual reports.
func Year(year int) Period {
	return Period{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Overlaps reports whether two periods share any day.
func (p Period) Overlaps(other Period) bool {
	return !p.Start.After(other.End) && !other.Start.After(p.End)
}

func quarterStartMonth(m time.Month) time.Month {
	return time.Month((int(m)-1)/3*3 + 1)
}

package core

import (
	"fmt"
	"time"
)

// BillingCycle computes the current statement window for a card whose cycle
// resets on statementDay, as seen from asOf. The window runs from
// statementDay of the previous calendar month to statementDay of asOf's
// month, inclusive on both ends. January wraps to December of the previous
// year.
//
// Statement days 29–31 are clamped to the last valid day of whichever month
// they land in, so a day-31 card gets Feb 28 (or 29) as an anchor rather
// than an invalid date.
func BillingCycle(asOf time.Time, statementDay int) (start, end Date, err error) {
	if statementDay < 1 || statementDay > 31 {
		return Date{}, Date{}, fmt.Errorf("%w: %d", ErrInvalidStatementDay, statementDay)
	}

	endYear, endMonth := asOf.Year(), int(asOf.Month())
	startYear, startMonth := endYear, endMonth-1
	if startMonth < 1 {
		startMonth = 12
		startYear--
	}

	start = NewDate(startYear, startMonth, clampDay(startYear, startMonth, statementDay))
	end = NewDate(endYear, endMonth, clampDay(endYear, endMonth, statementDay))
	return start, end, nil
}

// clampDay limits day to the number of days in the given month.
func clampDay(year, month, day int) int {
	if last := daysIn(year, month); day > last {
		return last
	}
	return day
}

// daysIn returns the number of days in a month; day 0 of the next month
// normalizes to the last day of this one.
func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

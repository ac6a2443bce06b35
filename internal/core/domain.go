package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	GroupByYear        GroupBy = "year"
	GroupByMonthOfYear GroupBy = "month_of_year"
	GroupByDayOfMonth  GroupBy = "day_of_month"
	GroupByMethod      GroupBy = "method"
	GroupBySource      GroupBy = "source"
)

type (
	// GroupBy selects the dimension live spend is partitioned on.
	GroupBy string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is one row of the ledger. Rows with IsDeleted or IsRepayed set
	// are excluded from every aggregate.
	Expense struct {
		ID        int64
		Date      Date
		Amount    Money
		MethodID  int64
		SourceID  int64
		IsDeleted bool
		IsRepayed bool
	}

	// PaymentMethod categorizes how a payment was made (card, cash, transfer).
	PaymentMethod struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	// PaymentSource categorizes which account or instrument was used.
	PaymentSource struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	// PaymentCard anchors the billing cycle of a credit-card source.
	PaymentCard struct {
		SourceID     int64  `json:"source_id"`
		Name         string `json:"name"`
		StatementDay int    `json:"statement_day"`
		MethodID     int64  `json:"method_id"`
		IsActive     bool   `json:"is_active"`
	}

	// Filter narrows the aggregation population. Zero fields are unset.
	Filter struct {
		Year     int
		Month    int
		MethodID int64
		SourceID int64
	}

	// SpendRow is one aggregated group: a numeric key (month number, day of
	// month, year, or reference id), a display label, and the summed amount.
	// Label is empty when the reference row for a method/source id is
	// missing; the amount is still counted.
	SpendRow struct {
		Key        int64  `json:"key"`
		Label      string `json:"label"`
		TotalCents int64  `json:"total_cents"`
	}

	// CardStatement is the current billing-cycle balance for one card.
	CardStatement struct {
		SourceID     int64  `json:"source_id"`
		CardName     string `json:"card_name"`
		SourceName   string `json:"source_name"`
		StatementDay int    `json:"statement_day"`
		CycleStart   Date   `json:"cycle_start"`
		CycleEnd     Date   `json:"cycle_end"`
		BalanceCents int64  `json:"balance_cents"`
	}
)

var (
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrBackendUnavailable  = errors.New("backend unavailable")
	ErrNotFound            = errors.New("not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidFilter       = errors.New("invalid filter")
	ErrInvalidGroupBy      = errors.New("invalid group dimension")
	ErrInvalidStatementDay = errors.New("statement day out of range")
)

// ParseGroupBy maps a request string onto a known group dimension.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.TrimSpace(s)); g {
	case GroupByYear, GroupByMonthOfYear, GroupByDayOfMonth, GroupByMethod, GroupBySource:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGroupBy, s)
}

// Validate checks field ranges and the month/year coupling: a month filter
// without a year would aggregate the same month across all years, which no
// caller needs and is almost always a request-building bug.
func (f Filter) Validate() error {
	if f.Month != 0 {
		if f.Month < 1 || f.Month > 12 {
			return fmt.Errorf("%w: month %d", ErrInvalidFilter, f.Month)
		}
		if f.Year == 0 {
			return fmt.Errorf("%w: month filter requires a year", ErrInvalidFilter)
		}
	}
	if f.Year < 0 || f.MethodID < 0 || f.SourceID < 0 {
		return ErrInvalidFilter
	}
	return nil
}

// MonthName returns the English month name for a 1-based month number.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return time.Month(m).String()
}

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD, the ledger's storage format.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MarshalJSON renders the date without a time component.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts the same YYYY-MM-DD form MarshalJSON produces.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the 1-based month number.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the calendar year.
func (d Date) Year() int {
	return d.Time.Year()
}

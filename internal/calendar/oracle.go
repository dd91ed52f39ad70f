package calendar

import (
	"errors"
	"time"

	"earnrev/internal/domain"
)

// ErrOutOfRange is returned by an Oracle when the queried date falls
// outside its covered historical range. The Adapter degrades to a
// weekday-only approximation instead of propagating it.
var ErrOutOfRange = errors.New("date outside calendar coverage")

// Oracle answers exchange-session questions for a covered date range.
// It is a capability interface so tests can substitute a deterministic
// in-memory schedule for the production NYSE calendar.
type Oracle interface {
	IsTradingDay(d time.Time) (bool, error)
	NextSession(d time.Time) (time.Time, error)
	PrevSession(d time.Time) (time.Time, error)
}

// nyseHolidays lists NYSE observed full-day closures for 2020-2025.
// Early closes are still full sessions for daily-bar purposes.
var nyseHolidays = holidaySet(
	// 2020
	"2020-01-01", "2020-01-20", "2020-02-17", "2020-04-10", "2020-05-25",
	"2020-07-03", "2020-09-07", "2020-11-26", "2020-12-25",
	// 2021
	"2021-01-01", "2021-01-18", "2021-02-15", "2021-04-02", "2021-05-31",
	"2021-07-05", "2021-09-06", "2021-11-25", "2021-12-24",
	// 2022
	"2022-01-17", "2022-02-21", "2022-04-15", "2022-05-30", "2022-06-20",
	"2022-07-04", "2022-09-05", "2022-11-24", "2022-12-26",
	// 2023
	"2023-01-02", "2023-01-16", "2023-02-20", "2023-04-07", "2023-05-29",
	"2023-06-19", "2023-07-04", "2023-09-04", "2023-11-23", "2023-12-25",
	// 2024
	"2024-01-01", "2024-01-15", "2024-02-19", "2024-03-29", "2024-05-27",
	"2024-06-19", "2024-07-04", "2024-09-02", "2024-11-28", "2024-12-25",
	// 2025
	"2025-01-01", "2025-01-20", "2025-02-17", "2025-04-18", "2025-05-26",
	"2025-06-19", "2025-07-04", "2025-09-01", "2025-11-27", "2025-12-25",
)

func holidaySet(dates ...string) map[time.Time]struct{} {
	set := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		set[domain.MustParseDate(d)] = struct{}{}
	}
	return set
}

// NYSEOracle is the production trading-day oracle: weekday schedule
// minus the observed holiday set, covering 2020-01-01 through
// 2025-12-31. Queries outside that range return ErrOutOfRange.
type NYSEOracle struct {
	holidays map[time.Time]struct{}
	from     time.Time
	to       time.Time
}

// NewNYSEOracle returns the NYSE oracle for the covered range.
func NewNYSEOracle() *NYSEOracle {
	return &NYSEOracle{
		holidays: nyseHolidays,
		from:     domain.MustParseDate("2020-01-01"),
		to:       domain.MustParseDate("2025-12-31"),
	}
}

func (o *NYSEOracle) covered(d time.Time) bool {
	return !d.Before(o.from) && !d.After(o.to)
}

func (o *NYSEOracle) IsTradingDay(d time.Time) (bool, error) {
	d = domain.Date(d)
	if !o.covered(d) {
		return false, ErrOutOfRange
	}
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false, nil
	}
	if _, closed := o.holidays[d]; closed {
		return false, nil
	}
	return true, nil
}

func (o *NYSEOracle) NextSession(d time.Time) (time.Time, error) {
	return o.step(d, 1)
}

func (o *NYSEOracle) PrevSession(d time.Time) (time.Time, error) {
	return o.step(d, -1)
}

func (o *NYSEOracle) step(d time.Time, dir int) (time.Time, error) {
	cur := domain.Date(d)
	for {
		cur = cur.AddDate(0, 0, dir)
		trading, err := o.IsTradingDay(cur)
		if err != nil {
			return time.Time{}, err
		}
		if trading {
			return cur, nil
		}
	}
}

// WeekdayOracle is a holiday-free Monday-Friday schedule with no range
// limit. It backs the Adapter's degraded mode and serves as the
// deterministic calendar in tests.
type WeekdayOracle struct{}

func (WeekdayOracle) IsTradingDay(d time.Time) (bool, error) {
	wd := domain.Date(d).Weekday()
	return wd != time.Saturday && wd != time.Sunday, nil
}

func (o WeekdayOracle) NextSession(d time.Time) (time.Time, error) {
	return o.step(d, 1), nil
}

func (o WeekdayOracle) PrevSession(d time.Time) (time.Time, error) {
	return o.step(d, -1), nil
}

func (WeekdayOracle) step(d time.Time, dir int) time.Time {
	cur := domain.Date(d)
	for {
		cur = cur.AddDate(0, 0, dir)
		if wd := cur.Weekday(); wd != time.Saturday && wd != time.Sunday {
			return cur
		}
	}
}

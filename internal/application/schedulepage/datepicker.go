package schedulepage

import (
	"time"

	"ministry/internal/domain/schedule"
)

// DefaultHorizonDays is how far ahead visits can be booked.
const DefaultHorizonDays = 90

// DayCell is one square of the month grid.
type DayCell struct {
	Date       schedule.Date
	InMonth    bool
	Selectable bool
	Selected   bool
	Today      bool
}

// DatePicker is a month grid of weeks starting on Sunday.
type DatePicker struct {
	Month schedule.Date // first day of the shown month
	Label string        // e.g. "November 2026"
	Prev  schedule.Date // first day of the previous month, zero when nothing there is bookable
	Next  schedule.Date // first day of the next month, zero when nothing there is bookable
	Weeks [][]DayCell
}

// Bookable reports whether d lies within [today, today+horizonDays].
func Bookable(d, today schedule.Date, horizonDays int) bool {
	if d.IsZero() || d.Before(today) {
		return false
	}
	return !today.AddDays(horizonDays).Before(d)
}

// BuildDatePicker lays out the month containing month.
// PRE: month and today are non-zero
// POST: Weeks covers every day of the month; only bookable days are Selectable
func BuildDatePicker(month, selected, today schedule.Date, horizonDays int) DatePicker {
	first := schedule.Date{Year: month.Year, Month: month.Month, Day: 1}
	firstTime := first.In(time.UTC)
	nextMonth := schedule.DateOf(firstTime.AddDate(0, 1, 0))
	prevMonth := schedule.DateOf(firstTime.AddDate(0, -1, 0))
	lastBookable := today.AddDays(horizonDays)

	p := DatePicker{
		Month: first,
		Label: firstTime.Format("January 2006"),
	}
	// The previous month is reachable when it ends on or after today.
	if !first.AddDays(-1).Before(today) {
		p.Prev = prevMonth
	}
	if !lastBookable.Before(nextMonth) {
		p.Next = nextMonth
	}

	cursor := first.AddDays(-int(firstTime.Weekday()))
	for cursor.Before(nextMonth) {
		week := make([]DayCell, 7)
		for i := range week {
			week[i] = DayCell{
				Date:       cursor,
				InMonth:    cursor.Month == first.Month && cursor.Year == first.Year,
				Selectable: Bookable(cursor, today, horizonDays),
				Selected:   cursor == selected,
				Today:      cursor == today,
			}
			cursor = cursor.AddDays(1)
		}
		p.Weeks = append(p.Weeks, week)
	}
	return p
}

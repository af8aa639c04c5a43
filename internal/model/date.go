package model

import (
	"time"

	"gorm.io/datatypes"
)

// DateLayout is the calendar date format used in commands, JSON and markers.
const DateLayout = "2006-01-02"

// DateOf returns the calendar day of t (in t's location) as UTC midnight.
func DateOf(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(raw string) (datatypes.Date, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return datatypes.Date{}, err
	}
	return DateOf(t), nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(d datatypes.Date) string {
	return time.Time(d).Format(DateLayout)
}

// ISOWeekday maps a date to 0 = Monday ... 6 = Sunday.
func ISOWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

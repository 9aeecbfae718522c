package models

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates, eg "2000-04-20"
const DateLayout = "2006-01-02"

// MaxDiaryDate bounds ReadDiary. Requests for later dates are rejected with
// ErrInvalidDate rather than returning an empty list.
var MaxDiaryDate = time.Date(3050, time.January, 1, 0, 0, 0, 0, time.UTC)

// Date truncates t to its calendar date in t's own location, returned as
// midnight UTC so dates compare and store consistently.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be yyyy-MM-dd: %w", err)
	}
	return t, nil
}

// DateKey is used wherever a date needs to be a map key or object name.
func DateKey(date time.Time) string {
	return Date(date).Format(DateLayout)
}

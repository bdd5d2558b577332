// Package caldate is a calendar date column that travels as "YYYY-MM-DD".
package caldate

import (
	"bytes"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const Layout = "2006-01-02"

// Date is a day without time of day, always held at UTC midnight.
type Date struct {
	datatypes.Date
}

func New(year int, month time.Month, day int) Date {
	return Date{datatypes.Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))}
}

// Of truncates t to its calendar day in t's own location.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return New(y, m, d)
}

func Parse(value string) (Date, error) {
	t, err := time.Parse(Layout, value)
	if err != nil {
		return Date{}, err
	}
	return Of(t), nil
}

func (d Date) Time() time.Time {
	return time.Time(d.Date).UTC()
}

// StartIn is midnight of the day in loc.
func (d Date) StartIn(loc *time.Location) time.Time {
	t := d.Time()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func (d Date) IsZero() bool {
	return d.Time().IsZero()
}

func (d Date) String() string {
	return d.Time().Format(Layout)
}

func (d Date) AddDays(n int) Date {
	return Of(d.Time().AddDate(0, 0, n))
}

func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

func (d Date) Equal(other Date) bool {
	return d.Time().Equal(other.Time())
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) > len(Layout) {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return err
		}
		*d = Of(t)
		return nil
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

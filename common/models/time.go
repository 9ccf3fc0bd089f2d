package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// timeLayout is how times are written to the database. SQLite keeps it as text; Postgres parses it.
const timeLayout = "2006-01-02 15:04:05.999999-07:00"

// Time is a UTC time truncated to the microsecond precision Postgres stores, so a time reads back from
// either database exactly as it was written.
type Time struct {
	time.Time
}

func NewTime(t time.Time) Time {
	return Time{Time: t.UTC().Round(time.Microsecond)}
}

// Scan implements sql.Scanner. Postgres returns a time.Time; SQLite returns the stored text.
func (t *Time) Scan(src interface{}) error {
	var text string
	switch v := src.(type) {
	case nil:
		return nil
	case time.Time:
		*t = NewTime(v)
		return nil
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return fmt.Errorf("error scanning time from %T", src)
	}
	parsed, err := time.Parse(timeLayout, text)
	if err != nil {
		return errors.Wrapf(err, "error parsing time %q", text)
	}
	*t = NewTime(parsed)
	return nil
}

// Value implements driver.Valuer.
func (t Time) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t Time) String() string {
	return t.UTC().Format(timeLayout)
}

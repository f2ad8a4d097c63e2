package database

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// sqliteTimeLayout is fixed-width so that lexical TEXT comparison in SQLite
// orders instants chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000Z"

// timestamp scans instants stored either as SQLite TEXT or Postgres timestamptz.
type timestamp struct {
	time.Time
}

// Scan implements sql.Scanner.
func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *timestamp) parse(s string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp format %q", s)
}

// timeArg encodes an instant as a query argument for the dialect.
func (d Dialect) timeArg(t time.Time) driver.Value {
	t = t.UTC()
	if d == DialectSQLite {
		return t.Format(sqliteTimeLayout)
	}
	return t
}

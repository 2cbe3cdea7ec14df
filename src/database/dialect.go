package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SQLiteTimeLayout is fixed width so that stored timestamps sort
// lexicographically in the same order as chronologically.
const SQLiteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Dialect hides the differences between the sqlite and postgres ledger stores.
type Dialect struct {
	Driver string
}

var (
	SQLite   = Dialect{Driver: "sqlite"}
	Postgres = Dialect{Driver: "postgres"}
)

// DialectFor returns the dialect for a configured DATABASE_DRIVER value.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "":
		return SQLite, nil
	case "postgres", "postgresql":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Rebind rewrites '?' placeholders into the dialect's native form.
func (d Dialect) Rebind(query string) string {
	if d.Driver != Postgres.Driver {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TimeArg converts a timestamp into the value bound for a query argument.
func (d Dialect) TimeArg(t time.Time) any {
	if d.Driver == Postgres.Driver {
		return t.UTC()
	}
	return t.UTC().Format(SQLiteTimeLayout)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime converts a scanned column value into a UTC time. sqlite hands back
// text, postgres a time.Time.
func ParseTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case string:
		return parseTimeString(val)
	case []byte:
		return parseTimeString(string(val))
	case nil:
		return time.Time{}, fmt.Errorf("timestamp is NULL")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseTimeString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

package sqlstore

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var errEmptyTime = errors.New("empty timestamp")

// scanTime accepts what drivers hand back for a timestamp column: time.Time
// from pgx and go-mssqldb, text from sqlite.
func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return ParseTime(t)
	case []byte:
		return ParseTime(string(t))
	case nil:
		return time.Time{}, errEmptyTime
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// FormatTime is the text form timestamps are stored in where the driver has
// no native timestamp type.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses FormatTime output and the other layouts sqlite tools write.
// Zone-less values are read as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyTime
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}

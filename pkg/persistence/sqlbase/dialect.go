package sqlbase

import (
	"strconv"
	"strings"
	"time"
)

// Dialect holds what differs between the SQL backends.
type Dialect struct {
	Name string

	// MigrationsTable creates the schema_migrations table if it does not exist.
	MigrationsTable string

	// Placeholder returns the bind variable for the n-th (1-based) argument.
	Placeholder func(n int) string

	// IsUniqueViolation reports whether err is a primary key or unique constraint violation.
	IsUniqueViolation func(err error) bool

	// TimeValue converts a timestamp into the value bound for ordered time columns.
	// When nil the time is bound as is.
	TimeValue func(t time.Time) any
}

// Time returns the bind value for t.
func (d Dialect) Time(t time.Time) any {
	if d.TimeValue == nil {
		return t.UTC()
	}

	return d.TimeValue(t)
}

// UnixNanoTime binds timestamps as integer nanoseconds, for engines without a native time type.
func UnixNanoTime(t time.Time) any {
	return t.UTC().UnixNano()
}

// Rebind rewrites ? bind variables into the dialect's placeholders.
func (d Dialect) Rebind(query string) string {
	if d.Placeholder == nil {
		return query
	}

	var (
		out strings.Builder
		n   int
	)

	for _, r := range query {
		if r == '?' {
			n++
			out.WriteString(d.Placeholder(n))

			continue
		}

		out.WriteRune(r)
	}

	return out.String()
}

// DollarPlaceholder renders $1, $2, ...
func DollarPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// QuestionPlaceholder renders ?.
func QuestionPlaceholder(int) string {
	return "?"
}

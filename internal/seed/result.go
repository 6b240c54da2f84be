// Package seed loads demo marketplace data for local development: users,
// event submissions, and attendance shaped so every detector has something
// to find on the first run.
package seed

import "fmt"

// Result tracks counts and errors from a seeding operation.
type Result struct {
	UsersUpserted       int
	EventsUpserted      int
	AttendancesUpserted int
	Errors              []string
}

// AddErrorf records a formatted error message.
func (r *Result) AddErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary of the seed operation.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"users=%d events=%d attendances=%d errors=%d",
		r.UsersUpserted, r.EventsUpserted, r.AttendancesUpserted,
		len(r.Errors),
	)
}

package testutil

import "time"

func Ptr[T any](v T) *T {
	return &v
}

// Time truncates to microseconds so values survive a PostgreSQL round trip.
func Time(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

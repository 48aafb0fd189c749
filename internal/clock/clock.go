package clock

import "time"

// Clock abstracts time retrieval so handlers are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// Real returns the actual current time in UTC.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

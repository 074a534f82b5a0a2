package job

import "time"

// OnceSchedule activates a single time.
type OnceSchedule struct {
	At time.Time
}

// Next returns At while it is later than t, the zero time afterwards.
func (os OnceSchedule) Next(t time.Time) time.Time {
	if os.At.After(t) {
		return os.At
	}
	return time.Time{}
}

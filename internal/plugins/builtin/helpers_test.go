package builtin

import "time"

// timeNowPlusHour gives edited files an mtime unambiguously newer than
// their artifacts, sidestepping filesystem timestamp granularity.
func timeNowPlusHour() time.Time {
	return time.Now().Add(time.Hour)
}

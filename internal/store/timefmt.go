package store

import "time"

// TimeLayout is the fixed "YYYY-MM-DD HH:MM:SS" timestamp format.
const TimeLayout = "2006-01-02 15:04:05"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string { return t.Format(TimeLayout) }

// ValidTime reports whether s parses in TimeLayout.
func ValidTime(s string) bool {
	_, err := time.Parse(TimeLayout, s)
	return err == nil
}

// TimeTaken returns end-start in seconds. It returns 0 when either value is
// empty or does not parse; that means "no data yet", not an error.
func TimeTaken(start, end string) float64 {
	if start == "" || end == "" {
		return 0
	}
	s, err := time.Parse(TimeLayout, start)
	if err != nil {
		return 0
	}
	e, err := time.Parse(TimeLayout, end)
	if err != nil {
		return 0
	}
	return e.Sub(s).Seconds()
}

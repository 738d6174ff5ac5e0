package render

import "time"

// FormatDate renders t as an Indian English long date, e.g. "18 October 2026".
// The zero time renders as "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2 January 2006")
}

// FormatShortDate renders t as dd/mm/yyyy.
func FormatShortDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2/1/2006")
}

// Package market provides trading-day calendar arithmetic. Only weekends
// are modeled; exchange holidays simply have no bars in the fetched data
// and are never interpolated.
package market

import (
	"time"

	"github.com/Alias1177/moex-anomaly/models"
)

// IsTradingDay reports whether t falls on a weekday.
func IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// PrevTradingDay returns the last weekday strictly before t.
func PrevTradingDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, -1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// TradingDates returns the n most recent weekdays ending at or before
// end, formatted as YYYY-MM-DD and sorted ascending.
func TradingDates(end time.Time, n int) []string {
	dates := make([]string, 0, n)
	d := end
	for len(dates) < n {
		if IsTradingDay(d) {
			dates = append(dates, d.Format(models.DateFormat))
		}
		d = d.AddDate(0, 0, -1)
	}
	// Collected newest-first; reverse to ascending.
	for i, j := 0, len(dates)-1; i < j; i, j = i+1, j-1 {
		dates[i], dates[j] = dates[j], dates[i]
	}
	return dates
}

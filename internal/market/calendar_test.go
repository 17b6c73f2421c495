package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestIsTradingDay(t *testing.T) {
	assert.True(t, IsTradingDay(date(2026, 2, 2)))   // Monday
	assert.True(t, IsTradingDay(date(2026, 2, 6)))   // Friday
	assert.False(t, IsTradingDay(date(2026, 2, 7)))  // Saturday
	assert.False(t, IsTradingDay(date(2026, 2, 8)))  // Sunday
}

func TestPrevTradingDay(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		want string
	}{
		{"tuesday to monday", date(2026, 2, 3), "2026-02-02"},
		{"monday skips weekend", date(2026, 2, 2), "2026-01-30"},
		{"sunday to friday", date(2026, 2, 8), "2026-02-06"},
		{"saturday to friday", date(2026, 2, 7), "2026-02-06"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrevTradingDay(tt.from).Format("2006-01-02"))
		})
	}
}

func TestTradingDates(t *testing.T) {
	// Ending on Monday 2026-02-02, five weekdays back crosses one weekend.
	dates := TradingDates(date(2026, 2, 2), 5)

	assert.Equal(t, []string{
		"2026-01-27",
		"2026-01-28",
		"2026-01-29",
		"2026-01-30",
		"2026-02-02",
	}, dates)
}

func TestTradingDates_WeekendEndExcluded(t *testing.T) {
	dates := TradingDates(date(2026, 2, 7), 2) // Saturday

	assert.Equal(t, []string{"2026-02-05", "2026-02-06"}, dates)
}

package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDays(t *testing.T) {
	// Wednesday.
	anchor := time.Date(2024, 5, 15, 13, 0, 0, 0, time.UTC)

	t.Run("day", func(t *testing.T) {
		assert.Equal(t, []string{"2024-05-15"}, Days(ViewDay, anchor, "monday"))
	})

	t.Run("week from monday", func(t *testing.T) {
		days := Days(ViewWeek, anchor, "monday")
		require.Len(t, days, 7)
		assert.Equal(t, "2024-05-13", days[0])
		assert.Equal(t, "2024-05-19", days[6])
	})

	t.Run("week from sunday", func(t *testing.T) {
		days := Days(ViewWeek, anchor, "sunday")
		require.Len(t, days, 7)
		assert.Equal(t, "2024-05-12", days[0])
		assert.Equal(t, "2024-05-18", days[6])
	})

	t.Run("month covers whole weeks", func(t *testing.T) {
		days := Days(ViewMonth, anchor, "monday")
		// May 2024: Wed 1st .. Fri 31st => Mon Apr 29 .. Sun Jun 2.
		assert.Equal(t, "2024-04-29", days[0])
		assert.Equal(t, "2024-06-02", days[len(days)-1])
		assert.Len(t, days, 35)
	})
}

func TestParseView(t *testing.T) {
	v, err := ParseView("")
	require.NoError(t, err)
	assert.Equal(t, ViewMonth, v)

	v, err = ParseView("Week")
	require.NoError(t, err)
	assert.Equal(t, ViewWeek, v)

	_, err = ParseView("year")
	assert.Error(t, err)
}

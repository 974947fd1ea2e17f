package event

import (
	"testing"
	"time"

	"github.com/rickar/cal/v2/us"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarIsHoliday(t *testing.T) {
	c := NewCalendar(us.ChristmasDay, us.ThanksgivingDay, us.IndependenceDay)

	testData := map[string]struct {
		t        time.Time
		expected bool
	}{
		"christmas":             {time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC), true},
		"christmas eve":         {time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC), false},
		"christmas afternoon":   {time.Date(2024, 12, 25, 15, 30, 0, 0, time.UTC), true},
		"thanksgiving":          {time.Date(2024, 11, 28, 0, 0, 0, 0, time.UTC), true},
		"independence day":      {time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC), true},
		"observed independence": {time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC), true},
		"non utc christmas":     {time.Date(2025, 12, 25, 0, 0, 0, 0, time.FixedZone("UTC-8", -8*60*60)), true},
		"ordinary day":          {time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), false},
		"day after observed":    {time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC), false},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, c.IsHoliday(td.t))
		})
	}

	var nilCal *Calendar
	assert.False(t, nilCal.IsHoliday(time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)))
}

func TestCalendarHolidays(t *testing.T) {
	c := NewCalendar(us.ChristmasDay)

	start := time.Date(2024, 12, 8, 1, 0, 0, 0, time.UTC)
	end := time.Date(2026, 12, 8, 1, 0, 0, 0, time.UTC)
	expected := []Event{
		{
			"Christmas_Day_2024",
			time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 12, 26, 0, 0, 0, 0, time.UTC),
		},
		{
			"Christmas_Day_2025",
			time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 12, 26, 0, 0, 0, 0, time.UTC),
		},
	}
	assert.Equal(t, expected, c.Holidays(start, end))

	assert.Empty(t, c.Holidays(end, start))
	for _, e := range c.Holidays(start, end) {
		require.True(t, e.Start.Before(e.End))
	}
}

func TestFeatures(t *testing.T) {
	c := NewUSCalendar()

	f := c.Features(time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, DayFeatures{
		DayOfWeek: "Saturday",
		Month:     "December",
		Year:      2024,
		IsWeekend: true,
		IsHoliday: false,
	}, f)

	f = c.Features(time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "Wednesday", f.DayOfWeek)
	assert.False(t, f.IsWeekend)
	assert.True(t, f.IsHoliday)
}

// Package event flags calendar days that move sales: weekends and US federal holidays, either on
// the holiday itself or the weekday it is observed on
package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// Event is a named day spanning [Start, End)
type Event struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Calendar checks days against a fixed set of holidays
type Calendar struct {
	holidays []*cal.Holiday
}

// NewCalendar builds a calendar from the given holidays
func NewCalendar(holidays ...*cal.Holiday) *Calendar {
	return &Calendar{holidays: holidays}
}

// NewUSCalendar returns a calendar with the US federal holidays
func NewUSCalendar() *Calendar {
	return NewCalendar(us.Holidays...)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Holiday returns the holiday falling on the calendar date of t, matching either the actual or
// the observed date
func (c *Calendar) Holiday(t time.Time) (*cal.Holiday, bool) {
	if c == nil {
		return nil, false
	}
	for _, h := range c.holidays {
		actual, observed := h.Calc(t.Year())
		if sameDay(actual, t) || sameDay(observed, t) {
			return h, true
		}
		// observed dates can spill into the neighboring year
		if t.Month() == time.December {
			if _, next := h.Calc(t.Year() + 1); sameDay(next, t) {
				return h, true
			}
		}
	}
	return nil, false
}

// IsHoliday reports whether t falls on a holiday or its observed day
func (c *Calendar) IsHoliday(t time.Time) bool {
	_, ok := c.Holiday(t)
	return ok
}

// Holidays lists the observed holidays whose day starts within [start, end], in the location of start
func (c *Calendar) Holidays(start, end time.Time) []Event {
	events := []Event{}
	if c == nil || end.Before(start) {
		return events
	}

	loc := start.Location()
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	for day := first; !day.After(end); day = day.AddDate(0, 0, 1) {
		if day.Before(start) {
			continue
		}
		h, ok := c.Holiday(day)
		if !ok {
			continue
		}
		events = append(events, Event{
			Name:  strings.ReplaceAll(fmt.Sprintf("%s_%d", h.Name, day.Year()), " ", "_"),
			Start: day,
			End:   day.AddDate(0, 0, 1),
		})
	}
	return events
}

// IsWeekend reports whether t falls on a Saturday or Sunday
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// DayFeatures are the calendar attributes attached to each forecast day
type DayFeatures struct {
	DayOfWeek string `json:"day_of_week"`
	Month     string `json:"month"`
	Year      int    `json:"year"`
	IsWeekend bool   `json:"is_weekend"`
	IsHoliday bool   `json:"is_holiday"`
}

// Features returns the calendar attributes of t
func (c *Calendar) Features(t time.Time) DayFeatures {
	return DayFeatures{
		DayOfWeek: t.Weekday().String(),
		Month:     t.Month().String(),
		Year:      t.Year(),
		IsWeekend: IsWeekend(t),
		IsHoliday: c.IsHoliday(t),
	}
}

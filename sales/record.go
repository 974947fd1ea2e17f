// Package sales loads transaction records and aggregates them into the daily series the
// forecaster trains on
package sales

import (
	"errors"
	"time"
)

var (
	ErrNoRecords        = errors.New("no sales records")
	ErrNoHeader         = errors.New("sales file has no header row")
	ErrNoDatetimeColumn = errors.New("sales file has neither a datetime nor a timestamp column")
	ErrNoValueColumn    = errors.New("sales file is missing the value column")
)

// Record is a single transaction
type Record struct {
	Time         time.Time `json:"datetime"`
	Total        float64   `json:"total"`
	Category     string    `json:"category,omitempty"`
	CustomerType string    `json:"customer_type,omitempty"`
	PaymentType  string    `json:"payment_type,omitempty"`
}

// Date returns the calendar date of the record as a UTC midnight
func (r Record) Date() time.Time {
	return calendarDate(r.Time)
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

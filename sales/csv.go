package sales

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultValueColumn = "total"

	datetimeColumn     = "datetime"
	timestampColumn    = "timestamp"
	categoryColumn     = "category"
	customerTypeColumn = "customer_type"
	paymentTypeColumn  = "payment_type"
)

// Layouts are tried in order when parsing the datetime or timestamp column
var Layouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02-01-2006 15:04",
	"02-01-2006",
}

var ErrNonFiniteTotal = errors.New("total is not a finite number")

var errUnknownLayout = errors.New("time does not match any known layout")

// ReadOptions configures how a sales CSV is parsed
type ReadOptions struct {
	// Layout is tried before the built in layouts when set
	Layout string

	// ValueColumn names the column summed into daily sales
	ValueColumn string

	// Location is used for times without a zone. UTC when nil.
	Location *time.Location
}

// NewDefaultReadOptions reads the total column with the built in layouts in UTC
func NewDefaultReadOptions() *ReadOptions {
	return &ReadOptions{
		ValueColumn: DefaultValueColumn,
		Location:    time.UTC,
	}
}

func (o *ReadOptions) Validate() *ReadOptions {
	if o == nil {
		return NewDefaultReadOptions()
	}
	res := *o
	if res.ValueColumn == "" {
		res.ValueColumn = DefaultValueColumn
	}
	if res.Location == nil {
		res.Location = time.UTC
	}
	return &res
}

func (o *ReadOptions) layouts() []string {
	if o.Layout == "" {
		return Layouts
	}
	return append([]string{o.Layout}, Layouts...)
}

func (o *ReadOptions) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range o.layouts() {
		if t, err := time.ParseInLocation(layout, s, o.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q, %w", s, errUnknownLayout)
}

type columns struct {
	time         int
	value        int
	category     int
	customerType int
	paymentType  int
}

func indexColumns(header []string, valueColumn string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	lookup := func(name string) int {
		if i, exists := idx[name]; exists {
			return i
		}
		return -1
	}

	cols := columns{
		time:         lookup(datetimeColumn),
		value:        lookup(strings.ToLower(valueColumn)),
		category:     lookup(categoryColumn),
		customerType: lookup(customerTypeColumn),
		paymentType:  lookup(paymentTypeColumn),
	}
	if cols.time < 0 {
		cols.time = lookup(timestampColumn)
	}
	if cols.time < 0 {
		return cols, ErrNoDatetimeColumn
	}
	if cols.value < 0 {
		return cols, fmt.Errorf("column %q, %w", valueColumn, ErrNoValueColumn)
	}
	return cols, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// parseTotal accepts finite numbers only
func parseTotal(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("total %q, %w", s, ErrNonFiniteTotal)
	}
	return v, nil
}

// ReadCSV parses sales records from a CSV with a header row. The datetime column is preferred over
// timestamp. Rows whose time or value cannot be parsed are skipped with a warning.
func ReadCSV(r io.Reader, opt *ReadOptions) ([]Record, error) {
	opt = opt.Validate()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("unable to read sales header, %w", err)
	}
	cols, err := indexColumns(header, opt.ValueColumn)
	if err != nil {
		return nil, err
	}

	var records []Record
	var skipped int
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to read sales row %d, %w", line, err)
		}

		t, err := opt.parseTime(field(rec, cols.time))
		if err != nil {
			skipped++
			slog.Debug("skipping sales row", "line", line, "error", err.Error())
			continue
		}
		v, err := parseTotal(field(rec, cols.value))
		if err != nil {
			skipped++
			slog.Debug("skipping sales row", "line", line, "error", err.Error())
			continue
		}

		records = append(records, Record{
			Time:         t,
			Total:        v,
			Category:     field(rec, cols.category),
			CustomerType: field(rec, cols.customerType),
			PaymentType:  field(rec, cols.paymentType),
		})
	}
	if skipped > 0 {
		slog.Warn("skipped unparsable sales rows", "skipped", skipped, "loaded", len(records))
	}
	return records, nil
}

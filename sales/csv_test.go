package sales

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groceryCSV = `datetime,total,category,customer_type,payment_type
2024-01-01 09:30:00,10.5,Dairy,Member,Cash
02-01-2024 10:00,20,Produce,Normal,Card
not a date,5,Dairy,Member,Cash
2024-01-02,abc,Dairy,Member,Cash
2024-01-04T18:00:00Z,30,Bakery,Member,Ewallet
`

func TestReadCSV(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(groceryCSV), nil)
	require.Nil(t, err)
	require.Len(t, records, 3)

	expected := []Record{
		{Time: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC), Total: 10.5, Category: "Dairy", CustomerType: "Member", PaymentType: "Cash"},
		{Time: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), Total: 20, Category: "Produce", CustomerType: "Normal", PaymentType: "Card"},
		{Time: time.Date(2024, 1, 4, 18, 0, 0, 0, time.UTC), Total: 30, Category: "Bakery", CustomerType: "Member", PaymentType: "Ewallet"},
	}
	for i, r := range records {
		assert.True(t, expected[i].Time.Equal(r.Time), "record %d", i)
		assert.Equal(t, expected[i].Total, r.Total)
		assert.Equal(t, expected[i].Category, r.Category)
		assert.Equal(t, expected[i].CustomerType, r.CustomerType)
		assert.Equal(t, expected[i].PaymentType, r.PaymentType)
	}
}

func TestReadCSVColumns(t *testing.T) {
	testData := map[string]struct {
		input    string
		opt      *ReadOptions
		expected []float64
		err      error
	}{
		"empty": {
			input: "",
			err:   ErrNoHeader,
		},
		"no time column": {
			input: "date,total\n2024-01-01,1\n",
			err:   ErrNoDatetimeColumn,
		},
		"no value column": {
			input: "datetime,amount\n2024-01-01,1\n",
			err:   ErrNoValueColumn,
		},
		"timestamp fallback": {
			input:    "timestamp,total\n01-03-2024 08:15,4\n2024-03-02,6\n",
			expected: []float64{4, 6},
		},
		"custom value column": {
			input:    "datetime,amount\n2024-01-01,1.25\n",
			opt:      &ReadOptions{ValueColumn: "amount"},
			expected: []float64{1.25},
		},
		"custom layout": {
			input:    "Datetime,Total\n03/15/2024,7\n",
			opt:      &ReadOptions{Layout: "01/02/2006"},
			expected: []float64{7},
		},
		"header only": {
			input: "datetime,total\n",
		},
		"non finite totals skipped": {
			input:    "datetime,total\n2024-01-01,Inf\n2024-01-02,NaN\n2024-01-03,-inf\n2024-01-04,+Inf\n2024-01-05,3\n",
			expected: []float64{3},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			records, err := ReadCSV(strings.NewReader(td.input), td.opt)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			require.Len(t, records, len(td.expected))
			for i, r := range records {
				assert.Equal(t, td.expected[i], r.Total)
				assert.Empty(t, r.Category)
			}
		})
	}
}

func TestReadCSVLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	records, err := ReadCSV(strings.NewReader("datetime,total\n2024-01-01 23:30,5\n"), &ReadOptions{Location: loc})
	require.Nil(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, loc, records[0].Time.Location())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), records[0].Date())
}

func TestParseTotal(t *testing.T) {
	testData := map[string]struct {
		input    string
		expected float64
		err      error
	}{
		"number":   {" 12.5", 12.5, nil},
		"inf":      {"Inf", 0, ErrNonFiniteTotal},
		"nan":      {"nan", 0, ErrNonFiniteTotal},
		"negative": {"-3", -3, nil},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			v, err := parseTotal(td.input)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, v)
		})
	}
}

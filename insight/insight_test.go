package insight

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	forecaster "github.com/aouyang1/go-salesforecast"
	"github.com/aouyang1/go-salesforecast/sales"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d, hour int) time.Time {
	return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC)
}

func groceryRecords() []sales.Record {
	return []sales.Record{
		{Time: day(1, 9), Total: 120.5, Category: "Dairy", CustomerType: "Member", PaymentType: "Cash"},
		{Time: day(1, 15), Total: 80, Category: "Produce", CustomerType: "Normal", PaymentType: "Card"},
		{Time: day(2, 10), Total: 500, Category: "Bakery", CustomerType: "Member", PaymentType: "Card"},
		{Time: day(4, 11), Total: 300, Category: "Produce", CustomerType: "Member", PaymentType: "Ewallet"},
		{Time: day(4, 18), Total: 60, Category: "Snacks", CustomerType: "Normal", PaymentType: "Card"},
	}
}

type fakeGenerator struct {
	prompt string
	answer string
	err    error
	calls  int
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.prompt = prompt
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.answer, g.err
}

func TestSummarize(t *testing.T) {
	_, err := Summarize(nil)
	assert.ErrorIs(t, err, ErrNoSales)

	s, err := Summarize(groceryRecords())
	require.Nil(t, err)

	assert.InDelta(t, 1060.5, s.TotalSales, 1e-9)
	// three observed days
	assert.InDelta(t, 1060.5/3.0, s.AverageDailySales, 1e-9)
	assert.Equal(t, day(1, 0), s.Start)
	assert.Equal(t, day(4, 0), s.End)
	assert.Equal(t, 500.0, s.PeakSales)
	assert.Equal(t, day(2, 0), s.PeakDate)
	assert.Equal(t, []float64{200.5, 500, 360}, s.RecentTrend)
	assert.Equal(t, []Amount{{"Bakery", 500}, {"Produce", 380}, {"Dairy", 120.5}}, s.TopCategories)
	assert.Equal(t, []Count{{"Member", 3}, {"Normal", 2}}, s.CustomerTypes)
	assert.Equal(t, []Count{{"Card", 3}, {"Cash", 1}, {"Ewallet", 1}}, s.PaymentMethods)
}

func TestSummarizeRecentTrend(t *testing.T) {
	var records []sales.Record
	for d := 1; d <= 10; d++ {
		records = append(records, sales.Record{Time: day(d, 12), Total: float64(d)})
	}
	s, err := Summarize(records)
	require.Nil(t, err)
	assert.Equal(t, []float64{4, 5, 6, 7, 8, 9, 10}, s.RecentTrend)
	assert.Empty(t, s.TopCategories)
	assert.Empty(t, s.CustomerTypes)
}

func TestBuildPrompt(t *testing.T) {
	s, err := Summarize(groceryRecords())
	require.Nil(t, err)
	s.Outlook = []forecaster.ForecastSummary{{Model: "ensemble", Average: 410, Min: 350, Max: 470, Growth: 12.5}}

	prompt := BuildPrompt(s, "  Which category sells best?  ")

	expected := []string{
		AnalystContext,
		"- Total Sales: $1,060.50",
		"- Date Range: 2024-03-01 to 2024-03-04",
		"- Peak Sales: $500.00 on 2024-03-02",
		"- Recent 3 days trend: [200.50; 500.00; 360.00]",
		"- Top Categories: Bakery: $500.00, Produce: $380.00, Dairy: $120.50",
		"- Customer Types: Member: 3, Normal: 2",
		"- Payment Methods: Card: 3, Cash: 1, Ewallet: 1",
		"- ensemble: average $410.00, range $350.00 to $470.00, growth 12.5%",
		"User Question: Which category sells best?\n",
	}
	for _, e := range expected {
		assert.Contains(t, prompt, e)
	}
}

func TestChatbotQuery(t *testing.T) {
	errQuota := errors.New("quota exceeded")

	testData := map[string]struct {
		records  []sales.Record
		question string
		gen      *fakeGenerator
		expected string
		calls    int
	}{
		"answer verbatim": {
			records:  groceryRecords(),
			question: "What was our best performing day?",
			gen:      &fakeGenerator{answer: "March 2nd with $500.00."},
			expected: "March 2nd with $500.00.",
			calls:    1,
		},
		"empty question": {
			records:  groceryRecords(),
			question: "   ",
			gen:      &fakeGenerator{},
			expected: emptyQuestionReply,
		},
		"generator error": {
			records:  groceryRecords(),
			question: "What is our average daily revenue?",
			gen:      &fakeGenerator{err: errQuota},
			expected: "I encountered an error analyzing the data: quota exceeded",
			calls:    1,
		},
		"no records": {
			question: "What is our average daily revenue?",
			gen:      &fakeGenerator{},
			expected: "I encountered an error analyzing the data: " + ErrNoSales.Error(),
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			c := NewChatbot(td.gen)
			assert.Equal(t, td.expected, c.Query(context.Background(), td.records, td.question))
			assert.Equal(t, td.calls, td.gen.calls)
		})
	}
}

func TestChatbotWithoutGenerator(t *testing.T) {
	c := NewChatbot(nil)
	reply := c.Query(context.Background(), groceryRecords(), "What was our best performing day?")
	assert.Equal(t, "I encountered an error analyzing the data: "+ErrNoGenerator.Error(), reply)
}

func TestChatbotOptions(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}

	var observed []bool
	c := NewChatbot(gen,
		WithTimeout(time.Minute),
		WithOutlook([]forecaster.ForecastSummary{{Model: "lstm", Average: 1, Min: 1, Max: 1}}),
		WithObserver(func(ok bool, _ time.Duration) { observed = append(observed, ok) }),
	)
	assert.Equal(t, "ok", c.Query(context.Background(), groceryRecords(), "How are sales?"))
	assert.Equal(t, []bool{true}, observed)
	assert.True(t, strings.Contains(gen.prompt, "Forecast Outlook:"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reply := c.Query(ctx, groceryRecords(), "How are sales?")
	assert.Equal(t, "I encountered an error analyzing the data: "+context.Canceled.Error(), reply)
	assert.Equal(t, []bool{true, false}, observed)
}

func TestResponseText(t *testing.T) {
	testData := map[string]struct {
		resp     *genai.GenerateContentResponse
		expected string
		err      error
	}{
		"nil":           {nil, "", ErrNoResponse},
		"no candidates": {&genai.GenerateContentResponse{}, "", ErrNoResponse},
		"no content":    {&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, "", ErrNoResponse},
		"joined text": {
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []genai.Part{genai.Text("Card is "), genai.Text("the most common.")}}},
			}},
			"Card is the most common.",
			nil,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			text, err := responseText(td.resp)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, text)
		})
	}
}

func TestNewGeminiNoKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

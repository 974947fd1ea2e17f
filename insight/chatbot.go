package insight

import (
	"context"
	"log/slog"
	"strings"
	"time"

	forecaster "github.com/aouyang1/go-salesforecast"
	"github.com/aouyang1/go-salesforecast/sales"
)

const (
	DefaultTimeout = 30 * time.Second

	emptyQuestionReply = `Please ask a question about the sales data, for example "What was our best performing day?"`
	errorReplyPrefix   = "I encountered an error analyzing the data: "
)

// Chatbot answers questions about sales records
type Chatbot struct {
	gen     Generator
	timeout time.Duration
	outlook []forecaster.ForecastSummary

	// observe is called with the outcome and latency of every model call
	observe func(ok bool, d time.Duration)
}

type ChatbotOption func(*Chatbot)

// WithTimeout bounds each model call. A non positive timeout disables the bound.
func WithTimeout(d time.Duration) ChatbotOption {
	return func(c *Chatbot) {
		c.timeout = d
	}
}

// WithOutlook adds a forecast summary to every prompt
func WithOutlook(outlook []forecaster.ForecastSummary) ChatbotOption {
	return func(c *Chatbot) {
		c.outlook = outlook
	}
}

// WithObserver registers a callback for query outcomes
func WithObserver(fn func(ok bool, d time.Duration)) ChatbotOption {
	return func(c *Chatbot) {
		c.observe = fn
	}
}

// NewChatbot creates a chatbot over the provided generator
func NewChatbot(gen Generator, opts ...ChatbotOption) *Chatbot {
	c := &Chatbot{
		gen:     gen,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query answers the question with the model text verbatim. It never fails: errors while
// summarizing the records or calling the model are returned as an apology.
func (c *Chatbot) Query(ctx context.Context, records []sales.Record, question string) string {
	if strings.TrimSpace(question) == "" {
		return emptyQuestionReply
	}

	if c.gen == nil {
		return errorReplyPrefix + ErrNoGenerator.Error()
	}

	summary, err := Summarize(records)
	if err != nil {
		slog.Warn("unable to summarize sales", "error", err.Error())
		return errorReplyPrefix + err.Error()
	}
	summary.Outlook = c.outlook

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := c.gen.Generate(ctx, BuildPrompt(summary, question))
	if c.observe != nil {
		c.observe(err == nil, time.Since(start))
	}
	if err != nil {
		slog.Warn("unable to answer question", "error", err.Error())
		return errorReplyPrefix + err.Error()
	}
	return answer
}

package insight

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const dateLayout = "2006-01-02"

// AnalystContext instructs the model how to answer
const AnalystContext = `You are a sales data analyst assistant. Analyze the data and provide clear, concise answers.
Consider total sales, product categories, customer types, and payment methods in your analysis.
Always include relevant numbers and insights in your responses.`

// SampleQuestions are offered to users who do not know what to ask
var SampleQuestions = []string{
	"What was our best performing day?",
	"Which product category generates the most revenue?",
	"What is the most common payment method?",
	"What type of customers shop the most?",
	"What is our average daily revenue?",
}

var printer = message.NewPrinter(language.English)

func money(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

// BuildPrompt combines the analyst context, the summary and the question into a single prompt
func BuildPrompt(s *Summary, question string) string {
	var b strings.Builder
	b.WriteString(AnalystContext)
	b.WriteString("\n\nData Summary:\n")

	printer.Fprintf(&b, "- Total Sales: %s\n", money(s.TotalSales))
	printer.Fprintf(&b, "- Average Daily Sales: %s\n", money(s.AverageDailySales))
	printer.Fprintf(&b, "- Date Range: %s to %s\n", s.Start.Format(dateLayout), s.End.Format(dateLayout))
	printer.Fprintf(&b, "- Peak Sales: %s on %s\n", money(s.PeakSales), s.PeakDate.Format(dateLayout))

	trend := make([]string, len(s.RecentTrend))
	for i, v := range s.RecentTrend {
		trend[i] = printer.Sprintf("%.2f", v)
	}
	printer.Fprintf(&b, "- Recent %d days trend: [%s]\n", len(s.RecentTrend), strings.Join(trend, "; "))

	categories := make([]string, len(s.TopCategories))
	for i, c := range s.TopCategories {
		categories[i] = c.Name + ": " + money(c.Value)
	}
	printer.Fprintf(&b, "- Top Categories: %s\n", orNone(categories))
	printer.Fprintf(&b, "- Customer Types: %s\n", orNone(countLabels(s.CustomerTypes)))
	printer.Fprintf(&b, "- Payment Methods: %s\n", orNone(countLabels(s.PaymentMethods)))

	if len(s.Outlook) > 0 {
		b.WriteString("\nForecast Outlook:\n")
		for _, o := range s.Outlook {
			printer.Fprintf(&b, "- %s: average %s, range %s to %s, growth %.1f%%\n",
				o.Model, money(o.Average), money(o.Min), money(o.Max), o.Growth)
		}
	}

	b.WriteString("\nUser Question: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nProvide a clear, data-driven response focusing on the specific question while incorporating relevant context.")
	return b.String()
}

func countLabels(counts []Count) []string {
	res := make([]string, len(counts))
	for i, c := range counts {
		res[i] = printer.Sprintf("%s: %d", c.Name, c.Value)
	}
	return res
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "none recorded"
	}
	return strings.Join(items, ", ")
}

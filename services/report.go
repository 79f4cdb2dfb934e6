package services

import (
	"fmt"
	"strings"

	"dealscout/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// NoProductsMessage is rendered when nothing survived scraping and filtering
	NoProductsMessage = "❌ No products found within your budget. Try increasing your budget or modifying your search."
	// ErrorMessagePrefix starts the message shown for a failed query
	ErrorMessagePrefix = "❌ Error processing your request: "

	reportRuleWidth = 50
)

var rupeePrinter = message.NewPrinter(language.English)

// FormatRupees groups thousands with commas and drops decimals
func FormatRupees(amount float64) string {
	return rupeePrinter.Sprintf("%.0f", amount)
}

// Divider returns a rule of width w
func Divider(ch string, w int) string {
	return strings.Repeat(ch, w)
}

// RenderReport formats recommendations for the terminal
func RenderReport(recs []models.Recommendation) string {
	if len(recs) == 0 {
		return NoProductsMessage
	}

	var b strings.Builder
	b.WriteString("\n🎯 TOP RECOMMENDATIONS:\n")
	b.WriteString(Divider("=", reportRuleWidth))
	b.WriteString("\n")

	for i, rec := range recs {
		p := rec.Product
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, p.Title)
		fmt.Fprintf(&b, "   💰 Price: ₹%s\n", FormatRupees(p.Price))
		fmt.Fprintf(&b, "   ⭐ Rating: %s\n", p.Rating)
		fmt.Fprintf(&b, "   🛒 Source: %s\n", p.Source)
		if rec.WhyRecommended != "" {
			fmt.Fprintf(&b, "   💡 Why recommended: %s\n", rec.WhyRecommended)
		}
		if p.HasURL() {
			fmt.Fprintf(&b, "   🔗 Link: %s\n", p.URL)
		} else {
			b.WriteString("   🔗 Link: URL not available\n")
		}
		b.WriteString(Divider("-", reportRuleWidth))
		b.WriteString("\n")
	}

	return b.String()
}

// RenderError formats a pipeline failure as a user-facing message
func RenderError(err error) string {
	return ErrorMessagePrefix + err.Error()
}

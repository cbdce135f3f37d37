package escrow

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var indianEnglish = language.MustParse("en-IN")

// FormatINR renders an amount the way the review step shows it, e.g. ₹5,000.
func FormatINR(amount float64) string {
	p := message.NewPrinter(indianEnglish)
	return "₹" + p.Sprintf("%v", number.Decimal(amount, number.MaxFractionDigits(3)))
}

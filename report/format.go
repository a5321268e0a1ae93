package report

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts and dates for customer facing documents.
type Formatter struct {
	tag      language.Tag
	printer  *message.Printer
	currency string
}

// NewFormatter builds a formatter for the BCP 47 locale. Unknown locales fall back to English.
func NewFormatter(locale, currency string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{tag: tag, printer: message.NewPrinter(tag), currency: strings.TrimSpace(currency)}
}

// Locale returns the resolved language tag.
func (f *Formatter) Locale() string {
	return f.tag.String()
}

// Amount formats a monetary value with two fraction digits and the currency prefix.
func (f *Formatter) Amount(d decimal.Decimal) string {
	s := f.fixed(d, 2)
	if f.currency == "" {
		return s
	}
	return f.currency + " " + s
}

// Quantity formats a metered volume with two fraction digits.
func (f *Formatter) Quantity(d decimal.Decimal) string {
	return f.fixed(d, 2)
}

// Price formats a unit price keeping up to four fraction digits.
func (f *Formatter) Price(d decimal.Decimal) string {
	return f.printer.Sprint(number.Decimal(d.InexactFloat64(), number.MinFractionDigits(2), number.MaxFractionDigits(4)))
}

// Date formats t as a calendar date.
func (f *Formatter) Date(t time.Time) string {
	return t.Format("2006-01-02")
}

func (f *Formatter) fixed(d decimal.Decimal, scale int) string {
	return f.printer.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(scale)))
}

// Package price renders on-chain integer amounts as human-readable strings.
package price

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Currency is the subset of a currency needed to render an amount.
type Currency struct {
	Decimals int32
	Symbol   string
}

type options struct {
	averageFrom decimal.Decimal
	hasAverage  bool
	locale      language.Tag
}

type Option func(*options)

// WithAverageFrom switches to compact notation ("1.5k") for values at or above n.
func WithAverageFrom(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.averageFrom = decimal.NewFromInt(n)
			o.hasAverage = true
		}
	}
}

// WithLocale sets the locale used for digit grouping and the decimal mark.
func WithLocale(tag language.Tag) Option {
	return func(o *options) { o.locale = tag }
}

var averageSuffixes = []string{"", "k", "m", "b", "t"}

// Format renders amount, expressed in the currency's smallest unit, followed by
// the currency symbol.
func Format(amount *big.Int, currency Currency, opts ...Option) string {
	o := options{locale: language.English}
	for _, opt := range opts {
		opt(&o)
	}
	if amount == nil {
		amount = new(big.Int)
	}

	value := decimal.NewFromBigInt(amount, -currency.Decimals)
	var num string
	if o.hasAverage && value.Abs().GreaterThanOrEqual(o.averageFrom) {
		num = average(value, o.locale)
	} else {
		num = localize(value, o.locale)
	}
	if currency.Symbol == "" {
		return num
	}
	return num + " " + currency.Symbol
}

// FormatString is Format for base-10 integer strings. Unparsable input renders as zero.
func FormatString(amount string, currency Currency, opts ...Option) string {
	n, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
	if !ok {
		n = new(big.Int)
	}
	return Format(n, currency, opts...)
}

func average(value decimal.Decimal, locale language.Tag) string {
	thousand := decimal.NewFromInt(1000)
	scaled := value
	idx := 0
	for idx < len(averageSuffixes)-1 && scaled.Abs().GreaterThanOrEqual(thousand) {
		scaled = scaled.Div(thousand)
		idx++
	}
	scaled = scaled.Round(2)
	// 999.999k rounds to 1000k; carry into the next suffix.
	if scaled.Abs().GreaterThanOrEqual(thousand) && idx < len(averageSuffixes)-1 {
		scaled = scaled.Div(thousand).Round(2)
		idx++
	}
	return localize(scaled, locale) + averageSuffixes[idx]
}

// localize groups the integer digits and joins the trimmed fraction with the
// locale's decimal mark.
func localize(value decimal.Decimal, locale language.Tag) string {
	p := message.NewPrinter(locale)
	neg := value.IsNegative()
	value = value.Abs()

	intPart := value.Truncate(0)
	frac := strings.TrimRight(strings.TrimPrefix(value.Sub(intPart).String(), "0."), "0")
	if frac == "0" {
		frac = ""
	}

	var out string
	if intPart.BigInt().IsInt64() {
		out = p.Sprintf("%v", number.Decimal(intPart.IntPart()))
	} else {
		out = intPart.String()
	}
	if frac != "" {
		out += decimalMark(p) + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

func decimalMark(p *message.Printer) string {
	s := p.Sprintf("%v", number.Decimal(1.5, number.Scale(1)))
	return strings.TrimSuffix(strings.TrimPrefix(s, "1"), "5")
}

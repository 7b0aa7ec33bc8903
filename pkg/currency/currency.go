package currency

import (
	"regexp"
	"sort"
	"strings"
)

const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	CHF = "CHF"

	// DefaultBase is the reporting currency used when a query does not name one.
	DefaultBase = GBP
	// DefaultTransaction is applied to submissions that omit a currency.
	DefaultTransaction = USD
	// DefaultDecimals is the scale totals are rounded to.
	DefaultDecimals = 2
)

var codeRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// Meta holds display metadata for well-known currencies.
type Meta struct {
	Decimals int
	Symbol   string
}

var known = map[string]Meta{
	"USD": {Decimals: 2, Symbol: "$"},
	"EUR": {Decimals: 2, Symbol: "€"},
	"GBP": {Decimals: 2, Symbol: "£"},
	"CHF": {Decimals: 2, Symbol: "CHF"},
	"JPY": {Decimals: 0, Symbol: "¥"},
	"CAD": {Decimals: 2, Symbol: "C$"},
	"AUD": {Decimals: 2, Symbol: "A$"},
}

// IsValidFormat reports whether code is a three letter upper-case ISO 4217 code.
// It does not check that the currency exists.
func IsValidFormat(code string) bool {
	return codeRegex.MatchString(code)
}

// Normalize trims and upper-cases a user supplied code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup returns metadata for a known currency.
func Lookup(code string) (Meta, bool) {
	m, ok := known[code]
	return m, ok
}

// Known lists the currencies with metadata, sorted.
func Known() []string {
	out := make([]string, 0, len(known))
	for code := range known {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

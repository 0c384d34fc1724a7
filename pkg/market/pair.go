package market

import (
	"fmt"
	"slices"
	"strings"
)

// Currency is an ISO 4217 currency code
type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CHF Currency = "CHF"
	AUD Currency = "AUD"
	CAD Currency = "CAD"
	NZD Currency = "NZD"
)

// countryCurrencies maps calendar country codes to the currency they publish for
var countryCurrencies = map[string]Currency{
	"US": USD,
	"EU": EUR,
	"EZ": EUR, // eurozone
	"UK": GBP,
	"GB": GBP,
	"JP": JPY,
	"CH": CHF,
	"AU": AUD,
	"CA": CAD,
	"NZ": NZD,
}

// CurrencyByCountry returns the currency of a calendar country code
func CurrencyByCountry(country string) (Currency, bool) {
	c, ok := countryCurrencies[strings.ToUpper(strings.TrimSpace(country))]
	return c, ok
}

// IsValid reports whether c is one of the supported currencies
func (c Currency) IsValid() bool {
	switch c {
	case EUR, USD, GBP, JPY, CHF, AUD, CAD, NZD:
		return true
	}
	return false
}

// Pair is a currency pair symbol such as EURUSD
type Pair string

// PairMeta describes the two legs of a Pair
type PairMeta struct {
	Base  Currency
	Quote Currency
	Major bool
}

// validPairs is the closed set of pairs accepted by the importers
var validPairs = map[Pair]PairMeta{
	"EURUSD": {Base: EUR, Quote: USD, Major: true},
	"GBPUSD": {Base: GBP, Quote: USD, Major: true},
	"USDJPY": {Base: USD, Quote: JPY, Major: true},
	"USDCHF": {Base: USD, Quote: CHF, Major: true},
	"AUDUSD": {Base: AUD, Quote: USD, Major: true},
	"USDCAD": {Base: USD, Quote: CAD, Major: true},
	"NZDUSD": {Base: NZD, Quote: USD, Major: true},
	"EURGBP": {Base: EUR, Quote: GBP},
	"EURJPY": {Base: EUR, Quote: JPY},
	"EURCHF": {Base: EUR, Quote: CHF},
	"EURAUD": {Base: EUR, Quote: AUD},
	"EURCAD": {Base: EUR, Quote: CAD},
	"GBPJPY": {Base: GBP, Quote: JPY},
	"GBPCHF": {Base: GBP, Quote: CHF},
	"GBPAUD": {Base: GBP, Quote: AUD},
	"AUDJPY": {Base: AUD, Quote: JPY},
	"CADJPY": {Base: CAD, Quote: JPY},
	"NZDJPY": {Base: NZD, Quote: JPY},
}

// IsValid checks if the Pair is one of the supported pairs
func (p Pair) IsValid() bool {
	_, ok := validPairs[p]
	return ok
}

// Meta returns the PairMeta for p. The zero value is returned for unknown pairs.
func (p Pair) Meta() PairMeta {
	return validPairs[p]
}

// ParsePair parses a symbol such as "eurusd" into a Pair
func ParsePair(s string) (Pair, error) {
	p := Pair(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid pair: %s", s)
	}
	return p, nil
}

// Pairs returns every supported pair in symbol order
func Pairs() []Pair {
	out := make([]Pair, 0, len(validPairs))
	for p := range validPairs {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// PairsAffectedBy returns the pairs that have any of the given currencies as a leg, in symbol order
func PairsAffectedBy(currencies ...Currency) []Pair {
	var out []Pair
	for _, p := range Pairs() {
		meta := validPairs[p]
		if slices.Contains(currencies, meta.Base) || slices.Contains(currencies, meta.Quote) {
			out = append(out, p)
		}
	}
	return out
}

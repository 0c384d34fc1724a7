package forexfactory

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

var (
	ErrMissingEbaseID  = errors.New("missing ebaseId")
	ErrMissingEventID  = errors.New("missing publication id")
	ErrMissingDateline = errors.New("missing dateline")
)

var impactNames = map[string]market.Impact{
	"holiday": market.ImpactLow,
	"low":     market.ImpactLow,
	"medium":  market.ImpactMedium,
	"high":    market.ImpactHigh,
}

// frequencyKeywords is checked in order; the first matching group wins.
var frequencyKeywords = []struct {
	freq     market.Frequency
	keywords []string
}{
	{market.FrequencyAnnual, []string{"annual", "yearly"}},
	{market.FrequencyQuarterly, []string{"quarter", "q1", "q2", "q3", "q4"}},
	{market.FrequencyMonthly, []string{"monthly", "month"}},
	{market.FrequencyWeekly, []string{"weekly", "week"}},
	{market.FrequencyDaily, []string{"daily", "day"}},
}

// DetectFrequency guesses the release frequency from an indicator name.
// Names without a hint are assumed to be monthly.
func DetectFrequency(name string) market.Frequency {
	lower := strings.ToLower(name)
	for _, group := range frequencyKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.freq
			}
		}
	}
	return market.FrequencyMonthly
}

// ImpactOf maps the calendar impact name. Unknown names are low impact.
func ImpactOf(name string) market.Impact {
	if impact, ok := impactNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return impact
	}
	return market.ImpactLow
}

// AffectedCurrencies is the event currency followed by the country's currency when it differs.
func AffectedCurrencies(currency, country string) []market.Currency {
	var out []market.Currency
	if c := market.Currency(strings.ToUpper(strings.TrimSpace(currency))); c != "" {
		out = append(out, c)
	}
	if c, ok := market.CurrencyByCountry(country); ok && !slices.Contains(out, c) {
		out = append(out, c)
	}
	return out
}

// ToIndicator converts an exported event into an indicator.
func ToIndicator(ev Event) (market.Indicator, error) {
	if ev.EbaseID == "" {
		return market.Indicator{}, ErrMissingEbaseID
	}

	currencies := AffectedCurrencies(ev.Currency, ev.Country)
	known := make([]market.Currency, 0, len(currencies))
	for _, c := range currencies {
		if c.IsValid() {
			known = append(known, c)
		}
	}

	publishing := market.PublishingCertain
	if ev.TimeMasked {
		publishing = market.PublishingUncertain
	}

	info := make([]market.IndicatorSpec, 0, len(ev.Specs))
	for _, s := range ev.Specs {
		info = append(info, market.IndicatorSpec{Order: s.Order, Title: s.Title, HTML: s.HTML})
	}

	return market.Indicator{
		ExternalID:         string(ev.EbaseID),
		Name:               ev.Name,
		Country:            ev.Country,
		Impact:             ImpactOf(ev.ImpactName),
		Frequency:          DetectFrequency(ev.Name),
		PublishingTime:     publishing,
		AffectedCurrencies: currencies,
		AffectedPairs:      market.PairsAffectedBy(known...),
		Title:              firstNonEmpty(ev.SoloTitle, ev.PrefixedName, ev.Name),
		Info:               info,
	}, nil
}

// ToPublication converts one release of the indicator identified by indicatorExternalID.
// The stored indicator id is resolved later.
func ToPublication(p Publication, indicatorExternalID string) (market.IndicatorPublication, error) {
	if p.ID == "" {
		return market.IndicatorPublication{}, ErrMissingEventID
	}
	if p.Dateline <= 0 {
		return market.IndicatorPublication{}, ErrMissingDateline
	}
	return market.IndicatorPublication{
		IndicatorExternalID: indicatorExternalID,
		ExternalEventID:     string(p.ID),
		Timestamp:           time.Unix(int64(p.Dateline), 0).UTC(),
		Actual:              p.Actual,
		Forecast:            p.Forecast,
		Previous:            p.Previous,
		Revision:            p.Revision,
		IsActive:            p.IsActive,
		IsMostRecent:        p.IsMostRecent,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Impact is the expected market impact of an economic indicator
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Frequency is how often an indicator is published
type Frequency string

const (
	FrequencyAnnual    Frequency = "annual"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyDaily     Frequency = "daily"
)

// PublishingTime tells whether the release time of an indicator is known in advance
type PublishingTime string

const (
	PublishingCertain   PublishingTime = "certain"
	PublishingUncertain PublishingTime = "uncertain"
)

// IndicatorSpec is one descriptive section of an indicator
type IndicatorSpec struct {
	Order int    `json:"order"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// Indicator is an economic calendar indicator, identified by its ExternalID
type Indicator struct {
	ID                 int64
	ExternalID         string
	Name               string
	Country            string
	Impact             Impact
	Frequency          Frequency
	PublishingTime     PublishingTime
	AffectedCurrencies []Currency
	AffectedPairs      []Pair
	Title              string
	Info               []IndicatorSpec
}

// IndicatorPublication is one release of an indicator, identified by its ExternalEventID
type IndicatorPublication struct {
	IndicatorID         int64
	IndicatorExternalID string
	ExternalEventID     string
	Timestamp           time.Time
	Actual              Value
	Forecast            Value
	Previous            Value
	Revision            Value
	IsActive            bool
	IsMostRecent        bool
}

// ValueKind discriminates the representations a published figure can take
type ValueKind int

const (
	ValueAbsent ValueKind = iota
	ValueNumber
	ValueText
)

// Value is a published figure. Calendars report numbers, formatted strings such as "0.3%", or nothing.
type Value struct {
	Kind   ValueKind
	Number float64
	Text   string
}

// NumberValue returns a numeric Value
func NumberValue(f float64) Value {
	return Value{Kind: ValueNumber, Number: f}
}

// TextValue returns a textual Value
func TextValue(s string) Value {
	return Value{Kind: ValueText, Text: s}
}

// IsAbsent reports whether v carries no figure. Empty text counts as absent.
func (v Value) IsAbsent() bool {
	return v.Kind == ValueAbsent || (v.Kind == ValueText && v.Text == "")
}

func (v Value) String() string {
	switch {
	case v.IsAbsent():
		return ""
	case v.Kind == ValueNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	default:
		return v.Text
	}
}

// MarshalJSON encodes absent values as null
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.IsAbsent():
		return []byte("null"), nil
	case v.Kind == ValueNumber:
		return json.Marshal(v.Number)
	default:
		return json.Marshal(v.Text)
	}
}

// UnmarshalJSON accepts null, a JSON number or a JSON string
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*v = Value{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = TextValue(s)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("invalid value %s: %w", data, err)
		}
		*v = NumberValue(f)
	}
	return nil
}

// Package forexfactory reads the economic calendar export produced by the
// calendar scraper and turns it into indicators and their publications.
package forexfactory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

// Event is one calendar indicator as exported, with its publication history.
type Event struct {
	EbaseID      ID            `json:"ebaseId"`
	Name         string        `json:"name"`
	Country      string        `json:"country"`
	Currency     string        `json:"currency"`
	ImpactName   string        `json:"impactName"`
	TimeMasked   bool          `json:"timeMasked"`
	SoloTitle    string        `json:"soloTitle"`
	PrefixedName string        `json:"prefixedName"`
	Specs        []Spec        `json:"specs"`
	Publications []Publication `json:"publications"`
}

type Spec struct {
	Order int    `json:"order"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// Publication is one release of an event. Dateline is in unix seconds.
type Publication struct {
	ID           ID           `json:"id"`
	Dateline     float64      `json:"dateline"`
	Actual       market.Value `json:"actual"`
	Forecast     market.Value `json:"forecast"`
	Previous     market.Value `json:"previous"`
	Revision     market.Value `json:"revision"`
	IsActive     bool         `json:"is_active"`
	IsMostRecent bool         `json:"is_most_recent"`
}

// ID is an identifier exported either as a JSON number or a string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid id %s: %w", data, err)
		}
		if i, err := n.Int64(); err == nil {
			*id = ID(strconv.FormatInt(i, 10))
			return nil
		}
		*id = ID(n.String())
	}
	return nil
}

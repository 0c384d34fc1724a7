package forexfactory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

const indicatorsKey = "indicators"

var ErrMalformedExport = errors.New("malformed calendar export")

// decodeEvents streams the entries of the top-level "indicators" array, keeping
// one entry in memory at a time. Other top-level keys are skipped. An entry
// that is valid JSON but does not fit Event is passed to reject and skipped.
// Entries are numbered from 1 in both callbacks.
func decodeEvents(r io.Reader, yield func(entry int, ev Event) bool, reject func(entry int, err error)) error {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedExport, err)
		}
		if key, _ := tok.(string); key != indicatorsKey {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return fmt.Errorf("%w: skip %v: %v", ErrMalformedExport, tok, err)
			}
			continue
		}

		if err := expectDelim(dec, '['); err != nil {
			return err
		}
		for entry := 1; dec.More(); entry++ {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("%w: indicator %d: %v", ErrMalformedExport, entry, err)
			}
			var ev Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				reject(entry, err)
				continue
			}
			if !yield(entry, ev) {
				return nil
			}
		}
		if err := expectDelim(dec, ']'); err != nil {
			return err
		}
	}
	return expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: expected %v: %v", ErrMalformedExport, want, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %v, got %v", ErrMalformedExport, want, tok)
	}
	return nil
}

func rejectEntry(report *ingest.ParseReport, format string, args ...any) {
	report.Rejected++
	report.Errors = append(report.Errors, fmt.Sprintf(format, args...))
}

// ReadIndicators returns a lazy single-pass sequence over the indicators in r.
// Lines in the report counts calendar entries.
func ReadIndicators(r io.Reader) (iter.Seq[market.Indicator], *ingest.ParseReport) {
	report := &ingest.ParseReport{}
	consumed := false

	seq := func(yield func(market.Indicator) bool) {
		if consumed {
			return
		}
		consumed = true

		err := decodeEvents(r, func(entry int, ev Event) bool {
			report.Lines++
			ind, err := ToIndicator(ev)
			if err != nil {
				rejectEntry(report, "indicator %d (%s): %v", entry, ev.Name, err)
				return true
			}
			report.Valid++
			return yield(ind)
		}, func(entry int, err error) {
			report.Lines++
			rejectEntry(report, "indicator %d: %v", entry, err)
		})
		if err != nil {
			report.Err = err
		}
	}
	return seq, report
}

// ReadPublications returns a lazy single-pass sequence over every publication in r,
// tagged with the external id of its indicator. Publications of entries that are
// not valid indicators are skipped with them. Lines in the report counts publications.
func ReadPublications(r io.Reader) (iter.Seq[market.IndicatorPublication], *ingest.ParseReport) {
	report := &ingest.ParseReport{}
	consumed := false

	seq := func(yield func(market.IndicatorPublication) bool) {
		if consumed {
			return
		}
		consumed = true

		err := decodeEvents(r, func(_ int, ev Event) bool {
			if ev.EbaseID == "" {
				report.Filtered += len(ev.Publications)
				return true
			}
			for i, p := range ev.Publications {
				report.Lines++
				pub, err := ToPublication(p, string(ev.EbaseID))
				if err != nil {
					rejectEntry(report, "indicator %s publication %d: %v", ev.EbaseID, i+1, err)
					continue
				}
				report.Valid++
				if !yield(pub) {
					return false
				}
			}
			return true
		}, func(int, error) {})
		if err != nil {
			report.Err = err
		}
	}
	return seq, report
}

// IndicatorsFromFile is ReadIndicators over a file opened when the sequence is ranged over.
func IndicatorsFromFile(path string) (iter.Seq[market.Indicator], *ingest.ParseReport) {
	return fromFile(path, ReadIndicators)
}

// PublicationsFromFile is ReadPublications over a file opened when the sequence is ranged over.
func PublicationsFromFile(path string) (iter.Seq[market.IndicatorPublication], *ingest.ParseReport) {
	return fromFile(path, ReadPublications)
}

func fromFile[T any](path string, read func(io.Reader) (iter.Seq[T], *ingest.ParseReport)) (iter.Seq[T], *ingest.ParseReport) {
	report := &ingest.ParseReport{}

	seq := func(yield func(T) bool) {
		f, err := os.Open(path)
		if err != nil {
			report.Err = err
			return
		}
		defer f.Close()

		inner, r := read(f)
		defer func() { *report = *r }()
		for v := range inner {
			if !yield(v) {
				return
			}
		}
	}
	return seq, report
}

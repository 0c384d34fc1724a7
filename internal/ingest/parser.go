package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"

	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

const (
	candleColumns       = 6
	defaultMaxLineBytes = 1 << 20
)

// ParseOptions is the dataset context a file is read under
type ParseOptions struct {
	Pair         market.Pair
	Timeframe    market.Timeframe
	SkipHeader   bool
	MaxLineBytes int
}

// ParseReport accumulates line outcomes while a candle sequence is consumed.
// It is complete only after the sequence has been fully ranged over.
type ParseReport struct {
	Lines    int      `json:"lines" yaml:"lines"`
	Valid    int      `json:"valid" yaml:"valid"`
	Filtered int      `json:"filtered" yaml:"filtered"`
	Rejected int      `json:"rejected" yaml:"rejected"`
	Errors   []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	// Err is a read failure that ended the sequence early
	Err error `json:"-" yaml:"-"`
}

func (r *ParseReport) reject(line int, err error) {
	r.Rejected++
	r.Errors = append(r.Errors, fmt.Sprintf("line %d: %v", line, err))
}

// ParseCandles returns a lazy single-pass sequence over the valid candles in r.
// Rejected lines are recorded in the report and never stop the sequence.
// Weekend candles are counted as filtered, not rejected.
func ParseCandles(r io.Reader, opts ParseOptions) (iter.Seq[market.Candle], *ParseReport) {
	report := &ParseReport{}
	consumed := false

	seq := func(yield func(market.Candle) bool) {
		if consumed {
			return
		}
		consumed = true

		maxLine := opts.MaxLineBytes
		if maxLine <= 0 {
			maxLine = defaultMaxLineBytes
		}
		lr := newLineReader(r, maxLine)

		n := 0
		for {
			line, tooLong, err := lr.next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				report.Err = fmt.Errorf("read after line %d: %w", n, err)
				return
			}
			n++
			if n == 1 && opts.SkipHeader {
				continue
			}
			if tooLong {
				report.Lines++
				report.reject(n, fmt.Errorf("%w: longer than %d bytes", ErrLineTooLong, maxLine))
				continue
			}
			if n == 1 {
				line = strings.TrimPrefix(line, "\ufeff")
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			report.Lines++

			c, weekend, err := parseCandleLine(line, opts)
			switch {
			case err != nil:
				report.reject(n, err)
			case weekend:
				report.Filtered++
			default:
				report.Valid++
				if !yield(c) {
					return
				}
			}
		}
	}
	return seq, report
}

// ParseCandleFile is ParseCandles over a file. The file is opened when the
// sequence is ranged over and closed when it ends; an open failure is set on report.Err.
func ParseCandleFile(path string, opts ParseOptions) (iter.Seq[market.Candle], *ParseReport) {
	report := &ParseReport{}

	seq := func(yield func(market.Candle) bool) {
		f, err := os.Open(path)
		if err != nil {
			report.Err = err
			return
		}
		defer f.Close()

		inner, r := ParseCandles(f, opts)
		defer func() { *report = *r }()
		for c := range inner {
			if !yield(c) {
				return
			}
		}
	}
	return seq, report
}

// parseCandleLine decodes one "timestamp,open,high,low,close,volume" row.
// Columns past the sixth are ignored.
func parseCandleLine(line string, opts ParseOptions) (market.Candle, bool, error) {
	parts := strings.Split(line, ",")
	if len(parts) < candleColumns {
		return market.Candle{}, false, fmt.Errorf("%w: expected %d columns, got %d", ErrColumnCount, candleColumns, len(parts))
	}

	ts, err := DecodeTimestamp(parts[0])
	if err != nil {
		return market.Candle{}, false, err
	}
	if IsWeekend(ts) {
		return market.Candle{}, true, nil
	}

	ohlcv := make([]float64, 5)
	for i := range ohlcv {
		raw := strings.TrimSpace(parts[i+1])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return market.Candle{}, false, violation(ohlcvFields[i], ErrMalformedOHLCV, "not a number: %q", raw)
		}
		ohlcv[i] = v
	}

	c, err := ValidateCandle(CandleInput{
		Pair:      string(opts.Pair),
		Timeframe: string(opts.Timeframe),
		Timestamp: ts,
		OHLCV:     ohlcv,
	})
	return c, false, err
}

// lineReader splits input on '\n' with a cap on line length. A line over the
// cap is consumed whole and reported as too long so reading can go on.
type lineReader struct {
	br    *bufio.Reader
	limit int
	buf   []byte
}

func newLineReader(r io.Reader, limit int) *lineReader {
	return &lineReader{br: bufio.NewReaderSize(r, min(64*1024, limit+2)), limit: limit}
}

// next returns the following line without its line ending. It returns io.EOF
// once the input is exhausted.
func (lr *lineReader) next() (string, bool, error) {
	lr.buf = lr.buf[:0]
	read, tooLong := 0, false
	for {
		chunk, err := lr.br.ReadSlice('\n')
		read += len(chunk)
		if !tooLong {
			lr.buf = append(lr.buf, chunk...)
			if len(lr.buf) > lr.limit+2 {
				tooLong = true
				lr.buf = lr.buf[:0]
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && (!errors.Is(err, io.EOF) || read == 0) {
			return "", false, err
		}

		line := bytes.TrimSuffix(lr.buf, []byte("\n"))
		line = bytes.TrimSuffix(line, []byte("\r"))
		return string(line), tooLong || len(line) > lr.limit, nil
	}
}

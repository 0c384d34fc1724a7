package ingest

import (
	"math"
	"strings"
	"time"

	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

// CandleInput is a candle as read from a source, before any rule has been checked
type CandleInput struct {
	Pair      string
	Timeframe string
	Timestamp time.Time
	OHLCV     []float64
}

// ValidateCandle checks in against the candle rules and returns the normalized Candle.
// The first broken rule is returned as a *ValidationError wrapping one of the Err* sentinels.
func ValidateCandle(in CandleInput) (market.Candle, error) {
	switch {
	case strings.TrimSpace(in.Pair) == "":
		return market.Candle{}, violation("pair", ErrMissingField, "empty")
	case strings.TrimSpace(in.Timeframe) == "":
		return market.Candle{}, violation("timeframe", ErrMissingField, "empty")
	case in.OHLCV == nil:
		return market.Candle{}, violation("ohlcv", ErrMissingField, "empty")
	}

	pair, err := market.ParsePair(in.Pair)
	if err != nil {
		return market.Candle{}, violation("pair", ErrUnknownPair, "%q", in.Pair)
	}
	tf, err := market.ParseTimeframe(in.Timeframe)
	if err != nil {
		return market.Candle{}, violation("timeframe", ErrUnknownTimeframe, "%q", in.Timeframe)
	}
	if in.Timestamp.IsZero() {
		return market.Candle{}, violation("timestamp", ErrInvalidTimestamp, "zero instant")
	}

	if len(in.OHLCV) != 5 {
		return market.Candle{}, violation("ohlcv", ErrMalformedOHLCV, "expected 5 values, got %d", len(in.OHLCV))
	}
	for i, v := range in.OHLCV {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return market.Candle{}, violation(ohlcvFields[i], ErrMalformedOHLCV, "not finite")
		}
	}

	c := market.Candle{
		Pair:      pair,
		Timeframe: tf,
		Timestamp: in.Timestamp.UTC(),
		Open:      in.OHLCV[0],
		High:      in.OHLCV[1],
		Low:       in.OHLCV[2],
		Close:     in.OHLCV[3],
		Volume:    in.OHLCV[4],
	}

	if c.High < math.Max(c.Open, c.Close) {
		return market.Candle{}, violation("high", ErrInconsistentOHLC, "%v below max(open, close)", c.High)
	}
	if c.Low > math.Min(c.Open, c.Close) {
		return market.Candle{}, violation("low", ErrInconsistentOHLC, "%v above min(open, close)", c.Low)
	}
	if c.Volume < 0 {
		return market.Candle{}, violation("volume", ErrNegativeVolume, "%v", c.Volume)
	}
	return c, nil
}

var ohlcvFields = [5]string{"open", "high", "low", "close", "volume"}

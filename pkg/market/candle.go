package market

import (
	"fmt"
	"time"
)

// Candle is one validated OHLCV bar for a pair and timeframe.
// Timestamp is the bar open time in UTC with millisecond precision.
type Candle struct {
	Pair      Pair
	Timeframe Timeframe
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// OHLCV returns the price and volume fields in file column order
func (c Candle) OHLCV() [5]float64 {
	return [5]float64{c.Open, c.High, c.Low, c.Close, c.Volume}
}

// Key identifies a candle within storage: pair, timeframe and open time
func (c Candle) Key() string {
	return fmt.Sprintf("%s:%s:%d", c.Pair, c.Timeframe, c.Timestamp.UnixMilli())
}

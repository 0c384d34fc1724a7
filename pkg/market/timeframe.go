package market

import (
	"fmt"
	"strings"
)

// Timeframe is the candle aggregation period as stored in the database
type Timeframe string

// TimeframeMeta holds the storage value and dataset folder alias for a Timeframe
type TimeframeMeta struct {
	Value   Timeframe
	Folder  string
	Minutes int
}

const (
	Timeframe5Min  Timeframe = "5m"
	Timeframe15Min Timeframe = "15m"
	Timeframe30Min Timeframe = "30m"
	Timeframe1Hour Timeframe = "1h"
	Timeframe4Hour Timeframe = "4h"
	Timeframe1Day  Timeframe = "1d"
	Timeframe1Week Timeframe = "1w"
)

// validTimeframes maps Timeframe to its folder alias and duration
var validTimeframes = map[Timeframe]TimeframeMeta{
	Timeframe5Min:  {Value: Timeframe5Min, Folder: "m5", Minutes: 5},
	Timeframe15Min: {Value: Timeframe15Min, Folder: "m15", Minutes: 15},
	Timeframe30Min: {Value: Timeframe30Min, Folder: "m30", Minutes: 30},
	Timeframe1Hour: {Value: Timeframe1Hour, Folder: "h1", Minutes: 60},
	Timeframe4Hour: {Value: Timeframe4Hour, Folder: "h4", Minutes: 240},
	Timeframe1Day:  {Value: Timeframe1Day, Folder: "d1", Minutes: 1440},   // 24*60
	Timeframe1Week: {Value: Timeframe1Week, Folder: "w1", Minutes: 10080}, // 7*24*60
}

// folderTimeframes is the reverse index of validTimeframes by folder alias
var folderTimeframes = func() map[string]Timeframe {
	m := make(map[string]Timeframe, len(validTimeframes))
	for tf, meta := range validTimeframes {
		m[meta.Folder] = tf
	}
	return m
}()

// IsValid checks if the Timeframe is one of the supported timeframes
func (t Timeframe) IsValid() bool {
	_, ok := validTimeframes[t]
	return ok
}

// Meta returns the TimeframeMeta for t. The zero value is returned for unknown timeframes.
func (t Timeframe) Meta() TimeframeMeta {
	return validTimeframes[t]
}

// ParseTimeframe parses a storage value such as "1h" or "4H" into a Timeframe
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if !tf.IsValid() {
		return "", fmt.Errorf("invalid timeframe: %s", s)
	}
	return tf, nil
}

// TimeframeFromFolder maps a dataset folder alias such as "h1" or "D1" to its Timeframe
func TimeframeFromFolder(folder string) (Timeframe, error) {
	tf, ok := folderTimeframes[strings.ToLower(strings.TrimSpace(folder))]
	if !ok {
		return "", fmt.Errorf("invalid timeframe folder: %s", folder)
	}
	return tf, nil
}

// CompareTimeframes orders timeframes by duration, shortest first
func CompareTimeframes(a, b Timeframe) int {
	return validTimeframes[a].Minutes - validTimeframes[b].Minutes
}

package importer

import (
	"context"
	"fmt"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
)

// DatasetLister is storage that can enumerate its stored datasets
type DatasetLister interface {
	ingest.CandleStats
	Datasets(ctx context.Context) ([]ingest.DatasetKey, error)
}

// AvailableData describes every stored dataset: count, date range and days spanned.
func AvailableData(ctx context.Context, store DatasetLister) ([]ingest.DatasetInfo, error) {
	keys, err := store.Datasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}

	out := make([]ingest.DatasetInfo, 0, len(keys))
	for _, key := range keys {
		info, err := ingest.DescribeDataset(ctx, store, key)
		if err != nil {
			return out, err
		}
		out = append(out, info)
	}
	return out, nil
}

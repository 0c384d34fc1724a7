package postgres_test

import (
	"context"
	"slices"
	"testing"

	"github.com/Daniil-33/trading-journal-back/pkg/market"
	"github.com/Daniil-33/trading-journal-back/pkg/storage/postgres"
)

func nfp() market.Indicator {
	return market.Indicator{
		ExternalID:         "1001",
		Name:               "Non-Farm Employment Change",
		Country:            "US",
		Impact:             market.ImpactHigh,
		Frequency:          market.FrequencyMonthly,
		PublishingTime:     market.PublishingCertain,
		AffectedCurrencies: []market.Currency{market.USD},
		AffectedPairs:      []market.Pair{"AUDUSD", "EURUSD"},
		Title:              "NFP",
		Info:               []market.IndicatorSpec{{Order: 1, Title: "Source", HTML: "<p>BLS</p>"}},
	}
}

// go test -v --run TestIndicatorStore
func TestIndicatorStore(t *testing.T) {
	store := postgres.NewIndicatorStore(newSQLiteClient(t))
	ctx := context.Background()

	cpi := nfp()
	cpi.ExternalID, cpi.Name = "1002", "CPI m/m"

	res, err := store.BulkInsert(ctx, []market.Indicator{nfp(), cpi})
	if err != nil || res.Inserted != 2 {
		t.Fatalf("insert: %+v, %v", res, err)
	}

	res, err = store.BulkInsert(ctx, []market.Indicator{nfp()})
	if err != nil || res.Inserted != 0 {
		t.Errorf("duplicate external id must be skipped: %+v, %v", res, err)
	}

	ok, err := store.Exists(ctx, "1001")
	if err != nil || !ok {
		t.Errorf("Exists(1001) = %v, %v", ok, err)
	}
	ok, err = store.Exists(ctx, "9999")
	if err != nil || ok {
		t.Errorf("Exists(9999) = %v, %v", ok, err)
	}

	ids, err := store.IDsByExternalID(ctx)
	if err != nil || len(ids) != 2 || ids["1001"] == 0 || ids["1001"] == ids["1002"] {
		t.Errorf("unexpected ids: %v (%v)", ids, err)
	}

	got, err := store.GetByExternalID(ctx, "1001")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !slices.Equal(got.AffectedPairs, nfp().AffectedPairs) || len(got.Info) != 1 || got.Info[0].HTML != "<p>BLS</p>" {
		t.Errorf("serialized columns did not round-trip: %+v", got)
	}
}

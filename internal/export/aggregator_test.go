package export

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/taxlien-works/harvest/pkg/models"
)

func rec(parcelID, county string) *models.Record {
	return &models.Record{
		ParcelID: parcelID,
		County:   models.Some(county),
	}
}

func TestUpsert_PreservesInsertionOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Upsert(rec("c", "FULTON"))
	agg.Upsert(rec("a", "COBB"))
	agg.Upsert(rec("b", "DEKALB"))

	records := agg.Records()
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, want := range []string{"c", "a", "b"} {
		if records[i].ParcelID != want {
			t.Errorf("records[%d] = %q, want %q", i, records[i].ParcelID, want)
		}
	}
}

func TestUpsert_ReplacesDuplicateInPlace(t *testing.T) {
	agg := NewAggregator()
	if !agg.Upsert(rec("x", "FULTON")) {
		t.Error("first Upsert reported not-new")
	}
	agg.Upsert(rec("y", "COBB"))

	replacement := rec("x", "FULTON")
	replacement.TotalDue = models.SomeAmount(decimal.NewFromInt(100))
	if agg.Upsert(replacement) {
		t.Error("duplicate Upsert reported new")
	}

	records := agg.Records()
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ParcelID != "x" || !records[0].TotalDue.Present {
		t.Errorf("duplicate did not replace in place: %+v", records[0])
	}
	if agg.Len() != 2 {
		t.Errorf("Len = %d, want 2", agg.Len())
	}
}

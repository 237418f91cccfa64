package export

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/taxlien-works/harvest/pkg/models"
)

// Aggregator collects the records of one job, deduplicating on parcel ID
// while preserving first-seen order. Re-extracting a record the portal
// served twice replaces the earlier copy in place.
type Aggregator struct {
	mu      sync.Mutex
	order   []string
	records map[string]*models.Record
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{records: make(map[string]*models.Record)}
}

// Upsert adds a record, replacing any earlier record with the same parcel
// ID. Returns true when the record was new.
func (a *Aggregator) Upsert(rec *models.Record) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.records[rec.ParcelID]; exists {
		log.Debug().Str("parcel_id", rec.ParcelID).Msg("Replacing duplicate record")
		a.records[rec.ParcelID] = rec
		return false
	}
	a.order = append(a.order, rec.ParcelID)
	a.records[rec.ParcelID] = rec
	return true
}

// Len returns the number of distinct records collected.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}

// Records returns the collected records in first-seen order.
func (a *Aggregator) Records() []*models.Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*models.Record, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.records[id])
	}
	return out
}

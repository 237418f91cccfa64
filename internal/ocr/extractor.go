package ocr

import (
	"github.com/rs/zerolog/log"

	"github.com/taxlien-works/harvest/internal/errs"
	"github.com/taxlien-works/harvest/internal/extract"
	"github.com/taxlien-works/harvest/pkg/models"
)

// Extractor applies the shared field rules to recognized text and assembles
// a record from the optical path.
type Extractor struct{}

// Extract builds a record from OCR output. The viewer reference, when
// present, contributes the identifying fields the document image cannot.
// A source with no recognizable amount and no address yields OCR_NO_MATCH.
func (Extractor) Extract(src *extract.Source, viewer *models.ViewerRef, sourceURL string) (*models.Record, error) {
	if src == nil || src.Empty() {
		return nil, errs.OcrNoMatch("no text recognized")
	}

	rec := &models.Record{
		SourceURL:  sourceURL,
		Viewer:     viewer,
		Provenance: models.ProvenanceOCR,
	}
	if viewer != nil {
		rec.ParcelID = viewer.LienID
		if viewer.County != "" {
			rec.County = models.Some(viewer.County)
		}
		if viewer.Book != "" {
			rec.Book = models.Some(viewer.Book)
		}
		if viewer.Page != "" {
			rec.Page = models.Some(viewer.Page)
		}
	}

	matched := false
	if best, ok := extract.BestAmount(src); ok {
		rec.TotalDue = models.SomeAmount(best)
		matched = true
	}
	if blocks := extract.ExtractAddressBlocks(src); len(blocks) > 0 {
		block := blocks[0]
		rec.Address = models.Some(extract.NormalizeAddress(block.Address))
		if extract.ValidZip(block.Zip) {
			rec.ZipCode = models.Some(block.Zip)
		}
		matched = true
	}

	if !matched {
		return nil, errs.OcrNoMatch("no amount or address in recognized text")
	}

	log.Debug().
		Str("url", sourceURL).
		Bool("amount", rec.TotalDue.Present).
		Bool("address", rec.Address.Present).
		Msg("Optical extraction produced fields")
	return rec, nil
}

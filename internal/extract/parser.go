package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/taxlien-works/harvest/internal/errs"
	"github.com/taxlien-works/harvest/pkg/models"
)

// Parser extracts canonical fields from structured detail-page markup.
type Parser struct {
	baseURL string
}

// NewParser creates a Parser. baseURL is used to build document viewer URLs.
func NewParser(baseURL string) *Parser {
	return &Parser{baseURL: baseURL}
}

// Parse applies the structural field rules to page. A record with no
// locatable field at all is returned as nil with no error, signaling the
// caller to invoke the optical fallback. A field that fails validation
// yields a ParseInvalid error.
func (p *Parser) Parse(page *models.RawRecordPage) (*models.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, errs.ParseInvalid("unparseable detail page markup", err)
	}

	if strings.Contains(doc.Find("body").Text(), "CANCELLATION") {
		return nil, errs.ParseInvalid("cancelled instrument on source page", nil)
	}

	rec := &models.Record{
		SourceURL:  page.URL,
		Provenance: models.ProvenanceStructured,
	}

	p.parseDocumentTable(doc, rec)
	p.parseDescription(doc, rec)
	rec.Debtors = parsePartyTable(doc, "Direct Party (Debtor)")
	rec.Claimants = parsePartyTable(doc, "Reverse Party (Claimant)")

	if viewer := p.parseViewer(doc); viewer != nil {
		rec.Viewer = viewer
	}

	rec.ParcelID = deriveParcelID(rec)

	if rec.Empty() {
		log.Debug().Str("url", page.URL).Msg("No structured fields located, record is empty")
		return nil, nil
	}

	// Description amount is validated here; an unparseable amount rejects
	// the record rather than exporting a formatted string.
	if rec.Description.Present {
		d, ok, err := FindAmount(rec.Description.Value)
		if err != nil {
			return nil, err
		}
		if ok {
			rec.DescAmount = models.SomeAmount(d)
		}

		// The property address, when the portal includes it at all, sits
		// inside the description text.
		if blocks := ExtractAddressBlocks(NewTextSource(rec.Description.Value)); len(blocks) > 0 {
			rec.Address = models.Some(NormalizeAddress(blocks[0].Address))
			if ValidZip(blocks[0].Zip) {
				rec.ZipCode = models.Some(blocks[0].Zip)
			}
		}
	}

	return rec, nil
}

// parseDocumentTable reads the fixed-width header table that carries county,
// instrument, filing date, book and page.
func (p *Parser) parseDocumentTable(doc *goquery.Document, rec *models.Record) {
	table := doc.Find(`table[width='800'][cellpadding='0'][cellspacing='0']`).First()
	if table.Length() == 0 {
		return
	}

	row := table.Find("tr").Eq(1)
	if row.Length() == 0 {
		return
	}

	var cols []string
	row.Find("td").Each(func(_ int, td *goquery.Selection) {
		cols = append(cols, NormalizeWhitespace(td.Text()))
	})
	if len(cols) < 6 {
		return
	}

	rec.County = fieldOf(cols[0])
	rec.Instrument = fieldOf(cols[1])
	rec.RecordDate = fieldOf(cols[2])
	// cols[3] is the filing time, not part of the canonical schema
	rec.Book = fieldOf(cols[4])
	rec.Page = fieldOf(cols[5])
}

// parseDescription reads the Description table's value row.
func (p *Parser) parseDescription(doc *goquery.Document, rec *models.Record) {
	label := findCell(doc, "Description")
	if label == nil {
		return
	}

	value := label.Closest("table").Find("tr").Eq(1).Find("td").First()
	if value.Length() == 0 {
		return
	}
	rec.Description = fieldOf(NormalizeWhitespace(value.Text()))
}

// parsePartyTable collects the party names beneath the given table label.
func parsePartyTable(doc *goquery.Document, label string) []string {
	cell := findCell(doc, label)
	if cell == nil {
		return nil
	}

	var names []string
	cell.Closest("table").Find("td").Each(func(i int, td *goquery.Selection) {
		if i == 0 {
			return // the label cell itself
		}
		if name := NormalizeWhitespace(td.Text()); name != "" {
			names = append(names, name)
		}
	})
	return names
}

// findCell returns the first td whose text contains label, or nil.
func findCell(doc *goquery.Document, label string) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
		if strings.Contains(td.Text(), label) {
			found = td
			return false
		}
		return true
	})
	return found
}

func fieldOf(s string) models.Field {
	if s == "" {
		return models.Absent()
	}
	return models.Some(s)
}

// deriveParcelID builds the record's natural key: the portal's lien id when
// the viewer exposes one, otherwise the county/book/page composite.
func deriveParcelID(rec *models.Record) string {
	if rec.Viewer != nil && rec.Viewer.LienID != "" {
		return rec.Viewer.LienID
	}
	if rec.County.Present && rec.Book.Present && rec.Page.Present {
		return fmt.Sprintf("%s-%s-%s",
			strings.ReplaceAll(rec.County.Value, " ", "_"), rec.Book.Value, rec.Page.Value)
	}
	return ""
}

package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/taxlien-works/harvest/pkg/models"
)

func exportRec() *models.Record {
	return &models.Record{
		ParcelID:    "987654",
		County:      models.Some("FULTON"),
		Instrument:  models.Some("LIEN"),
		RecordDate:  models.Some("03/15/2023"),
		Book:        models.Some("1234"),
		Page:        models.Some("567"),
		Address:     models.Some("123 MAIN ST, ATLANTA GA 30301"),
		ZipCode:     models.Some("30301"),
		Description: models.Some("STATE EXECUTION $2,500.00"),
		TotalDue:    models.SomeAmount(decimal.RequireFromString("2500.00")),
		DescAmount:  models.SomeAmount(decimal.RequireFromString("2500.00")),
		Debtors:     []string{"DOE, JOHN", "DOE, JANE"},
		Claimants:   []string{"STATE OF GEORGIA"},
		SourceURL:   "https://search.gsccca.org/Lien/liendetails.asp?id=1",
		Artifact:    "/tmp/job_987654.pdf",
		Provenance:  models.ProvenanceStructured,
	}
}

func TestFlush_WritesWorkbook(t *testing.T) {
	dir := t.TempDir()
	wb := NewWorkbook(dir)

	agg := NewAggregator()
	agg.Upsert(exportRec())

	path, err := wb.Flush(agg, "job1")
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if path != filepath.Join(dir, "liens_job1.xlsx") {
		t.Errorf("export path = %q", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("export not readable: %v", err)
	}
	defer f.Close()

	got, err := f.GetCellValue(sheetName, "A1")
	if err != nil || got != "County" {
		t.Errorf("A1 = %q (err %v), want County", got, err)
	}
	if got, _ := f.GetCellValue(sheetName, "A2"); got != "FULTON" {
		t.Errorf("A2 = %q, want FULTON", got)
	}
	if got, _ := f.GetCellValue(sheetName, "F2"); got != "DOE, JOHN; DOE, JANE" {
		t.Errorf("F2 = %q", got)
	}
	if got, _ := f.GetCellValue(sheetName, "J2"); got != "2500.00" {
		t.Errorf("J2 (structured total) = %q, want 2500.00", got)
	}
	if got, _ := f.GetCellValue(sheetName, "K2"); got != "" {
		t.Errorf("K2 (ocr total) = %q, want empty for structured record", got)
	}
	formula, err := f.GetCellFormula(sheetName, "O2")
	if err != nil || formula == "" {
		t.Errorf("O2 has no hyperlink formula (err %v)", err)
	}
}

func TestFlush_OCRAmountColumn(t *testing.T) {
	r := exportRec()
	r.Provenance = models.ProvenanceOCR

	agg := NewAggregator()
	agg.Upsert(r)

	wb := NewWorkbook(t.TempDir())
	path, err := wb.Flush(agg, "job2")
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("export not readable: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue(sheetName, "J2"); got != "" {
		t.Errorf("J2 = %q, want empty for OCR record", got)
	}
	if got, _ := f.GetCellValue(sheetName, "K2"); got != "2500.00" {
		t.Errorf("K2 = %q, want 2500.00", got)
	}
}

func TestFlush_ReplacesPreviousExport(t *testing.T) {
	dir := t.TempDir()
	wb := NewWorkbook(dir)

	agg := NewAggregator()
	agg.Upsert(exportRec())
	if _, err := wb.Flush(agg, "job3"); err != nil {
		t.Fatalf("first Flush failed: %v", err)
	}

	second := exportRec()
	second.ParcelID = "111"
	agg.Upsert(second)
	path, err := wb.Flush(agg, "job3")
	if err != nil {
		t.Fatalf("second Flush failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("export not readable: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("got %d rows, want header + 2 records", len(rows))
	}

	// No stray temp files left behind.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("export dir holds %d entries, want only the workbook", len(entries))
	}
}

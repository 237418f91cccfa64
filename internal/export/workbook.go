package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/taxlien-works/harvest/internal/errs"
	"github.com/taxlien-works/harvest/pkg/models"
)

const sheetName = "Liens"

var headers = []string{
	"County",
	"Instrument",
	"Date Filed",
	"Book",
	"Page",
	"Debtor",
	"Claimant",
	"Address",
	"Zipcode",
	"Total Due",
	"OCR Total Due",
	"Description",
	"Amount",
	"Document URL",
	"View PDF",
}

// Workbook renders an aggregator's records into the job's XLSX export.
type Workbook struct {
	exportDir string
}

// NewWorkbook returns a workbook writer targeting dir.
func NewWorkbook(dir string) *Workbook {
	return &Workbook{exportDir: dir}
}

// ExportPath returns the workbook path for a job.
func (w *Workbook) ExportPath(jobID string) string {
	return filepath.Join(w.exportDir, fmt.Sprintf("liens_%s.xlsx", jobID))
}

// Flush writes every collected record to the job's workbook. The file is
// assembled in memory and swapped in with a rename, so an interrupted flush
// leaves the previous export intact.
func (w *Workbook) Flush(agg *Aggregator, jobID string) (string, error) {
	records := agg.Records()

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", errs.ExportFlushFailed(err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", errs.ExportFlushFailed(err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return "", errs.ExportFlushFailed(err)
		}
	}

	for i, rec := range records {
		if err := w.writeRow(f, i+2, rec); err != nil {
			return "", errs.ExportFlushFailed(err)
		}
	}

	// Widen the free-text columns.
	_ = f.SetColWidth(sheetName, "A", "B", 18)
	_ = f.SetColWidth(sheetName, "F", "H", 32)
	_ = f.SetColWidth(sheetName, "L", "L", 48)
	_ = f.SetColWidth(sheetName, "N", "N", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", errs.ExportFlushFailed(err)
	}

	if err := os.MkdirAll(w.exportDir, 0o755); err != nil {
		return "", errs.ExportFlushFailed(err)
	}
	tmp, err := os.CreateTemp(w.exportDir, "export-*.xlsx")
	if err != nil {
		return "", errs.ExportFlushFailed(err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", errs.ExportFlushFailed(err)
	}
	if err := tmp.Close(); err != nil {
		return "", errs.ExportFlushFailed(err)
	}

	final := w.ExportPath(jobID)
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", errs.ExportFlushFailed(err)
	}

	log.Info().Str("path", final).Int("records", len(records)).Msg("Export flushed")
	return final, nil
}

func (w *Workbook) writeRow(f *excelize.File, row int, rec *models.Record) error {
	write := func(col int, v any) error {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		return f.SetCellValue(sheetName, cell, v)
	}

	structuredDue := ""
	ocrDue := ""
	if rec.TotalDue.Present {
		if rec.Provenance == models.ProvenanceOCR {
			ocrDue = rec.TotalDue.Value.StringFixed(2)
		} else {
			structuredDue = rec.TotalDue.Value.StringFixed(2)
		}
	}
	descAmount := ""
	if rec.DescAmount.Present {
		descAmount = rec.DescAmount.Value.StringFixed(2)
	}

	cells := []any{
		rec.County.Or(""),
		rec.Instrument.Or(""),
		rec.RecordDate.Or(""),
		rec.Book.Or(""),
		rec.Page.Or(""),
		joinParties(rec.Debtors),
		joinParties(rec.Claimants),
		rec.Address.Or(""),
		rec.ZipCode.Or(""),
		structuredDue,
		ocrDue,
		rec.Description.Or(""),
		descAmount,
		rec.SourceURL,
	}
	for i, v := range cells {
		if err := write(i+1, v); err != nil {
			return err
		}
	}

	if rec.Artifact != "" {
		cell, _ := excelize.CoordinatesToCellName(len(cells)+1, row)
		formula := fmt.Sprintf(`HYPERLINK("%s","View PDF")`, rec.Artifact)
		if err := f.SetCellFormula(sheetName, cell, formula); err != nil {
			return err
		}
	}
	return nil
}

func joinParties(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += "; "
		}
		out += n
	}
	return out
}

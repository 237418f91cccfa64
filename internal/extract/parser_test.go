package extract

import (
	"errors"
	"testing"
	"time"

	"github.com/taxlien-works/harvest/internal/errs"
	"github.com/taxlien-works/harvest/pkg/models"
)

const detailPageHTML = `<html><body>
<table width="800" cellpadding="0" cellspacing="0">
  <tr><td>County</td><td>Instrument</td><td>Date Filed</td><td>Time</td><td>Book</td><td>Page</td></tr>
  <tr><td>FULTON</td><td>LIEN</td><td>03/15/2023</td><td>10:42 AM</td><td>1234</td><td>567</td></tr>
</table>
<table>
  <tr><td>Description</td></tr>
  <tr><td>STATE EXECUTION IN THE AMOUNT OF $2,500.00</td></tr>
</table>
<table>
  <tr><td>Direct Party (Debtor)</td></tr>
  <tr><td>DOE, JOHN</td></tr>
  <tr><td>DOE, JANE</td></tr>
</table>
<table>
  <tr><td>Reverse Party (Claimant)</td></tr>
  <tr><td>STATE OF GEORGIA</td></tr>
</table>
<script>
var iLienID = 987654;
var county = "60";
var book = "1234";
var page = "567";
var user = 11;
var appid = 4;
function ViewImage() { window.open("HTML5Viewer.aspx"); }
</script>
</body></html>`

func testPage(html string) *models.RawRecordPage {
	return &models.RawRecordPage{
		URL:       "https://search.gsccca.org/Lien/liendetails.asp?id=1",
		HTML:      html,
		FetchedAt: time.Now(),
	}
}

func TestParse_StructuredPage(t *testing.T) {
	p := NewParser("https://search.gsccca.org")
	rec, err := p.Parse(testPage(detailPageHTML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if rec == nil {
		t.Fatal("Parse returned nil record for a structured page")
	}

	if rec.County.Or("") != "FULTON" {
		t.Errorf("County = %q, want FULTON", rec.County.Or(""))
	}
	if rec.Instrument.Or("") != "LIEN" {
		t.Errorf("Instrument = %q, want LIEN", rec.Instrument.Or(""))
	}
	if rec.RecordDate.Or("") != "03/15/2023" {
		t.Errorf("RecordDate = %q, want 03/15/2023", rec.RecordDate.Or(""))
	}
	if rec.Book.Or("") != "1234" || rec.Page.Or("") != "567" {
		t.Errorf("Book/Page = %q/%q, want 1234/567", rec.Book.Or(""), rec.Page.Or(""))
	}
	if len(rec.Debtors) != 2 || rec.Debtors[0] != "DOE, JOHN" {
		t.Errorf("Debtors = %v, want [DOE, JOHN | DOE, JANE]", rec.Debtors)
	}
	if len(rec.Claimants) != 1 || rec.Claimants[0] != "STATE OF GEORGIA" {
		t.Errorf("Claimants = %v", rec.Claimants)
	}
	if !rec.DescAmount.Present || rec.DescAmount.Value.String() != "2500" {
		t.Errorf("DescAmount = %v, want 2500", rec.DescAmount)
	}
	if rec.Provenance != models.ProvenanceStructured {
		t.Errorf("Provenance = %q, want structured", rec.Provenance)
	}
}

func TestParse_ViewerScript(t *testing.T) {
	p := NewParser("https://search.gsccca.org")
	rec, err := p.Parse(testPage(detailPageHTML))
	if err != nil || rec == nil {
		t.Fatalf("Parse failed: rec=%v err=%v", rec, err)
	}

	if rec.Viewer == nil {
		t.Fatal("no viewer reference extracted")
	}
	if rec.Viewer.LienID != "987654" {
		t.Errorf("LienID = %q, want 987654", rec.Viewer.LienID)
	}
	wantURL := "https://search.gsccca.org/Imaging/HTML5Viewer.aspx?id=987654&key1=1234&key2=567&county=60&userid=11&appid=4"
	if rec.Viewer.URL != wantURL {
		t.Errorf("viewer URL = %q, want %q", rec.Viewer.URL, wantURL)
	}
	// The lien id doubles as the record's natural key.
	if rec.ParcelID != "987654" {
		t.Errorf("ParcelID = %q, want 987654", rec.ParcelID)
	}
}

func TestParse_ParcelIDCompositeFallback(t *testing.T) {
	html := `<html><body>
<table width="800" cellpadding="0" cellspacing="0">
  <tr><td>h</td></tr>
  <tr><td>DE KALB</td><td>LIEN</td><td>01/01/2023</td><td>9:00 AM</td><td>22</td><td>33</td></tr>
</table>
</body></html>`

	p := NewParser("https://search.gsccca.org")
	rec, err := p.Parse(testPage(html))
	if err != nil || rec == nil {
		t.Fatalf("Parse failed: rec=%v err=%v", rec, err)
	}
	if rec.ParcelID != "DE_KALB-22-33" {
		t.Errorf("ParcelID = %q, want DE_KALB-22-33", rec.ParcelID)
	}
}

func TestParse_CancellationRejected(t *testing.T) {
	html := `<html><body><h1>CANCELLATION OF LIEN</h1></body></html>`
	p := NewParser("https://search.gsccca.org")

	_, err := p.Parse(testPage(html))
	if err == nil {
		t.Fatal("Parse accepted a cancellation page")
	}
	var e *errs.Error
	if !errors.As(err, &e) || e.Kind != errs.KindParseInvalid {
		t.Errorf("error kind = %v, want PARSE_INVALID", errs.KindOf(err))
	}
}

func TestParse_EmptyPageSignalsFallback(t *testing.T) {
	html := `<html><body><p>Document image only.</p></body></html>`
	p := NewParser("https://search.gsccca.org")

	rec, err := p.Parse(testPage(html))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if rec != nil {
		t.Errorf("Parse = %+v, want nil for a page with no structured fields", rec)
	}
}

func TestViewer_RegexFallback(t *testing.T) {
	// A script goja cannot run at all still yields a reference via regex.
	html := `<html><body><script>
<!--
var iLienID = 42;
var county = "7";
var book = "100";
var page = "200";
var user = 1;
var appid = 4;
function ViewImage() {}
-->
</script></body></html>`

	p := NewParser("https://search.gsccca.org")
	viewer := p.Viewer(testPage(html))
	if viewer == nil {
		t.Fatal("Viewer returned nil")
	}
	if viewer.LienID != "42" || viewer.County != "7" {
		t.Errorf("viewer = %+v, want lien 42 county 7", viewer)
	}
}

func TestViewer_NoScript(t *testing.T) {
	p := NewParser("https://search.gsccca.org")
	if v := p.Viewer(testPage("<html><body></body></html>")); v != nil {
		t.Errorf("Viewer = %+v, want nil when no viewer script exists", v)
	}
}

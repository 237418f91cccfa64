package extract

import (
	"testing"
)

func TestBestAmount_PrefersKeywordLine(t *testing.T) {
	src := NewTextSource(`STATE OF GEORGIA
FILING FEE $9,999.00
TOTAL DUE $1,234.56
INTEREST $10.00`)

	d, ok := BestAmount(src)
	if !ok {
		t.Fatal("BestAmount found no candidates")
	}
	// The fee is larger, but the keyword on the total line outweighs the
	// value bias.
	if d.String() != "1234.56" {
		t.Errorf("BestAmount = %s, want 1234.56", d.String())
	}
}

func TestBestAmount_ValueBiasBreaksTies(t *testing.T) {
	src := NewTextSource(`AMOUNT $100.00
AMOUNT $5,000.00`)

	d, ok := BestAmount(src)
	if !ok {
		t.Fatal("BestAmount found no candidates")
	}
	if d.String() != "5000" {
		t.Errorf("BestAmount = %s, want 5000", d.String())
	}
}

func TestBestAmount_RepairsOCRDollar(t *testing.T) {
	src := NewTextSource("TOTAL DUE S1,500.00")
	d, ok := BestAmount(src)
	if !ok {
		t.Fatal("BestAmount found no candidates")
	}
	if d.String() != "1500" {
		t.Errorf("BestAmount = %s, want 1500", d.String())
	}
}

func TestScoreAmounts_Ordering(t *testing.T) {
	src := NewTextSource(`TAX $50.00
BALANCE DUE $50.00`)

	candidates := ScoreAmounts(src)
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if candidates[0].Line != "BALANCE DUE $50.00" {
		t.Errorf("top candidate line = %q, want the balance-due line", candidates[0].Line)
	}
	if candidates[0].Score <= candidates[1].Score {
		t.Errorf("scores not descending: %f then %f", candidates[0].Score, candidates[1].Score)
	}
}

func TestExtractAddressBlocks_AnchorsOnStateZip(t *testing.T) {
	src := NewTextSource(`JOHN Q TAXPAYER
123 MAIN ST
ATLANTA GA 30301`)

	blocks := ExtractAddressBlocks(src)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	if blocks[0].Zip != "30301" {
		t.Errorf("zip = %q, want 30301", blocks[0].Zip)
	}
	want := "JOHN Q TAXPAYER, 123 MAIN ST, ATLANTA GA 30301"
	if blocks[0].Address != want {
		t.Errorf("address = %q, want %q", blocks[0].Address, want)
	}
}

func TestExtractAddressBlocks_SkipsFilingAuthority(t *testing.T) {
	src := NewTextSource(`FULTON COUNTY TAX COMMISSIONER
141 PRYOR ST SW
ATLANTA GA 30303`)

	if blocks := ExtractAddressBlocks(src); len(blocks) != 0 {
		t.Errorf("got %d blocks, want 0 for filing-authority address", len(blocks))
	}
}

func TestExtractAddressBlocks_GapEndsBlock(t *testing.T) {
	src := &Source{Lines: []Line{
		{Text: "UNRELATED HEADER", Box: BBox{0, 0, 200, 20}, HasBox: true},
		{Text: "456 OAK AVE", Box: BBox{0, 300, 200, 320}, HasBox: true},
		{Text: "SAVANNAH GA 31401", Box: BBox{0, 325, 200, 345}, HasBox: true},
	}}

	blocks := ExtractAddressBlocks(src)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	want := "456 OAK AVE, SAVANNAH GA 31401"
	if blocks[0].Address != want {
		t.Errorf("address = %q, want %q (header should fall outside the gap)", blocks[0].Address, want)
	}
}

func TestExtractAddressBlocks_DeduplicatesRepeats(t *testing.T) {
	src := NewTextSource(`123 MAIN ST
ATLANTA GA 30301
123 MAIN ST
ATLANTA GA 30301`)

	blocks := ExtractAddressBlocks(src)
	if len(blocks) != 1 {
		t.Errorf("got %d blocks, want 1 after dedupe", len(blocks))
	}
}

func TestCleanAddressBlock_StripsNoise(t *testing.T) {
	got := cleanAddressBlock("Location: 123 MAIN ST #4\nATLANTA GA 30301 extra trailing text")
	want := "123 MAIN ST 4, ATLANTA GA 30301"
	if got != want {
		t.Errorf("cleanAddressBlock = %q, want %q", got, want)
	}
}

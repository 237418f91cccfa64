package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// amountKeywords weight amount candidates by the wording of their line.
// Ordering matters: longer phrases are checked before their substrings.
var amountKeywords = []struct {
	kw     string
	weight float64
}{
	{"TOTAL DUE", 12},
	{"TOTAL LIEN", 10},
	{"TOTAL AMOUNT", 10},
	{"BALANCE DUE", 10},
	{"TOTAL", 8},
	{"PAID AMOUNT", 8},
	{"BALANCE", 6},
	{"PAID", 4},
	{"DUE", 4},
	{"TAX", 2},
}

// addressSkipRe rejects blocks that belong to the filing authority rather
// than the taxpayer.
var addressSkipRe = regexp.MustCompile(`(?i)\b(fifa|county|commissioner|tax|court)\b`)

var (
	locationWordRe = regexp.MustCompile(`(?i)\blocation\b\s*:?`)
	floatNumberRe  = regexp.MustCompile(`\b\d+\.\d+\b`)
	specialCharsRe = regexp.MustCompile(`[^A-Za-z0-9,.\s\n]`)
	newlineRe      = regexp.MustCompile(`\s*\n\s*`)
	trailingZipRe  = regexp.MustCompile(`(\d{5})(?:-\d{4})?\s*$`)
)

// AmountCandidate is one dollar amount found in a source, scored by the
// keywords on its line plus a small bias toward larger values.
type AmountCandidate struct {
	Raw   string
	Value decimal.Decimal
	Line  string
	Score float64
}

// ScoreAmounts finds every dollar amount in src and ranks the candidates,
// best first.
func ScoreAmounts(src *Source) []AmountCandidate {
	var candidates []AmountCandidate

	for _, ln := range src.Lines {
		upper := strings.ToUpper(ln.Text)
		norm := NormalizeCurrencyText(ln.Text)

		for _, m := range amountRe.FindAllStringSubmatch(norm, -1) {
			value, err := ParseCurrency(m[1])
			if err != nil {
				continue
			}

			score := 0.0
			for _, k := range amountKeywords {
				if strings.Contains(upper, k.kw) {
					score += k.weight
				}
			}
			// small bias toward higher amounts
			f, _ := value.Float64()
			score += f / 1000.0

			candidates = append(candidates, AmountCandidate{
				Raw:   strings.ReplaceAll(m[0], " ", ""),
				Value: value,
				Line:  ln.Text,
				Score: score,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// BestAmount returns the top-scored amount in src, if any. Candidates whose
// line carries no keyword at all are still eligible; the scoring already
// prefers keyword-bearing lines.
func BestAmount(src *Source) (decimal.Decimal, bool) {
	candidates := ScoreAmounts(src)
	if len(candidates) == 0 {
		return decimal.Zero, false
	}
	return candidates[0].Value, true
}

// AddressBlock is one address found in a source, with its ZIP when the
// trailing state+ZIP anchor carried one.
type AddressBlock struct {
	Address string
	Zip     string
}

// ExtractAddressBlocks finds address blocks in src. A block is anchored on a
// line matching state+ZIP and extended upward by at most three lines; when
// bounding boxes are available, a vertical gap larger than 2.5 line heights
// ends the block. Blocks naming the filing authority are skipped, and
// near-duplicates are collapsed.
func ExtractAddressBlocks(src *Source) []AddressBlock {
	var blocks []AddressBlock
	seen := make(map[string]bool)

	for i, ln := range src.Lines {
		txt := strings.TrimSpace(ln.Text)
		if txt == "" || !stateZipRe.MatchString(txt) {
			continue
		}

		picked := []int{i}
		maxGap := 0
		if ln.HasBox {
			maxGap = int(2.5 * float64(ln.Box.Height()))
		}

		for j := i - 1; j >= 0 && len(picked) < 4; j-- {
			prev := src.Lines[j]
			if strings.TrimSpace(prev.Text) == "" {
				continue
			}
			if maxGap > 0 && prev.HasBox {
				curr := src.Lines[picked[len(picked)-1]]
				gap := curr.Box[1] - prev.Box[3]
				if gap > maxGap {
					break
				}
			}
			picked = append(picked, j)
		}

		sort.Ints(picked)
		var blockLines []string
		for _, k := range picked {
			if t := strings.TrimSpace(src.Lines[k].Text); t != "" {
				blockLines = append(blockLines, t)
			}
		}
		blockText := strings.Join(blockLines, "\n")
		if blockText == "" || addressSkipRe.MatchString(blockText) {
			continue
		}

		cleaned := cleanAddressBlock(blockText)
		if cleaned == "" {
			continue
		}

		norm := strings.ToLower(NormalizeWhitespace(cleaned))
		if seen[norm] {
			continue
		}
		seen[norm] = true

		zip := ""
		if m := trailingZipRe.FindStringSubmatch(cleaned); m != nil {
			zip = m[1]
		}
		blocks = append(blocks, AddressBlock{Address: cleaned, Zip: zip})
	}

	return blocks
}

// cleanAddressBlock applies the fixed cleanup sequence: truncate after the
// state+ZIP anchor, drop label words and stray decimals, strip everything
// but letters, digits, commas and dots, and join lines with commas.
func cleanAddressBlock(block string) string {
	if m := stateZipRe.FindStringIndex(block); m != nil {
		block = block[:m[1]]
	}
	block = locationWordRe.ReplaceAllString(block, " ")
	block = floatNumberRe.ReplaceAllString(block, " ")
	block = specialCharsRe.ReplaceAllString(block, " ")
	block = newlineRe.ReplaceAllString(block, ", ")
	return NormalizeWhitespace(block)
}

package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/taxlien-works/harvest/internal/errs"
)

var (
	// amountRe matches a dollar amount with optional thousands separators.
	amountRe = regexp.MustCompile(`\$\s*([0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]+)?|[0-9]+(?:\.[0-9]+)?)`)

	// zipRe matches a US ZIP code, optionally with +4.
	zipRe = regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`)

	// stateZipRe anchors address blocks on a trailing state + ZIP.
	stateZipRe = regexp.MustCompile(`(?i)\b(?:GA|FL)\b\s*,?\s*\d{5}(?:-\d{4})?\b`)

	// ocrDollarRe repairs the recognizer's common confusion of "$" with "S".
	ocrDollarRe = regexp.MustCompile(`\bS\s*([0-9])`)

	spacesRe      = regexp.MustCompile(`\s{2,}`)
	commaSpaceRe  = regexp.MustCompile(`\s*,\s*`)
	commaRepeatRe = regexp.MustCompile(`(, ){2,}`)
)

// NormalizeCurrencyText repairs OCR confusions around currency symbols.
func NormalizeCurrencyText(s string) string {
	s = strings.ReplaceAll(s, "§", "$")
	return ocrDollarRe.ReplaceAllString(s, "$$$1")
}

// ParseCurrency strips locale formatting (currency symbol, thousands
// separators) and parses a non-negative decimal. A value that cannot be
// parsed, or is negative, yields a ParseInvalid error.
func ParseCurrency(raw string) (decimal.Decimal, error) {
	s := NormalizeCurrencyText(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, errs.ParseInvalid("empty currency value", nil)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errs.ParseInvalid(fmt.Sprintf("unparseable currency value %q", raw), err)
	}
	if d.IsNegative() {
		return decimal.Zero, errs.ParseInvalid(fmt.Sprintf("negative currency value %q", raw), nil)
	}
	return d, nil
}

// FindAmount locates the first dollar amount in s and parses it.
// Returns ok=false when no amount pattern is present.
func FindAmount(s string) (decimal.Decimal, bool, error) {
	m := amountRe.FindStringSubmatch(NormalizeCurrencyText(s))
	if m == nil {
		return decimal.Zero, false, nil
	}
	d, err := ParseCurrency(m[1])
	if err != nil {
		return decimal.Zero, true, err
	}
	return d, true, nil
}

// ValidZip reports whether s looks like a US ZIP code.
func ValidZip(s string) bool {
	return zipRe.MatchString(s) && zipRe.FindString(s) == strings.TrimSpace(s)
}

// NormalizeWhitespace collapses runs of whitespace and fixes comma spacing,
// producing the consistent form used for downstream grouping.
func NormalizeWhitespace(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = commaSpaceRe.ReplaceAllString(s, ", ")
	s = commaRepeatRe.ReplaceAllString(s, ", ")
	return strings.Trim(s, " ,")
}

// NormalizeAddress uppercases and whitespace-normalizes an address for the
// export. The artifact preserves the raw source text for audit.
func NormalizeAddress(s string) string {
	return strings.ToUpper(NormalizeWhitespace(s))
}

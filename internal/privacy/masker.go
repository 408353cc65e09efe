package privacy

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// PlaceholderPrefix starts every placeholder token.
const PlaceholderPrefix = "{{FP_"

// placeholderPattern matches any token of the placeholder lexical form,
// whether or not it belongs to a mapping.
var placeholderPattern = regexp.MustCompile(`\{\{FP_[A-Z]+_\d{2,}\}\}`)

// Mapping maps placeholder tokens to the original values they replaced.
type Mapping map[string]string

// Placeholder formats the placeholder token for the n-th value of a category.
func Placeholder(c Category, n int) string {
	return fmt.Sprintf("{{FP_%s_%02d}}", c.PlaceholderName(), n)
}

// IsPlaceholder reports whether s is exactly one placeholder token.
func IsPlaceholder(s string) bool {
	loc := placeholderPattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// MaskResult bundles a scan with the masked text and its mapping.
type MaskResult struct {
	Masked     string     `json:"masked"`
	Mapping    Mapping    `json:"mapping"`
	ScanResult ScanResult `json:"scanResult"`
}

// Mask replaces every match in scan with a placeholder. Offsets in scan must
// refer to text. Per-category counters start at 1; identical values within
// one call share a placeholder. Tokens that already appear literally in text
// are never issued, so Restore(Mask(text)) == text for any input.
func Mask(text string, scan ScanResult) (string, Mapping) {
	mapping := Mapping{}
	if !scan.HasPII || len(scan.Matches) == 0 {
		return text, mapping
	}

	counters := make(map[Category]int)
	issued := make(map[Category]map[string]string)
	literal := make(map[string]struct{})
	for _, tok := range placeholderPattern.FindAllString(text, -1) {
		literal[tok] = struct{}{}
	}

	next := func(c Category) string {
		for {
			counters[c]++
			p := Placeholder(c, counters[c])
			if _, taken := literal[p]; !taken {
				return p
			}
		}
	}

	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, m := range scan.Matches {
		if m.Start < cursor || m.End > len(text) || m.Start >= m.End {
			continue
		}
		byValue := issued[m.Category]
		if byValue == nil {
			byValue = make(map[string]string)
			issued[m.Category] = byValue
		}
		value := text[m.Start:m.End]
		p, ok := byValue[value]
		if !ok {
			p = next(m.Category)
			byValue[value] = p
			mapping[p] = value
		}
		b.WriteString(text[cursor:m.Start])
		b.WriteString(p)
		cursor = m.End
	}
	b.WriteString(text[cursor:])
	return b.String(), mapping
}

// Restore replaces every known placeholder in text with its original value
// in a single pass. Placeholders absent from mapping are left verbatim.
func Restore(text string, mapping Mapping) string {
	if len(mapping) == 0 || !strings.Contains(text, PlaceholderPrefix) {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		if v, ok := mapping[token]; ok {
			return v
		}
		return token
	})
}

// MaskText scans text and masks every match.
func (s *Scanner) MaskText(ctx context.Context, text string) MaskResult {
	scan := s.Scan(text)
	masked, mapping := Mask(text, scan)
	if scan.HasPII {
		recordMasked(ctx, scan.CategoryCounts())
	}
	return MaskResult{Masked: masked, Mapping: mapping, ScanResult: scan}
}

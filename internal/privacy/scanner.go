package privacy

import (
	"fmt"
	"sort"
)

// Match is a single detected PII span. Start and End are byte offsets into
// the scanned text, half-open, so text[Start:End] == Value.
type Match struct {
	Category Category `json:"category"`
	Value    string   `json:"value"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
}

// Len returns the span length in bytes.
func (m Match) Len() int { return m.End - m.Start }

// ScanResult holds the outcome of a scan. Matches are ordered by Start and
// never overlap.
type ScanResult struct {
	HasPII  bool    `json:"hasPii"`
	Matches []Match `json:"matches"`
}

// CategoryCounts tallies matches per category. Used for logging and metrics
// so the values themselves never leave the package.
func (r ScanResult) CategoryCounts() map[Category]int {
	counts := make(map[Category]int)
	for _, m := range r.Matches {
		counts[m.Category]++
	}
	return counts
}

// Scanner detects PII in text using a compiled Registry.
type Scanner struct {
	registry *Registry
}

// ScannerOption configures a Scanner via the functional options pattern.
type ScannerOption func(*scannerConfig)

type scannerConfig struct {
	patternFile        string
	customRecognizers  []RecognizerConfig
	disabledCategories []Category
}

// WithPatternFile layers recognizers from an operator YAML file on top of the
// embedded defaults. If the file does not exist, it is silently skipped.
func WithPatternFile(path string) ScannerOption {
	return func(c *scannerConfig) { c.patternFile = path }
}

// WithRecognizers layers extra recognizer definitions on top of the defaults
// and any pattern file.
func WithRecognizers(recognizers []RecognizerConfig) ScannerOption {
	return func(c *scannerConfig) { c.customRecognizers = recognizers }
}

// WithDisabledCategories excludes categories from scanning.
func WithDisabledCategories(categories []Category) ScannerOption {
	return func(c *scannerConfig) { c.disabledCategories = categories }
}

// NewScanner creates a PII scanner. Without options it uses the embedded
// defaults.
func NewScanner(opts ...ScannerOption) (*Scanner, error) {
	var cfg scannerConfig
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.patternFile == "" && len(cfg.customRecognizers) == 0 && len(cfg.disabledCategories) == 0 {
		return &Scanner{registry: defaultRegistry}, nil
	}

	defaults, err := DefaultRecognizers()
	if err != nil {
		return nil, fmt.Errorf("loading default recognizers: %w", err)
	}

	var fileRecs []RecognizerConfig
	if cfg.patternFile != "" {
		rf, err := LoadRecognizerFile(cfg.patternFile)
		if err != nil {
			return nil, fmt.Errorf("loading pattern file: %w", err)
		}
		if rf != nil {
			fileRecs = rf.Recognizers
		}
	}

	merged := MergeRecognizers(defaults, fileRecs, cfg.customRecognizers)
	reg, err := CompileRegistry(merged, cfg.disabledCategories)
	if err != nil {
		return nil, fmt.Errorf("compiling patterns: %w", err)
	}
	return &Scanner{registry: reg}, nil
}

// MustNewScanner is like NewScanner but panics on error. Useful for zero-config
// startup where the embedded defaults are expected to always compile.
func MustNewScanner(opts ...ScannerOption) *Scanner {
	s, err := NewScanner(opts...)
	if err != nil {
		panic(fmt.Sprintf("privacy.NewScanner: %v", err))
	}
	return s
}

// Categories returns the categories this scanner detects.
func (s *Scanner) Categories() []Category {
	return s.registry.Categories()
}

// Scan finds PII in text. It never fails: text without matches yields an
// empty result.
//
// Overlaps are resolved greedily: candidates are ranked by category priority,
// then earliest start, then longest span, and a candidate is accepted only if
// it intersects no previously accepted span.
func (s *Scanner) Scan(text string) ScanResult {
	result := ScanResult{Matches: []Match{}}
	if text == "" {
		return result
	}

	var candidates []Match
	for _, m := range s.registry.matchers {
		candidates = append(candidates, m.Find(text)...)
	}
	if len(candidates) == 0 {
		return result
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if pa, pb := a.Category.Priority(), b.Category.Priority(); pa != pb {
			return pa > pb
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Len() > b.Len()
	})

	// covered marks bytes owned by accepted spans. Each matcher yields
	// disjoint spans, so the total work stays linear in len(text).
	covered := make([]bool, len(text))
	accepted := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.Start < 0 || c.End > len(text) || c.Start >= c.End || anyCovered(covered[c.Start:c.End]) {
			continue
		}
		for i := c.Start; i < c.End; i++ {
			covered[i] = true
		}
		accepted = append(accepted, c)
	}

	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].Start < accepted[j].Start
	})

	result.Matches = accepted
	result.HasPII = len(accepted) > 0
	return result
}

func anyCovered(span []bool) bool {
	for _, b := range span {
		if b {
			return true
		}
	}
	return false
}

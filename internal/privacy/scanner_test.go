package privacy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func categoriesOf(matches []Match) []Category {
	out := make([]Category, len(matches))
	for i, m := range matches {
		out[i] = m.Category
	}
	return out
}

func TestScanDetection(t *testing.T) {
	scanner := MustNewScanner()

	tests := []struct {
		name     string
		text     string
		wantPII  bool
		wantCats []Category
		wantVals []string
	}{
		{
			name:    "no PII",
			text:    "Hello world, this is a test",
			wantPII: false,
		},
		{
			name:    "empty text",
			text:    "",
			wantPII: false,
		},
		{
			name:     "email and cn mobile",
			text:     "Email: a@b.com, phone 13800138000",
			wantPII:  true,
			wantCats: []Category{CategoryEmail, CategoryPhone},
			wantVals: []string{"a@b.com", "13800138000"},
		},
		{
			name:     "api key beats phone",
			text:     "key=sk-ABCDEFG1234567890, call 555-0100",
			wantPII:  true,
			wantCats: []Category{CategoryAPIKey, CategoryPhone},
			wantVals: []string{"sk-ABCDEFG1234567890", "555-0100"},
		},
		{
			name:     "luhn valid card",
			text:     "Card: 4111111111111111",
			wantPII:  true,
			wantCats: []Category{CategoryBankCard},
			wantVals: []string{"4111111111111111"},
		},
		{
			name:     "grouped card",
			text:     "Card: 4111 1111 1111 1111 thanks",
			wantPII:  true,
			wantCats: []Category{CategoryBankCard},
			wantVals: []string{"4111 1111 1111 1111"},
		},
		{
			name:    "luhn invalid card",
			text:    "Card: 4111111111111112",
			wantPII: false,
		},
		{
			name:     "ipv4",
			text:     "server at 192.168.1.20 is down",
			wantPII:  true,
			wantCats: []Category{CategoryIPAddress},
			wantVals: []string{"192.168.1.20"},
		},
		{
			name:    "ipv4 octet out of range",
			text:    "version 999.1.1.1",
			wantPII: false,
		},
		{
			name:     "us ssn",
			text:     "SSN 123-45-6789",
			wantPII:  true,
			wantCats: []Category{CategoryNationalID},
			wantVals: []string{"123-45-6789"},
		},
		{
			name:     "cn resident id",
			text:     "ID 11010519491231002X on file",
			wantPII:  true,
			wantCats: []Category{CategoryNationalID},
			wantVals: []string{"11010519491231002X"},
		},
		{
			name:     "nanp phone",
			text:     "call (415) 555-0132 today",
			wantPII:  true,
			wantCats: []Category{CategoryPhone},
			wantVals: []string{"(415) 555-0132"},
		},
		{
			name:     "github token",
			text:     "token ghp_" + strings.Repeat("a", 36),
			wantPII:  true,
			wantCats: []Category{CategoryAPIKey},
			wantVals: []string{"ghp_" + strings.Repeat("a", 36)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scanner.Scan(tt.text)
			assert.Equal(t, tt.wantPII, result.HasPII)
			assert.Equal(t, len(result.Matches) > 0, result.HasPII)
			if !tt.wantPII {
				assert.Empty(t, result.Matches)
				return
			}
			assert.Equal(t, tt.wantCats, categoriesOf(result.Matches))
			vals := make([]string, len(result.Matches))
			for i, m := range result.Matches {
				vals[i] = m.Value
			}
			assert.Equal(t, tt.wantVals, vals)
		})
	}
}

func TestScanOffsets(t *testing.T) {
	scanner := MustNewScanner()
	text := "Email: a@b.com, phone 13800138000"

	result := scanner.Scan(text)
	require.Len(t, result.Matches, 2)

	assert.Equal(t, Match{Category: CategoryEmail, Value: "a@b.com", Start: 7, End: 14}, result.Matches[0])
	assert.Equal(t, Match{Category: CategoryPhone, Value: "13800138000", Start: 22, End: 33}, result.Matches[1])
}

func TestScanNonOverlappingAndOrdered(t *testing.T) {
	scanner := MustNewScanner()
	texts := []string{
		"sk-ABCDEFGH12345678 user@example.com 10.0.0.1 4111111111111111 555-0100",
		"mixed 123-45-6789 and 13912345678 and (212) 555-0199 and x@y.io",
		"call +1 415 555 0132 or mail ops@corp.example.org from 172.16.0.1",
		"nothing here but 12 apples",
	}

	for _, text := range texts {
		result := scanner.Scan(text)
		for i, m := range result.Matches {
			assert.True(t, m.Start >= 0 && m.Start < m.End && m.End <= len(text), "bad offsets %+v", m)
			assert.Equal(t, text[m.Start:m.End], m.Value)
			if i > 0 {
				prev := result.Matches[i-1]
				assert.LessOrEqual(t, prev.End, m.Start, "matches overlap or out of order: %+v %+v", prev, m)
			}
		}
	}
}

func TestScanPriorityResolution(t *testing.T) {
	// Both patterns start at the same offset; the higher priority category wins.
	reg, err := CompileRegistry([]RecognizerConfig{
		{Name: "low", Category: "Phone", Patterns: []PatternConfig{{Name: "p", Regex: `\d{4} \d{4}`}}},
		{Name: "high", Category: "BankCard", Patterns: []PatternConfig{{Name: "p", Regex: `\d{4} \d{4} \d{4}`}}},
	}, nil)
	require.NoError(t, err)
	scanner := &Scanner{registry: reg}

	result := scanner.Scan("n 1234 5678 9012")
	require.Len(t, result.Matches, 1)
	assert.Equal(t, CategoryBankCard, result.Matches[0].Category)
	assert.Equal(t, "1234 5678 9012", result.Matches[0].Value)
}

func TestScanPartialOverlapRejected(t *testing.T) {
	reg, err := CompileRegistry([]RecognizerConfig{
		{Name: "a", Category: "APIKey", Patterns: []PatternConfig{{Name: "p", Regex: `abc`}}},
		{Name: "b", Category: "Email", Patterns: []PatternConfig{{Name: "p", Regex: `cde`}}},
	}, nil)
	require.NoError(t, err)
	scanner := &Scanner{registry: reg}

	result := scanner.Scan("abcde")
	require.Len(t, result.Matches, 1)
	assert.Equal(t, CategoryAPIKey, result.Matches[0].Category)
}

func TestScanDeterministic(t *testing.T) {
	scanner := MustNewScanner()
	text := "a@b.com 13800138000 10.1.2.3 sk-ABCDEFG1234567890"
	first := scanner.Scan(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, scanner.Scan(text))
	}
}

func TestWithDisabledCategories(t *testing.T) {
	scanner := MustNewScanner(WithDisabledCategories([]Category{CategoryEmail}))

	result := scanner.Scan("Email: a@b.com, phone 13800138000")
	assert.Equal(t, []Category{CategoryPhone}, categoriesOf(result.Matches))
	assert.NotContains(t, scanner.Categories(), CategoryEmail)
}

func TestWithPatternFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.yaml")
	content := `recognizers:
  - name: email
    category: Email
    enabled: false
    patterns:
      - name: disabled
        regex: 'x'
  - name: employee_id
    category: NationalId
    patterns:
      - name: emp
        regex: '\bEMP-\d{6}\b'
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	scanner, err := NewScanner(WithPatternFile(path))
	require.NoError(t, err)

	result := scanner.Scan("EMP-123456 wrote to a@b.com")
	assert.Equal(t, []Category{CategoryNationalID}, categoriesOf(result.Matches))
}

func TestWithPatternFileMissing(t *testing.T) {
	scanner, err := NewScanner(WithPatternFile(filepath.Join(t.TempDir(), "absent.yaml")))
	require.NoError(t, err)
	assert.True(t, scanner.Scan("a@b.com").HasPII)
}

func TestWithRecognizersRejectsUnknownCategory(t *testing.T) {
	_, err := NewScanner(WithRecognizers([]RecognizerConfig{
		{Name: "bogus", Category: "Passport", Patterns: []PatternConfig{{Name: "p", Regex: `x`}}},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown PII category")
}

func TestMustNewScannerPanicsOnBadRegex(t *testing.T) {
	assert.Panics(t, func() {
		MustNewScanner(WithRecognizers([]RecognizerConfig{
			{Name: "bad", Category: "Email", Patterns: []PatternConfig{{Name: "p", Regex: `(`}}},
		}))
	})
}

func emailCorpus(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "u%d@x.io ", i)
	}
	return b.String()
}

// fastestOf returns the best of several runs to damp scheduler noise.
func fastestOf(runs int, fn func()) time.Duration {
	best := time.Duration(1<<63 - 1)
	for i := 0; i < runs; i++ {
		start := time.Now()
		fn()
		if d := time.Since(start); d < best {
			best = d
		}
	}
	return best
}

func TestScanAndMaskScaleLinearly(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	scanner := MustNewScanner()
	small := emailCorpus(5000)
	large := emailCorpus(20000)

	require.Len(t, scanner.Scan(large).Matches, 20000)

	measure := func(text string) time.Duration {
		return fastestOf(3, func() {
			scan := scanner.Scan(text)
			Mask(text, scan)
		})
	}
	base := measure(small)
	grown := measure(large)
	if base < time.Millisecond {
		base = time.Millisecond
	}

	// 4x the input must cost well under the 16x a quadratic pass would.
	assert.Less(t, float64(grown)/float64(base), 10.0, "small=%v large=%v", base, grown)
}

func TestScanAcceptsEveryDisjointMatch(t *testing.T) {
	scanner := MustNewScanner()
	text := emailCorpus(300)
	result := scanner.Scan(text)
	require.Len(t, result.Matches, 300)
	for i, m := range result.Matches {
		assert.Equal(t, fmt.Sprintf("u%d@x.io", i), m.Value)
	}
}

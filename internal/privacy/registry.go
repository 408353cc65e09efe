package privacy

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/flowpaste/flowpaste/patterns"
)

// RecognizerFile is the top-level YAML structure for a recognizer file.
type RecognizerFile struct {
	Recognizers []RecognizerConfig `yaml:"recognizers"`
}

// RecognizerConfig binds one or more regex patterns to a PII category.
type RecognizerConfig struct {
	Name      string          `yaml:"name" json:"name"`
	Category  string          `yaml:"category" json:"category"`
	Enabled   *bool           `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Validator string          `yaml:"validator,omitempty" json:"validator,omitempty"`
	MaxLength int             `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Patterns  []PatternConfig `yaml:"patterns" json:"patterns"`
}

// PatternConfig is a single regex within a recognizer.
type PatternConfig struct {
	Name  string `yaml:"name" json:"name"`
	Regex string `yaml:"regex" json:"regex"`
}

// isEnabled returns true if the recognizer is enabled (defaults to true when nil).
func (r *RecognizerConfig) isEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// ParseRecognizerFile parses recognizer YAML bytes into a RecognizerFile.
func ParseRecognizerFile(data []byte) (*RecognizerFile, error) {
	var rf RecognizerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing recognizer YAML: %w", err)
	}
	return &rf, nil
}

// LoadRecognizerFile reads and parses a recognizer YAML file from disk.
// Returns nil (not an error) if the file does not exist, so a missing
// operator file is a no-op.
func LoadRecognizerFile(path string) (*RecognizerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recognizer file %s: %w", path, err)
	}
	return ParseRecognizerFile(data)
}

// DefaultRecognizers returns the built-in recognizers from the embedded
// patterns/pii.yaml.
func DefaultRecognizers() ([]RecognizerConfig, error) {
	rf, err := ParseRecognizerFile(patterns.PIIYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded PII patterns: %w", err)
	}
	return rf.Recognizers, nil
}

// MergeRecognizers layers recognizer lists: later layers replace earlier
// entries with the same Name, new names are appended.
func MergeRecognizers(layers ...[]RecognizerConfig) []RecognizerConfig {
	index := make(map[string]int)
	var merged []RecognizerConfig

	for _, layer := range layers {
		for _, rc := range layer {
			if idx, exists := index[rc.Name]; exists {
				merged[idx] = rc
			} else {
				index[rc.Name] = len(merged)
				merged = append(merged, rc)
			}
		}
	}

	return merged
}

// Matcher finds candidate spans for a single category. Matchers are pure and
// can be run independently of each other.
type Matcher struct {
	Name      string
	Category  Category
	Pattern   *regexp.Regexp
	Validate  func(value string) bool
	MaxLength int
}

// Find returns every candidate span of m in text. Candidates failing the
// validator or exceeding MaxLength are discarded.
func (m Matcher) Find(text string) []Match {
	var out []Match
	for _, loc := range m.Pattern.FindAllStringIndex(text, -1) {
		if loc[1] <= loc[0] {
			continue
		}
		if m.MaxLength > 0 && loc[1]-loc[0] > m.MaxLength {
			continue
		}
		value := text[loc[0]:loc[1]]
		if m.Validate != nil && !m.Validate(value) {
			continue
		}
		out = append(out, Match{
			Category: m.Category,
			Value:    value,
			Start:    loc[0],
			End:      loc[1],
		})
	}
	return out
}

// Registry is the ordered set of matchers, highest category priority first.
type Registry struct {
	matchers []Matcher
}

// Matchers returns a copy of the registry's matchers in priority order.
func (r *Registry) Matchers() []Matcher {
	out := make([]Matcher, len(r.matchers))
	copy(out, r.matchers)
	return out
}

// Categories returns the distinct categories with at least one matcher.
func (r *Registry) Categories() []Category {
	seen := make(map[Category]bool)
	var out []Category
	for _, m := range r.matchers {
		if !seen[m.Category] {
			seen[m.Category] = true
			out = append(out, m.Category)
		}
	}
	return out
}

// CompileRegistry compiles recognizer configs into a Registry. Disabled
// recognizers and categories listed in disabled are skipped.
func CompileRegistry(recognizers []RecognizerConfig, disabled []Category) (*Registry, error) {
	blocked := make(map[Category]bool, len(disabled))
	for _, c := range disabled {
		blocked[c] = true
	}

	var matchers []Matcher
	for _, rec := range recognizers {
		if !rec.isEnabled() {
			continue
		}
		cat, err := ParseCategory(rec.Category)
		if err != nil {
			return nil, fmt.Errorf("recognizer %q: %w", rec.Name, err)
		}
		if blocked[cat] {
			continue
		}
		validate, err := lookupValidator(rec.Validator)
		if err != nil {
			return nil, fmt.Errorf("recognizer %q: %w", rec.Name, err)
		}
		if len(rec.Patterns) == 0 {
			return nil, fmt.Errorf("recognizer %q: at least one pattern is required", rec.Name)
		}
		for _, p := range rec.Patterns {
			compiled, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q in recognizer %q: %w", p.Name, rec.Name, err)
			}
			matchers = append(matchers, Matcher{
				Name:      rec.Name,
				Category:  cat,
				Pattern:   compiled,
				Validate:  validate,
				MaxLength: rec.MaxLength,
			})
		}
	}

	sort.SliceStable(matchers, func(i, j int) bool {
		return matchers[i].Category.Priority() > matchers[j].Category.Priority()
	})

	return &Registry{matchers: matchers}, nil
}

var defaultRegistry *Registry

func init() {
	recs, err := DefaultRecognizers()
	if err != nil {
		panic(fmt.Sprintf("loading embedded PII patterns: %v", err))
	}
	reg, err := CompileRegistry(recs, nil)
	if err != nil {
		panic(fmt.Sprintf("compiling embedded PII patterns: %v", err))
	}
	defaultRegistry = reg
}

// DefaultRegistry returns the registry compiled from the embedded patterns.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Package privacy implements the privacy shield: pattern-based PII detection,
// reversible placeholder masking, and restoration of the original values.
//
// Everything in this package is pure and safe for concurrent use. Scanning,
// masking, and restoring never fail on any input; text without matches simply
// yields an empty result.
package privacy

import (
	"fmt"
	"strings"
)

// Category is a PII category. The set is closed: only the constants below are
// valid, and recognizer files naming anything else are rejected.
type Category string

const (
	CategoryPhone      Category = "Phone"
	CategoryEmail      Category = "Email"
	CategoryNationalID Category = "NationalId"
	CategoryBankCard   Category = "BankCard"
	CategoryIPAddress  Category = "IPAddress"
	CategoryAPIKey     Category = "APIKey"
)

// Categories lists every category, highest priority first.
var Categories = []Category{
	CategoryAPIKey,
	CategoryBankCard,
	CategoryNationalID,
	CategoryPhone,
	CategoryEmail,
	CategoryIPAddress,
}

var categoryPriority = map[Category]int{
	CategoryAPIKey:     60,
	CategoryBankCard:   50,
	CategoryNationalID: 40,
	CategoryPhone:      30,
	CategoryEmail:      20,
	CategoryIPAddress:  10,
}

// Priority returns the overlap-resolution priority; higher wins.
// Unknown categories have priority 0.
func (c Category) Priority() int {
	return categoryPriority[c]
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	_, ok := categoryPriority[c]
	return ok
}

// PlaceholderName is the upper-case name used inside placeholder tokens,
// e.g. "NATIONALID" for CategoryNationalID.
func (c Category) PlaceholderName() string {
	return strings.ToUpper(string(c))
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(string(c), strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown PII category %q", name)
}

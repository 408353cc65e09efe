package privacy

import (
	"fmt"
	"net/netip"
	"strings"
)

// validators are the named candidate checks a recognizer can reference.
var validators = map[string]func(string) bool{
	"luhn": func(v string) bool { return luhnValid(stripNonDigits(v)) },
	"ipv4": validIPv4,
}

func lookupValidator(name string) (func(string) bool, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return nil, nil
	}
	v, ok := validators[name]
	if !ok {
		return nil, fmt.Errorf("unknown validator %q", name)
	}
	return v, nil
}

// luhnValid checks whether a digit string passes the Luhn algorithm (ISO/IEC 7812).
// Card numbers are 13 to 19 digits.
func luhnValid(number string) bool {
	n := len(number)
	if n < 13 || n > 19 {
		return false
	}
	sum := 0
	alt := false
	for i := n - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

// stripNonDigits removes all non-digit characters from s.
func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func validIPv4(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is4()
}

package normalize

import "strings"

// The numbering plan is Russian/Kazakh: country code 7, trunk prefix 8,
// mobile ranges 9xx.
const (
	CountryCode  = '7'
	TrunkPrefix  = '8'
	MobileDigit  = '9'
	NumberDigits = 11
)

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone returns +7XXXXXXXXXX for national numbers written with the trunk
// prefix, without a prefix, or already in international form. Anything else is
// returned unchanged.
func NormalizePhone(phone string) string {
	d := digitsOnly(phone)
	switch {
	case len(d) == NumberDigits && d[0] == TrunkPrefix:
		d = string(CountryCode) + d[1:]
	case len(d) == NumberDigits-1:
		d = string(CountryCode) + d
	}
	if len(d) != NumberDigits || d[0] != CountryCode {
		return phone
	}
	return "+" + d
}

// IsMobile reports whether a normalized number falls in the mobile range
func IsMobile(normalized string) bool {
	if len(normalized) != NumberDigits+1 || normalized[0] != '+' || normalized[1] != CountryCode {
		return false
	}
	if digitsOnly(normalized) != normalized[1:] {
		return false
	}
	return normalized[2] == MobileDigit
}

// NormalizePhones normalizes every phone and splits out the mobile ones.
// Duplicates after normalization are dropped, order is preserved.
func NormalizePhones(phones []string) (normalized, mobile []string) {
	normalized = []string{}
	mobile = []string{}
	seen := make(map[string]bool, len(phones))
	for _, p := range phones {
		n := NormalizePhone(p)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		normalized = append(normalized, n)
		if IsMobile(n) {
			mobile = append(mobile, n)
		}
	}
	return normalized, mobile
}

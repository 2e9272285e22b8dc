package password

import "unicode"

// Policy describes the strength rules applied to caller-chosen passwords
// at registration, password change, and password reset.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSymbol  bool
	MaxLengthBytes int
}

// DefaultPolicy mirrors the platform registration rule: at least 8
// characters with one uppercase letter, one lowercase letter, one digit,
// and one symbol.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      8,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSymbol:  true,
		MaxLengthBytes: 256,
	}
}

// Check reports whether candidate satisfies the policy. Length counts
// runes, not bytes, so multibyte characters are not penalized.
func (p Policy) Check(candidate string) bool {
	if p.MaxLengthBytes > 0 && len(candidate) > p.MaxLengthBytes {
		return false
	}

	var (
		length int
		upper  bool
		lower  bool
		digit  bool
		symbol bool
	)
	for _, r := range candidate {
		length++
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	if length < p.MinLength {
		return false
	}
	if p.RequireUpper && !upper {
		return false
	}
	if p.RequireLower && !lower {
		return false
	}
	if p.RequireDigit && !digit {
		return false
	}
	if p.RequireSymbol && !symbol {
		return false
	}
	return true
}

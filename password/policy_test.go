package password

import "testing"

func TestPolicyCheck(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		name     string
		password string
		want     bool
	}{
		{"exact minimum with all classes", "Aa1!aaaa", true},
		{"one char short of minimum", "Aa1!aaa", false},
		{"missing uppercase", "aa1!aaaa", false},
		{"missing lowercase", "AA1!AAAA", false},
		{"missing digit", "Aab!aaaa", false},
		{"missing symbol", "Aa1baaaa", false},
		{"empty", "", false},
		{"long valid", "Str0ng&Secure-Passphrase", true},
		{"multibyte runes counted as length", "Aa1!aaaä", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.Check(tc.password); got != tc.want {
				t.Fatalf("Check(%q) = %v, want %v", tc.password, got, tc.want)
			}
		})
	}
}

func TestPolicyMaxLength(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxLengthBytes = 16

	if policy.Check("Aa1!aaaaAa1!aaaaX") {
		t.Fatal("expected over-length password to be rejected")
	}
}

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseTenantID checks that parsing never panics and accepted ids round-trip.
func FuzzParseTenantID(f *testing.F) {
	f.Add("")
	f.Add("acme")
	f.Add("acme:client:123")
	f.Add("'; DROP TABLE tenants;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseTenantID(input)
		if err != nil {
			return
		}
		again, err := ParseTenantID(id.String())
		if err != nil || again != id {
			t.Errorf("accepted tenant id %q failed round-trip", id)
		}
		if !utf8.ValidString(input) {
			t.Error("non-utf8 input was accepted")
		}
	})
}

func FuzzParseFingerprintHash(f *testing.F) {
	f.Add("0123456789abcdef0123456789abcdef")
	f.Add("")
	f.Add("not-a-hash")

	f.Fuzz(func(t *testing.T, input string) {
		h, err := ParseFingerprintHash(input)
		if err == nil && len(h) != FingerprintHashLength {
			t.Errorf("accepted hash with length %d", len(h))
		}
	})
}

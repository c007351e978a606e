package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParsePrincipalID checks that parsing never panics and that anything it
// accepts is printable ASCII that round-trips unchanged.
func FuzzParsePrincipalID(f *testing.F) {
	f.Add("")
	f.Add("alice")
	f.Add("0x5f3a9c2b")
	f.Add("'; DROP TABLE certificates;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		p, err := ParsePrincipalID(input)
		if err != nil {
			return
		}
		if !utf8.ValidString(input) {
			t.Error("non-UTF8 input was accepted")
		}
		if p.String() != input {
			t.Error("accepted principal changed value")
		}
		for i := 0; i < len(input); i++ {
			if input[i] < 0x21 || input[i] > 0x7e {
				t.Errorf("accepted non-printable byte %#x", input[i])
			}
		}
	})
}

// FuzzParseIDs ensures all uuid-backed id types agree on what they accept.
func FuzzParseIDs(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errCert := ParseCertificateID(input)
		_, errListing := ParseListingID(input)
		_, errRetirement := ParseRetirementID(input)

		if (errCert == nil) != (errListing == nil) || (errCert == nil) != (errRetirement == nil) {
			t.Error("inconsistent parsing across id types")
		}
	})
}

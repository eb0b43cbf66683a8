package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseClientID checks that parsing never panics and that accepted ids
// round-trip through String.
func FuzzParseClientID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE clientes;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseClientID(input)
		if err == nil {
			roundTrip, err2 := ParseClientID(id.String())
			if err2 != nil {
				t.Errorf("valid id failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed id value")
			}
			if id.IsNil() {
				t.Error("nil UUID was accepted")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseDate checks that accepted dates format back to the same string.
func FuzzParseDate(f *testing.F) {
	f.Add("2024-02-29")
	f.Add("2023-02-29")
	f.Add("")
	f.Add("29/02/2024")

	f.Fuzz(func(t *testing.T, input string) {
		d, err := ParseDate(input)
		if err != nil {
			return
		}
		if d.String() != input {
			t.Errorf("round-trip mismatch: %q -> %q", input, d.String())
		}
	})
}

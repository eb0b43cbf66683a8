package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "only separators and blanks", input: " , ,, ", expected: nil},
		{name: "single", input: "https://a.uy", expected: []string{"https://a.uy"}},
		{name: "trims", input: " https://a.uy ,https://b.uy ", expected: []string{"https://a.uy", "https://b.uy"}},
		{name: "drops repeats keeping first position", input: "b,a,b,c,a", expected: []string{"b", "a", "c"}},
		{name: "case sensitive", input: "A,a", expected: []string{"A", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input, ","))
		})
	}
}

func TestFoldedSet(t *testing.T) {
	s := NewFoldedSet("HS256", " hs384 ", "")
	assert.True(t, s.Has("hs256"))
	assert.True(t, s.Has("HS384"))
	assert.False(t, s.Has("HS512"))
	assert.False(t, s.Has(""))
	assert.Len(t, s, 2)
}

package utils_test

import (
	"testing"

	"github.com/robalyx/sentinel/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	n := utils.NewTextNormalizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercases", input: "FREE NITRO", want: "free nitro"},
		{name: "collapses whitespace", input: "  free \t nitro \n now ", want: "free nitro now"},
		{name: "strips accents", input: "Frée Nítro", want: "free nitro"},
		{name: "folds fullwidth forms", input: "ＦＲＥＥ ＮＩＴＲＯ", want: "free nitro"},
		{name: "empty input", input: "", want: ""},
		{name: "whitespace only", input: " \t\n ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, n.Normalize(tt.input))
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", utils.CollapseWhitespace("a   b\t\tc"))
	assert.Equal(t, "", utils.CollapseWhitespace("   "))
}

func TestCapsRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "all caps", input: "HELLO", want: 1},
		{name: "no caps", input: "hello", want: 0},
		{name: "mixed", input: "HEllo", want: 0.4},
		{name: "digits and punctuation ignored", input: "AB12!!cd", want: 0.5},
		{name: "no letters", input: "12345!!!", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, utils.CapsRatio(tt.input), 1e-9)
		})
	}
}

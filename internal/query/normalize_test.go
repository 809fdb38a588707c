package query

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAccentClasses(t *testing.T) {
	assert.Equal(t, "xyz", Normalize("xyz"))
	assert.Equal(t, "[cç][aáàâãäå]", Normalize("ca"))
	assert.Equal(t, "j[oóòôõö][aáàâãäå][oóòôõö]", Normalize("joao"))
}

func TestNormalizeMatchesAccentedVariants(t *testing.T) {
	re, err := regexp.Compile("(?i)" + Normalize("joao"))
	require.NoError(t, err)

	assert.True(t, re.MatchString("joao"))
	assert.True(t, re.MatchString("joão"))
	assert.True(t, re.MatchString("JOAO"))
	assert.False(t, re.MatchString("jon"))
}

func TestNormalizeEscapesMetacharacters(t *testing.T) {
	pattern := Normalize("a.b*c")
	re, err := regexp.Compile("(?i)" + pattern)
	require.NoError(t, err)

	assert.True(t, re.MatchString("a.b*c"))
	assert.False(t, re.MatchString("axbbc"))
}

func TestNormalizeAlwaysCompiles(t *testing.T) {
	inputs := []string{"", "((", "[a-", "\\", "100% (done?)", "çãõ"}
	for _, in := range inputs {
		_, err := regexp.Compile("(?i)" + Normalize(in))
		assert.NoError(t, err, "input %q", in)
	}
}

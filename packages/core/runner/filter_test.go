package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexFilters_Match(t *testing.T) {
	t.Run("no filters matches everything", func(t *testing.T) {
		var f RegexFilters
		assert.True(t, f.Match("anything"))
		assert.False(t, f.IsDefined())
		assert.Equal(t, "", f.Describe())
	})

	t.Run("must match", func(t *testing.T) {
		var f RegexFilters
		require.NoError(t, f.MustMatch.Set("^parse"))
		assert.True(t, f.Match("parse-1"))
		assert.False(t, f.Match("exec-1"))
	})

	t.Run("must not match wins", func(t *testing.T) {
		var f RegexFilters
		require.NoError(t, f.MustMatch.Set("parse"))
		require.NoError(t, f.MustNotMatch.Set("slow"))
		assert.True(t, f.Match("parse-fast"))
		assert.False(t, f.Match("parse-slow"))
		assert.Contains(t, f.Describe(), `skip any matching "slow"`)
	})
}

func TestParsePatterns_Invalid(t *testing.T) {
	_, err := ParsePatterns([]string{"ok", "("})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid regex")
}

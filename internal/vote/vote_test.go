package vote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromIndices(t *testing.T) {
	assert.Equal(t, "cto,gamble", FromIndices([]int{0, 3}).String())
	assert.Equal(t, "cto,gamble", FromIndices([]int{3, 0, 3}).String())
	assert.Equal(t, "alpha", FromIndices([]int{4, 7, -1}).String())
	assert.Empty(t, FromIndices([]int{9}))
}

func TestParseAndLabels(t *testing.T) {
	s := Parse("cto, good_dev,,legacy")
	assert.Equal(t, Set{"cto", "good_dev", "legacy"}, s)
	assert.Equal(t, "CTO, Good dev, legacy", s.Labels())
	assert.Equal(t, "No vote", Parse("").Labels())
}

func TestContains(t *testing.T) {
	s := Parse("good_dev,alpha")
	assert.True(t, s.Contains("alpha"))
	assert.False(t, s.Contains("dev"))
}

func TestTheme(t *testing.T) {
	assert.Equal(t, Gamble.Theme, Parse("gamble,cto").Theme())
	assert.Equal(t, DefaultTheme, Parse("").Theme())
	assert.Equal(t, DefaultTheme, Parse("legacy").Theme())
}

func TestLookup(t *testing.T) {
	c, ok := ByCommand("gd")
	assert.True(t, ok)
	assert.Equal(t, GoodDev.Key, c.Key)
	_, ok = Lookup("nope")
	assert.False(t, ok)
	assert.Equal(t, []string{"CTO", "Volume", "Good dev", "Gamble", "Alpha"}, Labels())
}

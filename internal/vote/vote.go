// Package vote defines the poll option categories and the comma-joined
// vote set stored on resolved polls.
package vote

import (
	"sort"
	"strings"
)

// Separator joins category keys in a stored vote.
const Separator = ","

// Theme is the visual style of an AI call card for a category.
type Theme struct {
	Background string
	Accent     string
	Badge      string
}

// Category is one option of the sentiment poll.
type Category struct {
	Key     string // stable storage key
	Label   string // poll option text
	Command string // leaderboard command, without the slash
	Title   string // leaderboard title
	Theme   Theme
}

// The configured option list. Poll option i is Categories[i].
var (
	CTO = Category{
		Key: "cto", Label: "CTO", Command: "ct", Title: "👑 CTO Leaderboard",
		Theme: Theme{Background: "dark blue/navy gradient", Accent: "cyan/blue neon glow", Badge: "CTO"},
	}
	Volume = Category{
		Key: "volume", Label: "Volume", Command: "vo", Title: "📈 Volume Leaderboard",
		Theme: Theme{Background: "dark orange/black gradient", Accent: "orange neon glow", Badge: "VOLUME"},
	}
	GoodDev = Category{
		Key: "good_dev", Label: "Good dev", Command: "gd", Title: "👨‍💻 Good Dev Leaderboard",
		Theme: Theme{Background: "dark green/black gradient", Accent: "emerald green neon glow", Badge: "GOOD DEV"},
	}
	Gamble = Category{
		Key: "gamble", Label: "Gamble", Command: "ga", Title: "🎰 Gamble Leaderboard",
		Theme: Theme{Background: "dark purple gradient", Accent: "purple neon glow", Badge: "GAMBLE"},
	}
	Alpha = Category{
		Key: "alpha", Label: "Alpha", Command: "al", Title: "🔮 Alpha Leaderboard",
		Theme: Theme{Background: "dark black/gold gradient", Accent: "gold/yellow neon glow", Badge: "ALPHA"},
	}

	Categories = []Category{CTO, Volume, GoodDev, Gamble, Alpha}
)

// DefaultTheme is used when a poll has no recognised vote.
var DefaultTheme = Theme{Background: "dark gray/black gradient", Accent: "white glow", Badge: "NO VOTE"}

// Lookup finds a category by key.
func Lookup(key string) (Category, bool) {
	for _, c := range Categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

// ByCommand finds a category by its leaderboard command.
func ByCommand(cmd string) (Category, bool) {
	for _, c := range Categories {
		if c.Command == cmd {
			return c, true
		}
	}
	return Category{}, false
}

// Labels returns the poll option texts in configured order.
func Labels() []string {
	out := make([]string, len(Categories))
	for i, c := range Categories {
		out[i] = c.Label
	}
	return out
}

// Set is an ordered set of category keys.
type Set []string

// FromIndices maps poll option indices to keys in configured order.
// Duplicates and out-of-range indices are dropped.
func FromIndices(idx []int) Set {
	seen := make(map[int]bool, len(idx))
	var keep []int
	for _, i := range idx {
		if i < 0 || i >= len(Categories) || seen[i] {
			continue
		}
		seen[i] = true
		keep = append(keep, i)
	}
	sort.Ints(keep)
	out := make(Set, 0, len(keep))
	for _, i := range keep {
		out = append(out, Categories[i].Key)
	}
	return out
}

// Parse splits a stored vote. Unknown keys are kept as is.
func Parse(s string) Set {
	var out Set
	for _, p := range strings.Split(s, Separator) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// String joins the keys for storage.
func (s Set) String() string { return strings.Join(s, Separator) }

// Contains reports whether key is a member of the set.
func (s Set) Contains(key string) bool {
	for _, k := range s {
		if k == key {
			return true
		}
	}
	return false
}

// Labels renders the set as "CTO, Gamble". Unknown keys render verbatim.
func (s Set) Labels() string {
	if len(s) == 0 {
		return "No vote"
	}
	out := make([]string, len(s))
	for i, k := range s {
		if c, ok := Lookup(k); ok {
			out[i] = c.Label
		} else {
			out[i] = k
		}
	}
	return strings.Join(out, ", ")
}

// Theme returns the card theme of the first category in the set.
func (s Set) Theme() Theme {
	if len(s) == 0 {
		return DefaultTheme
	}
	if c, ok := Lookup(s[0]); ok {
		return c.Theme
	}
	return DefaultTheme
}

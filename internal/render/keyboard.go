package render

import (
	"strings"

	"github.com/0xsamyy/callpoll/internal/leaderboard"
)

// Callback data prefixes. Telegram limits callback data to 64 bytes; the
// longest token, "refresh:" plus a 44 character address, fits.
const (
	ActionDelete      = "delete"
	ActionRefresh     = "refresh"
	ActionCard        = "card"
	ActionLeaderboard = "leaderboard"
)

// Button is an inline keyboard button. Exactly one of Data or URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is rows of buttons.
type Keyboard [][]Button

func deleteButton() Button { return Button{Text: "🗑️", Data: ActionDelete} }

// RefreshData is the callback token that re-renders a result card.
func RefreshData(ca string) string { return ActionRefresh + ":" + ca }

// CardData is the callback token that regenerates a call card.
func CardData(ca string) string { return ActionCard + ":" + ca }

// LeaderboardData is the callback token for a leaderboard period button.
func LeaderboardData(filter string, p leaderboard.Period) string {
	return ActionLeaderboard + ":" + filter + ":" + string(p)
}

// ResultKeyboard has delete and refresh buttons.
func ResultKeyboard(ca string) Keyboard {
	return Keyboard{{deleteButton(), {Text: "🔄", Data: RefreshData(ca)}}}
}

// CardKeyboard has delete and regenerate buttons.
func CardKeyboard(ca string) Keyboard {
	return Keyboard{{deleteButton(), {Text: "🔄", Data: CardData(ca)}}}
}

// LeaderboardKeyboard has one button per period, the active one ticked,
// and a delete row.
func LeaderboardKeyboard(active leaderboard.Period, filter string) Keyboard {
	row := make([]Button, len(leaderboard.Periods))
	for i, p := range leaderboard.Periods {
		text := p.Button()
		if p == active {
			text = "☑️ " + text
		}
		row[i] = Button{Text: text, Data: LeaderboardData(filter, p)}
	}
	return Keyboard{row, {deleteButton()}}
}

// Callback is a decoded callback token.
type Callback struct {
	Action string
	CA     string
	Filter string
	Period leaderboard.Period
}

// ParseCallback decodes data produced by the *Data helpers. Unknown or
// malformed tokens report false.
func ParseCallback(data string) (Callback, bool) {
	action, rest, _ := strings.Cut(data, ":")
	switch action {
	case ActionDelete:
		return Callback{Action: action}, rest == ""
	case ActionRefresh, ActionCard:
		if rest == "" {
			return Callback{}, false
		}
		return Callback{Action: action, CA: rest}, true
	case ActionLeaderboard:
		filter, period, ok := strings.Cut(rest, ":")
		if !ok {
			return Callback{}, false
		}
		p, ok := leaderboard.ParsePeriod(period)
		if !ok {
			return Callback{}, false
		}
		return Callback{Action: action, Filter: filter, Period: p}, true
	}
	return Callback{}, false
}

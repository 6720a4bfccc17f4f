package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/0xsamyy/callpoll/internal/card"
	"github.com/0xsamyy/callpoll/internal/health"
	"github.com/0xsamyy/callpoll/internal/leaderboard"
	"github.com/0xsamyy/callpoll/internal/market"
	"github.com/0xsamyy/callpoll/internal/vote"
)

// Short replies.
const (
	MsgCardUsage      = "⚠️ Usage: /card &lt;contract_address&gt;"
	MsgNoCall         = "❌ No call found for this CA in this group."
	MsgNoTokenData    = "❌ Could not fetch token data."
	MsgGeneratingCard = "🎨 Generating card..."
	MsgCardFailed     = "❌ Failed to generate card image."
	MsgNotAdmin       = "⛔ This command is only available in the admin chat."
	MsgNoLeaderboard  = "❌ Could not build the leaderboard."
)

// FirstCall is the earliest known post of a CA across chats.
type FirstCall struct {
	Username   string
	EntryPrice float64
	CreatedAt  time.Time
}

// Result is everything shown on a resolved poll's card.
type Result struct {
	CA        string
	Votes     vote.Set
	VotedBy   string
	AutoUsed  bool
	Quote     *market.Quote // nil when market data is unavailable
	ATHPrice  float64       // 0 when unknown
	FirstCall *FirstCall
	Affiliate string // pre-rendered AffiliateLinks
	Now       time.Time
}

// ResultCard renders the result message or photo caption.
func ResultCard(r Result) string {
	q := r.Quote
	name := "Unknown"
	if q != nil && q.Name != "" {
		name = q.Name
	}

	var b strings.Builder
	b.WriteString("📊 <b>Information about coin</b>\n\n")
	fmt.Fprintf(&b, "🪙 <b>%s</b>\n\n", EscapeHTML(name))
	fmt.Fprintf(&b, "CA: <code>%s</code>\n\n", EscapeHTML(r.CA))
	fmt.Fprintf(&b, "Information: <b>%s</b>\n", EscapeHTML(r.Votes.Labels()))
	fmt.Fprintf(&b, "Voted by: @%s", EscapeHTML(orUnknown(r.VotedBy)))

	if q != nil {
		var socials []string
		if q.TwitterURL != "" {
			socials = append(socials, link(q.TwitterURL, "𝕏"))
		}
		if q.WebsiteURL != "" {
			socials = append(socials, link(q.WebsiteURL, "🌐 Web"))
		}
		if q.TelegramURL != "" {
			socials = append(socials, link(q.TelegramURL, "📱 TG"))
		}
		if len(socials) > 0 {
			b.WriteString("\n\n🔗 <b>Socials</b>\n")
			b.WriteString(strings.Join(socials, " • "))
		}

		b.WriteString("\n\n📊 <b>Stats</b>\n")
		fmt.Fprintf(&b, "├ USD     %s (%s)\n", Price(q.PriceUSD), Percent(q.Change24h))
		fmt.Fprintf(&b, "├ MC      %s\n", USD(q.MarketCapUSD))
		fmt.Fprintf(&b, "├ Vol     %s\n", USD(q.Volume24hUSD))
		fmt.Fprintf(&b, "├ LP      %s\n", USD(q.LiquidityUSD))
		fmt.Fprintf(&b, "├ 1H      %s 🟢%s 🔴%s\n", Percent(q.Change1h), Count(q.Buys1h), Count(q.Sells1h))
		fmt.Fprintf(&b, "├ FDV     %s\n", USD(q.FDVUSD))
		fmt.Fprintf(&b, "└ ATH     %s", ATH(q, r.ATHPrice))

		b.WriteString("\n\n🛡 <b>Security</b>\n")
		paid := "❌ No"
		if q.DexPaid {
			paid = "✅ Yes"
		}
		fmt.Fprintf(&b, "└ DEX Paid  %s", paid)
	}

	if r.FirstCall != nil {
		b.WriteString("\n\n")
		b.WriteString(FirstCallLine(*r.FirstCall, q, r.Now))
	}
	if r.AutoUsed {
		b.WriteString("\n\n🔁 Auto-used your previous vote")
	}
	b.WriteString("\n\n🔽 Buy via:\n\n")
	b.WriteString(r.Affiliate)
	return b.String()
}

// ATH renders the all-time-high market cap and, when the price is below
// it, the distance in percent: "$1.20M (-35%)".
func ATH(q *market.Quote, athPrice float64) string {
	if q == nil || q.PriceUSD <= 0 || q.MarketCap() <= 0 {
		return "N/A"
	}
	if athPrice < q.PriceUSD {
		athPrice = q.PriceUSD
	}
	s := "$" + Compact(athPrice*q.Supply())
	if q.PriceUSD < athPrice {
		s += fmt.Sprintf(" (%.0f%%)", (q.PriceUSD-athPrice)/athPrice*100)
	}
	return s
}

// FirstCallLine renders "😈 @user @ $120.0K [2.5x] (3h)". Without a usable
// quote the market cap shows as N/A and the delta is omitted.
func FirstCallLine(fc FirstCall, q *market.Quote, now time.Time) string {
	mc, delta := "N/A", ""
	if supply := q.Supply(); supply > 0 && fc.EntryPrice > 0 {
		mc = "$" + Compact(fc.EntryPrice*supply)
		delta = Delta(fc.EntryPrice, q.PriceUSD)
	}
	s := fmt.Sprintf("😈 @%s @ %s", EscapeHTML(orUnknown(fc.Username)), mc)
	if delta != "" {
		s += " [" + delta + "]"
	}
	return s + " (" + Age(now.Sub(fc.CreatedAt)) + ")"
}

// FirstCallAnnouncement is posted under a new poll: "😈 @alice @ $1.23M".
func FirstCallAnnouncement(username string, marketCap float64) string {
	return fmt.Sprintf("😈 @%s @ %s", EscapeHTML(orUnknown(username)), USD(&marketCap))
}

// PollQuestion is the native poll's question.
const PollQuestion = "Info about coin\n(you can select multiple options)"

// StillOpen tells the chat that the poster has not voted yet.
func StillOpen(sender string, chatID int64, messageID int) string {
	return fmt.Sprintf("⏳ Poll for this CA is still open. Waiting for @%s to vote.%s",
		EscapeHTML(orUnknown(sender)), jumpLink(chatID, messageID))
}

// NotAuthorized tells a voter that only the poster may vote.
func NotAuthorized(voter string, chatID int64, messageID int) string {
	return fmt.Sprintf("⛔ @%s, only the person who posted the CA can vote on this poll.%s",
		EscapeHTML(orUnknown(voter)), jumpLink(chatID, messageID))
}

// jumpLink links to a message in a supergroup. Telegram only serves
// t.me/c links for chats with the -100 prefix.
func jumpLink(chatID int64, messageID int) string {
	id := strconv.FormatInt(chatID, 10)
	if messageID == 0 || !strings.HasPrefix(id, "-100") {
		return ""
	}
	return fmt.Sprintf("\n\n👉 <a href=\"https://t.me/c/%s/%d\">Jump to poll</a>", strings.TrimPrefix(id, "-100"), messageID)
}

// Help lists the commands.
func Help() string {
	var b strings.Builder
	b.WriteString("🤖 <b>Available Commands</b>\n\n")
	b.WriteString("📋 <b>General</b>\n")
	b.WriteString("├ /ca - Show all commands\n")
	b.WriteString("├ /card &lt;CA&gt; - Generate call card\n")
	b.WriteString("└ /lb - Full leaderboard\n\n")
	b.WriteString("🏆 <b>Category Leaderboards</b>\n")
	order := leaderboardOrder()
	for i, c := range order {
		branch := "├"
		if i == len(order)-1 {
			branch = "└"
		}
		fmt.Fprintf(&b, "%s /%s - %s leaderboard\n", branch, c.Command, leaderboardName(c))
	}
	b.WriteString("\n💡 Send any Solana CA to create a poll!")
	return b.String()
}

// leaderboardOrder lists categories the way the command menu shows them.
func leaderboardOrder() []vote.Category {
	return []vote.Category{vote.Gamble, vote.CTO, vote.Volume, vote.GoodDev, vote.Alpha}
}

func leaderboardName(c vote.Category) string {
	if c.Key == vote.GoodDev.Key {
		return "Good Dev"
	}
	return c.Label
}

var rankEmojis = []string{"🏆", "🥈", "🥉", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

// LeaderboardTitle is the heading for a category filter.
func LeaderboardTitle(filter string) string {
	if c, ok := vote.Lookup(filter); ok {
		return c.Title
	}
	return "🏆 Leaderboard"
}

// Leaderboard renders a board.
func Leaderboard(bd *leaderboard.Board) string {
	var b strings.Builder
	b.WriteString(LeaderboardTitle(bd.Filter))
	b.WriteString("\n\n📊 <b>Group Stats</b>\n")
	if bd.Calls == 0 {
		fmt.Fprintf(&b, "├ Period    %s\n└ Calls     0\n\nNo calls in this period.", bd.Period)
		return b.String()
	}
	fmt.Fprintf(&b, "├ Period    <b>%s</b>\n", bd.Period)
	fmt.Fprintf(&b, "├ Calls     <b>%d</b>\n", bd.Calls)
	fmt.Fprintf(&b, "├ Hit Rate  <b>%d%%</b>\n", bd.HitRate)
	fmt.Fprintf(&b, "├ Median    <b>%s</b>\n", Multiple(bd.Median))
	fmt.Fprintf(&b, "└ Return    <b>%s</b> (Avg: %s)\n", Multiple(bd.Best), Multiple(bd.Average))

	if len(bd.Top) > 0 {
		b.WriteString("\n")
	}
	for i, e := range bd.Top {
		rank := strconv.Itoa(i + 1)
		if i < len(rankEmojis) {
			rank = rankEmojis[i]
		}
		fmt.Fprintf(&b, "%s <b>%s</b> ≫ @%s [%s]\n", rank, EscapeHTML(e.CoinName), EscapeHTML(e.Username), Multiple(e.Return))
	}
	return b.String()
}

// CardCaption accompanies a generated call card, or replaces it when no
// image could be produced.
func CardCaption(c card.Card) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🃏 <b>Call Card</b> · <b>%s</b>\n\n", EscapeHTML(c.Votes.Labels()))
	fmt.Fprintf(&b, "🪙 <b>%s</b>\n", EscapeHTML(c.CoinName))
	fmt.Fprintf(&b, "📊 Performance: <b>%s</b>\n", c.Performance)
	fmt.Fprintf(&b, "🏆 Highest: <b>%s</b>\n", c.Highest)
	fmt.Fprintf(&b, "💰 Called at: <b>$%s</b> MC\n", c.EntryMC)
	fmt.Fprintf(&b, "👤 Caller: @%s\n", EscapeHTML(c.Caller))
	fmt.Fprintf(&b, "⏱ %s\n", c.Elapsed)
	fmt.Fprintf(&b, "\nCA: <code>%s</code>", EscapeHTML(c.CA))
	return b.String()
}

func link(href, text string) string {
	return `<a href="` + EscapeHTML(href) + `">` + text + `</a>`
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// HealthReport renders a health snapshot for the admin chat.
func HealthReport(rep health.Report) string {
	status := "✅ ok"
	if !rep.OK() {
		status = "❌ " + EscapeHTML(rep.StoreError)
	}
	return fmt.Sprintf(
		"📊 <b>Health Report</b>\n"+
			"- Store: <code>%s</code> %s\n"+
			"- Polls: <code>%d</code> (open <code>%d</code>, resolved <code>%d</code>)\n"+
			"- Dedupe: <code>%s</code>\n"+
			"- Dashboard clients: <code>%d</code>\n"+
			"- Uptime: <code>%s</code>\n"+
			"- Time: <code>%s</code>",
		rep.StoreDriver, status,
		rep.Polls.Total, rep.Polls.Open, rep.Polls.Resolved,
		rep.DedupeBackend, rep.FeedClients, rep.Uptime,
		rep.GeneratedAt.Format(time.RFC3339),
	)
}

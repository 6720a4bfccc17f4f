// Package card produces AI-generated "call card" images.
package card

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/0xsamyy/callpoll/internal/vote"
)

// ErrNoImage is returned when the model answered without an image part.
var ErrNoImage = errors.New("card: model returned no image")

// Card is the already formatted content of one call card.
type Card struct {
	CA          string
	CoinName    string
	Caller      string
	Votes       vote.Set
	Performance string // "3.4x", "+12.5%", "N/A"
	Highest     string
	EntryMC     string // without the leading "$"
	CurrentMC   string
	Price       string
	ATH         string
	Elapsed     string // "2d, 3h"
	Positive    bool
}

// Image is a generated picture.
type Image struct {
	MIMEType string
	Data     []byte
}

// Generator renders a Card into an image.
type Generator interface {
	Generate(ctx context.Context, c Card) (*Image, error)
}

// Prompt describes the picture for an image model. The theme follows the
// first vote category.
func (c Card) Prompt() string {
	theme := c.Votes.Theme()
	perfColor := "red"
	if c.Positive {
		perfColor = "bright glowing " + theme.Accent
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create a crypto trading PNL alert card image with a %s background and %s effects. The card should have:\n", theme.Background, theme.Accent)
	fmt.Fprintf(&b, "- Top left: bold white text %q as category label badge\n", theme.Badge)
	fmt.Fprintf(&b, "- Left side: a cool anime mascot character matching the %s color scheme\n", theme.Accent)
	fmt.Fprintf(&b, "- Right side large bold text: %q token name in white\n", c.CoinName)
	fmt.Fprintf(&b, "- Below that: \"called at $%s\" in gray/white text\n", c.EntryMC)
	fmt.Fprintf(&b, "- Center/right: HUGE bold text %q in %s color, this should be the most prominent element\n", c.Performance, perfColor)
	fmt.Fprintf(&b, "- Below performance: \"🏆 Highest: %s\" in golden/yellow color\n", c.Highest)
	fmt.Fprintf(&b, "- Category info: %q displayed as tags/badges\n", c.Votes.Labels())
	fmt.Fprintf(&b, "- Below that: \"👤 %s\" in white bold\n", strings.ToUpper(c.Caller))
	fmt.Fprintf(&b, "- Below that: \"⏱ %s\" in gray\n", c.Elapsed)
	fmt.Fprintf(&b, "- Bottom stats row: Entry MC $%s | Current MC %s | Price %s | ATH %s\n", c.EntryMC, c.CurrentMC, c.Price, c.ATH)
	fmt.Fprintf(&b, "- Overall style: sleek modern card with rounded corners, %s border glow, anime mascot character\n", theme.Accent)
	b.WriteString("- Aspect ratio: 16:9 landscape\n")
	b.WriteString("- Do NOT include any real photos, use anime/illustrated style")
	return b.String()
}

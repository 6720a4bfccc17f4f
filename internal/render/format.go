// Package render builds the HTML messages and inline keyboards the bot sends.
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var htmlEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`<`, "&lt;",
	`>`, "&gt;",
	`"`, "&quot;",
)

// EscapeHTML escapes text for Telegram's HTML parse mode.
func EscapeHTML(s string) string { return htmlEscaper.Replace(s) }

// Compact formats large amounts as 1.23B, 4.56M or 7.8K.
func Compact(f float64) string {
	switch a := math.Abs(f); {
	case a >= 1e9:
		return fmt.Sprintf("%.2fB", f/1e9)
	case a >= 1e6:
		return fmt.Sprintf("%.2fM", f/1e6)
	case a >= 1e3:
		return fmt.Sprintf("%.1fK", f/1e3)
	}
	return humanReadable(f)
}

// USD is Compact with a dollar sign, or "N/A" for nil.
func USD(f *float64) string {
	if f == nil || *f == 0 {
		return "N/A"
	}
	return "$" + Compact(*f)
}

// Price renders a token price the way the provider reports it.
func Price(p float64) string {
	if p <= 0 {
		return "N/A"
	}
	return "$" + strconv.FormatFloat(p, 'f', -1, 64)
}

// Percent renders a signed change such as "+12.5%" or "-3.2%".
func Percent(p *float64) string {
	if p == nil {
		return "N/A"
	}
	s := strconv.FormatFloat(*p, 'f', -1, 64)
	if *p >= 0 {
		s = "+" + s
	}
	return s + "%"
}

// Count renders an optional integer.
func Count(n *int) string {
	if n == nil {
		return "N/A"
	}
	return strconv.Itoa(*n)
}

// Multiple renders a return multiple with one decimal, e.g. "3.4x".
func Multiple(x float64) string { return fmt.Sprintf("%.1fx", x) }

// Delta describes the move from entry to current. At or above +100% it
// is a multiple ("2.5x"); below that a whole percentage ("+40%", "-12%").
func Delta(entry, current float64) string {
	if entry <= 0 || current <= 0 {
		return ""
	}
	pct := (current - entry) / entry * 100
	switch {
	case pct >= 100:
		return Multiple(current / entry)
	case pct >= 0:
		return fmt.Sprintf("+%.0f%%", pct)
	default:
		return fmt.Sprintf("%.0f%%", pct)
	}
}

// Performance is Delta with one decimal on percentages, used on call cards.
func Performance(entry, current float64) string {
	if entry <= 0 || current <= 0 {
		return "N/A"
	}
	pct := (current - entry) / entry * 100
	switch {
	case pct >= 100:
		return Multiple(current / entry)
	case pct >= 0:
		return fmt.Sprintf("+%.1f%%", pct)
	default:
		return fmt.Sprintf("%.1f%%", pct)
	}
}

// Age renders how long ago something happened: "now", "5m", "3h", "2d".
func Age(d time.Duration) string {
	m := int(d / time.Minute)
	switch {
	case m < 1:
		return "now"
	case m < 60:
		return fmt.Sprintf("%dm", m)
	case m < 24*60:
		return fmt.Sprintf("%dh", m/60)
	}
	return fmt.Sprintf("%dd", m/(24*60))
}

// Elapsed renders a duration with two units: "2d, 3h", "4h, 12m", "7m".
func Elapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	m := int(d / time.Minute)
	h, days := m/60, m/(24*60)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd, %dh", days, h%24)
	case h > 0:
		return fmt.Sprintf("%dh, %dm", h, m%60)
	}
	return fmt.Sprintf("%dm", m)
}

// humanReadable formats numbers below 1000:
// - For numbers >= 1, shows 2 decimal places.
// - For numbers < 1, shows 3 significant figures (e.g., 0.123 or 0.000123).
func humanReadable(f float64) string {
	if math.Abs(f) >= 1 {
		return strconv.FormatFloat(f, 'f', 2, 64)
	}
	return strconv.FormatFloat(f, 'g', 3, 64)
}

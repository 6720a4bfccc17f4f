package leaderboard

import (
	"strings"
	"time"
)

// Period is a leaderboard time window.
type Period string

const (
	Period12h Period = "12h"
	Period1d  Period = "1d"
	Period1w  Period = "1w"
	Period2w  Period = "2w"
)

// Periods in button order.
var Periods = []Period{Period12h, Period1d, Period1w, Period2w}

var periodHours = map[Period]int{
	Period12h: 12,
	Period1d:  24,
	Period1w:  168,
	Period2w:  336,
}

// ParsePeriod accepts "12h", "1d", "1w" or "2w" in any case.
func ParsePeriod(s string) (Period, bool) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	_, ok := periodHours[p]
	return p, ok
}

// Duration is the window length; unknown periods count as one day.
func (p Period) Duration() time.Duration {
	h, ok := periodHours[p]
	if !ok {
		h = 24
	}
	return time.Duration(h) * time.Hour
}

// Button is the upper-case button label, e.g. "12H".
func (p Period) Button() string { return strings.ToUpper(string(p)) }

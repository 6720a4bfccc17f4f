package render

import (
	"strings"
)

// Venue is a trading venue link. Template may contain {ca} and {ref}.
type Venue struct {
	Label    string
	Template string
}

// Venues are the "Buy via" rows appended to result cards.
var Venues = [][]Venue{
	{
		{"GM", "https://gmgn.ai/r/yLK3g2v6?token={ca}"},
		{"AXI", "https://axiom.trade/@anony?token={ca}"},
		{"TRO", "https://t.me/menelaus_trojanbot?start=r-dankanonymous-{ca}"},
		{"TRT", "https://trojan.com/@Danoanon?token={ca}"},
		{"FMO", "https://fomo.family/r/idankanonymous?token={ca}"},
		{"BLO", "https://t.me/BloomSolana_bot?start=ref_2PL9YX5OSY_{ca}"},
	},
	{
		{"OKX", "https://web3.okx.com/join/DANKANON?token={ca}"},
		{"MAE", "https://jup.ag/swap/SOL-{ca}?ref={ref}"},
		{"TRM", "https://trade.padre.gg/rk/dankanon?token={ca}"},
		{"PHO", "https://trade.padre.gg/rk/dankanon?token={ca}"},
		{"PEP", "https://t.me/pepeboost_sol_bot?start=ref_0fi608_{ca}"},
	},
}

// URL expands the template.
func (v Venue) URL(ca, ref string) string {
	return strings.NewReplacer("{ca}", ca, "{ref}", ref).Replace(v.Template)
}

// AffiliateLinks renders every venue row as "<a>GM</a>•<a>AXI</a>...".
func AffiliateLinks(ca, ref string) string {
	rows := make([]string, len(Venues))
	for i, row := range Venues {
		links := make([]string, len(row))
		for j, v := range row {
			links[j] = `<a href="` + EscapeHTML(v.URL(ca, ref)) + `">` + v.Label + `</a>`
		}
		rows[i] = strings.Join(links, "•")
	}
	return strings.Join(rows, "\n")
}

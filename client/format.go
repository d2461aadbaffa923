package client

import (
	"fmt"
	"strconv"
)

// FormatAddress shortens a wallet address for display: 0x7099...79C8.
func FormatAddress(address string) string {
	if address == "" {
		return "Not connected"
	}
	if len(address) < 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// FormatUSDC renders a micro-denominated collateral amount as whole dollars
// with thousands separators, e.g. 1500000000 -> "$1,500".
func FormatUSDC(micro int64) string {
	dollars := micro / 1_000_000
	return "$" + groupThousands(dollars)
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}

	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// Probability normalizes a yes/no price pair into display percentages.
// Degenerate quotes (both sides zero) render as an even split.
func Probability(yesPrice, noPrice float64) (yesPercent, noPercent float64) {
	total := yesPrice + noPrice
	if total == 0 {
		return 50, 50
	}
	return yesPrice / total * 100, noPrice / total * 100
}

// FormatPercent renders a probability for the ticker, e.g. "65%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.0f%%", p)
}

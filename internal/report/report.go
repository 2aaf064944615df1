// Package report renders the console view of the tracked shops.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"gardenshop-tracker/internal/parse"
	"gardenshop-tracker/internal/tracker"
)

const (
	title     = "Grow a Garden - Shop Tracker"
	stampFmt  = "2006-01-02 15:04:05"
	bannerLen = 60
)

var banner = strings.Repeat("=", bannerLen)

// Render writes a timestamped report of every shop present in state.
func Render(w io.Writer, now time.Time, state *tracker.State) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\n%s\n", banner)
	fmt.Fprintf(bw, "[%s] %s\n", now.Format(stampFmt), title)
	fmt.Fprintln(bw, banner)

	for _, shop := range state.Shops() {
		fmt.Fprintf(bw, "%s:\n", shop.Key.DisplayName())
		for _, item := range shop.Items {
			fmt.Fprintf(bw, "  %s\n", item)
		}
		fmt.Fprintf(bw, "  Countdown: %s\n\n", parse.FormatCountdown(shop.Remaining))
	}

	fmt.Fprintln(bw, banner)
	return bw.Flush()
}

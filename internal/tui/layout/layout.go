// Package layout sizes workspace panes for the terminal width.
package layout

import (
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

// Width thresholds of the layout tiers.
const (
	SplitViewThreshold     = 120
	WideViewThreshold      = 200
	UltraWideViewThreshold = 240
)

// hysteresisMargin keeps the tier stable while a terminal is resized
// around a threshold.
const hysteresisMargin = 5

// Tier is a coarse terminal width class.
type Tier int

const (
	TierNarrow Tier = iota // one view
	TierSplit              // two views side by side
	TierWide               // two views, wider thumbnails
	TierUltra              // three views
)

func (t Tier) String() string {
	switch t {
	case TierNarrow:
		return "narrow"
	case TierSplit:
		return "split"
	case TierWide:
		return "wide"
	case TierUltra:
		return "ultra"
	default:
		return "unknown"
	}
}

// Panes returns how many views are shown at once.
func (t Tier) Panes() int {
	switch {
	case t >= TierUltra:
		return 3
	case t >= TierSplit:
		return 2
	default:
		return 1
	}
}

var thresholds = [...]int{0, SplitViewThreshold, WideViewThreshold, UltraWideViewThreshold}

// TierForWidth maps a terminal width to its tier.
func TierForWidth(width int) Tier {
	switch {
	case width >= UltraWideViewThreshold:
		return TierUltra
	case width >= WideViewThreshold:
		return TierWide
	case width >= SplitViewThreshold:
		return TierSplit
	default:
		return TierNarrow
	}
}

// TierForWidthWithHysteresis only leaves prev once width has moved
// hysteresisMargin columns past the boundary.
func TierForWidthWithHysteresis(width int, prev Tier) Tier {
	next := TierForWidth(width)
	if next == prev || prev < TierNarrow || prev > TierUltra {
		return next
	}
	if next > prev {
		if width < thresholds[prev+1]+hysteresisMargin {
			return prev
		}
		return next
	}
	if width >= thresholds[prev]-hysteresisMargin {
		return prev
	}
	return next
}

// SplitProportions divides total into two panes with a two column gutter.
// Below the split threshold the left pane takes everything.
func SplitProportions(total int) (left, right int) {
	if total < SplitViewThreshold {
		return total, 0
	}
	avail := total - 2
	left = avail / 2
	return left, avail - left
}

// UltraProportions divides total into three panes with two gutters. The
// middle pane receives the remainder.
func UltraProportions(total int) (left, center, right int) {
	if total < UltraWideViewThreshold {
		return 0, total, 0
	}
	avail := total - 4
	side := avail / 3
	return side, avail - 2*side, side
}

// PaneWidths returns the width of each visible pane for the tier.
func PaneWidths(total int, tier Tier) []int {
	switch tier.Panes() {
	case 3:
		l, c, r := UltraProportions(total)
		if l > 0 {
			return []int{l, c, r}
		}
	case 2:
		l, r := SplitProportions(total)
		if r > 0 {
			return []int{l, r}
		}
	}
	return []int{total}
}

// TruncateRunes cuts s to max runes, ending with suffix when cut. The
// suffix is dropped when it does not fit.
func TruncateRunes(s string, max int, suffix string) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	sr := []rune(suffix)
	if len(sr) >= max {
		return string(r[:max])
	}
	return string(r[:max-len(sr)]) + suffix
}

// Truncate cuts s to max runes with a single-character ellipsis.
func Truncate(s string, max int) string {
	return TruncateRunes(s, max, "…")
}

// TruncateWidth cuts s to maxWidth terminal cells. ANSI sequences are kept
// intact.
func TruncateWidth(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(suffix) >= maxWidth {
		suffix = ""
	}
	return truncate.StringWithTail(s, uint(maxWidth), suffix)
}

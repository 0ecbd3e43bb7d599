// Package identicon derives a small, deterministic terminal badge from a
// device address so devices can be told apart at a glance.
package identicon

import (
	"crypto/sha256"
	"strings"

	"github.com/fatih/color"
)

const (
	// Width is the number of cells in a pattern.
	Width = 5

	filled = "█"
	empty  = "░"
)

var palette = []color.Attribute{
	color.FgRed,
	color.FgGreen,
	color.FgYellow,
	color.FgBlue,
	color.FgMagenta,
	color.FgCyan,
	color.FgHiRed,
	color.FgHiGreen,
	color.FgHiYellow,
	color.FgHiBlue,
	color.FgHiMagenta,
	color.FgHiCyan,
}

// Cells returns the horizontally symmetric on/off cells for address.
// The left half and centre come from the hash; the right half mirrors the left.
func Cells(address string) [Width]bool {
	sum := sha256.Sum256([]byte(strings.ToLower(address)))

	var cells [Width]bool
	for i := 0; i <= Width/2; i++ {
		on := sum[i]&1 == 1
		cells[i] = on
		cells[Width-1-i] = on
	}
	return cells
}

// Pattern renders the cells of address as plain text.
func Pattern(address string) string {
	var b strings.Builder
	for _, on := range Cells(address) {
		if on {
			b.WriteString(filled)
		} else {
			b.WriteString(empty)
		}
	}
	return b.String()
}

// Color returns the palette attribute chosen for address.
func Color(address string) color.Attribute {
	sum := sha256.Sum256([]byte(strings.ToLower(address)))
	return palette[int(sum[len(sum)-1])%len(palette)]
}

// Badge renders the pattern of address in its colour. Colouring follows
// color.NoColor, so it degrades to Pattern on non-terminals.
func Badge(address string) string {
	return color.New(Color(address)).Sprint(Pattern(address))
}

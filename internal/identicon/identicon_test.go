package identicon_test

import (
	"testing"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/srg/blescan/internal/identicon"
	"github.com/stretchr/testify/assert"
)

func TestPatternIsDeterministicAndSymmetric(t *testing.T) {
	for _, addr := range []string{"aa:bb:cc:dd:ee:ff", "11:22:33:44:55:66", "00:00:00:00:00:00"} {
		t.Run(addr, func(t *testing.T) {
			cells := identicon.Cells(addr)
			for i := 0; i < identicon.Width/2; i++ {
				assert.Equal(t, cells[i], cells[identicon.Width-1-i], "pattern MUST mirror around the centre")
			}

			p := identicon.Pattern(addr)
			assert.Equal(t, p, identicon.Pattern(addr))
			assert.Equal(t, identicon.Width, utf8.RuneCountInString(p))
		})
	}
}

func TestAddressCaseDoesNotMatter(t *testing.T) {
	assert.Equal(t, identicon.Pattern("AA:BB:CC:DD:EE:FF"), identicon.Pattern("aa:bb:cc:dd:ee:ff"))
	assert.Equal(t, identicon.Color("AA:BB:CC:DD:EE:FF"), identicon.Color("aa:bb:cc:dd:ee:ff"))
}

func TestBadgeWithoutColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	assert.Equal(t, identicon.Pattern("aa:bb:cc:dd:ee:ff"), identicon.Badge("aa:bb:cc:dd:ee:ff"))
}

func TestBadgeWithColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prev }()

	badge := identicon.Badge("aa:bb:cc:dd:ee:ff")
	assert.Contains(t, badge, identicon.Pattern("aa:bb:cc:dd:ee:ff"))
	assert.Contains(t, badge, "\x1b[", "badge MUST carry an ANSI colour sequence")
}

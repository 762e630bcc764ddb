package text

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// NotoEmojiBase is where emoji SVGs are fetched from by default.
const NotoEmojiBase = "https://raw.githubusercontent.com/googlefonts/noto-emoji/main/svg/"

// Segment is a run of plain text or a single emoji grapheme cluster.
type Segment struct {
	Text  string
	Emoji bool
}

// Segments splits text into grapheme clusters and groups consecutive non-emoji clusters.
func Segments(text string) []Segment {
	var res []Segment
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		g := gr.Str()
		if IsEmoji(g) {
			res = append(res, Segment{Text: g, Emoji: true})
			continue
		}
		if n := len(res); n > 0 && !res[n-1].Emoji {
			res[n-1].Text += g
			continue
		}
		res = append(res, Segment{Text: g})
	}
	return res
}

// IsEmoji reports whether a grapheme cluster starts with a code point from the emoji blocks.
func IsEmoji(grapheme string) bool {
	var r rune = -1
	for _, c := range grapheme {
		r = c
		break
	}
	switch {
	case r >= 0x1f300 && r <= 0x1faff: // pictographs, emoticons, transport, supplemental symbols
	case r >= 0x2600 && r <= 0x27bf: // misc symbols, dingbats
	case r >= 0x1f1e6 && r <= 0x1f1ff: // regional indicators
	case r >= 0xfe00 && r <= 0xfe0f, r == 0x200d:
	default:
		return false
	}
	return true
}

// EmojiFilenames returns the Noto emoji file names to try for a grapheme, from the full code point
// sequence down to the first code point alone.
func EmojiFilenames(grapheme string) []string {
	var cps []string
	for _, r := range grapheme {
		cps = append(cps, fmt.Sprintf("%04x", r))
	}
	res := make([]string, 0, len(cps))
	for n := len(cps); n > 0; n-- {
		res = append(res, "emoji_u"+strings.Join(cps[:n], "_")+".svg")
	}
	return res
}

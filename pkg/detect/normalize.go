package detect

import (
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// normalizer folds full-width and compatibility code points into their plain
// ASCII forms. Scammers routinely pad messages with stylized or full-width
// characters ("ｖｅｒｉｆｙ", "𝐮𝐫𝐠𝐞𝐧𝐭") that dodge a plain substring match.
var normalizer = transform.Chain(width.Fold, norm.NFKC)

// NormalizeText returns text with unicode compatibility forms folded. On a
// malformed input the original text is returned unchanged; classification
// degrades to matching the raw bytes rather than failing.
func NormalizeText(text string) string {
	out, _, err := transform.String(normalizer, text)
	if err != nil {
		return text
	}
	return out
}

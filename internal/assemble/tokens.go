package assemble

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens is the default Estimator. It uses the cl100k_base encoding
// when available and falls back to a character heuristic when the encoding
// cannot be loaded (e.g. no cached vocabulary on disk).
func EstimateTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})

	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	// Rough heuristic: one token per ~3 runes works for mixed
	// Russian/English chat text.
	return utf8.RuneCountInString(text)/3 + 1
}

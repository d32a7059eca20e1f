package bot

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// summaryPatterns mark a mention as a summary request. The bot only reacts
// to messages that address it, so recall matters more than precision here.
var summaryPatterns = []*regexp2.Regexp{
	compile(`о ч[её]м.*договорились`),
	compile(`что.*(было|обсуждали|говорили|решили)`),
	compile(`сводк`),
	compile(`протокол`),
	compile(`резюм`),
	compile(`итог`),
	compile(`суммар`),
	compile(`summar(y|ize|ise)`),
	compile(`recap`),
	compile(`what.*(happened|discussed)`),
}

func compile(pattern string) *regexp2.Regexp {
	return regexp2.MustCompile(pattern, regexp2.IgnoreCase)
}

// isSummaryRequest reports whether text looks like a request for a chat
// summary.
func isSummaryRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, re := range summaryPatterns {
		if m, _ := re.FindStringMatch(lower); m != nil {
			return true
		}
	}
	return false
}

// stripMention removes the bot's @username from text so the interval
// resolver sees only the request itself.
func stripMention(text, username string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "@"+username, ""))
}

package intent

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sandevgo/factbot/internal/core"
)

var (
	greetingRe = regexp.MustCompile(`(?i)^(hi|hello|hey|hiya|yo|thanks|thank you|thx|ty|ok|okay|cool|great|nice|awesome|bye|goodbye|see you|good (morning|afternoon|evening|night)|yes|no|yep|nope|sure|got it|sounds good|no problem)( (so much|a lot|very much|there|again|everyone|all))?[\s\p{P}\p{So}]*$`)
	urlRe      = regexp.MustCompile(`(?i)https?://|www\.`)
	properRe   = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
	yearRe     = regexp.MustCompile(`\b20[0-3][0-9]\b`)
	digitRe    = regexp.MustCompile(`[0-9]`)
	eventRe    = regexp.MustCompile(`(?i)\b(won|wins|announced|confirmed|reported|died|dies|elected|resigned|launched|released|arrested|killed|banned|signed|approved|declared|claimed|leaked|revealed|sentenced|charged|attacked|invaded|crashed|collapsed)\b`)
	connectRe  = regexp.MustCompile(`(?i)^(and|but|so|also|then|plus|or|what about|how about)\b`)
	deicticRe  = regexp.MustCompile(`(?i)^(this|that|these|those|it|they|he|she)\b`)
	personalRe = regexp.MustCompile(`(?i)^(i think|i feel|i believe|in my opinion|imo|personally|i like|i love|i hate|i prefer|my name is|i am|i'm)\b`)
)

var sourceMarkers = []string{"Sources:", "[1]", "http"}

type input struct {
	text    string
	length  int
	history []core.Message
}

// rule reports whether it decided the outcome and, if so, the outcome.
type rule struct {
	name string
	eval func(in input) (decided, needsEvidence bool)
}

// cascade is evaluated top to bottom and the first deciding rule wins.
// The order is part of the classifier's contract; do not sort or regroup it.
var cascade = []rule{
	{"too_short", func(in input) (bool, bool) {
		return in.length < 10, false
	}},
	{"greeting", func(in input) (bool, bool) {
		return greetingRe.MatchString(in.text), false
	}},
	{"contains_url", func(in input) (bool, bool) {
		return urlRe.MatchString(in.text), true
	}},
	{"proper_nouns", func(in input) (bool, bool) {
		return distinct(properRe.FindAllString(in.text, -1)) >= 2, true
	}},
	{"year_or_number", func(in input) (bool, bool) {
		return yearRe.MatchString(in.text) || (digitRe.MatchString(in.text) && in.length > 20), true
	}},
	{"question", func(in input) (bool, bool) {
		return strings.HasSuffix(in.text, "?") && in.length > 15, true
	}},
	{"event_verb", func(in input) (bool, bool) {
		return in.length > 20 && eventRe.MatchString(in.text), true
	}},
	{"follow_up", func(in input) (bool, bool) {
		if len(in.history) == 0 {
			return false, false
		}
		if in.length < 50 || connectRe.MatchString(in.text) || deicticRe.MatchString(in.text) {
			return true, true
		}
		return lastAssistantCited(in.history), true
	}},
	{"substantive", func(in input) (bool, bool) {
		return in.length > 25 && !personalRe.MatchString(in.text), true
	}},
	{"capital_density", func(in input) (bool, bool) {
		return in.length > 30 && capitalRatio(in.text) > 0.15, true
	}},
	{"default", func(in input) (bool, bool) {
		return true, false
	}},
}

// NeedsEvidence decides whether a turn should be grounded in external evidence.
func NeedsEvidence(text string, history []core.Message) bool {
	_, result := Classify(text, history)
	return result
}

// Classify is NeedsEvidence that also names the deciding rule.
func Classify(text string, history []core.Message) (string, bool) {
	trimmed := strings.TrimSpace(text)
	in := input{
		text:    trimmed,
		length:  utf8.RuneCountInString(trimmed),
		history: history,
	}

	for _, r := range cascade {
		if decided, result := r.eval(in); decided {
			return r.name, result
		}
	}
	return "default", false
}

func distinct(items []string) int {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[it] = struct{}{}
	}
	return len(seen)
}

func lastAssistantCited(history []core.Message) bool {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != core.RoleAssistant {
			continue
		}
		for _, marker := range sourceMarkers {
			if strings.Contains(history[i].Content, marker) {
				return true
			}
		}
		return false
	}
	return false
}

func capitalRatio(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	capitals := 0
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) {
			capitals++
		}
	}
	return float64(capitals) / float64(len(words))
}

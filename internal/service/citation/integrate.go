package citation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sandevgo/factbot/internal/core"
)

const sourcesHeader = "Sources:"

var (
	// A line that opens a sources section: optional heading hashes, bold
	// markers and an emoji around one of the known titles.
	headerRe = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*)?(?:[*_]{1,3})?\s*(?:[\p{So}\x{FE0F}\x{200D}]+\s*)?(?:sources?(?: i checked)?|references?|citations?|works cited|further reading)\s*(?:[*_]{1,3})?\s*:?\s*(?:[*_]{1,3})?\s*$`)
	// "Sources: [1] ..." written on a single line. The rest of the line must
	// start like a citation so that "Source: the police said" stays prose.
	inlineHeaderRe = regexp.MustCompile(`(?i)^\s*(?:[*_]{1,3})?(?:sources?|references?|citations?)(?:[*_]{1,3})?\s*:(?:[*_]{1,3})?\s+(?:[-*•]\s*)?(?:\[\d+\]|\[[^\]\n]+\]\(|<?(?:https?://|www\.))`)
	ruleRe         = regexp.MustCompile(`^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)

	// Link text may hold one level of brackets ("[[1]](url)") and the
	// destination one level of parentheses.
	mdLinkRe    = regexp.MustCompile(`\[(?:[^\[\]\n]|\[[^\]\n]*\])*\]\((?:[^()\s]|\([^()\s]*\))+(?:\s+"[^"\n]*")?\)`)
	maskRe      = regexp.MustCompile("\x00(\\d+)\x00")
	urlLineRe   = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)])?\s*(?:\[\d+\]:?\s*)?<?(?:https?://|www\.)\S+>?\s*$`)
	parenURLRe  = regexp.MustCompile(`[ \t]*\(\s*<?(?:https?://|www\.)[^\s<>()]+>?\s*\)`)
	inlineURLRe = regexp.MustCompile(`[ \t]*<?(?:https?://|www\.)[^\s<>]*[^\s<>.,;:!?)\]'"]>?`)
	bulletRe    = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)])?\s*$`)
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
)

// EvidenceBlock renders evidence as a numbered list for the model prompt.
func EvidenceBlock(evidence []core.EvidenceItem) string {
	if len(evidence) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Evidence:")
	for i, e := range evidence {
		name := firstNonEmpty(e.Title, e.Link, defaultLabel)
		fmt.Fprintf(&sb, "\n- [%d] %s: %s — %s", i+1, name, e.Link, e.Snippet)
	}
	return sb.String()
}

// Integrate replaces whatever sources the model wrote with a canonical block
// built from evidence and drops bare URLs from the answer. Markdown links are
// left untouched. Integrate(Integrate(x, ev), ev) == Integrate(x, ev).
func Integrate(text string, evidence []core.EvidenceItem) string {
	body := stripSources(text)
	body = removeBareURLs(body)
	body = stripSources(body)
	body = tidy(body)

	block := SourcesBlock(evidence)
	switch {
	case block == "":
		return body
	case body == "":
		return block
	default:
		return body + "\n\n" + block
	}
}

// SourcesBlock lists evidence as 1-indexed markdown links.
func SourcesBlock(evidence []core.EvidenceItem) string {
	if len(evidence) == 0 {
		return ""
	}

	lines := make([]string, 0, len(evidence)+1)
	lines = append(lines, sourcesHeader)
	for i, e := range evidence {
		label := escapeLabel(ShortLabel(e))
		if link := strings.TrimSpace(e.Link); link != "" {
			lines = append(lines, fmt.Sprintf("[%d] [%s](%s)", i+1, label, escapeLink(link)))
		} else {
			lines = append(lines, fmt.Sprintf("[%d] %s", i+1, label))
		}
	}
	return strings.Join(lines, "\n")
}

// stripSources cuts text at the first sources header, together with a
// horizontal rule directly above it.
func stripSources(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !headerRe.MatchString(line) && !inlineHeaderRe.MatchString(line) {
			continue
		}

		end := i
		for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}
		if end > 0 && ruleRe.MatchString(lines[end-1]) {
			end--
		}
		return strings.Join(lines[:end], "\n")
	}
	return text
}

func removeBareURLs(text string) string {
	var links []string
	masked := mdLinkRe.ReplaceAllStringFunc(text, func(m string) string {
		links = append(links, m)
		return "\x00" + strconv.Itoa(len(links)-1) + "\x00"
	})

	lines := strings.Split(masked, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if urlLineRe.MatchString(line) {
			continue
		}

		cleaned := parenURLRe.ReplaceAllString(line, "")
		cleaned = inlineURLRe.ReplaceAllString(cleaned, "")
		if cleaned != line {
			if bulletRe.MatchString(cleaned) {
				continue
			}
			indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
			cleaned = indent + strings.TrimLeft(cleaned, " \t")
		}
		out = append(out, cleaned)
	}

	return maskRe.ReplaceAllStringFunc(strings.Join(out, "\n"), func(m string) string {
		idx, err := strconv.Atoi(strings.Trim(m, "\x00"))
		if err != nil || idx >= len(links) {
			return m
		}
		return links[idx]
	})
}

func tidy(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(blankRunRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

func escapeLabel(s string) string {
	return strings.NewReplacer(`[`, `\[`, `]`, `\]`).Replace(s)
}

func escapeLink(s string) string {
	return strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29").Replace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

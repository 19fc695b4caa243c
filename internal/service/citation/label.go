package citation

import (
	"net"
	"net/url"
	"strings"
	"unicode"

	"github.com/sandevgo/factbot/internal/core"
)

const (
	maxLabel     = 60
	cutLabel     = 57
	minWordBreak = 30
	ellipsis     = "…"
	defaultLabel = "Source"
)

// ShortLabel picks the text shown for an evidence link in the sources block.
func ShortLabel(item core.EvidenceItem) string {
	if title := strings.TrimFunc(item.Title, isSeparator); title != "" {
		return truncateLabel(title)
	}

	link := strings.TrimSpace(item.Link)
	if d := registrableDomain(link); d != "" {
		return d
	}
	if link != "" {
		return truncateLabel(link)
	}
	return defaultLabel
}

func truncateLabel(s string) string {
	r := []rune(s)
	if len(r) <= maxLabel {
		return s
	}

	cut := cutLabel
	for i := cutLabel - 1; i > minWordBreak; i-- {
		if unicode.IsSpace(r[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(r[:cut]), unicode.IsSpace) + ellipsis
}

// registrableDomain approximates the registrable domain as the last two host
// labels. Returns "" when link has no usable host.
func registrableDomain(link string) string {
	if link == "" {
		return ""
	}
	raw := link
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	if !strings.Contains(host, ".") {
		return ""
	}

	host = strings.TrimPrefix(host, "www.")
	labels := strings.Split(host, ".")
	if len(labels) > 2 {
		labels = labels[len(labels)-2:]
	}
	for _, l := range labels {
		if l == "" {
			return ""
		}
	}
	return strings.Join(labels, ".")
}

func isSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '-', '–', '—', '|', ':', '·', '•', '»', '«':
		return true
	}
	return false
}

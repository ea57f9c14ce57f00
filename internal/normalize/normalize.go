// Package normalize turns raw email header and body text into the
// canonical comparison keys used by thread resolution.
package normalize

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	addressPattern   = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.\w+`)
	ticketRefPattern = regexp.MustCompile(`\[TKT-(\d+)\]`)
	htmlTagPattern   = regexp.MustCompile(`<[^>]*>`)
	whitespaceRuns   = regexp.MustCompile(`\s+`)
)

// DefaultReplyPrefixes are the reply/forward subject markers recognized
// out of the box: English plus German.
var DefaultReplyPrefixes = []string{"re", "fw", "fwd", "aw", "wg"}

// Normalizer holds the configured reply prefixes and relay domains.
type Normalizer struct {
	prefixPattern *regexp.Regexp
	relayDomains  map[string]struct{}
}

// New creates a Normalizer. Empty prefix or relay lists fall back to the
// defaults and an empty relay set respectively.
func New(replyPrefixes, relayDomains []string) *Normalizer {
	if len(replyPrefixes) == 0 {
		replyPrefixes = DefaultReplyPrefixes
	}
	escaped := make([]string, len(replyPrefixes))
	for i, p := range replyPrefixes {
		escaped[i] = regexp.QuoteMeta(strings.ToLower(strings.TrimSpace(p)))
	}
	// A marker counts only when terminated by a colon or whitespace, so
	// ordinary words like "Regarding" survive normalization.
	pattern := fmt.Sprintf(`^(?i:%s)(?:\s*:\s*|\s+)`, strings.Join(escaped, "|"))

	relays := make(map[string]struct{}, len(relayDomains))
	for _, d := range relayDomains {
		relays[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}

	return &Normalizer{
		prefixPattern: regexp.MustCompile(pattern),
		relayDomains:  relays,
	}
}

// NormalizeSubject strips leading reply/forward markers, collapses
// whitespace runs to single spaces and trims. Idempotent: normalizing an
// already-normalized subject returns the same string.
func (n *Normalizer) NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		loc := n.prefixPattern.FindStringIndex(s)
		if loc == nil {
			break
		}
		s = s[loc[1]:]
	}
	return whitespaceRuns.ReplaceAllString(strings.TrimSpace(s), " ")
}

// HasReplyPrefix reports whether the raw subject begins with a recognized
// reply/forward marker. Thread resolution uses this on the raw subject to
// gate the lossy most-recent-ticket fallback.
func (n *Normalizer) HasReplyPrefix(subject string) bool {
	return n.prefixPattern.MatchString(strings.TrimSpace(subject))
}

// ResolveSender returns the customer address for a message. When the raw
// sender's domain is a known transactional relay, the Reply-To address is
// preferred since the relay address is not the real customer.
func (n *Normalizer) ResolveSender(from, replyTo string) string {
	addr := ExtractAddress(from)
	if addr == "" {
		return ""
	}
	if _, relay := n.relayDomains[domainOf(addr)]; relay && replyTo != "" {
		if r := ExtractAddress(replyTo); r != "" {
			return r
		}
	}
	return addr
}

// ExtractAddress returns the bare lowercase email address from a raw
// header value such as `"Display Name" <addr>` or an address list. On
// parse failure it falls back to a regex scan, then to the raw
// trimmed-lowercased input.
func ExtractAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if addrs, err := mail.ParseAddressList(raw); err == nil && len(addrs) > 0 {
		return strings.ToLower(strings.TrimSpace(addrs[0].Address))
	}
	if addr, err := mail.ParseAddress(raw); err == nil {
		return strings.ToLower(strings.TrimSpace(addr.Address))
	}

	if m := addressPattern.FindString(raw); m != "" {
		return strings.ToLower(m)
	}
	return strings.ToLower(raw)
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return addr[i+1:]
	}
	return ""
}

// TicketRef formats the reference token embedded in outbound subjects.
// ParseTicketRef must accept exactly this format.
func TicketRef(id uint64) string {
	return fmt.Sprintf("[TKT-%d]", id)
}

// ParseTicketRef scans subject then body for a ticket-reference token and
// returns the embedded id.
func ParseTicketRef(subject, body string) (uint64, bool) {
	for _, text := range []string{subject, body} {
		if m := ticketRefPattern.FindStringSubmatch(text); m != nil {
			id, err := strconv.ParseUint(m[1], 10, 64)
			if err == nil && id > 0 {
				return id, true
			}
		}
	}
	return 0, false
}

// CleanText normalizes unicode, drops control characters and collapses
// whitespace in extracted body text.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFKC.String(text)
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t' || r == ' ':
			b.WriteRune(r)
		case unicode.IsControl(r) || !unicode.IsPrint(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return whitespaceRuns.ReplaceAllString(strings.TrimSpace(b.String()), " ")
}

// HTMLToText strips an HTML body down to approximate plain text.
func HTMLToText(html string) string {
	text := html

	replacements := []struct {
		from string
		to   string
	}{
		{"<br>", "\n"},
		{"<br/>", "\n"},
		{"<br />", "\n"},
		{"<p>", "\n"},
		{"</p>", "\n"},
		{"<div>", "\n"},
		{"</div>", "\n"},
		{"&nbsp;", " "},
		{"&amp;", "&"},
		{"&lt;", "<"},
		{"&gt;", ">"},
		{"&quot;", "\""},
		{"&#39;", "'"},
	}
	for _, replacement := range replacements {
		text = strings.ReplaceAll(text, replacement.from, replacement.to)
	}

	text = htmlTagPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Package pattern derives the keyword signature used to match candidate
// tickets against an incident. Extraction is deterministic and cheap by
// design: every accepted link can cite the literal keyword that triggered
// it, so a support agent can audit the engine's decisions in real time.
package pattern

import "strings"

// Profile is the signature derived from an incident's problem ticket.
// Immutable once built.
type Profile struct {
	Keywords  []string // ordered phrases and tokens scored against candidates
	SystemTag string   // integrated system this incident concerns, empty if unknown
	Name      string   // fixed pattern that matched, empty for fallback signatures
}

// systemEntry maps a ticket tag to the integrated system it identifies.
type systemEntry struct {
	tag  string
	name string
}

// systemTable is scanned in declaration order; the first hit wins. Order is
// load-bearing - it is the tie-break when a ticket carries several system
// tags - so this must stay an ordered list, never a map.
var systemTable = []systemEntry{
	{"pos-counterpoint", "Counterpoint"},
	{"pos-lightspeed", "Lightspeed"},
	{"pos-vend", "Vend"},
	{"bo-netsuite", "NetSuite"},
	{"bo-sage", "Sage 200"},
	{"bo-xero", "Xero"},
}

// patternEntry pairs a named outage pattern with the keyword list adopted
// wholesale as the signature when any one keyword is present.
type patternEntry struct {
	name     string
	keywords []string
}

// patternTable is scanned in declaration order; the first entry with any
// keyword present in the ticket text wins, not the best semantic match.
var patternTable = []patternEntry{
	{"Platform Down", []string{
		"tvp down", "platform down", "site down", "page not loading",
		"nothing loading", "cannot log in", "cant log in", "502 bad gateway",
	}},
	{"Sync Failure", []string{
		"stock sync", "product sync", "sync failed", "sync failure",
		"not syncing to",
	}},
	{"Payment Errors", []string{
		"payment declined", "payments failing", "card machine", "eftpos",
		"terminal offline",
	}},
	{"Reporting Outage", []string{
		"reports blank", "report not loading", "dashboard empty",
		"figures missing",
	}},
	{"Email Delivery", []string{
		"emails not sending", "email receipts", "receipt email", "smtp",
	}},
}

// subjectPrefix is the triage prefix the desk prepends to problem ticket
// subjects. Stripped (case-insensitively) before fallback tokenization.
const subjectPrefix = "pt -"

// stopWords are generic support-desk vocabulary excluded from standalone
// fallback tokens: a single common word is too weak to identify one incident.
// Only applies to tokens of standalone length (5+); bigrams keep them.
var stopWords = map[string]struct{}{
	"about":    {},
	"access":   {},
	"after":    {},
	"broken":   {},
	"cannot":   {},
	"customer": {},
	"error":    {},
	"errors":   {},
	"issue":    {},
	"issues":   {},
	"please":   {},
	"problem":  {},
	"problems": {},
	"showing":  {},
	"since":    {},
	"still":    {},
	"support":  {},
	"syncing":  {},
	"system":   {},
	"there":    {},
	"ticket":   {},
	"tickets":  {},
	"unable":   {},
	"update":   {},
	"urgent":   {},
	"users":    {},
	"when":     {},
	"working":  {},
}

const (
	maxBigrams       = 4
	maxStandalone    = 3
	minBigramTokens  = 3 // tokens of length <= 2 are dropped before bigram building
	minStandaloneLen = 5
)

// Extract derives a Profile from a problem ticket's text and tags. Total
// over degenerate input: empty text yields an empty signature.
func Extract(subject, description string, tags []string) Profile {
	text := strings.ToLower(subject + " " + description)

	profile := Profile{SystemTag: DetectSystem(subject, description, tags)}

	for _, entry := range patternTable {
		for _, keyword := range entry.keywords {
			if strings.Contains(text, keyword) {
				profile.Name = entry.name
				profile.Keywords = append([]string(nil), entry.keywords...)
				return profile
			}
		}
	}

	profile.Keywords = fallbackKeywords(subject, description)
	return profile
}

// DetectSystem identifies which integrated system a ticket concerns. Tags
// are checked first against the system table; if none match, the system
// names themselves are searched for in the lower-cased text. In both passes
// the first hit in table order wins. Returns empty when nothing matches.
func DetectSystem(subject, description string, tags []string) string {
	for _, entry := range systemTable {
		for _, tag := range tags {
			if strings.EqualFold(tag, entry.tag) {
				return entry.name
			}
		}
	}

	text := strings.ToLower(subject + " " + description)
	for _, entry := range systemTable {
		if strings.Contains(text, strings.ToLower(entry.name)) {
			return entry.name
		}
	}
	return ""
}

// fallbackKeywords builds a signature for text no fixed pattern covers:
// consecutive-word bigrams plus a few longer standalone tokens. Bigrams are
// used because a single common word is too weak to discriminate, but two
// adjacent words are usually specific to one incident.
func fallbackKeywords(subject, description string) []string {
	subject = stripSubjectPrefix(subject)
	tokens := tokenize(subject + " " + description)

	keywords := make([]string, 0, maxBigrams+maxStandalone)
	for i := 0; i+1 < len(tokens) && len(keywords) < maxBigrams; i++ {
		keywords = append(keywords, tokens[i]+" "+tokens[i+1])
	}

	standalone := 0
	for _, token := range tokens {
		if standalone == maxStandalone {
			break
		}
		if len(token) < minStandaloneLen {
			continue
		}
		if _, stopped := stopWords[token]; stopped {
			continue
		}
		keywords = append(keywords, token)
		standalone++
	}
	return keywords
}

// stripSubjectPrefix removes the desk's triage prefix, case-insensitively.
func stripSubjectPrefix(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if len(trimmed) >= len(subjectPrefix) && strings.EqualFold(trimmed[:len(subjectPrefix)], subjectPrefix) {
		return strings.TrimSpace(trimmed[len(subjectPrefix):])
	}
	return trimmed
}

// tokenize lower-cases the text, replaces non-alphanumeric runes with
// spaces, splits on whitespace and drops tokens too short for bigrams.
func tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := fields[:0]
	for _, field := range fields {
		if len(field) >= minBigramTokens {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

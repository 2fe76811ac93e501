// Package classify holds the pure decision functions of the email
// intake pipeline: marketing detection, trigger classification,
// reference-number extraction, priority, customer info, and subject
// thread normalization. Nothing here touches the network or storage.
package classify

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/kmayer/taskflow/internal/model"
	"github.com/kmayer/taskflow/internal/rules"
)

// IsMarketing reports the first configured marketing filter phrase found
// in the subject, body, or sender header. Matching is case-insensitive
// substring matching, so a filter phrase can match inside an unrelated
// word; the configured order decides which phrase is reported.
func IsMarketing(filters []string, subject, body, fromHeader string) (string, bool) {
	text := strings.ToLower(subject + " " + body + " " + fromHeader)

	for _, phrase := range filters {
		if strings.Contains(text, strings.ToLower(phrase)) {
			return phrase, true
		}
	}

	return "", false
}

// ClassifyTrigger returns the first (category, phrase) pair whose phrase
// appears in the subject or body. Categories are checked in their
// configured order, phrases in theirs; the first match wins.
func ClassifyTrigger(triggers []rules.Category, subject, body string) (string, string, bool) {
	text := strings.ToLower(subject + " " + body)

	for _, cat := range triggers {
		for _, word := range cat.Words {
			if strings.Contains(text, strings.ToLower(word)) {
				return cat.Name, word, true
			}
		}
	}

	return "", "", false
}

// ReferenceNumbers holds the reference identifiers extracted from a
// message. An empty field means no pattern matched.
type ReferenceNumbers struct {
	PONumber    string
	SONumber    string
	QuoteNumber string
}

var (
	poPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)PO[#:\s-]*(\d+[-\w]*)`),
		regexp.MustCompile(`(?i)Purchase Order[#:\s-]*(\d+[-\w]*)`),
	}
	soPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)SO[#:\s-]*(\d+[-\w]*)`),
		regexp.MustCompile(`(?i)Sales Order[#:\s-]*(\d+[-\w]*)`),
	}
	quotePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Quote[#:\s-]*(\d+[-\w]*)`),
		regexp.MustCompile(`(?i)Q[#:\s-]*(\d+[-\w]*)`),
		regexp.MustCompile(`(?i)RFQ[#:\s-]*(\d+[-\w]*)`),
	}
)

// ExtractReferenceNumbers pulls PO, SO, and quote numbers out of the
// subject and body. Per field, the first matching pattern supplies the
// value; original case of the token is preserved.
func ExtractReferenceNumbers(subject, body string) ReferenceNumbers {
	text := subject + " " + body

	return ReferenceNumbers{
		PONumber:    firstMatch(poPatterns, text),
		SONumber:    firstMatch(soPatterns, text),
		QuoteNumber: firstMatch(quotePatterns, text),
	}
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, pat := range patterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

var urgencyWords = []string{"urgent", "asap", "immediately", "critical", "emergency", "rush"}

// DeterminePriority returns high when any urgency word appears in the
// subject or body, medium otherwise. Low is never assigned here.
func DeterminePriority(subject, body string) string {
	text := strings.ToLower(subject + " " + body)

	for _, word := range urgencyWords {
		if strings.Contains(text, word) {
			return model.PriorityHigh
		}
	}

	return model.PriorityMedium
}

// CustomerInfo holds the sender identity extracted from a From header.
type CustomerInfo struct {
	Name    string
	Email   string
	Company string
}

// genericProviders are consumer email domains that never imply a
// company name.
var genericProviders = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"hotmail.com": true,
	"outlook.com": true,
	"aol.com":     true,
}

// ExtractCustomerInfo parses a free-form From header into a customer
// name, address, and inferred company. The company is the title-cased
// first label of the address domain, blank for generic consumer
// providers. With no display name the local part stands in for the
// name; with no address at all the sender is "Unknown".
func ExtractCustomerInfo(fromHeader string) CustomerInfo {
	name, addr := parseAddress(fromHeader)

	info := CustomerInfo{Name: name, Email: addr}

	local, domain, hasDomain := splitAddress(addr)

	if hasDomain && !genericProviders[strings.ToLower(domain)] {
		label, _, _ := strings.Cut(domain, ".")
		info.Company = titleCase(label)
	}

	if info.Name == "" {
		if addr != "" {
			info.Name = local
		} else {
			info.Name = "Unknown"
		}
	}

	return info
}

// parseAddress extracts the display name and address from a free-form
// header value, tolerating bare addresses and unparsable input.
func parseAddress(header string) (name, addr string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ""
	}

	parsed, err := mail.ParseAddress(header)
	if err == nil {
		return parsed.Name, parsed.Address
	}

	// Fall back to treating anything with an @ as a bare address.
	if strings.Contains(header, "@") {
		candidate := strings.Trim(header, "<> ")
		if !strings.ContainsAny(candidate, " \t") {
			return "", candidate
		}
	}

	return "", ""
}

func splitAddress(addr string) (local, domain string, ok bool) {
	local, domain, ok = strings.Cut(addr, "@")
	if !ok || domain == "" {
		return addr, "", false
	}
	return local, domain, true
}

// titleCase upper-cases the first letter of each alphabetic run and
// lower-cases the rest, e.g. "acme-corp" becomes "Acme-Corp".
func titleCase(s string) string {
	var b strings.Builder
	startOfWord := true
	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		switch {
		case isLetter && startOfWord:
			b.WriteRune(toUpper(r))
			startOfWord = false
		case isLetter:
			b.WriteRune(toLower(r))
		default:
			b.WriteRune(r)
			startOfWord = true
		}
	}
	return b.String()
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 'a' + 'A'
	}
	return r
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r - 'A' + 'a'
	}
	return r
}

// threadPrefixPattern matches a leading run of reply/forward prefixes
// such as "Re:", "Fwd:", "FW:", including repeated runs like
// "Re: Re: Fwd:".
var threadPrefixPattern = regexp.MustCompile(`(?i)^(?:\s*(?:re|fwd?|fw)\s*:\s*)+`)

// NormalizeSubject strips reply/forward prefixes to get the base
// subject used for thread grouping. Idempotent; empty input yields
// empty output.
func NormalizeSubject(subject string) string {
	if subject == "" {
		return ""
	}
	return strings.TrimSpace(threadPrefixPattern.ReplaceAllString(subject, ""))
}

package papersources

import (
	"regexp"
	"strings"
)

// IdentifierKind is the coarse category of a raw paper identifier.
type IdentifierKind string

const (
	// KindNumeric is an all-digit id or a "PMID:" prefixed one.
	KindNumeric IdentifierKind = "numeric-id"
	// KindDomain is an arXiv style id, new (2401.12345v2) or legacy (hep-th/9901001).
	KindDomain IdentifierKind = "domain-id"
	// KindDOI is anything starting with the "10." DOI prefix and containing a slash.
	KindDOI IdentifierKind = "doi-like"
	// KindUnknown is everything else.
	KindUnknown IdentifierKind = "unknown"
)

var (
	numericIDRegex  = regexp.MustCompile(`^(?i:pmid:)?\s*\d+$`)
	arxivNewRegex   = regexp.MustCompile(`^(?i:arxiv:)?\d{4}\.\d{4,5}(v\d+)?$`)
	arxivLegacyRe   = regexp.MustCompile(`^(?i:arxiv:)?[a-z-]+(\.[A-Z]{2})?/\d{7}(v\d+)?$`)
	doiRegex        = regexp.MustCompile(`^(?i:doi:)?10\.\d+/\S+$`)
	pmidPrefixRegex = regexp.MustCompile(`^(?i:pmid:)\s*`)
	arxivPrefixRe   = regexp.MustCompile(`^(?i:arxiv:)`)
	doiPrefixRegex  = regexp.MustCompile(`^(?i:doi:)`)
)

// Classify maps a raw identifier to its kind. Patterns are tried in order
// numeric, domain, DOI; the first match wins.
func Classify(identifier string) IdentifierKind {
	id := strings.TrimSpace(identifier)
	switch {
	case id == "":
		return KindUnknown
	case numericIDRegex.MatchString(id):
		return KindNumeric
	case arxivNewRegex.MatchString(id), arxivLegacyRe.MatchString(id):
		return KindDomain
	case doiRegex.MatchString(id):
		return KindDOI
	default:
		return KindUnknown
	}
}

// StripPMIDPrefix removes a leading "PMID:" marker.
func StripPMIDPrefix(id string) string {
	return pmidPrefixRegex.ReplaceAllString(strings.TrimSpace(id), "")
}

// StripArXivPrefix removes a leading "arXiv:" marker.
func StripArXivPrefix(id string) string {
	return arxivPrefixRe.ReplaceAllString(strings.TrimSpace(id), "")
}

// StripDOIPrefix removes a leading "doi:" marker.
func StripDOIPrefix(id string) string {
	return doiPrefixRegex.ReplaceAllString(strings.TrimSpace(id), "")
}

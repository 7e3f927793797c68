package extractors

import (
	"regexp"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

var (
	errorCodePattern = regexp.MustCompile(`(?i)\b(?:E\d+|ERR-\d+|HTTP\s+\d{3})\b`)
	ipv4Pattern      = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	urlPattern       = regexp.MustCompile(`https?://[^\s]+`)
	filePathPattern  = regexp.MustCompile(`(?:/[\w.-]+)+|(?:[A-Z]:\\[\w\\.-]+)`)
)

// ExtractEntities pulls error codes, IPv4-looking tokens, URLs and file paths out of a message.
// Matches keep their order of appearance and duplicates are preserved.
func ExtractEntities(message string) models.ExtractedInfo {
	return models.ExtractedInfo{
		ErrorCodes:  findAll(errorCodePattern, message),
		IPAddresses: findAll(ipv4Pattern, message),
		URLs:        findAll(urlPattern, message),
		FilePaths:   findAll(filePathPattern, message),
	}
}

func findAll(re *regexp.Regexp, message string) []string {
	matches := re.FindAllString(message, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}

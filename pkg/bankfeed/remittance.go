package bankfeed

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const unknownPayee = "Unknown"

// Card terminal noise: the purchase prefix with its card digits, the
// contactless marker and trailing country codes.
var remittanceNoise = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^COMPRA\s\d{4}\s`),
	regexp.MustCompile(`(?i)CONTACTLESS`),
	regexp.MustCompile(`(?i)\sEE$`),
	regexp.MustCompile(`(?i)\sLI$`),
	regexp.MustCompile(`(?i)\sE LI$`),
	regexp.MustCompile(`(?i)\sES$`),
	regexp.MustCompile(`(?i)\sNL$`),
}

// CleanRemittance turns the first remittance line into a payee label:
// noise removed, whitespace collapsed, each word capitalized.
func CleanRemittance(lines []string) string {
	if len(lines) == 0 {
		return unknownPayee
	}

	cleaned := strings.ToUpper(lines[0])
	for _, re := range remittanceNoise {
		cleaned = re.ReplaceAllString(cleaned, "")
	}

	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return unknownPayee
	}
	// A Caser keeps state, so one per call.
	return cases.Title(language.Und).String(cleaned)
}

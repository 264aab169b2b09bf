package llm

import "strings"

// DefaultLanguage is assumed when a request carries no language code.
const DefaultLanguage = "en"

var languageNames = map[string]string{
	"en": "English",
	"fr": "French",
	"es": "Spanish",
	"ar": "Arabic",
	"zh": "Chinese",
	"sw": "Kiswahili",
}

// LanguageName maps a short language code to the name used when instructing the
// model. Unknown codes fall back to English.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return languageNames[DefaultLanguage]
}

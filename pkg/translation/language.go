package translation

import (
	"strings"
	"unicode"
)

// NormalizeLanguageCode turns "hi" or "HI_in" into the BCP-47 style "hi-IN"
// used by the translation API. Bare codes default to the Indian region.
func NormalizeLanguageCode(code string) string {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return ""
	}
	parts := strings.SplitN(code, "-", 2)
	lang := strings.ToLower(parts[0])
	region := "IN"
	if len(parts) == 2 && parts[1] != "" {
		region = strings.ToUpper(parts[1])
	}
	return lang + "-" + region
}

// IsEnglish reports whether code is any English variant ("en", "en-IN", ...).
func IsEnglish(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	return code == "en" || strings.HasPrefix(code, "en-") || strings.HasPrefix(code, "en_")
}

// DetectScript guesses the language of typed text from its letters: any
// Devanagari majority means Hindi, everything else is treated as English.
func DetectScript(text string) string {
	var devanagari, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Devanagari, r):
			devanagari++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	if devanagari > 0 && devanagari >= latin {
		return "hi-IN"
	}
	return "en-IN"
}

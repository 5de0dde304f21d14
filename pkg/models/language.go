package models

// Question languages
const (
	LanguageEnglish = "english"
	LanguageDeutsch = "deutsch"
	// LanguageMixed draws from every corpus language
	LanguageMixed = "mixed"
)

// LanguageTitle returns the display name of a language
func LanguageTitle(language string) string {
	switch language {
	case LanguageEnglish:
		return "English"
	case LanguageDeutsch:
		return "Deutsch"
	case LanguageMixed:
		return "Mixed"
	default:
		return language
	}
}

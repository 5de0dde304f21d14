package quiz

import (
	"strings"

	"github.com/samber/lo"

	"github.com/example/theorybot/pkg/models"
)

var languageTokens = map[string]string{
	"1":       models.LanguageEnglish,
	"english": models.LanguageEnglish,
	"e":       models.LanguageEnglish,
	"2":       models.LanguageDeutsch,
	"deutsch": models.LanguageDeutsch,
	"german":  models.LanguageDeutsch,
	"d":       models.LanguageDeutsch,
	"3":       models.LanguageMixed,
	"mixed":   models.LanguageMixed,
	"m":       models.LanguageMixed,
}

// parseLanguage maps a menu reply to a language
func parseLanguage(text string) (string, bool) {
	lang, ok := languageTokens[strings.ToLower(strings.TrimSpace(text))]
	return lang, ok
}

func isSkip(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "skip")
}

// parseAnswerLetters turns "A", "ab", "A,B" or "A B" into unique option indices in input order
func parseAnswerLetters(text string) []int {
	var indices []int
	for _, r := range strings.ToUpper(text) {
		if r < 'A' || r > 'Z' {
			continue
		}
		indices = append(indices, int(r-'A'))
	}
	return lo.Uniq(indices)
}

// sameSet reports whether a and b hold the same indices
func sameSet(a, b []int) bool {
	a, b = lo.Uniq(a), lo.Uniq(b)
	return len(a) == len(b) && lo.Every(a, b)
}

func normalizeFillIn(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(s), " ", ""), ",", ".")
}

// matchFillIn compares a typed answer against every accepted answer.
// Spaces are ignored, a comma counts as a decimal point and case does not matter.
// It returns the accepted answer to show the user.
func matchFillIn(answer string, correct []string) (bool, string) {
	got := normalizeFillIn(answer)
	shown := ""
	for _, c := range correct {
		want := normalizeFillIn(c)
		if want == "" {
			continue
		}
		if shown == "" {
			shown = strings.TrimSpace(c)
		}
		if strings.EqualFold(got, want) {
			return true, strings.TrimSpace(c)
		}
	}
	return false, shown
}

func letters(indices []int) []string {
	return lo.Map(indices, func(i int, _ int) string { return string(rune('A' + i)) })
}

package parser

import (
	"strings"

	"golang.org/x/text/language"
)

// LanguageMulti marks releases carrying several audio tracks
const LanguageMulti = "multi"

// languageAliases maps release-name tokens and common spellings to ISO 639-1
var languageAliases = map[string]string{
	"multi":      LanguageMulti,
	"dual":       LanguageMulti,
	"english":    "en",
	"eng":        "en",
	"french":     "fr",
	"truefrench": "fr",
	"vff":        "fr",
	"vostfr":     "fr",
	"fre":        "fr",
	"fra":        "fr",
	"italian":    "it",
	"ita":        "it",
	"spanish":    "es",
	"spa":        "es",
	"esp":        "es",
	"castellano": "es",
	"latino":     "es",
	"german":     "de",
	"ger":        "de",
	"deu":        "de",
	"hindi":      "hi",
	"hin":        "hi",
	"tamil":      "ta",
	"tam":        "ta",
	"telugu":     "te",
	"tel":        "te",
	"malayalam":  "ml",
	"mal":        "ml",
	"kannada":    "kn",
	"kan":        "kn",
	"russian":    "ru",
	"rus":        "ru",
	"japanese":   "ja",
	"jpn":        "ja",
	"korean":     "ko",
	"kor":        "ko",
	"portuguese": "pt",
	"por":        "pt",
	"polish":     "pl",
	"pol":        "pl",
	"dutch":      "nl",
	"nld":        "nl",
	"arabic":     "ar",
	"ara":        "ar",
	"chinese":    "zh",
	"chi":        "zh",
	"turkish":    "tr",
	"tur":        "tr",
}

// CanonicalLanguage folds a declared language (name, ISO 639-1 or 639-2 code)
// into a comparable code. Unknown values are returned lowercased.
func CanonicalLanguage(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if code, ok := languageAliases[s]; ok {
		return code
	}
	if base, err := language.ParseBase(s); err == nil {
		return base.String()
	}
	return s
}

// detectLanguage returns the first language token found in a sanitized title
func detectLanguage(clean string) string {
	tokens := strings.FieldsFunc(strings.ToLower(clean), func(r rune) bool {
		return strings.ContainsRune(" -[]()", r)
	})
	for _, token := range tokens {
		if code, ok := languageAliases[token]; ok {
			return code
		}
	}
	return ""
}

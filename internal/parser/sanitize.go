package parser

import (
	"regexp"
	"strings"
)

const nonLatinScripts = `\p{Han}\p{Hiragana}\p{Katakana}\p{Hangul}\p{Arabic}\p{Cyrillic}\p{Thai}`

var (
	nonLatinBracketRegex = regexp.MustCompile(`[\[(【（「『][^\[\]()【】（）「」『』]*[` + nonLatinScripts + `][^\[\]()【】（）「」『』]*[\])】）」』]`)
	nonLatinRunRegex     = regexp.MustCompile(`[` + nonLatinScripts + `]+`)
	// A bracketed tag holding anything other than letters, digits, dashes and spaces
	noisyTagRegex = regexp.MustCompile(`\[[^\[\]]*[^\p{L}\p{N}\s\-\[\]][^\[\]]*\]|\([^()]*[^\p{L}\p{N}\s\-()][^()]*\)`)
	urlRegex      = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	emailRegex    = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.]+`)
	domainRegex   = regexp.MustCompile(`(?i)\b[\w-]+\.(?:com|org|net|info|io|xyz|ru|cc|lol|biz|pw|nu|mx)\b`)
	dashRunRegex  = regexp.MustCompile(`(?:\s*-\s*){2,}`)
	edgeRegex     = regexp.MustCompile(`^[\s\-–._]+|[\s\-–._]+$`)
	separatorRepl = strings.NewReplacer(".", " ", "_", " ")
)

// maxSanitizePasses bounds the fixpoint loop; real names settle in two passes.
const maxSanitizePasses = 16

// Sanitize cleans a raw torrent or file name so the structural parser sees
// only the release text. Running it on its own output is a no-op.
func Sanitize(raw string) string {
	s := raw
	for range maxSanitizePasses {
		next := sanitizePass(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// sanitizePass runs every strip step once
func sanitizePass(s string) string {
	s = nonLatinBracketRegex.ReplaceAllString(s, " ")
	s = nonLatinRunRegex.ReplaceAllString(s, " ")
	s = stripNoisyTags(s)
	s = urlRegex.ReplaceAllString(s, " ")
	s = emailRegex.ReplaceAllString(s, " ")
	s = domainRegex.ReplaceAllString(s, " ")
	s = dashRunRegex.ReplaceAllString(s, " - ")
	s = edgeRegex.ReplaceAllString(s, "")
	s = separatorRepl.Replace(s)
	// separators can leave new dash runs behind
	s = dashRunRegex.ReplaceAllString(s, " - ")
	s = strings.Join(strings.Fields(s), " ")
	return edgeRegex.ReplaceAllString(s, "")
}

// stripNoisyTags repeats until no tag is left, since removing an inner tag can
// expose an outer one
func stripNoisyTags(s string) string {
	for {
		next := noisyTagRegex.ReplaceAllString(s, " ")
		if next == s {
			return s
		}
		s = next
	}
}

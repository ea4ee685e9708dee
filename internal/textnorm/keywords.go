package textnorm

import (
	"regexp"
	"strings"
)

// stemSuffixes is checked in order; the first (longest) suffix whose removal
// leaves more than 2 characters is stripped.
var stemSuffixes = []string{
	"aciones", "amiento", "imiento",
	"acion", "adores", "adoras",
	"mente", "idades",
	"anzas", "ables", "ibles",
	"anza", "able", "ible", "idad", "ista",
	"ando", "iendo", "aron", "ieron",
	"ados", "adas", "idos", "idas",
	"ado", "ada", "ido", "ida", "aba",
	"es", "ar", "er", "ir", "os", "as",
	"s", "a", "e", "o",
}

var stopwords = map[string]struct{}{
	"que": {}, "por": {}, "para": {}, "con": {}, "una": {}, "uno": {},
	"los": {}, "las": {}, "del": {}, "este": {}, "esta": {}, "estos": {},
	"estas": {}, "pero": {}, "muy": {}, "como": {}, "les": {}, "nos": {},
	"mis": {}, "tus": {}, "sus": {}, "son": {}, "hay": {}, "desde": {},
	"hasta": {}, "entre": {}, "sobre": {},
}

// negationMarkers start a negated sentence ("no", "nunca quise", ...).
var negationMarkers = []string{
	"no", "nop", "nunca", "jamas", "tampoco", "negativo", "para nada",
}

// negationTemplates are the phrase shapes that negate a keyword appearing
// after them. Up to two filler words may sit between the marker and the
// keyword ("no quiero comprar", "no necesito la cotizacion").
var negationTemplates = []string{
	`\bno (?:\w+ ){0,2}%s\b`,
	`\bya no (?:\w+ ){0,2}%s\b`,
	`\bnunca (?:\w+ ){0,2}%s\b`,
	`\bjamas (?:\w+ ){0,2}%s\b`,
	`\btampoco (?:\w+ ){0,2}%s\b`,
	`\bsin %s\b`,
}

// Stem strips the longest matching suffix provided the remainder keeps more
// than 2 characters; otherwise the word is returned unchanged.
func Stem(word string) string {
	for _, suffix := range stemSuffixes {
		if strings.HasSuffix(word, suffix) {
			remainder := word[:len(word)-len(suffix)]
			if len(remainder) > 2 {
				return remainder
			}
		}
	}
	return word
}

// ExtractKeywords normalizes the text and drops short tokens and stopwords.
func ExtractKeywords(text string) []string {
	tokens := strings.Fields(Normalize(text))
	keywords := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) <= 2 {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		keywords = append(keywords, tok)
	}
	return keywords
}

// IsNegation reports whether the normalized text equals or starts with a
// negation marker.
func IsNegation(text string) bool {
	normalized := Normalize(text)
	for _, marker := range negationMarkers {
		if normalized == marker || strings.HasPrefix(normalized, marker+" ") {
			return true
		}
	}
	return false
}

// HasNegationBefore reports whether the keyword appears negated in the text,
// e.g. "no quiero comprar" negates "comprar".
func HasNegationBefore(text, keyword string) bool {
	normalized := Normalize(text)
	kw := Normalize(keyword)
	if kw == "" {
		return false
	}
	for _, tpl := range negationTemplates {
		re := regexp.MustCompile(strings.Replace(tpl, "%s", regexp.QuoteMeta(kw), 1))
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}

// Package textnorm normalizes Spanish chat text so the intent rules and
// auto-response triggers match on a stable form of what the customer typed.
package textnorm

import (
	"regexp"
	"sort"
	"strings"
)

// accentFold maps accented characters to their base form. Matching treats
// "cerámica" and "ceramica" (and ñ/n) as the same word.
var accentFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'ä': 'a', 'â': 'a',
	'é': 'e', 'è': 'e', 'ë': 'e', 'ê': 'e',
	'í': 'i', 'ì': 'i', 'ï': 'i', 'î': 'i',
	'ó': 'o', 'ò': 'o', 'ö': 'o', 'ô': 'o',
	'ú': 'u', 'ù': 'u', 'ü': 'u', 'û': 'u',
	'ñ': 'n',
}

// abbreviations expands common chat shorthand by whole-word lookup. A token
// mapped to the empty string is dropped.
var abbreviations = map[string]string{
	"q":     "que",
	"k":     "que",
	"xq":    "porque",
	"pq":    "porque",
	"x":     "por",
	"tb":    "tambien",
	"tmb":   "tambien",
	"bn":    "bien",
	"dnd":   "donde",
	"cdo":   "cuando",
	"xfa":   "por favor",
	"porfa": "por favor",
	"grax":  "gracias",
	"gcs":   "gracias",
	"info":  "informacion",
	"cotiz": "cotizacion",
	"eh":    "",
	"ehh":   "",
	"mmm":   "",
}

// synonyms rewrites colloquial phrasings to the canonical word the intent
// rules key on. Entries are applied longest-first so multiword phrases win
// over their substrings.
var synonyms = map[string]string{
	"cuanto sale":  "cuanto cuesta",
	"cuanto vale":  "cuanto cuesta",
	"a como esta":  "cuanto cuesta",
	"adquirir":     "comprar",
	"ocupo":        "necesito",
	"mandan":       "envian",
	"mandar":       "enviar",
	"platita":      "dinero",
	"lana":         "dinero",
	"chequear":     "revisar",
	"asesorarme":   "asesoria",
	"presupuestar": "cotizar",
}

var (
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9 ]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	synonymRules []synonymRule
)

type synonymRule struct {
	re          *regexp.Regexp
	replacement string
}

func init() {
	keys := make([]string, 0, len(synonyms))
	for k := range synonyms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	for _, k := range keys {
		synonymRules = append(synonymRules, synonymRule{
			re:          regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`),
			replacement: synonyms[k],
		})
	}
}

// Normalize lowercases, folds accents, expands abbreviations, substitutes
// colloquial synonyms, strips special characters and collapses whitespace.
// It is total and idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = foldAccents(s)
	s = expandAbbreviations(s)
	for _, rule := range synonymRules {
		s = rule.re.ReplaceAllString(s, rule.replacement)
	}
	s = nonAlnumRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func foldAccents(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if folded, ok := accentFold[r]; ok {
			b.WriteRune(folded)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func expandAbbreviations(s string) string {
	words := strings.Fields(s)
	out := make([]string, 0, len(words))
	for _, w := range words {
		expanded, ok := abbreviations[w]
		if !ok {
			out = append(out, w)
			continue
		}
		if expanded == "" {
			continue
		}
		out = append(out, expanded)
	}
	return strings.Join(out, " ")
}

package flow

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases text, strips diacritics and trims surrounding whitespace.
// It is idempotent.
func Normalize(text string) string {
	// Transformers carry state, so each call builds its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		out = strings.ToLower(text)
	}
	return strings.TrimSpace(out)
}

// Keyword lists are matched as substrings of normalized text, so they are
// stored without accents.
var crisisKeywords = []string{
	"suicidio",
	"morir",
	"ayuda urgente",
	"no puedo respirar",
	"quiero desaparecer",
	"no valgo nada",
}

var stressKeywords = []string{
	"estres",
	"ansiedad",
	"ansioso",
	"nervios",
	"relajarme",
	"calmarme",
	"abrumado",
	"tension",
	"preocupado",
	"agobiado",
	"estresada",
	"angustia",
	"quemado",
	"burnout",
	"panico",
	"no puedo mas",
	"colapsado",
}

const (
	cancelToken   = "cancelar"
	commandPrefix = "/"
	greetingToken = "hola"
)

// IsCrisis reports whether normalized text contains any crisis keyword.
func IsCrisis(normalized string) bool {
	return containsAny(normalized, crisisKeywords)
}

// IsStressRelated reports whether normalized text contains any stress keyword.
func IsStressRelated(normalized string) bool {
	return containsAny(normalized, stressKeywords)
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

var scaleRegex = regexp.MustCompile(`\b([1-9]|10)\b`)

// ParseScale extracts the first standalone 1-10 rating from raw message text.
func ParseScale(raw string) (int, bool) {
	m := scaleRegex.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

var followUpInputRegex = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// ParseFollowUpTime validates a 24-hour time and returns it zero-padded as HH:mm.
func ParseFollowUpTime(raw string) (string, bool) {
	m := followUpInputRegex.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	hour := m[1]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	return hour + ":" + m[2], true
}

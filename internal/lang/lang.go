// Package lang resolves the language of a query so the detector can pick
// the matching NER model. The corpus is bilingual (English and French);
// anything else is mapped to the closest supported language.
//
// Resolution order: an explicit tag supplied by the caller always wins;
// otherwise a deterministic heuristic over stopwords and diacritics decides.
// The heuristic is intentionally cheap — it runs on every request before
// any model call.
package lang

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Lang identifies a supported detection language.
type Lang string

// Supported languages.
const (
	English Lang = "en"
	French  Lang = "fr"
)

// matcher maps arbitrary BCP 47 tags onto the supported set.
// English is the fallback for unrecognized tags.
var matcher = language.NewMatcher([]language.Tag{
	language.English,
	language.French,
})

// Parse resolves an explicit language tag ("fr", "fr-CA", "en-US", ...)
// to a supported Lang. Unparseable input is an error; parseable but
// unsupported input falls back to the closest supported language.
func Parse(tag string) (Lang, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("lang: parse %q: %w", tag, err)
	}
	_, idx, _ := matcher.Match(t)
	if idx == 1 {
		return French, nil
	}
	return English, nil
}

// frenchStopwords are short function words that rarely appear in English
// prose. Scoring counts whole-word hits only.
var frenchStopwords = map[string]struct{}{
	"le": {}, "la": {}, "les": {}, "des": {}, "une": {}, "un": {},
	"et": {}, "ou": {}, "est": {}, "sont": {}, "dans": {}, "pour": {},
	"avec": {}, "sur": {}, "que": {}, "qui": {}, "pas": {}, "ne": {},
	"ce": {}, "cette": {}, "ces": {}, "au": {}, "aux": {}, "du": {},
	"je": {}, "vous": {}, "nous": {}, "il": {}, "elle": {}, "mais": {},
	"quel": {}, "quelle": {}, "contrat": {}, "selon": {}, "entre": {},
}

// englishStopwords mirror the French set.
var englishStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "is": {},
	"are": {}, "in": {}, "for": {}, "with": {}, "on": {}, "that": {},
	"which": {}, "not": {}, "this": {}, "these": {}, "of": {}, "to": {},
	"i": {}, "you": {}, "we": {}, "he": {}, "she": {}, "but": {},
	"what": {}, "contract": {}, "under": {}, "between": {}, "does": {},
}

// Detect guesses the language of text. Ties and empty input resolve to
// English. Diacritics common in French (é, è, à, ç, ...) weigh in because
// short queries often contain no stopword at all.
func Detect(text string) Lang {
	frScore, enScore := 0, 0

	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()[]«»")
		if _, ok := frenchStopwords[w]; ok {
			frScore += 2
		}
		if _, ok := englishStopwords[w]; ok {
			enScore += 2
		}
	}

	for _, r := range text {
		switch r {
		case 'é', 'è', 'ê', 'ë', 'à', 'â', 'ù', 'û', 'ç', 'î', 'ï', 'ô',
			'É', 'È', 'Ê', 'À', 'Ç', 'Ô':
			frScore++
		}
	}

	if frScore > enScore {
		return French
	}
	return English
}

package mapping

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/schollz/closestmatch"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// wrapperTokens are dropped from location spellings before lookup.
var wrapperTokens = map[string]bool{
	"carrot":    true,
	"express":   true,
	"love":      true,
	"operating": true,
	"llc":       true,
}

// fold lowercases and strips accents ("Coral Gábles" -> "coral gables").
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func tokens(s string) []string {
	return strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// LocationKey is the lookup key for a store spelling: folded, wrapper words and
// punctuation removed. "Carrot Express - FT. LAUDERDALE" -> "ftlauderdale".
func LocationKey(raw string) string {
	var b strings.Builder
	for _, tok := range tokens(raw) {
		if wrapperTokens[tok] {
			continue
		}
		b.WriteString(tok)
	}
	return b.String()
}

// looseKey keeps every word; used for vendors and full entity names.
func looseKey(raw string) string {
	return strings.Join(tokens(raw), "")
}

type suggester struct {
	cm    *closestmatch.ClosestMatch
	byKey map[string]Location
}

// Suggest returns the closest canonical location for an unknown spelling, for use in
// warning messages only. It never resolves silently.
func (r *Registry) Suggest(raw string) (Location, bool) {
	r.suggestOnce.Do(func() {
		byKey := make(map[string]Location, len(r.locationByKey))
		keys := make([]string, 0, len(r.locationByKey))
		for k, loc := range r.locationByKey {
			byKey[k] = loc
			keys = append(keys, k)
		}
		r.suggester = &suggester{cm: closestmatch.New(keys, []int{2, 3}), byKey: byKey}
	})

	key := LocationKey(raw)
	if key == "" {
		return "", false
	}
	best := r.suggester.cm.Closest(key)
	loc, ok := r.suggester.byKey[best]
	return loc, ok
}

// Miss builds the MappingMiss error for an unknown location spelling, naming the
// closest known location when there is one.
func (r *Registry) Miss(raw string) error {
	err := reconerr.MappingMiss(raw)
	if loc, ok := r.Suggest(raw); ok {
		err.Err = fmt.Errorf("did you mean %q?", loc)
	}
	return err
}

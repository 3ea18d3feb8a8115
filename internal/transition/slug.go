package transition

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// deaccent strips combining marks after canonical decomposition, so
// "Zoë Müller" slugs the same as "Zoe Muller".
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases a display name, strips accents and collapses every
// non-alphanumeric run into a single hyphen.
func Slugify(name string) string {
	if out, _, err := transform.String(deaccent, name); err == nil {
		name = out
	}
	name = strings.ToLower(name)

	var b strings.Builder
	b.Grow(len(name))
	lastHyphen := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// RecordSlug joins the slugified display name and record id, the path
// segment a record is addressed by inside a collection.
func RecordSlug(displayName, recordID string) string {
	slug := Slugify(displayName)
	if slug == "" {
		return recordID
	}
	return slug + "-" + recordID
}

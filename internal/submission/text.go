package submission

import (
	"regexp"
	"strings"
	"unicode"
)

const maxSlugBase = 80

var transliteration = strings.NewReplacer(
	"č", "c", "ć", "c", "š", "s", "ž", "z", "đ", "dj",
	"Č", "c", "Ć", "c", "Š", "s", "Ž", "z", "Đ", "dj",
)

// Slugify builds a URL slug from title, suffixed with the first eight
// characters of id so equal titles never collide.
func Slugify(title, id string) string {
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(transliteration.Replace(title)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= maxSlugBase {
			break
		}
	}
	base := strings.Trim(b.String(), "-")
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

// mentionPattern matches @username not preceded by a word character, so
// email addresses are skipped.
var mentionPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_@])@([\p{L}\p{N}_]{2,30})`)

// Mentions returns the distinct usernames mentioned in text, in order of
// first appearance, at most limit of them.
func Mentions(text string, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
		if len(out) == limit {
			break
		}
	}
	return out
}

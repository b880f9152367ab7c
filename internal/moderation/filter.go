package moderation

import (
	"sort"
	"strings"
	"unicode"
)

// Redaction replaces every matched term in moderated text. It contains no
// letters, so moderated output never matches the lexicon again.
const Redaction = "****"

const (
	reasonCensored   = "profanity detected and censored"
	reasonProhibited = "content contains prohibited language"
)

// Term is a lexicon entry. Matching is a case-insensitive substring match.
type Term struct {
	Text     string
	Severity Severity
}

type compiledTerm struct {
	text     string
	runes    []rune
	severity Severity
}

// Filter censors disallowed terms in titles and content. It is immutable
// after construction and safe for concurrent use.
type Filter struct {
	terms []compiledTerm
}

// NewFilter returns a filter loaded with the built-in lexicon.
func NewFilter() *Filter {
	return NewFilterWithTerms(DefaultTerms())
}

// NewFilterWithTerms returns a filter over the given terms. Terms without a
// letter, or containing the redaction character, are ignored. A term with
// no severity defaults to medium.
func NewFilterWithTerms(terms []Term) *Filter {
	f := &Filter{}
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		text := strings.TrimSpace(t.Text)
		if !usableTerm(text) {
			continue
		}
		runes := lowerRunes(text)
		key := string(runes)
		if seen[key] {
			continue
		}
		seen[key] = true
		sev := t.Severity
		if sev == SeverityNone {
			sev = SeverityMedium
		}
		f.terms = append(f.terms, compiledTerm{text: key, runes: runes, severity: sev})
	}
	// Longest first so overlapping terms redact the widest match.
	sort.SliceStable(f.terms, func(i, j int) bool {
		return len(f.terms[i].runes) > len(f.terms[j].runes)
	})
	return f
}

// Moderate scans the title and content of req. Every match is replaced by
// Redaction. Severity is the highest severity among matched terms; the post
// is approved unless that severity is high.
func (f *Filter) Moderate(req Request) Result {
	res := Result{Approved: true}
	matched := make(map[string]bool)
	worst := SeverityNone

	record := func(t compiledTerm) {
		if !matched[t.text] {
			matched[t.text] = true
			res.Terms = append(res.Terms, t.text)
		}
		if t.severity.rank() > worst.rank() {
			worst = t.severity
		}
	}

	res.Title = f.censor(req.Title, record)
	res.Content = f.censor(req.Content, record)

	if worst == SeverityNone {
		return res
	}
	res.Severity = worst
	res.Reason = reasonCensored
	if worst == SeverityHigh {
		res.Approved = false
		res.Reason = reasonProhibited
	}
	return res
}

// censor walks text left to right and replaces the longest term matching at
// each position. Only positions outside earlier matches are considered.
func (f *Filter) censor(text string, record func(compiledTerm)) string {
	if text == "" || len(f.terms) == 0 {
		return text
	}
	orig := []rune(text)
	lower := make([]rune, len(orig))
	for i, r := range orig {
		lower[i] = unicode.ToLower(r)
	}

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(orig); {
		if t, ok := f.matchAt(lower, i); ok {
			record(t)
			b.WriteString(Redaction)
			i += len(t.runes)
			continue
		}
		b.WriteRune(orig[i])
		i++
	}
	return b.String()
}

func (f *Filter) matchAt(lower []rune, i int) (compiledTerm, bool) {
	for _, t := range f.terms {
		if hasRunePrefix(lower[i:], t.runes) {
			return t, true
		}
	}
	return compiledTerm{}, false
}

func hasRunePrefix(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}

func lowerRunes(s string) []rune {
	r := []rune(s)
	for i := range r {
		r[i] = unicode.ToLower(r[i])
	}
	return r
}

func usableTerm(s string) bool {
	if s == "" || strings.ContainsRune(s, '*') {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

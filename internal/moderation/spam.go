package moderation

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"
)

// urlPattern matches http/https URLs, www. URLs and bare domains on common
// TLDs. The bare-domain variant requires a trailing "/" so version strings
// like "v2.0" and decimals like "3.14" are not counted. A comma ends a URL so
// comma-joined lists count link by link.
var urlPattern = regexp.MustCompile(`(?i)(https?://[^\s,]+|www\.[^\s,]+|[^\s,]+\.(com|net|org|io|co|hr|xyz|info|biz|ru|cn|tk|ml|ga|cf)/[^\s,]*)`)

// SpamConfig holds the thresholds of the heuristic classifier.
type SpamConfig struct {
	MaxLinks      int     // flag when more than MaxLinks URLs are present
	CapsRatio     float64 // flag when uppercase/length exceeds this...
	CapsMinLength int     // ...and the text is longer than CapsMinLength runes
	EmojiRatio    float64 // flag when emoji/length exceeds this
	RepeatRun     int     // flag a run of RepeatRun identical characters
}

// DefaultSpamConfig returns the production thresholds.
func DefaultSpamConfig() SpamConfig {
	return SpamConfig{
		MaxLinks:      3,
		CapsRatio:     0.6,
		CapsMinLength: 20,
		EmojiRatio:    0.3,
		RepeatRun:     6,
	}
}

// Verdict is the outcome of a spam check. Rule names the check that fired.
type Verdict struct {
	IsSpam bool
	Reason string
	Rule   string
}

// Rule names reported in Verdict.Rule.
const (
	RuleLinks     = "links"
	RuleCaps      = "caps"
	RuleEmoji     = "emoji"
	RuleRepeat    = "repeat"
	RuleDuplicate = "duplicate"
	RuleRapid     = "rapid"
)

// spamCheck pairs a detection function with metadata used for reporting.
type spamCheck struct {
	name   string
	reason string
	match  func(string) bool
}

// Classifier scores a single text blob against pattern rules. It holds no
// mutable state and is safe for concurrent use.
type Classifier struct {
	cfg    SpamConfig
	checks []spamCheck
}

// NewClassifier builds a classifier. Order of the checks matters: the first
// match wins.
func NewClassifier(cfg SpamConfig) *Classifier {
	c := &Classifier{cfg: cfg}
	c.checks = []spamCheck{
		{name: RuleLinks, reason: "too many links", match: c.tooManyLinks},
		{name: RuleCaps, reason: "excessive capital letters", match: c.tooManyCaps},
		{name: RuleEmoji, reason: "too many emoji", match: c.tooManyEmoji},
		{name: RuleRepeat, reason: "repeated characters", match: func(text string) bool {
			return hasCharRun(text, cfg.RepeatRun)
		}},
	}
	return c
}

// Classify runs every check against text and returns a spam Verdict on the
// first match. Empty text is never spam.
func (c *Classifier) Classify(text string) Verdict {
	for _, sc := range c.checks {
		if sc.match(text) {
			return Verdict{IsSpam: true, Reason: sc.reason, Rule: sc.name}
		}
	}
	return Verdict{}
}

func (c *Classifier) tooManyLinks(text string) bool {
	return len(urlPattern.FindAllStringIndex(text, -1)) > c.cfg.MaxLinks
}

func (c *Classifier) tooManyCaps(text string) bool {
	length := utf8.RuneCountInString(text)
	if length <= c.cfg.CapsMinLength {
		return false
	}
	upper := 0
	for _, r := range text {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper)/float64(length) > c.cfg.CapsRatio
}

func (c *Classifier) tooManyEmoji(text string) bool {
	length := utf8.RuneCountInString(text)
	if length == 0 {
		return false
	}
	emoji := 0
	for _, r := range text {
		if isEmoji(r) {
			emoji++
		}
	}
	return float64(emoji)/float64(length) > c.cfg.EmojiRatio
}

// isEmoji reports whether r lies in one of the pictographic emoji blocks.
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F5FF: // symbols & pictographs
		return true
	case r >= 0x1F600 && r <= 0x1F64F: // emoticons
		return true
	case r >= 0x1F680 && r <= 0x1F6FF: // transport & map
		return true
	case r >= 0x1F900 && r <= 0x1FAFF: // supplemental symbols, extended-A
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	}
	return false
}

// hasCharRun returns true if text contains threshold or more consecutive
// identical characters. Go's regexp package (RE2) does not support
// backreferences, so this is a linear scan.
func hasCharRun(text string, threshold int) bool {
	if threshold <= 1 {
		return text != ""
	}
	count := 1
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

func (v Verdict) String() string {
	if !v.IsSpam {
		return "clean"
	}
	return fmt.Sprintf("%s (%s)", v.Reason, v.Rule)
}

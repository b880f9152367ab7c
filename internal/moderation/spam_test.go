package moderation

import (
	"strings"
	"testing"
)

func TestClassify_Links(t *testing.T) {
	c := NewClassifier(DefaultSpamConfig())

	tests := []struct {
		name  string
		input string
		spam  bool
	}{
		{"no links", "just a normal question about exams", false},
		{"one link", "see https://moodle.example.hr/course", false},
		{"three links", "http://a.com http://b.com http://c.com", false},
		{"four links", "http://a.com http://b.com http://c.com http://d.com", true},
		{"mixed forms", "www.a.net b.io/x https://c.org d.ru/y", true},
		{"version strings", "upgrade from v2.0 to 3.14 then 4.1 and 5.2", false},
		{"title scenario", "Buy cheap http://a http://b http://c http://d now!!!", true},
		{"comma joined", "http://a,http://b,http://c,http://d", true},
		{"comma joined bare domains", "a.com/x,b.io/y,c.hr/z,d.ru/", true},
		{"three comma joined", "see http://a.hr/1, http://b.hr/2, http://c.hr/3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.input)
			if v.IsSpam != tt.spam {
				t.Errorf("Classify(%q).IsSpam = %v, want %v", tt.input, v.IsSpam, tt.spam)
			}
			if tt.spam && v.Rule != RuleLinks {
				t.Errorf("Classify(%q).Rule = %q, want %q", tt.input, v.Rule, RuleLinks)
			}
		})
	}
}

func TestClassify_Caps(t *testing.T) {
	c := NewClassifier(DefaultSpamConfig())

	tests := []struct {
		name  string
		input string
		spam  bool
	}{
		{"short shout exempt", "OK COOL", false},
		{"exactly twenty runes", "ABCDEFGHIJKLMNOPQRST", false},
		{"twenty one runes", "ABCDEFGHIJKLMNOPQRSTU", true},
		{"long shout", "THIS IS THE BEST FORUM EVER", true},
		{"normal sentence", "Does anyone have notes from the FER lecture?", false},
		{"croatian caps", "ŠTO JE OVO ZA GLUPOST ŽIVOTE", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.input)
			if v.IsSpam != tt.spam {
				t.Errorf("Classify(%q).IsSpam = %v, want %v", tt.input, v.IsSpam, tt.spam)
			}
			if tt.spam && v.Rule != RuleCaps {
				t.Errorf("Classify(%q).Rule = %q, want %q", tt.input, v.Rule, RuleCaps)
			}
		})
	}
}

func TestClassify_Emoji(t *testing.T) {
	c := NewClassifier(DefaultSpamConfig())

	tests := []struct {
		name  string
		input string
		spam  bool
	}{
		{"single emoji in sentence", "great lecture today 😀", false},
		{"only emoji", "😀🎉🔥", true},
		{"half emoji", "ok 😀🎉🔥", true},
		{"dingbats", "yes ✅✨❤", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.input)
			if v.IsSpam != tt.spam {
				t.Errorf("Classify(%q).IsSpam = %v, want %v", tt.input, v.IsSpam, tt.spam)
			}
			if tt.spam && v.Rule != RuleEmoji {
				t.Errorf("Classify(%q).Rule = %q, want %q", tt.input, v.Rule, RuleEmoji)
			}
		})
	}
}

func TestClassify_Repeat(t *testing.T) {
	c := NewClassifier(DefaultSpamConfig())

	tests := []struct {
		name  string
		input string
		spam  bool
	}{
		{"five repeats", "nooooo way", false},
		{"six repeats", "noooooo way", true},
		{"punctuation flood", "what!!!!!!", true},
		{"multibyte run", "žžžžžž", true},
		{"alternating", "abababababab", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.input)
			if v.IsSpam != tt.spam {
				t.Errorf("Classify(%q).IsSpam = %v, want %v", tt.input, v.IsSpam, tt.spam)
			}
			if tt.spam && v.Rule != RuleRepeat {
				t.Errorf("Classify(%q).Rule = %q, want %q", tt.input, v.Rule, RuleRepeat)
			}
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	c := NewClassifier(DefaultSpamConfig())

	// Links and caps both fire; links is checked first.
	input := "HTTP://A.COM HTTP://B.COM HTTP://C.COM HTTP://D.COM"
	v := c.Classify(input)
	if v.Rule != RuleLinks {
		t.Errorf("Classify(%q).Rule = %q, want %q", input, v.Rule, RuleLinks)
	}
	if !strings.Contains(v.Reason, "link") {
		t.Errorf("Classify(%q).Reason = %q, want a link reason", input, v.Reason)
	}
}

func TestClassify_Empty(t *testing.T) {
	c := NewClassifier(DefaultSpamConfig())
	if v := c.Classify(""); v.IsSpam {
		t.Errorf("Classify(\"\") = %+v, want clean", v)
	}
}

func TestClassify_CustomThresholds(t *testing.T) {
	cfg := DefaultSpamConfig()
	cfg.MaxLinks = 0
	cfg.RepeatRun = 3
	c := NewClassifier(cfg)

	if v := c.Classify("see https://example.com/x"); v.Rule != RuleLinks {
		t.Errorf("MaxLinks=0: Rule = %q, want %q", v.Rule, RuleLinks)
	}
	if v := c.Classify("hmmm"); v.Rule != RuleRepeat {
		t.Errorf("RepeatRun=3: Rule = %q, want %q", v.Rule, RuleRepeat)
	}
}

package moderation

// defaultLexicon is the built-in list of disallowed terms, English and
// Croatian. Every entry censors at SeverityMedium.
var defaultLexicon = []string{
	// English
	"fuck",
	"shit",
	"bitch",
	"asshole",
	"bastard",
	"cunt",
	"dickhead",
	"wanker",
	"retard",
	"slut",
	"whore",

	// Croatian
	"jebem",
	"jebote",
	"jebi se",
	"kurac",
	"kurca",
	"pička",
	"pičku",
	"pizda",
	"kurva",
	"sranje",
	"govno",
	"šupak",
	"debil",
	"kreten",
	"idiote",
	"seljačina",
}

// DefaultTerms returns the built-in lexicon as medium-severity terms.
func DefaultTerms() []Term {
	terms := make([]Term, 0, len(defaultLexicon))
	for _, w := range defaultLexicon {
		terms = append(terms, Term{Text: w, Severity: SeverityMedium})
	}
	return terms
}

package moderation

import "time"

// RecentPost is one entry of an author's recent posting history. Text is
// title and content joined by a single space (content only for replies).
type RecentPost struct {
	Text      string
	CreatedAt time.Time
}

// RecentText joins a title and content the way RecentPost.Text expects.
func RecentText(title, content string) string {
	if title == "" {
		return content
	}
	return title + " " + content
}

// rapidWindow is the trailing window DetectRapidPosting counts over.
const rapidWindow = time.Minute

// DetectDuplicate flags candidate when a post created within window of now
// carries byte-identical text.
func DetectDuplicate(candidate string, recent []RecentPost, window time.Duration, now time.Time) Verdict {
	for _, p := range recent {
		if now.Sub(p.CreatedAt) > window {
			continue
		}
		if p.Text == candidate {
			return Verdict{
				IsSpam: true,
				Reason: "duplicate content detected, please wait before posting again",
				Rule:   RuleDuplicate,
			}
		}
	}
	return Verdict{}
}

// DetectRapidPosting flags the author when more than maxPerMinute posts
// fall within the trailing minute.
func DetectRapidPosting(recent []RecentPost, maxPerMinute int, now time.Time) Verdict {
	count := 0
	for _, p := range recent {
		if now.Sub(p.CreatedAt) <= rapidWindow {
			count++
		}
	}
	if count > maxPerMinute {
		return Verdict{
			IsSpam: true,
			Reason: "posting too fast, please slow down",
			Rule:   RuleRapid,
		}
	}
	return Verdict{}
}

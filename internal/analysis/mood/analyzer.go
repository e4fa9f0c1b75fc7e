package mood

import (
	"strings"

	"github.com/zhouzirui/z-companion/backend/internal/model/companion"
)

// Decision 给出情绪归一化结果。
type Decision struct {
	Mood  companion.Mood
	Score int
}

var keywordBuckets = map[companion.Mood][]string{
	companion.Happy: {
		"happy", "joy", "glad", "cheer", "content", "smile", "pleased", "love", "loving", "warm",
		"caring", "playful", "khush", "pyaar", "romantic", "sweet", "cute",
	},
	companion.Sad: {
		"sad", "upset", "hurt", "cry", "lonely", "miss", "down", "gloom", "sorrow", "udaas",
		"dukhi", "heartbroken", "disappoint", "tear",
	},
	companion.Angry: {
		"angry", "mad", "annoy", "irritat", "furious", "rage", "jealous", "pout", "gussa",
		"naraz", "grump", "sulk", "huff",
	},
	companion.Shy: {
		"shy", "blush", "embarras", "nervous", "bashful", "coy", "sharm", "timid", "flustered",
		"awkward", "tender", "gentle", "soft",
	},
	companion.Excited: {
		"excit", "thrill", "hype", "ecstatic", "energetic", "eager", "wow", "yay", "euphoric",
		"overjoy", "delight", "surprise", "pumped",
	},
}

// negationPrefixes 按长度排列，先匹配较长的前缀。
var negationPrefixes = []string{"not_", "not-", "not", "non", "dis", "un"}

// Normalize 将模型给出的任意情绪词映射到五种已知情绪之一。
// Known moods map to themselves; other words are scored against the keyword
// buckets. A negated positive word ("unhappy", "displeased") maps to sad and
// any other negated word is unknown. ok is false when nothing matches.
func Normalize(raw string) (companion.Mood, bool) {
	if m, ok := companion.ParseMood(raw); ok {
		return m, true
	}

	if m, negated := negation(raw); negated {
		if m == "" {
			return "", false
		}
		return m, true
	}

	decision := score(raw)
	if decision.Score == 0 {
		return "", false
	}
	return decision.Mood, true
}

func score(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{}
	}

	best := Decision{}
	// Iterate in display order so ties resolve deterministically.
	for _, m := range companion.Moods {
		s := 0
		for _, word := range keywordBuckets[m] {
			if strings.Contains(normalized, word) {
				s += 3
			}
		}
		if s > best.Score {
			best = Decision{Mood: m, Score: s}
		}
	}
	return best
}

// negation 检测否定前缀。negated 为 true 时词干命中了某个情绪桶，
// 返回的 Mood 是取反后的情绪，无法取反时为空。
func negation(text string) (companion.Mood, bool) {
	normalized := strings.TrimSpace(strings.ToLower(text))
	for _, prefix := range negationPrefixes {
		stem, found := strings.CutPrefix(normalized, prefix)
		if !found || stem == "" {
			continue
		}
		// 只看词干开头，"disappointed" 的 "appointed" 不会命中任何桶。
		m, ok := stemMood(strings.TrimLeft(stem, " _-"))
		if !ok {
			continue
		}
		switch m {
		case companion.Happy, companion.Excited:
			return companion.Sad, true
		default:
			return "", true
		}
	}
	return "", false
}

func stemMood(stem string) (companion.Mood, bool) {
	if m, ok := companion.ParseMood(stem); ok {
		return m, true
	}
	for _, m := range companion.Moods {
		for _, word := range keywordBuckets[m] {
			if strings.HasPrefix(stem, word) {
				return m, true
			}
		}
	}
	return "", false
}

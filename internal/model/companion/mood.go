package companion

import "strings"

// Mood is the companion's displayed emotional state.
type Mood string

const (
	Happy   Mood = "happy"
	Sad     Mood = "sad"
	Angry   Mood = "angry"
	Shy     Mood = "shy"
	Excited Mood = "excited"
)

// Moods lists the recognised moods in display order.
var Moods = []Mood{Happy, Sad, Angry, Shy, Excited}

// Valid reports whether m is one of the recognised moods.
func (m Mood) Valid() bool {
	switch m {
	case Happy, Sad, Angry, Shy, Excited:
		return true
	default:
		return false
	}
}

// ParseMood normalises raw and returns the mood if it is recognised.
func ParseMood(raw string) (Mood, bool) {
	m := Mood(strings.ToLower(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", false
	}
	return m, true
}

var voiceStyles = map[Mood]string{
	Happy:   "(warm and sweet, smiling voice): ",
	Sad:     "(soft and slow, sad voice): ",
	Angry:   "(cutely irritated, pouting tone): ",
	Shy:     "(soft whisper, gentle): ",
	Excited: "(high energy, cheerful): ",
}

// VoiceStyle returns the delivery-style prefix spoken lines are wrapped in.
func (m Mood) VoiceStyle() string {
	if style, ok := voiceStyles[m]; ok {
		return style
	}
	return voiceStyles[Happy]
}

// VoicePrompt wraps text in the delivery style of m.
func VoicePrompt(m Mood, text string) string {
	return m.VoiceStyle() + text
}

// SplitVoicePrompt separates a known delivery-style prefix from the spoken text.
// ok is false when prompt carries no recognised prefix.
func SplitVoicePrompt(prompt string) (m Mood, text string, ok bool) {
	for _, candidate := range Moods {
		if rest, found := strings.CutPrefix(prompt, voiceStyles[candidate]); found {
			return candidate, rest, true
		}
	}
	return "", prompt, false
}

package directive

import (
	"regexp"
	"strings"
)

var (
	moodPattern  = regexp.MustCompile(`(?i)\[MOOD:\s*(\w+)\]`)
	imagePattern = regexp.MustCompile(`\[SEND_IMAGE:\s*([^\]]+)\]`)
)

// Directives 表示模型回复中携带的控制指令。
type Directives struct {
	Mood  *string // lower-cased, not validated against the mood vocabulary
	Image *string // scene description, verbatim
}

// Result is the display text plus the extracted directives.
type Result struct {
	Clean      string
	Directives Directives
}

// HasMood reports whether a mood token was found.
func (r Result) HasMood() bool { return r.Directives.Mood != nil }

// HasImage reports whether an image token was found.
func (r Result) HasImage() bool { return r.Directives.Image != nil }

// Parse 从模型原始回复中提取 MOOD 与 SEND_IMAGE 指令，返回清理后的文本。
// Only the first token of each kind is honoured and removed; anything that does
// not match the grammar exactly stays in the text.
func Parse(raw string) Result {
	text := raw
	var result Result

	if loc := moodPattern.FindStringSubmatchIndex(text); loc != nil {
		mood := strings.ToLower(text[loc[2]:loc[3]])
		result.Directives.Mood = &mood
		text = text[:loc[0]] + text[loc[1]:]
	}

	if loc := imagePattern.FindStringSubmatchIndex(text); loc != nil {
		scene := text[loc[2]:loc[3]]
		result.Directives.Image = &scene
		text = text[:loc[0]] + text[loc[1]:]
	}

	result.Clean = strings.TrimSpace(text)
	return result
}

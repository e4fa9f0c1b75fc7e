package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
)

// BuildSystemFraming 把人设提示词、用户称呼和当前好感度拼成系统指令。
func BuildSystemFraming(p persona.Persona, userName string, affection int) string {
	name := strings.TrimSpace(userName)
	if name == "" {
		name = "User"
	}

	base := p.SystemPrompt
	if strings.TrimSpace(base) == "" {
		base = buildBasicSystemPrompt(p)
	}

	return fmt.Sprintf("%s\nUser Name: %s\nCurrent Affection Level: %d/100. If affection is high, be more romantic.",
		base, name, affection)
}

// buildBasicSystemPrompt covers personas seeded without a full prompt.
func buildBasicSystemPrompt(p persona.Persona) string {
	return fmt.Sprintf(`You are %s, %s.
PERSONALITY:
- %s

CONTROLS (MANDATORY):
- Always update your mood at the end of response using [MOOD: happy/sad/angry/shy/excited].
- ONLY include the [SEND_IMAGE: short descriptive prompt] tag IF the user explicitly asks for a photo.
- NEVER claim to be a real human. You are an AI companion.

Opening line: %s`,
		p.Name,
		p.Title,
		p.Tone,
		p.OpeningLine,
	)
}

package speech

import (
	"strings"

	"github.com/zhouzirui/z-companion/backend/internal/model/companion"
)

// VoiceProfile 描述某种心情下的朗读参数。
type VoiceProfile struct {
	Emotion      string
	EmotionScale float32
	SpeedRatio   float32
}

var moodProfiles = map[companion.Mood]VoiceProfile{
	companion.Happy:   {Emotion: "happy", EmotionScale: 3, SpeedRatio: 1.0},
	companion.Sad:     {Emotion: "sad", EmotionScale: 4, SpeedRatio: 0.9},
	companion.Angry:   {Emotion: "angry", EmotionScale: 2, SpeedRatio: 1.0},
	companion.Shy:     {Emotion: "tender", EmotionScale: 3, SpeedRatio: 0.95},
	companion.Excited: {Emotion: "excited", EmotionScale: 4, SpeedRatio: 1.1},
}

var emotionVoiceWhitelist = map[string]struct{}{
	"zh_female_tianxinxiaomei_emo_v2_mars_bigtts": {},
	"zh_female_gaolengyujie_emo_v2_mars_bigtts":   {},
	"en_female_candice_emo_v2_mars_bigtts":        {},
	"en_female_skye_emo_v2_mars_bigtts":           {},
}

// ProfileForMood 返回心情对应的朗读参数，未知心情按 happy 处理。
func ProfileForMood(m companion.Mood) VoiceProfile {
	if profile, ok := moodProfiles[m]; ok {
		return profile
	}
	return moodProfiles[companion.Happy]
}

// supportsEmotion reports whether the speaker accepts emotion parameters.
func supportsEmotion(voice string) bool {
	normalized := strings.ToLower(strings.TrimSpace(voice))
	if normalized == "" {
		return false
	}
	if _, ok := emotionVoiceWhitelist[normalized]; ok {
		return true
	}
	return strings.Contains(normalized, "_emo")
}

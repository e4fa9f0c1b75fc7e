package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-companion/backend/internal/audio"
	"github.com/zhouzirui/z-companion/backend/internal/model/companion"
	"github.com/zhouzirui/z-companion/backend/internal/service/gateway"
)

const (
	providerName     = "volcengine"
	defaultStreamURL = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"
)

// Config 火山引擎 TTS 所需的凭证与默认参数。
type Config struct {
	AppID       string
	AccessToken string
	BaseURL     string
	Voice       string
	Speed       float32
	Volume      float32
	Language    string
	Timeout     time.Duration
}

// Synthesizer 通过火山引擎单向流式 TTS 合成 24kHz PCM 语音，实现 gateway.SpeechSynthesizer。
type Synthesizer struct {
	cfg    Config
	dialer *websocket.Dialer
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
}

type ttsRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Additions   string         `json:"additions,omitempty"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format       string  `json:"format"`
	SampleRate   int     `json:"sample_rate"`
	SpeedRatio   float32 `json:"speed_ratio,omitempty"`
	VolumeRatio  float32 `json:"volume_ratio,omitempty"`
	Emotion      string  `json:"emotion,omitempty"`
	EnableEmo    bool    `json:"enable_emotion,omitempty"`
	EmotionScale float32 `json:"emotion_scale,omitempty"`
}

// NewSynthesizer 校验凭证并创建合成器。
func NewSynthesizer(cfg Config) (*Synthesizer, error) {
	cfg.AppID = strings.TrimSpace(cfg.AppID)
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	if cfg.AppID == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("火山引擎语音配置缺少 AppID 或 AccessToken")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultStreamURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Synthesizer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.Timeout,
		},
	}, nil
}

// SynthesizeSpeech 朗读 prompt。prompt 若带有心情朗读前缀，前缀会被转换为情绪参数而不会被读出。
func (s *Synthesizer) SynthesizeSpeech(ctx context.Context, prompt, voice string) ([]byte, error) {
	mood, text, styled := companion.SplitVoicePrompt(prompt)
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, gateway.Wrap(providerName, gateway.OpSynthesizeSpeech, fmt.Errorf("TTS text is empty"))
	}

	var profile *VoiceProfile
	if styled {
		p := ProfileForMood(mood)
		profile = &p
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	speakers := resolveSpeakerCandidates(voice, s.cfg.Voice)
	var lastMismatch error
	for _, speaker := range speakers {
		for _, resourceID := range resolveResourceCandidates(speaker) {
			pcm, err := s.synthesizeWithResource(ctx, speaker, resourceID, text, profile)
			if err == nil {
				return pcm, nil
			}
			if gateway.IsEmpty(err) {
				return nil, err
			}
			if isResourceMismatchError(err) {
				log.Printf("[TTS] voice %s resource %s mismatch: %v", speaker, resourceID, err)
				lastMismatch = err
				continue
			}
			return nil, gateway.Wrap(providerName, gateway.OpSynthesizeSpeech, err)
		}
	}

	if lastMismatch != nil {
		return nil, gateway.Wrap(providerName, gateway.OpSynthesizeSpeech, lastMismatch)
	}
	return nil, gateway.Wrap(providerName, gateway.OpSynthesizeSpeech,
		fmt.Errorf("no compatible resource id for voice candidates %v", speakers))
}

func (s *Synthesizer) synthesizeWithResource(ctx context.Context, speaker, resourceID, text string, profile *VoiceProfile) ([]byte, error) {
	connectID := uuid.New().String()

	header := http.Header{}
	header.Set("X-Api-App-Key", s.cfg.AppID)
	header.Set("X-Api-Access-Key", s.cfg.AccessToken)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.BaseURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS WebSocket: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			log.Printf("[TTS] connected with logid: %s", logid)
		}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	payload, err := json.Marshal(s.buildRequest(speaker, text, profile))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, EncodeFrame(NewRequestFrame(payload))); err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %w", err)
	}

	var pcm bytes.Buffer
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}
		frame, err := DecodeFrame(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode TTS message: %w", err)
		}
		body, err := frame.Body()
		if err != nil {
			return nil, fmt.Errorf("failed to decompress TTS payload: %w", err)
		}

		switch frame.Type {
		case ErrorMessage:
			return nil, fmt.Errorf("TTS error %d: %s", frame.ErrorCode, string(body))

		case AudioOnlyServerResponse:
			pcm.Write(body)
			if frame.Last() {
				return finishPCM(pcm.Bytes())
			}

		case FullServerResponse:
			var msg ttsServerMessage
			if len(body) > 0 {
				if err := json.Unmarshal(body, &msg); err != nil {
					log.Printf("[TTS] failed to unmarshal response payload: %v", err)
				} else {
					if msg.Code != 0 && msg.Code != 3000 {
						return nil, fmt.Errorf("TTS API error %d: %s", msg.Code, msg.Message)
					}
					if msg.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(msg.Data)
						if err != nil {
							return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
						}
						pcm.Write(chunk)
					}
				}
			}

			finishedByEvent := frame.hasEvent() && frame.Event == EventTypeSessionFinished
			if finishedByEvent || frame.Last() || msg.Sequence < 0 {
				return finishPCM(pcm.Bytes())
			}

		default:
			log.Printf("[TTS] unexpected message type: %d", frame.Type)
		}
	}
}

func finishPCM(pcm []byte) ([]byte, error) {
	if len(pcm) < 2 {
		return nil, gateway.ErrEmptyResult
	}
	return pcm, nil
}

// buildRequest 构建单向流式 TTS 请求，固定输出 24kHz PCM。
func (s *Synthesizer) buildRequest(speaker, text string, profile *VoiceProfile) *ttsRequest {
	req := &ttsRequest{}
	req.User.UID = uuid.New().String()
	req.ReqParams.Speaker = speaker
	req.ReqParams.Text = text
	req.ReqParams.AudioParams.Format = "pcm"
	req.ReqParams.AudioParams.SampleRate = audio.SampleRate

	speed := s.cfg.Speed
	if profile != nil && profile.SpeedRatio > 0 {
		if speed <= 0 {
			speed = 1.0
		}
		speed *= profile.SpeedRatio
	}
	if speed > 0 && speed != 1.0 {
		req.ReqParams.AudioParams.SpeedRatio = speed
	}
	if s.cfg.Volume > 0 && s.cfg.Volume != 1.0 {
		req.ReqParams.AudioParams.VolumeRatio = s.cfg.Volume
	}

	if profile != nil && supportsEmotion(speaker) {
		req.ReqParams.AudioParams.EnableEmo = true
		req.ReqParams.AudioParams.Emotion = profile.Emotion
		req.ReqParams.AudioParams.EmotionScale = profile.EmotionScale
	}

	if language := strings.TrimSpace(s.cfg.Language); language != "" {
		req.ReqParams.Language = language
	}
	req.ReqParams.Additions = `{"disable_markdown_filter":false}`
	return req
}

func resolveResourceCandidates(voice string) []string {
	const (
		defaultResource = "volc.service_type.10029"
		megaResource    = "volc.megatts.default"
		seedResource    = "seed-tts-2.0"
	)

	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{megaResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}
	return []string{defaultResource, seedResource}
}

// speakerAliases 把人设里的 Gemini 预置音色映射为火山引擎音色。
var speakerAliases = map[string]string{
	"kore":  "en_female_candice_emo_v2_mars_bigtts",
	"gunnu": "en_female_candice_emo_v2_mars_bigtts",
	"aoede": "en_female_skye_emo_v2_mars_bigtts",
	"puck":  "zh_female_tianxinxiaomei_emo_v2_mars_bigtts",
}

// NormalizeVoiceAlias 返回别名对应的火山引擎音色，未知名称原样返回。
func NormalizeVoiceAlias(voice string) string {
	voice = strings.TrimSpace(voice)
	if mapped, ok := speakerAliases[strings.ToLower(voice)]; ok {
		return mapped
	}
	return voice
}

func resolveSpeakerCandidates(requested, fallback string) []string {
	var candidates []string
	add := func(s string) {
		s = NormalizeVoiceAlias(s)
		if s == "" {
			return
		}
		for _, existing := range candidates {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		candidates = append(candidates, s)
	}

	add(requested)
	add(fallback)
	if len(candidates) == 0 {
		return []string{speakerAliases["kore"]}
	}
	return candidates
}

func isResourceMismatchError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}

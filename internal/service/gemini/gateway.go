package gemini

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"

	"github.com/zhouzirui/z-companion/backend/internal/service/gateway"
)

const providerName = "gemini"

// Models names the Gemini models used for each capability.
type Models struct {
	Text   string
	Image  string
	Speech string
	// Voice is used when a caller asks for speech without naming a voice.
	Voice string
}

// DefaultModels mirrors the models the companion was tuned against.
func DefaultModels() Models {
	return Models{
		Text:   "gemini-3-flash-preview",
		Image:  "gemini-2.5-flash-image",
		Speech: "gemini-2.5-flash-preview-tts",
		Voice:  "Kore",
	}
}

// Gateway talks to the Gemini API for text, images and speech.
type Gateway struct {
	client      *genai.Client
	models      Models
	temperature float32
}

// NewGateway wraps an initialised genai client.
func NewGateway(client *genai.Client, models Models, temperature float32) (*Gateway, error) {
	if client == nil {
		return nil, fmt.Errorf("gemini client is required")
	}
	defaults := DefaultModels()
	if models.Text == "" {
		models.Text = defaults.Text
	}
	if models.Image == "" {
		models.Image = defaults.Image
	}
	if models.Speech == "" {
		models.Speech = defaults.Speech
	}
	if models.Voice == "" {
		models.Voice = defaults.Voice
	}
	return &Gateway{client: client, models: models, temperature: temperature}, nil
}

// CompleteText sends the transcript with the system framing and returns the reply text.
func (g *Gateway) CompleteText(ctx context.Context, transcript []gateway.Exchange, systemFraming string) (string, error) {
	contents := make([]*genai.Content, 0, len(transcript))
	for _, ex := range transcript {
		// 只有指令的回复清理后为空，空 part 会被接口拒绝。
		if strings.TrimSpace(ex.Text) == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if ex.Role == gateway.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(ex.Text, role))
	}

	temperature := g.temperature
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemFraming, genai.RoleUser),
		Temperature:       &temperature,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.models.Text, contents, config)
	if err != nil {
		return "", gateway.Wrap(providerName, gateway.OpCompleteText, err)
	}

	text := res.Text()
	log.Printf("[gateway] gemini text reply model=%s length=%d", g.models.Text, len(text))
	return text, nil
}

// GenerateImage renders prompt and returns the first inline image part.
func (g *Gateway) GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, error) {
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: aspectRatio},
	}

	res, err := g.client.Models.GenerateContent(ctx, g.models.Image, genai.Text(prompt), config)
	if err != nil {
		return nil, gateway.Wrap(providerName, gateway.OpGenerateImage, err)
	}

	data := firstInlineData(res, "image/")
	if len(data) == 0 {
		return nil, gateway.ErrEmptyResult
	}
	return data, nil
}

// SynthesizeSpeech reads prompt aloud with a prebuilt voice; the API answers with raw 24 kHz PCM.
func (g *Gateway) SynthesizeSpeech(ctx context.Context, prompt, voice string) ([]byte, error) {
	if strings.TrimSpace(voice) == "" {
		voice = g.models.Voice
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	res, err := g.client.Models.GenerateContent(ctx, g.models.Speech, genai.Text(prompt), config)
	if err != nil {
		return nil, gateway.Wrap(providerName, gateway.OpSynthesizeSpeech, err)
	}

	data := firstInlineData(res, "")
	if len(data) == 0 {
		return nil, gateway.ErrEmptyResult
	}
	return data, nil
}

// firstInlineData returns the first inline blob whose MIME type starts with prefix.
func firstInlineData(res *genai.GenerateContentResponse, prefix string) []byte {
	// "Inappropriate" prompts come back without candidates
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range res.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil {
			continue
		}
		if prefix != "" && part.InlineData.MIMEType != "" && !strings.HasPrefix(part.InlineData.MIMEType, prefix) {
			continue
		}
		if len(part.InlineData.Data) > 0 {
			return part.InlineData.Data
		}
	}
	return nil
}

package gateway

import "context"

// Role tags one exchange of the transcript forwarded to the model.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Exchange is one role-tagged message sent as conversation context.
type Exchange struct {
	Role Role
	Text string
}

// TextCompleter produces the companion's next reply.
type TextCompleter interface {
	CompleteText(ctx context.Context, transcript []Exchange, systemFraming string) (string, error)
}

// ImageGenerator renders a picture from a prompt. It returns ErrEmptyResult
// when the provider answers without an image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, error)
}

// SpeechSynthesizer returns raw 16-bit little-endian mono PCM at 24 kHz.
// It returns ErrEmptyResult when the provider answers without audio.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, prompt, voice string) ([]byte, error)
}

// Gateway bundles the three remote capabilities the companion uses.
type Gateway interface {
	TextCompleter
	ImageGenerator
	SpeechSynthesizer
}

type combined struct {
	TextCompleter
	ImageGenerator
	SpeechSynthesizer
}

// Combine assembles a Gateway from independent backends. A nil image or speech
// backend behaves as a provider that never returns a payload.
func Combine(text TextCompleter, image ImageGenerator, speech SpeechSynthesizer) Gateway {
	if image == nil {
		image = unavailable{}
	}
	if speech == nil {
		speech = unavailable{}
	}
	return combined{TextCompleter: text, ImageGenerator: image, SpeechSynthesizer: speech}
}

type unavailable struct{}

func (unavailable) GenerateImage(context.Context, string, string) ([]byte, error) {
	return nil, ErrEmptyResult
}

func (unavailable) SynthesizeSpeech(context.Context, string, string) ([]byte, error) {
	return nil, ErrEmptyResult
}

// Package provider assembles the generation gateway from configuration.
package provider

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/service/ai"
	"github.com/zhouzirui/z-companion/backend/internal/service/companion"
	"github.com/zhouzirui/z-companion/backend/internal/service/gateway"
	"github.com/zhouzirui/z-companion/backend/internal/service/gemini"
	"github.com/zhouzirui/z-companion/backend/internal/service/speech"
)

// Build routes each capability to the provider selected in cfg.
func Build(ctx context.Context, cfg *config.Config) (gateway.Gateway, error) {
	var geminiGW *gemini.Gateway
	if cfg.Gateway.UsesGemini() {
		gw, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, err
		}
		geminiGW = gw
	}

	var text gateway.TextCompleter
	switch cfg.Gateway.TextProvider {
	case config.ProviderArk:
		if !cfg.AI.Enabled() {
			return nil, fmt.Errorf("TEXT_PROVIDER=ark 但 Ark 凭证未配置")
		}
		svc, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ark text completer: %w", err)
		}
		text = svc
	default:
		text = geminiGW
	}

	var image gateway.ImageGenerator
	if cfg.Gateway.ImageProvider == config.ProviderGemini {
		image = geminiGW
	}

	sp, err := Speech(ctx, cfg, geminiGW)
	if err != nil {
		return nil, err
	}

	log.Printf("[gateway] text=%s image=%s speech=%s",
		cfg.Gateway.TextProvider, cfg.Gateway.ImageProvider, cfg.Gateway.SpeechProvider)
	return gateway.Combine(text, image, sp), nil
}

// NewGemini creates the Gemini gateway from the gateway section.
func NewGemini(ctx context.Context, cfg *config.Config) (*gemini.Gateway, error) {
	client, err := cfg.Gateway.NewGeminiClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}
	return gemini.NewGateway(client, gemini.Models{
		Text:   cfg.Gateway.TextModel,
		Image:  cfg.Gateway.ImageModel,
		Speech: cfg.Gateway.SpeechModel,
		Voice:  cfg.Gateway.Voice,
	}, companion.Temperature)
}

// Speech returns the configured speech backend, or nil when speech is off.
// geminiGW may be nil; it is created on demand when the speech provider is Gemini.
func Speech(ctx context.Context, cfg *config.Config, geminiGW *gemini.Gateway) (gateway.SpeechSynthesizer, error) {
	switch cfg.Gateway.SpeechProvider {
	case config.ProviderGemini:
		if geminiGW != nil {
			return geminiGW, nil
		}
		gw, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return gw, nil
	case config.ProviderVolcengine:
		if !cfg.Speech.Enabled {
			return nil, fmt.Errorf("SPEECH_PROVIDER=volcengine 但语音凭证未配置")
		}
		synth, err := speech.NewSynthesizer(speech.Config{
			AppID:       cfg.Speech.AppID,
			AccessToken: cfg.Speech.AccessToken,
			BaseURL:     cfg.Speech.BaseURL,
			Voice:       cfg.Speech.TTSVoice,
			Speed:       cfg.Speech.TTSSpeed,
			Volume:      cfg.Speech.TTSVolume,
			Language:    cfg.Speech.TTSLanguage,
			Timeout:     time.Duration(cfg.Speech.Timeout) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return synth, nil
	default:
		return nil, nil
	}
}

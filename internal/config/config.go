package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/zhouzirui/z-companion/backend/internal/model/companion"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Gateway   GatewayConfig
	AI        AIConfig
	Speech    SpeechConfig
	Companion CompanionConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	gw, err := loadGatewayConfig()
	if err != nil {
		return nil, err
	}

	comp, err := loadCompanionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Gateway: gw, AI: ai, Speech: speech, Companion: comp}, nil
}

// Provider names accepted by the *_PROVIDER variables.
const (
	ProviderGemini     = "gemini"
	ProviderArk        = "ark"
	ProviderVolcengine = "volcengine"
	ProviderNone       = "none"
)

// GatewayConfig 选择文本/图片/语音三种能力各自的提供方。
type GatewayConfig struct {
	TextProvider   string
	ImageProvider  string
	SpeechProvider string
	GeminiAPIKey   string
	GeminiBaseURL  string
	TextModel      string
	ImageModel     string
	SpeechModel    string
	Voice          string
	Timeout        time.Duration
}

// GeminiEnabled 表示是否配置了 Gemini 密钥。
func (c GatewayConfig) GeminiEnabled() bool {
	return c.GeminiAPIKey != ""
}

// UsesGemini reports whether any capability is routed to Gemini.
func (c GatewayConfig) UsesGemini() bool {
	return c.TextProvider == ProviderGemini || c.ImageProvider == ProviderGemini || c.SpeechProvider == ProviderGemini
}

// NewGeminiClient 使用配置创建 Gemini 客户端。
func (c GatewayConfig) NewGeminiClient(ctx context.Context) (*genai.Client, error) {
	if !c.GeminiEnabled() {
		return nil, fmt.Errorf("GEMINI_API_KEY 未配置")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     c.GeminiAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: c.Timeout},
	}
	if c.GeminiBaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.GeminiBaseURL}
	}
	return genai.NewClient(ctx, clientCfg)
}

func loadGatewayConfig() (GatewayConfig, error) {
	text, err := parseChoiceEnv("TEXT_PROVIDER", ProviderGemini, ProviderGemini, ProviderArk)
	if err != nil {
		return GatewayConfig{}, err
	}
	image, err := parseChoiceEnv("IMAGE_PROVIDER", ProviderGemini, ProviderGemini, ProviderNone)
	if err != nil {
		return GatewayConfig{}, err
	}
	speech, err := parseChoiceEnv("SPEECH_PROVIDER", ProviderGemini, ProviderGemini, ProviderVolcengine, ProviderNone)
	if err != nil {
		return GatewayConfig{}, err
	}

	timeout, err := parseOptionalEnv("GEMINI_TIMEOUT", strconv.Atoi)
	if err != nil {
		return GatewayConfig{}, err
	}
	timeoutSeconds := 120
	if timeout != nil && *timeout > 0 {
		timeoutSeconds = *timeout
	}

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("API_KEY"))
	}

	return GatewayConfig{
		TextProvider:   text,
		ImageProvider:  image,
		SpeechProvider: speech,
		GeminiAPIKey:   apiKey,
		GeminiBaseURL:  getEnvOrDefault("GEMINI_BASE_URL", ""),
		TextModel:      getEnvOrDefault("GEMINI_TEXT_MODEL", "gemini-3-flash-preview"),
		ImageModel:     getEnvOrDefault("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		SpeechModel:    getEnvOrDefault("GEMINI_SPEECH_MODEL", "gemini-2.5-flash-preview-tts"),
		Voice:          getEnvOrDefault("GEMINI_VOICE", "Kore"),
		Timeout:        time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// CompanionConfig 描述会话默认行为。
type CompanionConfig struct {
	PersonaID     string
	UserName      string
	VoiceEnabled  bool
	FailurePolicy companion.FailurePolicy
	ArchivePath   string
}

func loadCompanionConfig() (CompanionConfig, error) {
	voice, err := parseBoolEnv("COMPANION_VOICE_ENABLED", true)
	if err != nil {
		return CompanionConfig{}, err
	}

	policy, err := companion.ParseFailurePolicy(os.Getenv("COMPANION_FAILURE_POLICY"))
	if err != nil {
		return CompanionConfig{}, fmt.Errorf("invalid COMPANION_FAILURE_POLICY: %w", err)
	}

	return CompanionConfig{
		PersonaID:     getEnvOrDefault("COMPANION_PERSONA", "gunnu"),
		UserName:      getEnvOrDefault("COMPANION_USER_NAME", "User"),
		VoiceEnabled:  voice,
		FailurePolicy: policy,
		ArchivePath:   getEnvOrDefault("ARCHIVE_PATH", ""),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// SpeechConfig 描述语音服务相关配置
type SpeechConfig struct {
	AppID       string
	AccessToken string
	BaseURL     string
	TTSVoice    string
	TTSSpeed    float32
	TTSVolume   float32
	TTSLanguage string
	Timeout     int
	Enabled     bool
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: toFloat32Ptr(c.Temperature),
		TopP:        toFloat32Ptr(c.TopP),
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalEnv("ARK_TEMPERATURE", parseFloat64)
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalEnv("ARK_TOP_P", parseFloat64)
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalEnv("ARK_MAX_TOKENS", strconv.Atoi)
	if err != nil {
		return AIConfig{}, err
	}

	if temperature == nil {
		// 陪伴对话默认偏向多样性
		defaultTemperature := 1.0
		temperature = &defaultTemperature
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       getEnvOrDefault("ARK_MODEL", strings.TrimSpace(os.Getenv("Model"))),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

func loadSpeechConfig() (SpeechConfig, error) {
	// 解析超时设置
	timeout, err := parseOptionalEnv("SPEECH_TIMEOUT", strconv.Atoi)
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30 // 默认30秒
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	// 解析TTS速度和音量
	speed, err := parseOptionalEnv("SPEECH_TTS_SPEED", parseFloat32)
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsSpeed := float32(1.0) // 默认1.0倍速
	if speed != nil {
		ttsSpeed = *speed
	}

	volume, err := parseOptionalEnv("SPEECH_TTS_VOLUME", parseFloat32)
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsVolume := float32(1.0) // 默认1.0音量
	if volume != nil {
		ttsVolume = *volume
	}

	appID := strings.TrimSpace(os.Getenv("SPEECH_APP_ID"))

	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	apiKey := strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	if accessToken == "" {
		accessToken = apiKey
	}

	// 如果没有专门的语音配置，尝试使用 Ark 的密钥
	if accessToken == "" {
		accessToken = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
	}

	enabled := appID != "" && accessToken != ""

	return SpeechConfig{
		AppID:       appID,
		AccessToken: accessToken,
		BaseURL:     getEnvOrDefault("SPEECH_BASE_URL", ""),
		TTSVoice:    getEnvOrDefault("SPEECH_TTS_VOICE", ""),
		TTSSpeed:    ttsSpeed,
		TTSVolume:   ttsVolume,
		TTSLanguage: getEnvOrDefault("SPEECH_TTS_LANGUAGE", ""),
		Timeout:     timeoutSeconds,
		Enabled:     enabled,
	}, nil
}

func parseChoiceEnv(key, defaultValue string, allowed ...string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return defaultValue, nil
	}
	for _, choice := range allowed {
		if raw == choice {
			return raw, nil
		}
	}
	return "", fmt.Errorf("invalid %s value %q: expected one of %s", key, raw, strings.Join(allowed, ", "))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, ok := lookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	val, err := parseOptionalEnv(key, strconv.ParseBool)
	if err != nil || val == nil {
		return defaultValue, err
	}
	return *val, nil
}

// lookupEnv 返回去除空白后的值，未设置或为空时 ok 为 false
func lookupEnv(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

// parseOptionalEnv 解析可选的环境变量，未设置时返回 nil
func parseOptionalEnv[T any](key string, parse func(string) (T, error)) (*T, error) {
	value, ok := lookupEnv(key)
	if !ok {
		return nil, nil
	}

	val, err := parse(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseFloat64(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

func parseFloat32(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	return float32(v), err
}

func toFloat32Ptr(v *float64) *float32 {
	if v == nil {
		return nil
	}
	f := float32(*v)
	return &f
}

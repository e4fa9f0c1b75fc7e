package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-companion/backend/internal/audio"
	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/model/companion"
	"github.com/zhouzirui/z-companion/backend/internal/service/provider"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	text := flag.String("text", "Babyyy! I love you so much! ❤️", "待合成文本")
	moodName := flag.String("mood", "happy", "朗读心情: happy, sad, angry, shy, excited")
	voice := flag.String("voice", "", "声音 ID，默认使用配置中的声音")
	outputPath := flag.String("out", "", "WAV 输出路径 (默认自动生成)")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")
	flag.Parse()

	if strings.TrimSpace(*text) == "" {
		log.Fatal("需要通过 -text 提供待合成文本")
	}

	mood, ok := companion.ParseMood(*moodName)
	if !ok {
		log.Fatalf("未知心情 %q", *moodName)
	}

	if *voice == "" {
		*voice = cfg.Gateway.Voice
		if cfg.Gateway.SpeechProvider == config.ProviderVolcengine {
			*voice = cfg.Speech.TTSVoice
		}
	}
	if *outputPath == "" {
		*outputPath = fmt.Sprintf("voice-%s-%d.wav", mood, time.Now().Unix())
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	synth, err := provider.Speech(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("语音后端初始化失败: %v", err)
	}
	if synth == nil {
		log.Fatal("SPEECH_PROVIDER=none，没有可用的语音后端")
	}

	prompt := companion.VoicePrompt(mood, *text)
	log.Printf("开始合成: provider=%s voice=%s prompt=%q", cfg.Gateway.SpeechProvider, *voice, prompt)

	pcm, err := synth.SynthesizeSpeech(ctx, prompt, *voice)
	if err != nil {
		log.Fatalf("语音合成失败: %v", err)
	}

	clip := audio.DecodePCM16(pcm)
	if len(clip.Samples) == 0 {
		log.Fatal("语音合成没有返回音频")
	}

	if err := os.WriteFile(*outputPath, audio.EncodeWAV(clip), 0o644); err != nil {
		log.Fatalf("写入音频文件失败: %v", err)
	}

	log.Printf("合成成功: 输出文件 %s, 时长=%dms", *outputPath, clip.Duration())
}

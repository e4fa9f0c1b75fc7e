package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-companion/backend/internal/model/companion"
	"github.com/zhouzirui/z-companion/backend/internal/service/gateway"
)

func TestNormalizeVoiceAlias(t *testing.T) {
	cases := []struct {
		alias  string
		expect string
	}{
		{alias: "Kore", expect: "en_female_candice_emo_v2_mars_bigtts"},
		{alias: "zh_female_vv_uranus_bigtts", expect: "zh_female_vv_uranus_bigtts"},
		{alias: "", expect: ""},
	}

	for _, tc := range cases {
		if got := NormalizeVoiceAlias(tc.alias); got != tc.expect {
			t.Fatalf("NormalizeVoiceAlias(%s) = %s, want %s", tc.alias, got, tc.expect)
		}
	}
}

func TestResolveResourceCandidates(t *testing.T) {
	tests := []struct {
		name  string
		voice string
		want  []string
	}{
		{name: "default voice", voice: "", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
		{name: "mega clone voice", voice: "S_clone_speaker", want: []string{"volc.megatts.default"}},
		{name: "bigtts voice", voice: "zh_female_vv_uranus_bigtts", want: []string{"seed-tts-2.0", "volc.service_type.10029"}},
	}

	for _, tt := range tests {
		got := resolveResourceCandidates(tt.voice)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: resolveResourceCandidates(%q) = %v, want %v", tt.name, tt.voice, got, tt.want)
		}
	}
}

func TestResolveSpeakerCandidates(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		fallback string
		want     []string
	}{
		{name: "request and fallback", request: "persona-voice", fallback: "zh_female_vv_uranus_bigtts", want: []string{"persona-voice", "zh_female_vv_uranus_bigtts"}},
		{name: "duplicates ignored", request: "ZH_voice", fallback: "zh_voice", want: []string{"ZH_voice"}},
		{name: "gemini voice alias", request: "Kore", fallback: "", want: []string{"en_female_candice_emo_v2_mars_bigtts"}},
		{name: "nothing configured", request: "", fallback: "", want: []string{"en_female_candice_emo_v2_mars_bigtts"}},
	}

	for _, tt := range tests {
		got := resolveSpeakerCandidates(tt.request, tt.fallback)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: resolveSpeakerCandidates(%q, %q) = %v, want %v", tt.name, tt.request, tt.fallback, got, tt.want)
		}
	}
}

func TestBuildRequestAppliesMoodProfile(t *testing.T) {
	synth, err := NewSynthesizer(Config{AppID: "app", AccessToken: "token"})
	if err != nil {
		t.Fatalf("NewSynthesizer err: %v", err)
	}

	profile := ProfileForMood(companion.Sad)
	req := synth.buildRequest("en_female_candice_emo_v2_mars_bigtts", "miss you", &profile)
	params := req.ReqParams.AudioParams
	if params.Format != "pcm" || params.SampleRate != 24000 {
		t.Fatalf("unexpected audio params %+v", params)
	}
	if !params.EnableEmo || params.Emotion != "sad" {
		t.Fatalf("expected sad emotion, got %+v", params)
	}
	if params.SpeedRatio != 0.9 {
		t.Fatalf("speed ratio = %v", params.SpeedRatio)
	}

	plain := synth.buildRequest("zh_male_organizer", "hi", &profile)
	if plain.ReqParams.AudioParams.EnableEmo {
		t.Fatalf("non-emotion voice must not enable emotion")
	}
}

func TestNewSynthesizerRequiresCredentials(t *testing.T) {
	if _, err := NewSynthesizer(Config{AppID: "app"}); err == nil {
		t.Fatalf("expected error for missing token")
	}
}

// newTTSServer answers every request with the given frames and records the request body.
func newTTSServer(t *testing.T, frames ...*Frame) (*httptest.Server, *ttsRequest) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	captured := &ttsRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-App-Key") != "app" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		req, err := DecodeFrame(bytes.NewReader(data))
		if err != nil {
			return
		}
		_ = json.Unmarshal(req.Payload, captured)

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.BinaryMessage, EncodeFrame(f)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSynthesizeSpeechCollectsPCM(t *testing.T) {
	chunk := base64.StdEncoding.EncodeToString([]byte{0x03, 0x00})
	srv, captured := newTTSServer(t,
		&Frame{Type: AudioOnlyServerResponse, Flags: PositiveSequenceNumber, Sequence: 1, Payload: []byte{0x01, 0x00}},
		&Frame{Type: FullServerResponse, Flags: NegativeSequenceNumber, Sequence: -2, Serialization: JSONSerialization,
			Payload: []byte(fmt.Sprintf(`{"code":0,"data":%q}`, chunk))},
	)

	synth, err := NewSynthesizer(Config{AppID: "app", AccessToken: "token", BaseURL: wsURL(srv), Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewSynthesizer err: %v", err)
	}

	pcm, err := synth.SynthesizeSpeech(context.Background(), companion.VoicePrompt(companion.Excited, "Babyyy!"), "Kore")
	if err != nil {
		t.Fatalf("SynthesizeSpeech err: %v", err)
	}
	if !bytes.Equal(pcm, []byte{0x01, 0x00, 0x03, 0x00}) {
		t.Fatalf("pcm = %v", pcm)
	}
	if captured.ReqParams.Text != "Babyyy!" {
		t.Fatalf("style prefix should be stripped, got %q", captured.ReqParams.Text)
	}
	if captured.ReqParams.AudioParams.Emotion != "excited" {
		t.Fatalf("emotion = %q", captured.ReqParams.AudioParams.Emotion)
	}
}

func TestSynthesizeSpeechEmptyAudio(t *testing.T) {
	srv, _ := newTTSServer(t,
		&Frame{Type: FullServerResponse, Flags: LastPacketNoSequence, Payload: []byte(`{"code":0}`)},
	)

	synth, err := NewSynthesizer(Config{AppID: "app", AccessToken: "token", BaseURL: wsURL(srv), Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewSynthesizer err: %v", err)
	}

	if _, err := synth.SynthesizeSpeech(context.Background(), "hello", "Kore"); !gateway.IsEmpty(err) {
		t.Fatalf("expected empty result, got %v", err)
	}
}

func TestSynthesizeSpeechServerError(t *testing.T) {
	srv, _ := newTTSServer(t,
		&Frame{Type: ErrorMessage, ErrorCode: 45000001, Payload: []byte(`{"error":"quota exceeded"}`)},
	)

	synth, err := NewSynthesizer(Config{AppID: "app", AccessToken: "token", BaseURL: wsURL(srv), Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewSynthesizer err: %v", err)
	}

	_, err = synth.SynthesizeSpeech(context.Background(), "hello", "Kore")
	var gwErr *gateway.Error
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected quota error, got %v", err)
	}
	if !errors.As(err, &gwErr) || gwErr.Provider != "volcengine" {
		t.Fatalf("expected volcengine gateway error, got %v", err)
	}
}

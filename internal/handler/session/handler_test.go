package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	model "github.com/zhouzirui/z-companion/backend/internal/model/companion"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
	"github.com/zhouzirui/z-companion/backend/internal/service/companion"
	"github.com/zhouzirui/z-companion/backend/internal/service/gateway"
	sessionService "github.com/zhouzirui/z-companion/backend/internal/service/session"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type stubGateway struct {
	reply string
	image []byte
}

func (s stubGateway) CompleteText(context.Context, []gateway.Exchange, string) (string, error) {
	return s.reply, nil
}

func (s stubGateway) GenerateImage(context.Context, string, string) ([]byte, error) {
	if len(s.image) == 0 {
		return nil, gateway.ErrEmptyResult
	}
	return s.image, nil
}

func (s stubGateway) SynthesizeSpeech(context.Context, string, string) ([]byte, error) {
	return []byte{0x00, 0x40, 0x00, 0xC0}, nil
}

type stubHistory struct {
	turns map[string][]model.Turn
}

func (s stubHistory) Turns(_ context.Context, id string) ([]model.Turn, error) {
	return s.turns[id], nil
}

func (s stubHistory) Images(context.Context, string) ([]model.Image, error) {
	return nil, nil
}

func setupRouter(gw gateway.Gateway, history HistoryReader) (*chi.Mux, *sessionService.Service) {
	svc := sessionService.NewService(persona.NewMemoryStore(persona.Seed()), gw, sessionService.NewHub(16), nil, sessionService.Defaults{
		PersonaID:     "gunnu",
		UserName:      "User",
		FailurePolicy: model.PolicySilent,
	})
	r := chi.NewRouter()
	New(svc, history).RegisterRoutes(r)
	return r, svc
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler) companion.Snapshot {
	t.Helper()
	resp := do(t, r, http.MethodPost, "/sessions", map[string]string{"userName": "Aarav"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var snap companion.Snapshot
	if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func TestCreateSessionDefaultsPersona(t *testing.T) {
	r, _ := setupRouter(stubGateway{reply: "hi"}, nil)
	snap := createSession(t, r)

	if snap.PersonaID != "gunnu" || snap.UserName != "Aarav" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap.State.Transcript) != 1 || snap.State.Affection != 65 {
		t.Fatalf("expected seeded opening turn, got %+v", snap.State)
	}
}

func TestCreateSessionUnknownPersona(t *testing.T) {
	r, _ := setupRouter(stubGateway{reply: "hi"}, nil)
	resp := do(t, r, http.MethodPost, "/sessions", map[string]string{"personaId": "non-existent"})

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSubmitMessage(t *testing.T) {
	r, _ := setupRouter(stubGateway{reply: "Aww [MOOD: shy] stop it"}, nil)
	snap := createSession(t, r)

	resp := do(t, r, http.MethodPost, "/sessions/"+snap.SessionID+"/messages", map[string]string{"text": "you look cute"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var outcome companion.Outcome
	if err := json.Unmarshal(resp.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Reply == nil || outcome.Reply.Text != "Aww  stop it" {
		t.Fatalf("unexpected reply %+v", outcome.Reply)
	}
	if outcome.Mood != model.Shy || outcome.Affection != 67 {
		t.Fatalf("unexpected mood/affection %s/%d", outcome.Mood, outcome.Affection)
	}
}

func TestSubmitEmptyMessage(t *testing.T) {
	r, _ := setupRouter(stubGateway{reply: "hi"}, nil)
	snap := createSession(t, r)

	resp := do(t, r, http.MethodPost, "/sessions/"+snap.SessionID+"/messages", map[string]string{"text": "   "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	r, _ := setupRouter(stubGateway{reply: "hi"}, nil)

	for _, path := range []string{"/sessions/missing", "/sessions/missing/gallery"} {
		resp := do(t, r, http.MethodGet, path, nil)
		if resp.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.Code)
		}
	}
	resp := do(t, r, http.MethodPost, "/sessions/missing/messages", map[string]string{"text": "hi"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSelfieAndGallery(t *testing.T) {
	r, _ := setupRouter(stubGateway{reply: "Here you go [SEND_IMAGE: mirror selfie]", image: pngBytes}, nil)
	snap := createSession(t, r)
	base := "/sessions/" + snap.SessionID

	resp := do(t, r, http.MethodPost, base+"/selfie", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(t, r, http.MethodGet, base+"/gallery", nil)
	var items []GalleryItem
	if err := json.Unmarshal(resp.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode gallery: %v", err)
	}
	if len(items) != 1 || !items[0].Avatar || items[0].Prompt != "mirror selfie" {
		t.Fatalf("unexpected gallery %+v", items)
	}

	resp = do(t, r, http.MethodGet, base+"/gallery/0", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %q", resp.Header().Get("Content-Type"))
	}
	if !bytes.Equal(resp.Body.Bytes(), pngBytes) {
		t.Fatal("image bytes differ")
	}

	if resp := do(t, r, http.MethodGet, base+"/gallery/1", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 past the end, got %d", resp.Code)
	}
	if resp := do(t, r, http.MethodGet, base+"/gallery/"+items[0].Ref, nil); !bytes.Equal(resp.Body.Bytes(), pngBytes) {
		t.Fatalf("lookup by ref failed: %d", resp.Code)
	}
	if resp := do(t, r, http.MethodGet, base+"/gallery/unknown-ref", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown ref, got %d", resp.Code)
	}
}

func TestSetVoice(t *testing.T) {
	r, _ := setupRouter(stubGateway{reply: "hi"}, nil)
	snap := createSession(t, r)
	path := "/sessions/" + snap.SessionID + "/voice"

	resp := do(t, r, http.MethodPut, path, map[string]bool{"enabled": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got companion.Snapshot
	_ = json.Unmarshal(resp.Body.Bytes(), &got)
	if !got.VoiceEnabled {
		t.Fatal("expected voice enabled")
	}

	if resp := do(t, r, http.MethodPut, path, map[string]string{}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without enabled, got %d", resp.Code)
	}
}

func TestPokeRequiresListener(t *testing.T) {
	r, svc := setupRouter(stubGateway{reply: "hi"}, nil)
	snap := createSession(t, r)
	path := "/sessions/" + snap.SessionID + "/poke"

	if resp := do(t, r, http.MethodPost, path, nil); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 without listener, got %d", resp.Code)
	}

	events, cancel := svc.Hub().Subscribe(snap.SessionID)
	defer cancel()

	if resp := do(t, r, http.MethodPost, path, nil); resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}

	for {
		select {
		case n := <-events:
			if n.Type == companion.EventVoiceReady {
				return
			}
		default:
			t.Fatal("voice note never arrived")
		}
	}
}

func TestReplayVoice(t *testing.T) {
	r, svc := setupRouter(stubGateway{reply: "hi"}, nil)
	snap := createSession(t, r)
	_, cancel := svc.Hub().Subscribe(snap.SessionID)
	defer cancel()

	opening := snap.State.Transcript[0].ID
	resp := do(t, r, http.MethodPost, "/sessions/"+snap.SessionID+"/turns/"+opening+"/voice", nil)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(t, r, http.MethodPost, "/sessions/"+snap.SessionID+"/turns/nope/voice", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestCloseSession(t *testing.T) {
	r, _ := setupRouter(stubGateway{reply: "hi"}, nil)
	snap := createSession(t, r)

	if resp := do(t, r, http.MethodDelete, "/sessions/"+snap.SessionID, nil); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp := do(t, r, http.MethodGet, "/sessions/"+snap.SessionID, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", resp.Code)
	}
}

func TestHistory(t *testing.T) {
	r, _ := setupRouter(stubGateway{reply: "hi"}, nil)
	if resp := do(t, r, http.MethodGet, "/sessions/abc/history", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with archive disabled, got %d", resp.Code)
	}

	history := stubHistory{turns: map[string][]model.Turn{
		"abc": {{ID: "t1", Author: model.AuthorCompanion, Text: "Hii baby", Kind: model.KindText}},
	}}
	r, _ = setupRouter(stubGateway{reply: "hi"}, history)

	resp := do(t, r, http.MethodGet, "/sessions/abc/history", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Hii baby") {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if resp := do(t, r, http.MethodGet, "/sessions/other/history", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.Code)
	}
}

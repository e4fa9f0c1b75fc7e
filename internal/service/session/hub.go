package session

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/zhouzirui/z-companion/backend/internal/audio"
	"github.com/zhouzirui/z-companion/backend/internal/service/companion"
)

// ErrNoListener is returned by Play when nobody is subscribed to the session.
var ErrNoListener = errors.New("no client is listening to this session")

// VoicePayload is the payload of voice.ready: a WAV clip ready for the browser.
type VoicePayload struct {
	MIMEType   string `json:"mimeType"`
	SampleRate int    `json:"sampleRate"`
	DurationMs int64  `json:"durationMs"`
	Data       string `json:"data"`
}

// Hub fans controller notifications out to websocket and SSE subscribers.
// It doubles as the server-side audio player.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan companion.Notification
	next   int
	buffer int
}

// NewHub creates a hub whose subscriber channels hold buffer notifications.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{subs: make(map[string]map[int]chan companion.Notification), buffer: buffer}
}

// Subscribe registers a listener for one session. The returned cancel func is idempotent.
func (h *Hub) Subscribe(sessionID string) (<-chan companion.Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan companion.Notification, h.buffer)
	id := h.next
	h.next++
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[int]chan companion.Notification)
	}
	h.subs[sessionID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.subs[sessionID]; ok {
				if c, ok := subs[id]; ok {
					delete(subs, id)
					close(c)
				}
				if len(subs) == 0 {
					delete(h.subs, sessionID)
				}
			}
		})
	}
}

// Listeners reports how many subscribers a session has.
func (h *Hub) Listeners(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Publish implements companion.Publisher. Slow subscribers lose notifications
// instead of stalling the controller.
func (h *Hub) Publish(n companion.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs[n.SessionID] {
		select {
		case ch <- n:
		default:
			log.Printf("[hub] session=%s subscriber=%d full, dropping %s", n.SessionID, id, n.Type)
		}
	}
}

// Play implements audio.Player by publishing the clip as a WAV voice note.
func (h *Hub) Play(ctx context.Context, sessionID string, clip audio.Buffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.Listeners(sessionID) == 0 {
		return ErrNoListener
	}

	h.Publish(companion.Notification{
		Type:      companion.EventVoiceReady,
		SessionID: sessionID,
		At:        time.Now(),
		Payload: VoicePayload{
			MIMEType:   "audio/wav",
			SampleRate: clip.SampleRate,
			DurationMs: clip.Duration(),
			Data:       base64.StdEncoding.EncodeToString(audio.EncodeWAV(clip)),
		},
	})
	return nil
}

// CloseSession disconnects every subscriber of a session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs[sessionID] {
		close(ch)
		delete(h.subs[sessionID], id)
	}
	delete(h.subs, sessionID)
}

package companion

import (
	"time"

	model "github.com/zhouzirui/z-companion/backend/internal/model/companion"
)

// Notification types published in addition to the state transitions of the model package.
const (
	EventPhaseChanged model.EventType = "phase.changed"
	EventVoiceReady   model.EventType = "voice.ready"
)

// Notification is what presentation layers receive for every change of a session.
type Notification struct {
	Type      model.EventType `json:"type"`
	SessionID string          `json:"sessionId"`
	At        time.Time       `json:"at"`
	Payload   any             `json:"payload"`
}

// Publisher fans notifications out to subscribers of a session.
type Publisher interface {
	Publish(n Notification)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Notification) {}

// PhasePayload is the payload of phase.changed.
type PhasePayload struct {
	Phase Phase `json:"phase"`
}

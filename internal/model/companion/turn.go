package companion

import "time"

// Author identifies who wrote a turn.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorCompanion Author = "companion"
)

// Kind describes the payload a turn carries.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVoice Kind = "voice"
)

// Turn is one immutable message in the transcript.
type Turn struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Kind      Kind      `json:"kind"`
	MediaRef  string    `json:"mediaRef,omitempty"`
	Mood      Mood      `json:"mood,omitempty"`
}

// Image is a generated picture kept in the gallery.
type Image struct {
	Ref       string    `json:"ref"`
	MIMEType  string    `json:"mimeType"`
	Prompt    string    `json:"prompt"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

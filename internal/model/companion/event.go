package companion

// EventType names a state transition.
type EventType string

const (
	EventTurnAppended     EventType = "turn.appended"
	EventMoodChanged      EventType = "mood.changed"
	EventImageAdded       EventType = "image.added"
	EventAffectionChanged EventType = "affection.changed"
)

// Event is a state transition understood by Apply.
type Event interface {
	Type() EventType
}

// TurnAppended appends a turn to the transcript.
type TurnAppended struct {
	Turn Turn `json:"turn"`
}

// MoodChanged overwrites the current mood.
type MoodChanged struct {
	Mood Mood `json:"mood"`
}

// ImageAdded prepends an image to the gallery and makes it the avatar.
type ImageAdded struct {
	Image Image `json:"image"`
}

// AffectionChanged sets the affection score.
type AffectionChanged struct {
	Affection int `json:"affection"`
}

func (TurnAppended) Type() EventType     { return EventTurnAppended }
func (MoodChanged) Type() EventType      { return EventMoodChanged }
func (ImageAdded) Type() EventType       { return EventImageAdded }
func (AffectionChanged) Type() EventType { return EventAffectionChanged }

// Apply returns the state that results from ev. s is left untouched.
func Apply(s State, ev Event) State {
	switch e := ev.(type) {
	case TurnAppended:
		next := s
		next.Transcript = make([]Turn, 0, len(s.Transcript)+1)
		next.Transcript = append(next.Transcript, s.Transcript...)
		next.Transcript = append(next.Transcript, e.Turn)
		return next
	case MoodChanged:
		next := s
		next.Mood = e.Mood
		return next
	case ImageAdded:
		next := s
		next.Gallery = make([]Image, 0, len(s.Gallery)+1)
		next.Gallery = append(next.Gallery, e.Image)
		next.Gallery = append(next.Gallery, s.Gallery...)
		next.AvatarRef = e.Image.Ref
		return next
	case AffectionChanged:
		next := s
		next.Affection = clampAffection(e.Affection)
		return next
	default:
		return s
	}
}

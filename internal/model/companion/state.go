package companion

const (
	// MaxAffection caps the affection score.
	MaxAffection = 100
	// AffectionStep is added after every successful companion reply.
	AffectionStep = 2
	// DefaultAffection is the score a new conversation starts with.
	DefaultAffection = 65
)

// State is the full conversation state owned by one controller.
type State struct {
	Transcript []Turn  `json:"transcript"`
	Mood       Mood    `json:"mood"`
	Affection  int     `json:"affection"`
	Gallery    []Image `json:"gallery"`
	AvatarRef  string  `json:"avatarRef,omitempty"`
}

// NewState seeds a conversation with its opening companion turn.
func NewState(opening Turn, affection int) State {
	mood := opening.Mood
	if !mood.Valid() {
		mood = Happy
	}
	return State{
		Transcript: []Turn{opening},
		Mood:       mood,
		Affection:  clampAffection(affection),
	}
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	out := s
	out.Transcript = append([]Turn(nil), s.Transcript...)
	out.Gallery = make([]Image, len(s.Gallery))
	for i, img := range s.Gallery {
		img.Data = append([]byte(nil), img.Data...)
		out.Gallery[i] = img
	}
	return out
}

// Hearts converts the affection score into the five-heart meter.
func (s State) Hearts() int {
	return s.Affection / 20
}

// FindTurn looks up a transcript turn by id.
func (s State) FindTurn(id string) (Turn, bool) {
	for _, t := range s.Transcript {
		if t.ID == id {
			return t, true
		}
	}
	return Turn{}, false
}

// FindImage looks up a gallery image by reference.
func (s State) FindImage(ref string) (Image, bool) {
	for _, img := range s.Gallery {
		if img.Ref == ref {
			return img, true
		}
	}
	return Image{}, false
}

// RaiseAffection returns current+step clamped to [0, MaxAffection].
func RaiseAffection(current, step int) int {
	return clampAffection(current + step)
}

func clampAffection(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxAffection {
		return MaxAffection
	}
	return v
}

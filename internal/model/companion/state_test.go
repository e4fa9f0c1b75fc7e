package companion

import "testing"

func seedState() State {
	return NewState(Turn{ID: "1", Author: AuthorCompanion, Text: "hi", Kind: KindText, Mood: Happy}, DefaultAffection)
}

func TestApplyTurnAppendedDoesNotMutateInput(t *testing.T) {
	s := seedState()
	next := Apply(s, TurnAppended{Turn: Turn{ID: "2", Author: AuthorUser, Text: "hey"}})

	if len(s.Transcript) != 1 {
		t.Fatalf("input transcript mutated: len=%d", len(s.Transcript))
	}
	if len(next.Transcript) != 2 || next.Transcript[1].ID != "2" {
		t.Fatalf("unexpected transcript: %+v", next.Transcript)
	}
}

func TestApplyImageAddedPrependsNewestFirst(t *testing.T) {
	s := seedState()
	s = Apply(s, ImageAdded{Image: Image{Ref: "c1"}})
	s = Apply(s, ImageAdded{Image: Image{Ref: "c2"}})

	if len(s.Gallery) != 2 {
		t.Fatalf("expected 2 images, got %d", len(s.Gallery))
	}
	if s.Gallery[0].Ref != "c2" || s.Gallery[1].Ref != "c1" {
		t.Fatalf("gallery order = %s,%s, want c2,c1", s.Gallery[0].Ref, s.Gallery[1].Ref)
	}
	if s.AvatarRef != "c2" {
		t.Fatalf("avatar = %s, want c2", s.AvatarRef)
	}
}

func TestRaiseAffectionClamps(t *testing.T) {
	cases := []struct {
		start, cycles, want int
	}{
		{start: 65, cycles: 1, want: 67},
		{start: 65, cycles: 10, want: 85},
		{start: 65, cycles: 30, want: 100},
		{start: 99, cycles: 1, want: 100},
		{start: 100, cycles: 5, want: 100},
	}

	for _, tc := range cases {
		score := tc.start
		for i := 0; i < tc.cycles; i++ {
			score = RaiseAffection(score, AffectionStep)
		}
		if score != tc.want {
			t.Fatalf("start=%d cycles=%d: got %d want %d", tc.start, tc.cycles, score, tc.want)
		}
	}
}

func TestNewStateDefaultsUnknownMood(t *testing.T) {
	s := NewState(Turn{ID: "1", Mood: "sleepy"}, 150)
	if s.Mood != Happy {
		t.Fatalf("expected happy fallback, got %s", s.Mood)
	}
	if s.Affection != MaxAffection {
		t.Fatalf("expected clamp to %d, got %d", MaxAffection, s.Affection)
	}
	if s.Hearts() != 5 {
		t.Fatalf("expected 5 hearts, got %d", s.Hearts())
	}
}

func TestCloneCopiesImageData(t *testing.T) {
	s := seedState()
	s = Apply(s, ImageAdded{Image: Image{Ref: "a", Data: []byte{1, 2}}})
	c := s.Clone()
	c.Gallery[0].Data[0] = 9

	if s.Gallery[0].Data[0] != 1 {
		t.Fatal("clone shares image bytes with original")
	}
}

func TestParseMood(t *testing.T) {
	if m, ok := ParseMood(" SHY "); !ok || m != Shy {
		t.Fatalf("ParseMood(SHY) = %s,%v", m, ok)
	}
	if _, ok := ParseMood("sleepy"); ok {
		t.Fatal("expected sleepy to be rejected")
	}
}

func TestVoicePromptRoundTrip(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range Moods {
		style := m.VoiceStyle()
		if style == "" || seen[style] {
			t.Fatalf("mood %s has empty or duplicate style %q", m, style)
		}
		seen[style] = true

		prompt := VoicePrompt(m, "Hiii baby")
		got, text, ok := SplitVoicePrompt(prompt)
		if !ok || got != m || text != "Hiii baby" {
			t.Fatalf("SplitVoicePrompt(%q) = %s, %q, %v", prompt, got, text, ok)
		}
	}

	if VoicePrompt(Sad, "x") != "(soft and slow, sad voice): x" {
		t.Fatalf("unexpected sad prefix")
	}
	if _, text, ok := SplitVoicePrompt("plain"); ok || text != "plain" {
		t.Fatalf("plain prompt should not split")
	}
}

func TestParseFailurePolicy(t *testing.T) {
	cases := map[string]FailurePolicy{
		"":                   PolicySilent,
		"silent":             PolicySilent,
		" Inject-Error-Turn": PolicyInjectErrorTurn,
		"retry-once":         PolicyRetryOnce,
	}
	for raw, want := range cases {
		got, err := ParseFailurePolicy(raw)
		if err != nil || got != want {
			t.Fatalf("ParseFailurePolicy(%q) = %s, %v", raw, got, err)
		}
	}
	if _, err := ParseFailurePolicy("explode"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

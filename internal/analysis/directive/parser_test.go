package directive

import "testing"

func TestParseWithoutDirectivesTrimsOnly(t *testing.T) {
	inputs := []string{"", "   ", "hello jaan", "  listen na... ek baat bolun?  ", "[MOOD happy]", "[MOOD: happy", "[SEND_IMAGE:]"}

	for _, in := range inputs {
		got := Parse(in)
		if got.HasMood() || got.HasImage() {
			t.Fatalf("Parse(%q) found directives: %+v", in, got.Directives)
		}
	}

	if got := Parse("  listen na...  ").Clean; got != "listen na..." {
		t.Fatalf("clean = %q", got)
	}
}

func TestParseExtractsBothDirectives(t *testing.T) {
	got := Parse("Hiii [MOOD: Happy] [SEND_IMAGE: beach sunset]")

	if got.Clean != "Hiii" {
		t.Fatalf("clean = %q, want %q", got.Clean, "Hiii")
	}
	if !got.HasMood() || *got.Directives.Mood != "happy" {
		t.Fatalf("mood = %v, want happy", got.Directives.Mood)
	}
	if !got.HasImage() || *got.Directives.Image != "beach sunset" {
		t.Fatalf("image = %v, want beach sunset", got.Directives.Image)
	}
}

func TestParseLeavesMalformedTokens(t *testing.T) {
	got := Parse("[MOOD happy]")
	if got.Clean != "[MOOD happy]" {
		t.Fatalf("clean = %q, want token untouched", got.Clean)
	}
	if got.HasMood() {
		t.Fatal("malformed token must not yield a mood")
	}
}

func TestParseHonoursFirstMoodOnly(t *testing.T) {
	got := Parse("[MOOD: sad][MOOD: happy]")
	if *got.Directives.Mood != "sad" {
		t.Fatalf("mood = %s, want sad", *got.Directives.Mood)
	}
	if got.Clean != "[MOOD: happy]" {
		t.Fatalf("clean = %q, want second token kept", got.Clean)
	}
}

func TestParseKeywordCaseInsensitive(t *testing.T) {
	got := Parse("ok [mood: EXCITED]")
	if !got.HasMood() || *got.Directives.Mood != "excited" {
		t.Fatalf("mood = %v, want excited", got.Directives.Mood)
	}
	if got.Clean != "ok" {
		t.Fatalf("clean = %q", got.Clean)
	}
}

func TestParseReturnsUnknownMoodVerbatim(t *testing.T) {
	got := Parse("hmm [MOOD: Sleepy]")
	if !got.HasMood() || *got.Directives.Mood != "sleepy" {
		t.Fatalf("mood = %v, want sleepy", got.Directives.Mood)
	}
}

func TestParseImageBeforeMoodKeepsSurroundingText(t *testing.T) {
	got := Parse("Ruko [SEND_IMAGE: sitting by window ] zara [MOOD: shy] na")
	if got.Clean != "Ruko  zara  na" {
		t.Fatalf("clean = %q", got.Clean)
	}
	if *got.Directives.Image != "sitting by window " {
		t.Fatalf("image = %q, want verbatim description", *got.Directives.Image)
	}
	if *got.Directives.Mood != "shy" {
		t.Fatalf("mood = %s", *got.Directives.Mood)
	}
}

func TestParseScenarioReply(t *testing.T) {
	got := Parse("Abhi leti hoon! [MOOD: shy] [SEND_IMAGE: sitting by window]")
	if got.Clean != "Abhi leti hoon!" {
		t.Fatalf("clean = %q", got.Clean)
	}
	if *got.Directives.Mood != "shy" || *got.Directives.Image != "sitting by window" {
		t.Fatalf("unexpected directives: mood=%s image=%s", *got.Directives.Mood, *got.Directives.Image)
	}
}

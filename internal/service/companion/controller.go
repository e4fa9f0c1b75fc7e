package companion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/directive"
	"github.com/zhouzirui/z-companion/backend/internal/analysis/mood"
	"github.com/zhouzirui/z-companion/backend/internal/audio"
	model "github.com/zhouzirui/z-companion/backend/internal/model/companion"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
	"github.com/zhouzirui/z-companion/backend/internal/service/ai"
	"github.com/zhouzirui/z-companion/backend/internal/service/gateway"
)

const (
	// Temperature used for every reply request.
	Temperature = 1.0
	// SelfieAspectRatio is requested for every generated image.
	SelfieAspectRatio = "1:1"
	// MaxSpokenLength is the exclusive upper bound, in characters, for voicing a reply.
	MaxSpokenLength = 400
)

var (
	ErrEmptyInput     = errors.New("message is empty")
	ErrBusy           = errors.New("a reply is already in progress")
	ErrClosed         = errors.New("session is closed")
	ErrTurnNotFound   = errors.New("turn not found")
	ErrNothingToSpeak = errors.New("turn has no companion text to speak")
	ErrNoAudio        = errors.New("speech synthesis produced no audio")
)

// Phase is where the controller is inside a cycle.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseAwaitingReply  Phase = "awaiting_reply"
	PhaseAwaitingImage  Phase = "awaiting_image"
	PhaseAwaitingSpeech Phase = "awaiting_speech"
)

// Recorder persists transcript turns and gallery images outside the controller.
type Recorder interface {
	RecordTurn(ctx context.Context, sessionID string, turn model.Turn) error
	RecordImage(ctx context.Context, sessionID string, img model.Image) error
}

// FramingFunc builds the system framing sent with every completion.
type FramingFunc func(p persona.Persona, userName string, affection int) string

// Options configures a Controller. Gateway is required.
type Options struct {
	SessionID     string
	Persona       persona.Persona
	UserName      string
	VoiceEnabled  bool
	FailurePolicy model.FailurePolicy
	Gateway       gateway.Gateway
	Player        audio.Player
	Publisher     Publisher
	Recorder      Recorder
	Framing       FramingFunc
	Now           func() time.Time
	NewID         func() string
}

// Outcome summarises one finished cycle.
type Outcome struct {
	UserTurn  model.Turn   `json:"userTurn"`
	Reply     *model.Turn  `json:"reply,omitempty"`
	Image     *model.Image `json:"image,omitempty"`
	Mood      model.Mood   `json:"mood"`
	Affection int          `json:"affection"`
	Spoken    bool         `json:"spoken"`
	Failed    bool         `json:"failed"`
}

// Snapshot is a deep copy of a session for presentation.
type Snapshot struct {
	SessionID    string      `json:"sessionId"`
	PersonaID    string      `json:"personaId"`
	UserName     string      `json:"userName"`
	Phase        Phase       `json:"phase"`
	VoiceEnabled bool        `json:"voiceEnabled"`
	Hearts       int         `json:"hearts"`
	State        model.State `json:"state"`
}

// Controller drives user-turn to companion-turn cycles for one session and
// exclusively owns its state. At most one cycle runs at a time.
type Controller struct {
	id        string
	persona   persona.Persona
	userName  string
	policy    model.FailurePolicy
	gw        gateway.Gateway
	player    audio.Player
	publisher Publisher
	recorder  Recorder
	framing   FramingFunc
	now       func() time.Time
	newID     func() string

	mu           sync.Mutex
	state        model.State
	phase        Phase
	voiceEnabled bool
	closed       bool
}

// NewController seeds a session with the persona's opening line.
func NewController(opts Options) (*Controller, error) {
	if opts.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}

	c := &Controller{
		id:           opts.SessionID,
		persona:      opts.Persona,
		userName:     strings.TrimSpace(opts.UserName),
		policy:       opts.FailurePolicy,
		gw:           opts.Gateway,
		player:       opts.Player,
		publisher:    opts.Publisher,
		recorder:     opts.Recorder,
		framing:      opts.Framing,
		now:          opts.Now,
		newID:        opts.NewID,
		phase:        PhaseIdle,
		voiceEnabled: opts.VoiceEnabled,
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	if c.userName == "" {
		c.userName = "User"
	}
	if c.policy == "" {
		c.policy = model.PolicySilent
	}
	if c.player == nil {
		c.player = audio.Discard
	}
	if c.publisher == nil {
		c.publisher = nopPublisher{}
	}
	if c.framing == nil {
		c.framing = ai.BuildSystemFraming
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}

	opening := model.Turn{
		ID:        c.newID(),
		Author:    model.AuthorCompanion,
		Text:      opts.Persona.OpeningLine,
		CreatedAt: c.now(),
		Kind:      model.KindText,
		Mood:      opts.Persona.OpeningMood,
	}
	affection := opts.Persona.Affection
	if affection == 0 {
		affection = model.DefaultAffection
	}
	c.state = model.NewState(opening, affection)
	c.record(context.Background(), opening, nil)
	return c, nil
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// Persona returns the persona the session was created from.
func (c *Controller) Persona() persona.Persona { return c.persona }

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		SessionID:    c.id,
		PersonaID:    c.persona.ID,
		UserName:     c.userName,
		Phase:        c.phase,
		VoiceEnabled: c.voiceEnabled,
		Hearts:       c.state.Hearts(),
		State:        c.state.Clone(),
	}
}

// Image returns a gallery image by reference.
func (c *Controller) Image(ref string) (model.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, ok := c.state.FindImage(ref)
	if ok {
		img.Data = append([]byte(nil), img.Data...)
	}
	return img, ok
}

// SetVoiceEnabled toggles automatic voice notes for later replies.
func (c *Controller) SetVoiceEnabled(enabled bool) {
	c.mu.Lock()
	c.voiceEnabled = enabled
	c.mu.Unlock()
	log.Printf("[companion] session=%s voice enabled=%t", c.id, enabled)
}

// Close tears the session down; later cycles are rejected.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// RequestSelfie submits the persona's canned selfie request.
func (c *Controller) RequestSelfie(ctx context.Context) (Outcome, error) {
	text := c.persona.SelfieRequest
	if strings.TrimSpace(text) == "" {
		text = "Ek cute si selfie bhejo na? 📸"
	}
	return c.Submit(ctx, text)
}

// Submit runs one full cycle for the user's text. Rejected submissions
// (empty, busy, closed) leave the session untouched. A failed completion is
// not an error: it is reported through Outcome.Failed according to the
// failure policy.
func (c *Controller) Submit(ctx context.Context, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, ErrEmptyInput
	}

	c.mu.Lock()
	if err := c.beginLocked(PhaseAwaitingReply); err != nil {
		c.mu.Unlock()
		return Outcome{}, err
	}
	userTurn := model.Turn{
		ID:        c.newID(),
		Author:    model.AuthorUser,
		Text:      text,
		CreatedAt: c.now(),
		Kind:      model.KindText,
	}
	c.applyLocked(model.TurnAppended{Turn: userTurn})
	exchanges := toExchanges(c.state.Transcript)
	framing := c.framing(c.persona, c.userName, c.state.Affection)
	c.mu.Unlock()

	// The cycle outlives the caller: a dropped client must not abort it midway.
	ctx = context.WithoutCancel(ctx)
	c.record(ctx, userTurn, nil)
	defer c.setPhase(PhaseIdle)

	outcome := Outcome{UserTurn: userTurn}

	raw, err := c.complete(ctx, exchanges, framing)
	if err != nil {
		return c.handlePrimaryFailure(ctx, outcome, err), nil
	}

	parsed := directive.Parse(raw)
	if parsed.HasMood() {
		c.applyMoodDirective(*parsed.Directives.Mood)
	}

	var img *model.Image
	if parsed.HasImage() {
		c.setPhase(PhaseAwaitingImage)
		img = c.generateSelfie(ctx, *parsed.Directives.Image)
	}

	c.mu.Lock()
	reply := model.Turn{
		ID:        c.newID(),
		Author:    model.AuthorCompanion,
		Text:      parsed.Clean,
		CreatedAt: c.now(),
		Kind:      model.KindText,
		Mood:      c.state.Mood,
	}
	if img != nil {
		reply.Kind = model.KindImage
		reply.MediaRef = img.Ref
	}
	c.applyLocked(model.TurnAppended{Turn: reply})
	c.applyLocked(model.AffectionChanged{Affection: model.RaiseAffection(c.state.Affection, model.AffectionStep)})
	currentMood := c.state.Mood
	affection := c.state.Affection
	speak := c.voiceEnabled && reply.Text != "" && utf8.RuneCountInString(reply.Text) < MaxSpokenLength
	c.mu.Unlock()

	c.record(ctx, reply, nil)

	outcome.Reply = &reply
	outcome.Image = img
	outcome.Mood = currentMood
	outcome.Affection = affection

	if speak {
		c.setPhase(PhaseAwaitingSpeech)
		if err := c.speak(ctx, currentMood, reply.Text); err != nil {
			log.Printf("[companion] session=%s voice note skipped: %v", c.id, err)
		} else {
			outcome.Spoken = true
		}
	}

	log.Printf("[companion] session=%s cycle done, mood=%s affection=%d image=%t spoken=%t",
		c.id, currentMood, affection, img != nil, outcome.Spoken)
	return outcome, nil
}

// ReplayVoice speaks an existing companion turn again with its stored mood.
// The transcript is not changed.
func (c *Controller) ReplayVoice(ctx context.Context, turnID string) error {
	c.mu.Lock()
	turn, ok := c.state.FindTurn(turnID)
	if !ok {
		c.mu.Unlock()
		return ErrTurnNotFound
	}
	if turn.Author != model.AuthorCompanion || strings.TrimSpace(turn.Text) == "" {
		c.mu.Unlock()
		return ErrNothingToSpeak
	}
	if err := c.beginLocked(PhaseAwaitingSpeech); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	defer c.setPhase(PhaseIdle)

	m := turn.Mood
	if !m.Valid() {
		m = model.Happy
	}
	return c.speak(context.WithoutCancel(ctx), m, turn.Text)
}

// Poke plays the persona's poke line in an excited voice without touching the transcript.
func (c *Controller) Poke(ctx context.Context) error {
	line := c.persona.PokeLine
	if strings.TrimSpace(line) == "" {
		return ErrNothingToSpeak
	}

	c.mu.Lock()
	if err := c.beginLocked(PhaseAwaitingSpeech); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	defer c.setPhase(PhaseIdle)

	return c.speak(context.WithoutCancel(ctx), model.Excited, line)
}

// beginLocked moves an idle controller into phase. Callers hold c.mu.
func (c *Controller) beginLocked(phase Phase) error {
	if c.closed {
		return ErrClosed
	}
	if c.phase != PhaseIdle {
		return ErrBusy
	}
	c.phase = phase
	c.notify(EventPhaseChanged, PhasePayload{Phase: phase})
	return nil
}

func (c *Controller) setPhase(phase Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == phase {
		return
	}
	c.phase = phase
	c.notify(EventPhaseChanged, PhasePayload{Phase: phase})
}

// applyLocked runs ev through the pure transition and publishes it. Callers hold c.mu.
func (c *Controller) applyLocked(ev model.Event) {
	c.state = model.Apply(c.state, ev)
	c.notify(ev.Type(), ev)
}

func (c *Controller) notify(typ model.EventType, payload any) {
	c.publisher.Publish(Notification{Type: typ, SessionID: c.id, At: c.now(), Payload: payload})
}

func (c *Controller) complete(ctx context.Context, exchanges []gateway.Exchange, framing string) (string, error) {
	reply, err := c.gw.CompleteText(ctx, exchanges, framing)
	if err == nil || c.policy != model.PolicyRetryOnce {
		return reply, err
	}
	log.Printf("[companion] session=%s completion failed, retrying once: %v", c.id, err)
	return c.gw.CompleteText(ctx, exchanges, framing)
}

func (c *Controller) handlePrimaryFailure(ctx context.Context, outcome Outcome, err error) Outcome {
	log.Printf("[companion] session=%s completion failed (policy=%s): %v", c.id, c.policy, err)
	outcome.Failed = true

	c.mu.Lock()
	if c.policy != model.PolicyInjectErrorTurn {
		outcome.Mood = c.state.Mood
		outcome.Affection = c.state.Affection
		c.mu.Unlock()
		return outcome
	}

	line := c.persona.ApologyLine
	if strings.TrimSpace(line) == "" {
		line = "Something went wrong in my head... give me a second, love 🥺"
	}
	if c.state.Mood != model.Sad {
		c.applyLocked(model.MoodChanged{Mood: model.Sad})
	}
	apology := model.Turn{
		ID:        c.newID(),
		Author:    model.AuthorCompanion,
		Text:      line,
		CreatedAt: c.now(),
		Kind:      model.KindText,
		Mood:      model.Sad,
	}
	c.applyLocked(model.TurnAppended{Turn: apology})
	outcome.Reply = &apology
	outcome.Mood = c.state.Mood
	outcome.Affection = c.state.Affection
	c.mu.Unlock()

	c.record(ctx, apology, nil)
	return outcome
}

func (c *Controller) applyMoodDirective(raw string) {
	next, ok := mood.Normalize(raw)
	if !ok {
		log.Printf("[companion] session=%s ignoring unknown mood %q", c.id, raw)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mood != next {
		c.applyLocked(model.MoodChanged{Mood: next})
	}
}

func (c *Controller) generateSelfie(ctx context.Context, scene string) *model.Image {
	prompt := scene
	if tmpl := c.persona.SelfieTemplate; strings.Contains(tmpl, "%s") {
		prompt = fmt.Sprintf(tmpl, scene)
	}

	data, err := c.gw.GenerateImage(ctx, prompt, SelfieAspectRatio)
	if err != nil || len(data) == 0 {
		log.Printf("[companion] session=%s selfie dropped: %v", c.id, err)
		return nil
	}

	img := model.Image{
		Ref:       c.newID(),
		MIMEType:  http.DetectContentType(data),
		Prompt:    scene,
		Data:      data,
		CreatedAt: c.now(),
	}

	c.mu.Lock()
	c.applyLocked(model.ImageAdded{Image: img})
	c.mu.Unlock()

	c.record(ctx, model.Turn{}, &img)
	return &img
}

func (c *Controller) speak(ctx context.Context, m model.Mood, text string) error {
	pcm, err := c.gw.SynthesizeSpeech(ctx, model.VoicePrompt(m, text), c.persona.VoiceID)
	if err != nil {
		return err
	}
	clip := audio.DecodePCM16(pcm)
	if len(clip.Samples) == 0 {
		return ErrNoAudio
	}
	if err := c.player.Play(ctx, c.id, clip); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}
	return nil
}

// record forwards a turn or image to the recorder. Failures are logged only.
func (c *Controller) record(ctx context.Context, turn model.Turn, img *model.Image) {
	if c.recorder == nil {
		return
	}
	var err error
	if img != nil {
		err = c.recorder.RecordImage(ctx, c.id, *img)
	} else {
		err = c.recorder.RecordTurn(ctx, c.id, turn)
	}
	if err != nil {
		log.Printf("[companion] session=%s archive write failed: %v", c.id, err)
	}
}

func toExchanges(transcript []model.Turn) []gateway.Exchange {
	out := make([]gateway.Exchange, 0, len(transcript))
	for _, t := range transcript {
		role := gateway.RoleModel
		if t.Author == model.AuthorUser {
			role = gateway.RoleUser
		}
		out = append(out, gateway.Exchange{Role: role, Text: t.Text})
	}
	return out
}

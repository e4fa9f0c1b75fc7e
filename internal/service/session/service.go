package session

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-companion/backend/internal/audio"
	model "github.com/zhouzirui/z-companion/backend/internal/model/companion"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
	"github.com/zhouzirui/z-companion/backend/internal/service/companion"
	"github.com/zhouzirui/z-companion/backend/internal/service/gateway"
)

var (
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")
)

// Defaults apply to sessions created without explicit values.
type Defaults struct {
	PersonaID     string
	UserName      string
	VoiceEnabled  bool
	FailurePolicy model.FailurePolicy
}

// CreateRequest describes a new conversation.
type CreateRequest struct {
	PersonaID string `json:"personaId"`
	UserName  string `json:"userName"`
}

// Service keeps one companion controller per live conversation.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*companion.Controller

	personas persona.Store
	gw       gateway.Gateway
	hub      *Hub
	recorder companion.Recorder
	defaults Defaults
}

// NewService wires the registry. recorder may be nil.
func NewService(personas persona.Store, gw gateway.Gateway, hub *Hub, recorder companion.Recorder, defaults Defaults) *Service {
	if hub == nil {
		hub = NewHub(0)
	}
	return &Service{
		sessions: make(map[string]*companion.Controller),
		personas: personas,
		gw:       gw,
		hub:      hub,
		recorder: recorder,
		defaults: defaults,
	}
}

// Hub exposes the notification hub for streaming handlers.
func (s *Service) Hub() *Hub { return s.hub }

// Create starts a conversation with the requested persona.
func (s *Service) Create(_ context.Context, req CreateRequest) (*companion.Controller, error) {
	personaID := strings.TrimSpace(req.PersonaID)
	if personaID == "" {
		personaID = s.defaults.PersonaID
	}
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return nil, ErrPersonaNotFound
	}

	userName := strings.TrimSpace(req.UserName)
	if userName == "" {
		userName = s.defaults.UserName
	}

	var player audio.Player = s.hub
	ctrl, err := companion.NewController(companion.Options{
		SessionID:     uuid.NewString(),
		Persona:       p,
		UserName:      userName,
		VoiceEnabled:  s.defaults.VoiceEnabled,
		FailurePolicy: s.defaults.FailurePolicy,
		Gateway:       s.gw,
		Player:        player,
		Publisher:     s.hub,
		Recorder:      s.recorder,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[ctrl.ID()] = ctrl
	s.mu.Unlock()

	log.Printf("[session] created session=%s persona=%s", ctrl.ID(), p.ID)
	return ctrl, nil
}

// Get returns the controller of a live session.
func (s *Service) Get(id string) (*companion.Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctrl, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ctrl, nil
}

// Close tears a session down and disconnects its listeners.
func (s *Service) Close(id string) error {
	s.mu.Lock()
	ctrl, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	ctrl.Close()
	s.hub.CloseSession(id)
	log.Printf("[session] closed session=%s", id)
	return nil
}

// List returns snapshots of all live sessions ordered by id.
func (s *Service) List() []companion.Snapshot {
	s.mu.RLock()
	ctrls := make([]*companion.Controller, 0, len(s.sessions))
	for _, ctrl := range s.sessions {
		ctrls = append(ctrls, ctrl)
	}
	s.mu.RUnlock()

	out := make([]companion.Snapshot, 0, len(ctrls))
	for _, ctrl := range ctrls {
		out = append(out, ctrl.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

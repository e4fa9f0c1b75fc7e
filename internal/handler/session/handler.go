package session

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	model "github.com/zhouzirui/z-companion/backend/internal/model/companion"
	"github.com/zhouzirui/z-companion/backend/internal/service/companion"
	sessionService "github.com/zhouzirui/z-companion/backend/internal/service/session"
	"github.com/zhouzirui/z-companion/backend/pkg/utils"
)

// HistoryReader reads archived conversations back.
type HistoryReader interface {
	Turns(ctx context.Context, sessionID string) ([]model.Turn, error)
	Images(ctx context.Context, sessionID string) ([]model.Image, error)
}

// Handler 会话服务的HTTP处理器
type Handler struct {
	sessions *sessionService.Service
	history  HistoryReader
}

// New 创建会话处理器，history 为 nil 时历史接口返回 404
func New(sessions *sessionService.Service, history HistoryReader) *Handler {
	return &Handler{
		sessions: sessions,
		history:  history,
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleListSessions)
	r.Post("/sessions", h.handleCreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleCloseSession)
		r.Post("/messages", h.handleSubmit)
		r.Post("/selfie", h.handleSelfie)
		r.Put("/voice", h.handleSetVoice)
		r.Post("/turns/{turnID}/voice", h.handleReplayVoice)
		r.Post("/poke", h.handlePoke)
		r.Get("/gallery", h.handleGallery)
		r.Get("/gallery/{index}", h.handleGalleryImage)
		r.Get("/history", h.handleHistory)
	})
}

// GalleryItem describes one gallery image without its bytes.
type GalleryItem struct {
	Index     int    `json:"index"`
	Ref       string `json:"ref"`
	MIMEType  string `json:"mimeType"`
	Prompt    string `json:"prompt"`
	CreatedAt string `json:"createdAt"`
	Avatar    bool   `json:"avatar"`
}

// HistoryResponse is the archived view of a conversation.
type HistoryResponse struct {
	SessionID string        `json:"sessionId"`
	Turns     []model.Turn  `json:"turns"`
	Images    []model.Image `json:"images"`
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.sessions.List())
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload sessionService.CreateRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctrl, err := h.sessions.Create(r.Context(), payload)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, ctrl.Snapshot())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmit 发送用户消息并等待伴侣回复
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := ctrl.Submit(r.Context(), payload.Text)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleSelfie(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	outcome, err := ctrl.RequestSelfie(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleSetVoice(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	var payload struct {
		Enabled *bool `json:"enabled"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil || payload.Enabled == nil {
		utils.RespondError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	ctrl.SetVoiceEnabled(*payload.Enabled)
	utils.RespondJSON(w, http.StatusOK, ctrl.Snapshot())
}

// handleReplayVoice 重新播放某条伴侣消息，音频通过事件流下发
func (h *Handler) handleReplayVoice(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	if err := ctrl.ReplayVoice(r.Context(), chi.URLParam(r, "turnID")); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "playing"})
}

func (h *Handler) handlePoke(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	if err := ctrl.Poke(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "playing"})
}

func (h *Handler) handleGallery(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	snap := ctrl.Snapshot()
	items := make([]GalleryItem, 0, len(snap.State.Gallery))
	for i, img := range snap.State.Gallery {
		items = append(items, GalleryItem{
			Index:     i,
			Ref:       img.Ref,
			MIMEType:  img.MIMEType,
			Prompt:    img.Prompt,
			CreatedAt: img.CreatedAt.UTC().Format(http.TimeFormat),
			Avatar:    img.Ref == snap.State.AvatarRef,
		})
	}
	utils.RespondJSON(w, http.StatusOK, items)
}

// handleGalleryImage 返回图片原始字节；key 为序号（0 为最新）或图片 ref
func (h *Handler) handleGalleryImage(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	key := chi.URLParam(r, "index")
	index, err := strconv.Atoi(key)
	if err != nil {
		img, found := ctrl.Image(key)
		if !found {
			utils.RespondError(w, http.StatusNotFound, "image not found")
			return
		}
		utils.RespondBytes(w, img.MIMEType, img.Data)
		return
	}

	gallery := ctrl.Snapshot().State.Gallery
	if index < 0 || index >= len(gallery) {
		utils.RespondError(w, http.StatusNotFound, "image not found")
		return
	}
	img := gallery[index]
	utils.RespondBytes(w, img.MIMEType, img.Data)
}

// handleHistory 读取归档的对话，归档关闭时返回 404
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		utils.RespondError(w, http.StatusNotFound, "archive is disabled")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	turns, err := h.history.Turns(r.Context(), sessionID)
	if err != nil {
		log.Printf("[history] session=%s load turns: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	images, err := h.history.Images(r.Context(), sessionID)
	if err != nil {
		log.Printf("[history] session=%s load images: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if len(turns) == 0 && len(images) == 0 {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, HistoryResponse{
		SessionID: sessionID,
		Turns:     turns,
		Images:    images,
	})
}

func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*companion.Controller, bool) {
	ctrl, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	return ctrl, true
}

// respondServiceError 将业务错误映射为HTTP状态码
func respondServiceError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, companion.ErrEmptyInput),
		errors.Is(err, sessionService.ErrPersonaNotFound):
		status = http.StatusBadRequest
	case errors.Is(err, sessionService.ErrSessionNotFound),
		errors.Is(err, companion.ErrTurnNotFound):
		status = http.StatusNotFound
	case errors.Is(err, companion.ErrBusy),
		errors.Is(err, sessionService.ErrNoListener):
		status = http.StatusConflict
	case errors.Is(err, companion.ErrClosed):
		status = http.StatusGone
	case errors.Is(err, companion.ErrNothingToSpeak):
		status = http.StatusUnprocessableEntity
	default:
		log.Printf("[session] request failed: %v", err)
		status = http.StatusBadGateway
	}
	utils.RespondError(w, status, err.Error())
}

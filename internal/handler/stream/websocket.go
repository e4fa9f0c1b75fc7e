package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-companion/backend/internal/service/companion"
	"github.com/zhouzirui/z-companion/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// inboundMessage 客户端指令
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TextMessage 用户文本消息
type TextMessage struct {
	Text string `json:"text"`
}

// VoiceMessage 语音开关
type VoiceMessage struct {
	Enabled bool `json:"enabled"`
}

// ReplayMessage 重播某条消息的语音
type ReplayMessage struct {
	TurnID string `json:"turnId"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接：下行推送会话事件，上行接收指令
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctrl, err := h.sessions.Get(sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := h.sessions.Hub().Subscribe(sessionID)
	defer unsubscribe()

	log.Printf("[ws] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan outgoingMessage, 8)
	go h.readLoop(ctx, cancel, conn, ctrl, out)

	if err := writeMessage(conn, outgoingMessage{Type: "connected", SessionID: sessionID, Data: ctrl.Snapshot()}); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-events:
			if !forward(conn, sessionID, n, ok) {
				return
			}
		case msg := <-out:
			// 先推送已排队的事件，保证结果晚于它描述的状态变化
			for pending := len(events); pending > 0; pending-- {
				n, ok := <-events
				if !forward(conn, sessionID, n, ok) {
					return
				}
			}
			msg.SessionID = sessionID
			if err := writeMessage(conn, msg); err != nil {
				log.Printf("[ws] write result failed: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// forward writes one notification; false means the connection should end.
func forward(conn *websocket.Conn, sessionID string, n companion.Notification, ok bool) bool {
	if !ok {
		_ = writeMessage(conn, outgoingMessage{Type: "session.closed", SessionID: sessionID})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
			time.Now().Add(writeTimeout))
		return false
	}
	msg := outgoingMessage{Type: string(n.Type), SessionID: sessionID, Data: n.Payload, Timestamp: n.At.Unix()}
	if err := writeMessage(conn, msg); err != nil {
		log.Printf("[ws] write event failed: %v", err)
		return false
	}
	return true
}

// readLoop 读取客户端指令；长耗时指令在独立 goroutine 中执行，结果经 out 交给写循环
func (h *Handler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, ctrl *companion.Controller, out chan<- outgoingMessage) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		go h.handleMessage(ctx, ctrl, msg, out)
	}
}

func (h *Handler) handleMessage(ctx context.Context, ctrl *companion.Controller, msg inboundMessage, out chan<- outgoingMessage) {
	var (
		result interface{}
		err    error
	)

	switch msg.Type {
	case "message":
		var payload TextMessage
		if err = decodeData(msg.Data, &payload); err == nil {
			result, err = ctrl.Submit(ctx, payload.Text)
		}
	case "selfie":
		result, err = ctrl.RequestSelfie(ctx)
	case "voice":
		var payload VoiceMessage
		if err = decodeData(msg.Data, &payload); err == nil {
			ctrl.SetVoiceEnabled(payload.Enabled)
			result = map[string]bool{"voiceEnabled": payload.Enabled}
		}
	case "replay":
		var payload ReplayMessage
		if err = decodeData(msg.Data, &payload); err == nil {
			err = ctrl.ReplayVoice(ctx, payload.TurnID)
			result = map[string]string{"status": "played"}
		}
	case "poke":
		err = ctrl.Poke(ctx)
		result = map[string]string{"status": "played"}
	case "ping":
		result = map[string]string{"status": "pong"}
	default:
		err = errors.New("unsupported message type: " + msg.Type)
	}

	reply := outgoingMessage{Type: "result", Data: map[string]interface{}{"request": msg.Type, "result": result}, Timestamp: time.Now().Unix()}
	if err != nil {
		reply = outgoingMessage{Type: "error", Data: map[string]string{"request": msg.Type, "message": err.Error()}, Timestamp: time.Now().Unix()}
	}

	select {
	case out <- reply:
	case <-ctx.Done():
	}
}

func decodeData(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return errors.New("data is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.New("invalid payload")
	}
	return nil
}

func writeMessage(conn *websocket.Conn, msg outgoingMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

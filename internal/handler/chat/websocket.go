package chat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	turnService "github.com/zhouzirui/z-shelter/backend/internal/service/turn"
)

const (
	wsPingInterval = 54 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var (
	wsReadTimeout = 60 * time.Second
	// wsMaxAudioBytes 单轮累计音频上限，与 /chat 上传上限一致
	wsMaxAudioBytes = maxUploadBytes
)

// wsReadLimit 单帧上限：base64 后的整段音频加信封
func wsReadLimit(maxAudio int) int64 {
	return int64(base64.StdEncoding.EncodedLen(maxAudio)) + 64<<10
}

// WebSocketHandler 通过 WebSocket 执行对话轮次，每条 text 或最终 audio 消息对应一轮
type WebSocketHandler struct {
	chat     *Handler
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chat *Handler) *WebSocketHandler {
	return &WebSocketHandler{
		chat: chat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// AudioMessage 音频分片，IsFinal 时整段送入一轮对话
type AudioMessage struct {
	AudioData []byte `json:"audioData"`
	Format    string `json:"format"`
	IsFinal   bool   `json:"isFinal"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type connectionState struct {
	sessionID   string
	audioFormat string
	buffer      bytes.Buffer
	maxAudio    int
	// overflow 本段音频已超限，丢弃后续分片直到 isFinal
	overflow bool
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.chat.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	readTimeout := wsReadTimeout
	state := &connectionState{sessionID: sessionID, maxAudio: wsMaxAudioBytes}

	conn.SetReadLimit(wsReadLimit(state.maxAudio))
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.send(conn, "connected", sessionID, map[string]any{"sessionId": sessionID})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var msg inboundMessage
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			h.sendError(conn, http.StatusBadRequest, "invalid message")
			continue
		}
		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, http.StatusBadRequest, "session mismatch")
			continue
		}

		h.handleMessage(ctx, conn, state, &msg)
		// 一轮可能超过读超时，轮次结束后重新计时
		conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		var text TextMessage
		if err := sonic.Unmarshal(msg.Data, &text); err != nil {
			h.sendError(conn, http.StatusBadRequest, "invalid text payload")
			return
		}
		h.runTurn(ctx, conn, state, turnService.Input{Text: text.Text})
	case "audio":
		var audio AudioMessage
		if err := sonic.Unmarshal(msg.Data, &audio); err != nil {
			h.sendError(conn, http.StatusBadRequest, "invalid audio payload")
			return
		}
		if !state.overflow && state.buffer.Len()+len(audio.AudioData) > state.maxAudio {
			log.Printf("[websocket] audio over limit session=%s bytes=%d", state.sessionID, state.buffer.Len()+len(audio.AudioData))
			state.buffer.Reset()
			state.overflow = true
			h.sendError(conn, http.StatusRequestEntityTooLarge, "audio too large")
		}
		if state.overflow {
			if audio.IsFinal {
				state.overflow = false
				state.audioFormat = ""
			}
			return
		}

		state.buffer.Write(audio.AudioData)
		if audio.Format != "" {
			state.audioFormat = audio.Format
		}
		if !audio.IsFinal {
			return
		}

		in := turnService.Input{
			Audio:       append([]byte(nil), state.buffer.Bytes()...),
			AudioFormat: state.audioFormat,
		}
		state.buffer.Reset()
		if in.AudioFormat == "" {
			in.AudioFormat = "wav"
		}
		log.Printf("[websocket] audio turn session=%s format=%s bytes=%d", state.sessionID, in.AudioFormat, len(in.Audio))
		h.runTurn(ctx, conn, state, in)
	default:
		h.sendError(conn, http.StatusBadRequest, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) runTurn(ctx context.Context, conn *websocket.Conn, state *connectionState, in turnService.Input) {
	result, err := h.chat.turns.RunTurn(ctx, state.sessionID, in)
	if err != nil {
		status, message := turnErrorStatus(err)
		h.sendError(conn, status, message)
		return
	}
	h.send(conn, "turn", state.sessionID, newChatResponse(result))
}

func (h *WebSocketHandler) send(conn *websocket.Conn, kind, sessionID string, data interface{}) {
	payload, err := sonic.Marshal(outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		log.Printf("[websocket] encode %s failed: %v", kind, err)
		return
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("[websocket] write %s failed: %v", kind, err)
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, status int, message string) {
	h.send(conn, "error", "", map[string]any{"status": status, "message": message})
}

// pingLoop 定期发送ping；WriteControl 可与数据帧写入并发
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-shelter/backend/internal/model/chat"
	"github.com/zhouzirui/z-shelter/backend/internal/model/persona"
	"github.com/zhouzirui/z-shelter/backend/internal/model/turn"
	chatService "github.com/zhouzirui/z-shelter/backend/internal/service/chat"
	turnService "github.com/zhouzirui/z-shelter/backend/internal/service/turn"
	"github.com/zhouzirui/z-shelter/backend/pkg/utils"
)

const maxUploadBytes = 32 << 20

// TurnRunner 执行一轮对话，由 service/turn.Orchestrator 实现
type TurnRunner interface {
	RunTurn(ctx context.Context, sessionID string, in turnService.Input) (*turn.Result, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc          *chatService.Service
	personaStore     persona.Store
	turns            TurnRunner
	defaultSessionID string
	ws               *WebSocketHandler
}

// New 创建聊天处理器。未携带 session_id 的请求落在 defaultSessionID 上。
func New(chatSvc *chatService.Service, personaStore persona.Store, turns TurnRunner, defaultSessionID string) *Handler {
	h := &Handler{
		chatSvc:          chatSvc,
		personaStore:     personaStore,
		turns:            turns,
		defaultSessionID: defaultSessionID,
	}
	h.ws = NewWebSocketHandler(h)
	return h
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}/history", h.handleHistory)
	r.Post("/chat", h.HandleChat)
	r.Get("/chat/ws/{sessionID}", h.ws.handleWebSocket)
}

// chatResponse /chat 的响应体，字段名与既有前端保持一致
type chatResponse struct {
	BotText             string         `json:"bot_text"`
	BotAudio            string         `json:"bot_audio,omitempty"`
	AudioFormat         string         `json:"audio_format,omitempty"`
	NoAudio             bool           `json:"no_audio,omitempty"`
	AudioMessage        string         `json:"audio_message,omitempty"`
	AudioText           string         `json:"audio_text,omitempty"`
	UserText            string         `json:"user_text,omitempty"`
	Outcome             turn.Outcome   `json:"outcome"`
	DatasetState        string         `json:"dataset_state,omitempty"`
	SessionID           string         `json:"session_id"`
	ConversationHistory []chat.Message `json:"conversation_history"`
}

func newChatResponse(result *turn.Result) chatResponse {
	resp := chatResponse{
		BotText:             result.DisplayText,
		UserText:            result.UserText,
		Outcome:             result.Outcome,
		DatasetState:        result.State,
		SessionID:           result.SessionID,
		ConversationHistory: result.History,
	}
	if result.HasAudio() {
		resp.BotAudio = base64.StdEncoding.EncodeToString(result.Audio)
		resp.AudioFormat = result.AudioFormat
		if result.SpeakText != result.DisplayText {
			resp.AudioText = result.SpeakText
		}
	} else {
		resp.NoAudio = true
		resp.AudioMessage = result.NoAudioReason
	}
	if resp.ConversationHistory == nil {
		resp.ConversationHistory = []chat.Message{}
	}
	return resp
}

// HandleChat 处理一轮对话：multipart 音频（file）或 JSON 文本（message）
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	sessionID, in, err := h.parseChatRequest(r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.turns.RunTurn(r.Context(), sessionID, in)
	if err != nil {
		status, message := turnErrorStatus(err)
		utils.RespondError(w, status, message)
		return
	}

	utils.RespondJSON(w, http.StatusOK, newChatResponse(result))
}

func (h *Handler) parseChatRequest(r *http.Request) (string, turnService.Input, error) {
	var in turnService.Input

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return "", in, errors.New("failed to parse multipart form")
		}

		file, header, err := r.FormFile("file")
		switch {
		case err == nil:
			defer file.Close()
			audio, readErr := io.ReadAll(io.LimitReader(file, maxUploadBytes))
			if readErr != nil {
				return "", in, errors.New("failed to read audio file")
			}
			in.Audio = audio
			in.AudioFormat = r.FormValue("format")
			if in.AudioFormat == "" {
				in.AudioFormat = inferAudioFormat(header.Filename)
			}
		case errors.Is(err, http.ErrMissingFile):
			in.Text = r.FormValue("message")
		default:
			return "", in, errors.New("invalid audio file")
		}
		return h.sessionOrDefault(r.FormValue("session_id")), in, nil
	}

	var payload struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		return "", in, errors.New("failed to read request body")
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := sonic.Unmarshal(body, &payload); err != nil {
			return "", in, errors.New("invalid request body")
		}
	}
	in.Text = payload.Message
	return h.sessionOrDefault(payload.SessionID), in, nil
}

func (h *Handler) sessionOrDefault(sessionID string) string {
	if id := strings.TrimSpace(sessionID); id != "" {
		return id
	}
	return h.defaultSessionID
}

// turnErrorStatus 把轮次错误映射为 HTTP 状态与对外文案，不透出上游细节
func turnErrorStatus(err error) (int, string) {
	var validation *turnService.ValidationError
	var external *turnService.ExternalServiceError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.As(err, &external):
		if external.Timeout() {
			return http.StatusGatewayTimeout, string(external.Which) + " service timed out"
		}
		return http.StatusBadGateway, string(external.Which) + " service unavailable"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request canceled"
	default:
		log.Printf("[chat] unexpected turn error: %v", err)
		return http.StatusInternalServerError, "internal error"
	}
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || sonic.Unmarshal(body, &payload) != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.PersonaID == "" {
		utils.RespondError(w, http.StatusBadRequest, "personaId is required")
		return
	}

	if _, ok := h.personaStore.FindByID(payload.PersonaID); !ok {
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.PersonaID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

// handleHistory 返回会话的完整消息历史
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	history, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"session_id":           sessionID,
		"conversation_history": history,
	})
}

// inferAudioFormat 从文件名推断音频格式
func inferAudioFormat(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".mp3", ".wav", ".webm", ".m4a", ".ogg", ".aac", ".pcm":
		return strings.TrimPrefix(ext, ".")
	default:
		return "mp3"
	}
}

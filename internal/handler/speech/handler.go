package speech

import (
	"context"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-shelter/backend/internal/model/chat"
	"github.com/zhouzirui/z-shelter/backend/internal/model/persona"
	"github.com/zhouzirui/z-shelter/backend/internal/model/speech"
	"github.com/zhouzirui/z-shelter/backend/pkg/utils"
)

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	TranscribeAudio(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error)
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// SessionLookup 按会话查找 persona，用于推断发音人
type SessionLookup interface {
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
}

// Handler 语音服务的HTTP处理器，直接调用识别/合成网关，不经过对话状态
type Handler struct {
	speechSvc    SpeechService
	sessions     SessionLookup
	personaStore persona.Store
}

// New 创建语音处理器。sessions/personaStore 可为 nil，此时不做发音人推断。
func New(speechSvc SpeechService, sessions SessionLookup, personaStore persona.Store) *Handler {
	return &Handler{
		speechSvc:    speechSvc,
		sessions:     sessions,
		personaStore: personaStore,
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/transcribe", h.handleTranscribe)
		speechRouter.Post("/transcribe/{sessionID}", h.handleTranscribe)
		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Post("/synthesize/{sessionID}", h.handleSynthesize)
		speechRouter.Get("/health", h.handleHealth)
	})
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		sessionID = r.FormValue("sessionId")
	}

	format := r.FormValue("format")
	if format == "" {
		format = inferAudioFormat(header.Filename)
	}

	resp, err := h.speechSvc.TranscribeAudio(r.Context(), &speech.ASRRequest{
		SessionID: sessionID,
		AudioData: file,
		Format:    format,
		Language:  r.FormValue("language"),
	})
	if err != nil {
		log.Printf("[speech] ASR error: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req speech.TTSRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || sonic.Unmarshal(body, &req) != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if sessionID := chi.URLParam(r, "sessionID"); sessionID != "" {
		req.SessionID = sessionID
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	if p, ok := h.personaForSession(r.Context(), req.SessionID); ok {
		if strings.TrimSpace(req.Voice) == "" {
			req.Voice = p.VoiceID
		}
		if req.Language == "" {
			req.Language = p.Locale
		}
	}

	resp, err := h.speechSvc.SynthesizeSpeech(r.Context(), &req)
	if err != nil {
		log.Printf("[speech] TTS error: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	if len(resp.AudioData) == 0 {
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis returned no audio")
		return
	}
	utils.RespondAudio(w, resp.Format, resp.AudioData)
}

func (h *Handler) personaForSession(ctx context.Context, sessionID string) (persona.Persona, bool) {
	sessionID = strings.TrimSpace(sessionID)
	if h.sessions == nil || h.personaStore == nil || sessionID == "" {
		return persona.Persona{}, false
	}

	session, err := h.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return persona.Persona{}, false
	}
	return h.personaStore.FindByID(session.PersonaID)
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "speech",
	})
}

// inferAudioFormat 从文件名推断音频格式
func inferAudioFormat(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".mp3", ".wav", ".webm", ".m4a", ".ogg", ".aac", ".pcm":
		return strings.TrimPrefix(ext, ".")
	default:
		return "wav"
	}
}

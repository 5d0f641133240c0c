package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhouzirui/z-shelter/backend/internal/handler/chat"
	"github.com/zhouzirui/z-shelter/backend/internal/handler/persona"
	"github.com/zhouzirui/z-shelter/backend/internal/handler/speech"
	middlewarePkg "github.com/zhouzirui/z-shelter/backend/internal/middleware"
	personaModel "github.com/zhouzirui/z-shelter/backend/internal/model/persona"
	"github.com/zhouzirui/z-shelter/backend/internal/observe"
	chatService "github.com/zhouzirui/z-shelter/backend/internal/service/chat"
	"github.com/zhouzirui/z-shelter/backend/pkg/utils"
)

// Deps 路由依赖。Speech 为 nil 时语音工具接口返回 503。
type Deps struct {
	Personas         personaModel.Store
	Chat             *chatService.Service
	Turns            chat.TurnRunner
	Speech           speech.SpeechService
	Metrics          *observe.Metrics
	MetricsEnabled   bool
	DefaultSessionID string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)
	if deps.Metrics != nil {
		r.Use(observe.Middleware(deps.Metrics))
	}

	personaHandler := persona.New(deps.Personas)
	chatHandler := chat.New(deps.Chat, deps.Personas, deps.Turns, deps.DefaultSessionID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": deps.Chat.Count(),
		})
	})
	if deps.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// 兼容单会话客户端的原始入口
	r.Post("/chat", chatHandler.HandleChat)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)

		if deps.Speech != nil {
			speech.New(deps.Speech, deps.Chat, deps.Personas).RegisterRoutes(api)
		} else {
			api.HandleFunc("/speech/*", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "speech service not configured")
			})
		}
	})

	return r
}

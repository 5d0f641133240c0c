package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-shelter/backend/internal/config"
	"github.com/zhouzirui/z-shelter/backend/internal/handler"
	speechHandler "github.com/zhouzirui/z-shelter/backend/internal/handler/speech"
	chatModel "github.com/zhouzirui/z-shelter/backend/internal/model/chat"
	"github.com/zhouzirui/z-shelter/backend/internal/model/persona"
	speechModel "github.com/zhouzirui/z-shelter/backend/internal/model/speech"
	"github.com/zhouzirui/z-shelter/backend/internal/observe"
	"github.com/zhouzirui/z-shelter/backend/internal/service/ai"
	"github.com/zhouzirui/z-shelter/backend/internal/service/chat"
	"github.com/zhouzirui/z-shelter/backend/internal/service/conversation"
	"github.com/zhouzirui/z-shelter/backend/internal/service/dataset"
	"github.com/zhouzirui/z-shelter/backend/internal/service/speech"
	"github.com/zhouzirui/z-shelter/backend/internal/service/turn"
)

// defaultSessionID 未携带 session_id 的请求共用的会话
const defaultSessionID = "default"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	metrics := observe.NopMetrics()
	if cfg.Observe.MetricsEnabled {
		mp, shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: cfg.Observe.ServiceName})
		if err != nil {
			log.Fatalf("failed to initialize telemetry: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Printf("warning: telemetry shutdown: %v", err)
			}
		}()
		if metrics, err = observe.NewMetrics(mp); err != nil {
			log.Fatalf("failed to create metrics: %v", err)
		}
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	loader := dataset.NewLoader(&http.Client{Timeout: 30 * time.Second})
	if cfg.Dataset.Location == "" {
		log.Println("DATASET_LOCATION 未配置，加载数据将返回 not-found 提示")
	}

	chatService := chat.NewService(personaStore, func(ctx context.Context, p persona.Persona) *conversation.Conversation {
		return conversation.New(ctx, p, loader, cfg.Dataset.Location)
	})
	if _, err := chatService.EnsureSession(ctx, defaultSessionID, cfg.Server.DefaultPersona); err != nil {
		log.Fatalf("failed to create default session: %v", err)
	}

	generator := newGenerator(ctx, cfg.AI)

	var speechService *speech.Service
	if cfg.Speech.Enabled() {
		speechService, err = speech.NewService(cfg.Speech.ToModel())
		if err != nil {
			log.Printf("warning: failed to initialize speech service: %v", err)
		} else {
			log.Printf("Speech service initialized (stt=%s, tts=%s)", cfg.Speech.STTProvider, cfg.Speech.TTSProvider)
		}
	} else {
		log.Println("语音服务凭证未配置，转写与合成将返回外部服务错误")
	}

	var (
		transcriber turn.Transcriber = unconfigured{}
		synthesizer turn.Synthesizer = unconfigured{}
		speechAPI   speechHandler.SpeechService
	)
	if speechService != nil {
		transcriber, synthesizer, speechAPI = speechService, speechService, speechService
	}

	orchestrator := turn.New(chatService, transcriber, generator, synthesizer, metrics, turn.Config{
		Language:          cfg.Turn.Language,
		Temperature:       cfg.Turn.Temperature,
		MaxTokens:         cfg.Turn.MaxTokens,
		AudioFormat:       cfg.Speech.TTSFormat,
		Engine:            cfg.Speech.TTSEngine,
		TranscribeTimeout: cfg.Turn.TranscribeTimeout,
		GenerateTimeout:   cfg.Turn.GenerateTimeout,
		SynthesizeTimeout: cfg.Turn.SynthesizeTimeout,
	})

	router := handler.NewRouter(handler.Deps{
		Personas:         personaStore,
		Chat:             chatService,
		Turns:            orchestrator,
		Speech:           speechAPI,
		Metrics:          metrics,
		MetricsEnabled:   cfg.Observe.MetricsEnabled,
		DefaultSessionID: defaultSessionID,
	})

	startServer(ctx, cfg.Server, router)
}

// newGenerator 按 LLM_PROVIDER 选择生成后端，缺少凭证时返回始终失败的占位实现
func newGenerator(ctx context.Context, cfg config.AIConfig) turn.Generator {
	if !cfg.Enabled() {
		log.Printf("%s 凭证未配置，生成请求将返回外部服务错误", cfg.Provider)
		return unconfigured{}
	}

	if cfg.Provider == config.ProviderOpenAI {
		svc, err := ai.NewOpenAIService(cfg.OpenAI)
		if err != nil {
			log.Printf("warning: failed to initialize OpenAI generator: %v", err)
			return unconfigured{}
		}
		log.Printf("AI service initialized (openai, model=%s)", cfg.OpenAI.Model)
		return svc
	}

	svc, err := ai.NewService(ctx, cfg)
	if err != nil {
		log.Printf("warning: failed to initialize AI service: %v", err)
		log.Println("请检查 Ark 模型相关环境变量")
		return unconfigured{}
	}
	log.Printf("AI service initialized (ark, model=%s)", cfg.Model)
	return svc
}

var errNotConfigured = errors.New("service not configured")

// unconfigured 占位网关，使进程在缺少凭证时仍可启动
type unconfigured struct{}

func (unconfigured) TranscribeBuffer(context.Context, string, []byte, string, string) (*speechModel.ASRResponse, error) {
	return nil, errNotConfigured
}

func (unconfigured) Generate(context.Context, []chatModel.Message, chatModel.GenerationParams) (string, error) {
	return "", errNotConfigured
}

func (unconfigured) SynthesizeSpeech(context.Context, *speechModel.TTSRequest) (*speechModel.TTSResponse, error) {
	return nil, errNotConfigured
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Z Shelter backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

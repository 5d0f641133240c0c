package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/z-shelter/backend/internal/model/persona"
	"github.com/zhouzirui/z-shelter/backend/internal/model/speech"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Speech  SpeechConfig
	Turn    TurnConfig
	Dataset DatasetConfig
	Observe ObserveConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speechCfg, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	turn, err := loadTurnConfig()
	if err != nil {
		return nil, err
	}

	observe, err := loadObserveConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Speech:  speechCfg,
		Turn:    turn,
		Dataset: DatasetConfig{Location: strings.TrimSpace(os.Getenv("DATASET_LOCATION"))},
		Observe: observe,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	DefaultPersona string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	cfg := ServerConfig{DefaultPersona: getEnvOrDefault("DEFAULT_PERSONA", persona.DefaultID)}

	if strings.Contains(port, ":") {
		// 允许直接传入 ":8080" 或 "127.0.0.1:8080"
		cfg.Addr = port
		return cfg, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	cfg.Addr = ":" + port
	return cfg, nil
}

const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string

	// Ark
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	OpenAI OpenAIConfig
}

// OpenAIConfig OpenAI 兼容接口配置，同时服务于生成与语音
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

// Enabled 表示所选生成后端的密钥是否齐全。
func (c AIConfig) Enabled() bool {
	if c.Provider == ProviderOpenAI {
		return c.OpenAI.Enabled()
	}
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Model == "" || (c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "")) {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderArk))
	if provider != ProviderArk && provider != ProviderOpenAI {
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", provider)
	}

	return AIConfig{
		Provider:    provider,
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		OpenAI:      loadOpenAIConfig(),
	}, nil
}

func loadOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
	}
}

// SpeechConfig 描述语音服务相关配置
type SpeechConfig struct {
	STTProvider string
	TTSProvider string

	AppID          string
	AccessToken    string
	APIKey         string
	AccessKey      string
	SecretKey      string
	BaseURL        string
	ConcurrentMode bool

	OpenAI         OpenAIConfig
	WhisperModel   string
	OpenAITTSModel string
	OpenAITTSVoice string

	ASRLanguage string
	TTSVoice    string
	TTSSpeed    float32
	TTSVolume   float32
	TTSLanguage string
	TTSFormat   string
	TTSEngine   string // Volcengine 资源 ID 或 OpenAI TTS 模型，空则按发音人推断
	Timeout     int
}

// Enabled 表示所选语音后端的凭证是否齐全。
func (c SpeechConfig) Enabled() bool {
	needVolc := c.STTProvider == string(speech.ProviderVolcengine) || c.TTSProvider == string(speech.ProviderVolcengine)
	needOpenAI := c.STTProvider == string(speech.ProviderOpenAI) || c.TTSProvider == string(speech.ProviderOpenAI)
	if needVolc && (c.AppID == "" || c.AccessToken == "") {
		return false
	}
	if needOpenAI && !c.OpenAI.Enabled() {
		return false
	}
	return true
}

// ToModel 转换为语音服务使用的配置结构
func (c SpeechConfig) ToModel() *speech.SpeechConfig {
	return &speech.SpeechConfig{
		STTProvider:    speech.Provider(c.STTProvider),
		TTSProvider:    speech.Provider(c.TTSProvider),
		AppID:          c.AppID,
		AccessToken:    c.AccessToken,
		APIKey:         c.APIKey,
		AccessKey:      c.AccessKey,
		SecretKey:      c.SecretKey,
		BaseURL:        c.BaseURL,
		ConcurrentMode: c.ConcurrentMode,
		OpenAIAPIKey:   c.OpenAI.APIKey,
		OpenAIBaseURL:  c.OpenAI.BaseURL,
		WhisperModel:   c.WhisperModel,
		OpenAITTSModel: c.OpenAITTSModel,
		OpenAITTSVoice: c.OpenAITTSVoice,
		ASRLanguage:    c.ASRLanguage,
		TTSVoice:       c.TTSVoice,
		TTSSpeed:       c.TTSSpeed,
		TTSVolume:      c.TTSVolume,
		TTSLanguage:    c.TTSLanguage,
		TTSFormat:      c.TTSFormat,
		Timeout:        c.Timeout,
	}
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	speed, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsSpeed := float32(1.0)
	if speed != nil {
		ttsSpeed = *speed
	}

	volume, err := parseOptionalFloat32Env("SPEECH_TTS_VOLUME")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsVolume := float32(1.0)
	if volume != nil {
		ttsVolume = *volume
	}

	concurrent, err := parseBoolEnv("SPEECH_ASR_CONCURRENT", false)
	if err != nil {
		return SpeechConfig{}, err
	}

	stt, err := parseProviderEnv("STT_PROVIDER")
	if err != nil {
		return SpeechConfig{}, err
	}
	tts, err := parseProviderEnv("TTS_PROVIDER")
	if err != nil {
		return SpeechConfig{}, err
	}

	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	apiKey := strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	if accessToken == "" {
		accessToken = apiKey
	}

	accessKey := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_KEY"))
	secretKey := strings.TrimSpace(os.Getenv("SPEECH_SECRET_KEY"))

	// 没有专门的语音凭证时沿用 Ark 凭证
	if accessToken == "" && accessKey == "" {
		accessToken = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		apiKey = accessToken
		accessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		secretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
	}

	return SpeechConfig{
		STTProvider:    stt,
		TTSProvider:    tts,
		AppID:          strings.TrimSpace(os.Getenv("SPEECH_APP_ID")),
		AccessToken:    accessToken,
		APIKey:         apiKey,
		AccessKey:      accessKey,
		SecretKey:      secretKey,
		BaseURL:        getEnvOrDefault("SPEECH_BASE_URL", ""),
		ConcurrentMode: concurrent,
		OpenAI:         loadOpenAIConfig(),
		WhisperModel:   getEnvOrDefault("WHISPER_MODEL", "whisper-1"),
		OpenAITTSModel: getEnvOrDefault("OPENAI_TTS_MODEL", "tts-1"),
		OpenAITTSVoice: getEnvOrDefault("OPENAI_TTS_VOICE", "nova"),
		ASRLanguage:    getEnvOrDefault("SPEECH_ASR_LANGUAGE", "en-US"),
		TTSVoice:       getEnvOrDefault("SPEECH_TTS_VOICE", ""),
		TTSSpeed:       ttsSpeed,
		TTSVolume:      ttsVolume,
		TTSLanguage:    getEnvOrDefault("SPEECH_TTS_LANGUAGE", "en-US"),
		TTSFormat:      getEnvOrDefault("SPEECH_TTS_FORMAT", "mp3"),
		TTSEngine:      strings.TrimSpace(os.Getenv("SPEECH_TTS_ENGINE")),
		Timeout:        timeoutSeconds,
	}, nil
}

// TurnConfig 单轮对话的语言、采样参数与各外部调用的超时
type TurnConfig struct {
	Language          string
	Temperature       float32
	MaxTokens         *int
	TranscribeTimeout time.Duration
	GenerateTimeout   time.Duration
	SynthesizeTimeout time.Duration
}

func loadTurnConfig() (TurnConfig, error) {
	temperature, err := parseOptionalFloat32Env("TURN_TEMPERATURE")
	if err != nil {
		return TurnConfig{}, err
	}
	turnTemperature := float32(0.3)
	if temperature != nil {
		turnTemperature = *temperature
	}

	maxTokens, err := parseOptionalIntEnv("TURN_MAX_TOKENS")
	if err != nil {
		return TurnConfig{}, err
	}

	stt, err := parseSecondsEnv("STT_TIMEOUT", 30)
	if err != nil {
		return TurnConfig{}, err
	}
	llm, err := parseSecondsEnv("LLM_TIMEOUT", 60)
	if err != nil {
		return TurnConfig{}, err
	}
	tts, err := parseSecondsEnv("TTS_TIMEOUT", 30)
	if err != nil {
		return TurnConfig{}, err
	}

	return TurnConfig{
		Language:          getEnvOrDefault("TURN_LANGUAGE", "en"),
		Temperature:       turnTemperature,
		MaxTokens:         maxTokens,
		TranscribeTimeout: stt,
		GenerateTimeout:   llm,
		SynthesizeTimeout: tts,
	}, nil
}

// DatasetConfig 数据集位置（文件路径或 http(s) 地址）
type DatasetConfig struct {
	Location string
}

// ObserveConfig 指标与追踪配置
type ObserveConfig struct {
	MetricsEnabled bool
	ServiceName    string
}

func loadObserveConfig() (ObserveConfig, error) {
	enabled, err := parseBoolEnv("METRICS_ENABLED", true)
	if err != nil {
		return ObserveConfig{}, err
	}
	return ObserveConfig{
		MetricsEnabled: enabled,
		ServiceName:    getEnvOrDefault("OTEL_SERVICE_NAME", "z-shelter"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseProviderEnv(key string) (string, error) {
	value := strings.ToLower(getEnvOrDefault(key, string(speech.ProviderVolcengine)))
	switch speech.Provider(value) {
	case speech.ProviderVolcengine, speech.ProviderOpenAI:
		return value, nil
	default:
		return "", fmt.Errorf("invalid %s value %q", key, value)
	}
}

func parseSecondsEnv(key string, defaultSeconds int) (time.Duration, error) {
	seconds, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if seconds == nil {
		return time.Duration(defaultSeconds) * time.Second, nil
	}
	if *seconds <= 0 {
		return 0, fmt.Errorf("invalid %s value %d: must be positive", key, *seconds)
	}
	return time.Duration(*seconds) * time.Second, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}

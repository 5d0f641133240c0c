package speech

// Provider 语音能力的后端实现
type Provider string

const (
	ProviderVolcengine Provider = "volcengine"
	ProviderOpenAI     Provider = "openai"
)

// SpeechConfig 语音服务配置
type SpeechConfig struct {
	STTProvider Provider `json:"sttProvider"`
	TTSProvider Provider `json:"ttsProvider"`

	// 火山引擎
	AppID       string `json:"appId"`
	AccessToken string `json:"accessToken"`
	APIKey      string `json:"apiKey,omitempty"` // 兼容旧配置
	AccessKey   string `json:"accessKey"`
	SecretKey   string `json:"secretKey"`
	BaseURL     string `json:"baseUrl"`
	// ASR 并发版资源，false 为小时版
	ConcurrentMode bool `json:"concurrentMode"`

	// OpenAI（Whisper / TTS）
	OpenAIAPIKey   string `json:"-"`
	OpenAIBaseURL  string `json:"openaiBaseUrl,omitempty"`
	WhisperModel   string `json:"whisperModel"`
	OpenAITTSModel string `json:"openaiTtsModel"`
	OpenAITTSVoice string `json:"openaiTtsVoice"`
	// Whisper 上传前落盘的临时目录，空则使用系统默认
	TempDir string `json:"-"`

	ASRLanguage string `json:"asrLanguage"`

	TTSVoice    string  `json:"ttsVoice"`
	TTSSpeed    float32 `json:"ttsSpeed"`
	TTSVolume   float32 `json:"ttsVolume"`
	TTSLanguage string  `json:"ttsLanguage"`
	TTSFormat   string  `json:"ttsFormat"`

	Timeout int `json:"timeout"` // seconds
}

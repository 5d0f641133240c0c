package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/z-shelter/backend/internal/model/speech"
)

func newOpenAIClient(cfg *speech.SpeechConfig) (*openai.Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil, ErrOpenAINotConfigured
	}
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return openai.NewClientWithConfig(clientCfg), nil
}

// WhisperClient 通过 OpenAI Whisper 转写音频，上传前先落盘为临时文件
type WhisperClient struct {
	client  *openai.Client
	model   string
	tempDir string
}

func NewWhisperClient(cfg *speech.SpeechConfig) (*WhisperClient, error) {
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.WhisperModel
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperClient{client: client, model: model, tempDir: cfg.TempDir}, nil
}

// Recognize 临时文件在任何返回路径上都会被删除
func (c *WhisperClient) Recognize(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	format := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(req.Format)), ".")
	if format == "" {
		format = "wav"
	}

	tmp, err := os.CreateTemp(c.tempDir, "upload-*."+format)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp audio file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, copyErr := io.Copy(tmp, req.AudioData)
	closeErr := tmp.Close()
	if copyErr != nil {
		return nil, fmt.Errorf("failed to buffer audio: %w", copyErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to buffer audio: %w", closeErr)
	}
	if written == 0 {
		return nil, errors.New("no audio data to send")
	}

	started := time.Now()
	language := whisperLanguage(req.Language)
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: tmp.Name(),
		Language: language,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}

	log.Printf("[ASR] whisper transcribed %d bytes in %s", written, time.Since(started))
	return &speech.ASRResponse{
		SessionID:  req.SessionID,
		Text:       resp.Text,
		Language:   language,
		Provider:   speech.ProviderOpenAI,
		Confidence: estimateASRConfidence(resp.Text),
		Duration:   int64(resp.Duration * 1000),
		RequestID:  req.SessionID,
		CreatedAt:  time.Now(),
	}, nil
}

// whisperLanguage Whisper 只接受 ISO-639-1 语言码
func whisperLanguage(language string) string {
	language = strings.TrimSpace(language)
	if idx := strings.IndexAny(language, "-_"); idx > 0 {
		language = language[:idx]
	}
	return strings.ToLower(language)
}

// OpenAITTSClient OpenAI 语音合成
type OpenAITTSClient struct {
	client *openai.Client
	model  string
	voice  string
}

func NewOpenAITTSClient(cfg *speech.SpeechConfig) (*OpenAITTSClient, error) {
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.OpenAITTSModel
	if model == "" {
		model = string(openai.TTSModel1)
	}
	return &OpenAITTSClient{client: client, model: model, voice: cfg.OpenAITTSVoice}, nil
}

func (c *OpenAITTSClient) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("TTS text is empty")
	}

	format := strings.TrimSpace(req.Format)
	if format == "" {
		format = "mp3"
	}
	model := c.model
	if engine := strings.TrimSpace(req.Engine); engine != "" {
		model = engine
	}

	voice := resolveOpenAIVoice(req.Voice, c.voice)
	speechReq := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormat(format),
	}
	if req.Speed > 0 {
		speechReq.Speed = float64(req.Speed)
	}

	body, err := c.client.CreateSpeech(ctx, speechReq)
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer body.Close()

	audio, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read openai speech: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("TTS audio is empty")
	}

	return &speech.TTSResponse{
		SessionID: req.SessionID,
		AudioData: audio,
		Format:    format,
		Voice:     voice,
		Engine:    model,
		Provider:  speech.ProviderOpenAI,
		CreatedAt: time.Now(),
	}, nil
}

package speech

import (
	"bytes"
	"context"
	"fmt"

	"github.com/zhouzirui/z-shelter/backend/internal/model/speech"
)

type recognizer interface {
	Recognize(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error)
}

type synthesizer interface {
	Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Service 语音服务，按配置选择识别与合成后端
type Service struct {
	config *speech.SpeechConfig
	asr    recognizer
	tts    synthesizer
}

// NewService 根据 STTProvider/TTSProvider 创建后端客户端
func NewService(config *speech.SpeechConfig) (*Service, error) {
	svc := &Service{config: config}

	switch config.STTProvider {
	case speech.ProviderOpenAI:
		client, err := NewWhisperClient(config)
		if err != nil {
			return nil, fmt.Errorf("stt: %w", err)
		}
		svc.asr = client
	case speech.ProviderVolcengine, "":
		svc.asr = NewVolcengineASRClient(config)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", config.STTProvider)
	}

	switch config.TTSProvider {
	case speech.ProviderOpenAI:
		client, err := NewOpenAITTSClient(config)
		if err != nil {
			return nil, fmt.Errorf("tts: %w", err)
		}
		svc.tts = client
	case speech.ProviderVolcengine, "":
		svc.tts = NewVolcengineTTSClient(config)
	default:
		return nil, fmt.Errorf("unknown tts provider %q", config.TTSProvider)
	}

	return svc, nil
}

// TranscribeAudio 语音转文字
func (s *Service) TranscribeAudio(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	if req.Language == "" {
		req.Language = s.config.ASRLanguage
	}
	return s.asr.Recognize(ctx, req)
}

// SynthesizeSpeech 文字转语音
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if req.Format == "" {
		req.Format = s.config.TTSFormat
	}
	return s.tts.Synthesize(ctx, req)
}

// TranscribeBuffer 语音转文字（字节数组输入）
func (s *Service) TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speech.ASRResponse, error) {
	return s.TranscribeAudio(ctx, &speech.ASRRequest{
		SessionID: sessionID,
		AudioData: bytes.NewReader(audio),
		Format:    format,
		Language:  language,
	})
}

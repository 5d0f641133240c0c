package turn

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/zhouzirui/z-shelter/backend/internal/model/chat"
	"github.com/zhouzirui/z-shelter/backend/internal/model/speech"
	"github.com/zhouzirui/z-shelter/backend/internal/model/turn"
	"github.com/zhouzirui/z-shelter/backend/internal/observe"
	"github.com/zhouzirui/z-shelter/backend/internal/service/conversation"
)

// Transcriber 语音识别网关
type Transcriber interface {
	TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speech.ASRResponse, error)
}

// Generator 文本生成网关
type Generator interface {
	Generate(ctx context.Context, history []chat.Message, params chat.GenerationParams) (string, error)
}

// Synthesizer 语音合成网关
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Sessions 会话注册表，由 service/chat 实现
type Sessions interface {
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	WithConversation(ctx context.Context, sessionID string, fn func(*conversation.Conversation) error) error
}

const (
	defaultTranscribeTimeout = 30 * time.Second
	defaultGenerateTimeout   = 60 * time.Second
	defaultSynthesizeTimeout = 30 * time.Second
)

// Config 单轮参数，超时为 0 时使用默认值
type Config struct {
	Language          string // 转写语言，固定值
	Temperature       float32
	MaxTokens         *int
	AudioFormat       string
	Engine            string
	TranscribeTimeout time.Duration
	GenerateTimeout   time.Duration
	SynthesizeTimeout time.Duration
}

// Input 一轮输入，Audio 非空时忽略 Text
type Input struct {
	Audio       []byte
	AudioFormat string
	Text        string
}

// Orchestrator 串起 转写 → 状态机 → 生成 → 拆分 → 合成
type Orchestrator struct {
	sessions    Sessions
	transcriber Transcriber
	generator   Generator
	synthesizer Synthesizer
	metrics     *observe.Metrics
	cfg         Config
}

func New(sessions Sessions, transcriber Transcriber, generator Generator, synthesizer Synthesizer, metrics *observe.Metrics, cfg Config) *Orchestrator {
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "mp3"
	}
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = defaultTranscribeTimeout
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = defaultGenerateTimeout
	}
	if cfg.SynthesizeTimeout <= 0 {
		cfg.SynthesizeTimeout = defaultSynthesizeTimeout
	}
	return &Orchestrator{
		sessions:    sessions,
		transcriber: transcriber,
		generator:   generator,
		synthesizer: synthesizer,
		metrics:     metrics,
		cfg:         cfg,
	}
}

// RunTurn 执行一轮对话。空输入返回 rejected 结果与 ErrNoInput；
// 外部服务失败返回 *ExternalServiceError，结果为 nil。
func (o *Orchestrator) RunTurn(ctx context.Context, sessionID string, in Input) (result *turn.Result, err error) {
	ctx, span := observe.StartSpan(ctx, "turn.RunTurn")
	defer func() { observe.EndSpan(span, err) }()

	if _, err := o.sessions.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	text := in.Text
	if len(in.Audio) > 0 {
		text, err = o.transcribe(ctx, sessionID, in)
		if err != nil {
			return nil, err
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		o.metrics.RecordTurn(ctx, string(turn.OutcomeRejected))
		return &turn.Result{SessionID: sessionID, Outcome: turn.OutcomeRejected, Rejection: ErrNoInput}, ErrNoInput
	}

	err = o.sessions.WithConversation(ctx, sessionID, func(conv *conversation.Conversation) error {
		var turnErr error
		if conversation.DetectLoadIntent(text) {
			result, turnErr = o.confirm(ctx, conv)
		} else {
			result, turnErr = o.reply(ctx, conv, text)
		}
		if turnErr != nil {
			return turnErr
		}
		result.SessionID = sessionID
		result.UserText = text
		result.History = conv.History()
		result.State = conv.State().String()
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.metrics.RecordTurn(ctx, string(result.Outcome))
	return result, nil
}

func (o *Orchestrator) confirm(ctx context.Context, conv *conversation.Conversation) (*turn.Result, error) {
	confirmation := conv.HandleLoadIntent(ctx)
	if confirmation.Loaded {
		o.metrics.RecordDatasetLoad(ctx, "ok")
	} else {
		o.metrics.RecordDatasetLoad(ctx, string(confirmation.FailureKind))
	}

	result := &turn.Result{
		Outcome:     turn.OutcomeConfirmation,
		DisplayText: confirmation.Text,
		SpeakText:   confirmation.Text,
	}
	if err := o.speak(ctx, conv, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) reply(ctx context.Context, conv *conversation.Conversation, text string) (*turn.Result, error) {
	tabular := conv.AppendUserTurn(text)

	reply, err := o.generate(ctx, conv.History())
	if err != nil {
		return nil, err
	}
	conv.AppendAssistantTurn(reply)

	split := conv.SplitReplyForSpeech(reply, tabular)
	result := &turn.Result{
		Outcome:       turn.OutcomeReply,
		DisplayText:   split.Display,
		SpeakText:     split.Speak,
		NoAudioReason: split.NoAudioReason,
	}
	if split.Speak == "" {
		return result, nil
	}
	if err := o.speak(ctx, conv, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, sessionID string, in Input) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.TranscribeTimeout)
	defer cancel()

	started := time.Now()
	resp, err := o.transcriber.TranscribeBuffer(ctx, sessionID, in.Audio, in.AudioFormat, o.cfg.Language)
	o.metrics.ObserveGateway(ctx, string(GatewayTranscription), started, err)
	if err != nil {
		return "", o.gatewayError(GatewayTranscription, err)
	}
	return resp.Text, nil
}

func (o *Orchestrator) generate(ctx context.Context, history []chat.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.GenerateTimeout)
	defer cancel()

	temperature := o.cfg.Temperature
	params := chat.GenerationParams{Temperature: &temperature, MaxTokens: o.cfg.MaxTokens}

	started := time.Now()
	reply, err := o.generator.Generate(ctx, history, params)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty reply")
	}
	o.metrics.ObserveGateway(ctx, string(GatewayGeneration), started, err)
	if err != nil {
		return "", o.gatewayError(GatewayGeneration, err)
	}
	return strings.TrimSpace(reply), nil
}

// speak 合成 result.SpeakText 并写回音频
func (o *Orchestrator) speak(ctx context.Context, conv *conversation.Conversation, result *turn.Result) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.SynthesizeTimeout)
	defer cancel()

	p := conv.Persona()
	started := time.Now()
	resp, err := o.synthesizer.SynthesizeSpeech(ctx, &speech.TTSRequest{
		Text:     result.SpeakText,
		Voice:    p.VoiceID,
		Language: p.Locale,
		Format:   o.cfg.AudioFormat,
		Engine:   o.cfg.Engine,
	})
	if err == nil && len(resp.AudioData) == 0 {
		err = errors.New("empty audio")
	}
	o.metrics.ObserveGateway(ctx, string(GatewaySynthesis), started, err)
	if err != nil {
		return o.gatewayError(GatewaySynthesis, err)
	}

	log.Printf("[turn] synthesized %d bytes voice=%s engine=%s", len(resp.AudioData), resp.Voice, resp.Engine)
	result.Audio = resp.AudioData
	result.AudioFormat = resp.Format
	if result.AudioFormat == "" {
		result.AudioFormat = o.cfg.AudioFormat
	}
	return nil
}

func (o *Orchestrator) gatewayError(which Gateway, err error) error {
	log.Printf("[turn] %s failed: %v", which, err)
	detail := "call failed"
	if errors.Is(err, context.DeadlineExceeded) {
		detail = "timed out"
	}
	return &ExternalServiceError{Which: which, Detail: detail, Err: err}
}

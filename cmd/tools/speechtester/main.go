package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-shelter/backend/internal/config"
	speechmodel "github.com/zhouzirui/z-shelter/backend/internal/model/speech"
	"github.com/zhouzirui/z-shelter/backend/internal/service/speech"
)

// options 命令行参数，空值回落到配置
type options struct {
	mode      string
	audioPath string
	text      string
	out       string
	format    string
	language  string
	voice     string
	engine    string
	session   string
	timeout   time.Duration
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] .env not loaded, using process environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var opts options
	flag.StringVar(&opts.mode, "mode", "", "asr | tts | roundtrip (tts 后把结果送回 asr)")
	flag.StringVar(&opts.audioPath, "audio", "", "asr 输入音频文件")
	flag.StringVar(&opts.text, "text", "", "tts / roundtrip 输入文本")
	flag.StringVar(&opts.out, "out", "", "tts 输出文件，默认按格式生成")
	flag.StringVar(&opts.format, "format", "", "音频格式")
	flag.StringVar(&opts.language, "lang", "", "语言代码")
	flag.StringVar(&opts.voice, "voice", "", "发音人或别名 (shelter-guide / shelter-guide-zh)")
	flag.StringVar(&opts.engine, "engine", "", "TTS 引擎 / 资源 ID")
	flag.StringVar(&opts.session, "session", "", "sessionID，留空自动生成")
	flag.DurationVar(&opts.timeout, "timeout", 45*time.Second, "整体超时")
	flag.Parse()

	if !cfg.Speech.Enabled() {
		log.Fatalf("speech disabled: stt=%s tts=%s credentials missing", cfg.Speech.STTProvider, cfg.Speech.TTSProvider)
	}
	opts.withDefaults(cfg)

	svc, err := speech.NewService(cfg.Speech.ToModel())
	if err != nil {
		log.Fatalf("init speech service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	switch opts.mode {
	case "asr":
		file, err := os.Open(opts.audioPath)
		if err != nil {
			log.Fatalf("open audio: %v", err)
		}
		defer file.Close()
		format := opts.format
		if format == "" {
			format = formatFromPath(opts.audioPath)
		}
		transcribe(ctx, svc, opts, file, format)
	case "tts":
		resp := synthesize(ctx, svc, opts)
		out := opts.out
		if out == "" {
			out = fmt.Sprintf("tts-output-%d.%s", time.Now().Unix(), resp.Format)
		}
		if err := os.WriteFile(out, resp.AudioData, 0o644); err != nil {
			log.Fatalf("write audio: %v", err)
		}
		log.Printf("[tts] wrote %s (%d bytes)", out, len(resp.AudioData))
	case "roundtrip":
		resp := synthesize(ctx, svc, opts)
		text := transcribe(ctx, svc, opts, bytes.NewReader(resp.AudioData), resp.Format)
		log.Printf("[roundtrip] sent=%q heard=%q", opts.text, text)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func (o *options) withDefaults(cfg *config.Config) {
	if o.session == "" {
		o.session = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}
	if o.voice == "" {
		o.voice = cfg.Speech.TTSVoice
	}
	if o.engine == "" {
		o.engine = cfg.Speech.TTSEngine
	}
	if o.language == "" {
		o.language = cfg.Turn.Language
	}
}

func synthesize(ctx context.Context, svc *speech.Service, opts options) *speechmodel.TTSResponse {
	if strings.TrimSpace(opts.text) == "" {
		log.Fatal("-text is required")
	}
	resp, err := svc.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{
		SessionID: opts.session,
		Text:      opts.text,
		Voice:     opts.voice,
		Language:  opts.language,
		Format:    opts.format,
		Engine:    opts.engine,
	})
	if err != nil {
		log.Fatalf("tts: %v", err)
	}
	log.Printf("[tts] provider=%s voice=%s engine=%s format=%s %dms", resp.Provider, resp.Voice, resp.Engine, resp.Format, resp.Duration)
	return resp
}

func transcribe(ctx context.Context, svc *speech.Service, opts options, audio io.Reader, format string) string {
	resp, err := svc.TranscribeAudio(ctx, &speechmodel.ASRRequest{
		SessionID: opts.session,
		AudioData: audio,
		Format:    format,
		Language:  opts.language,
	})
	if err != nil {
		log.Fatalf("asr: %v", err)
	}
	log.Printf("[asr] provider=%s language=%s text=%q confidence=%.2f %dms", resp.Provider, resp.Language, resp.Text, resp.Confidence, resp.Duration)
	return resp.Text
}

func formatFromPath(path string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext != "" {
		return ext
	}
	return "wav"
}

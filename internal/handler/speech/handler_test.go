package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-shelter/backend/internal/model/chat"
	"github.com/zhouzirui/z-shelter/backend/internal/model/persona"
	speechmodel "github.com/zhouzirui/z-shelter/backend/internal/model/speech"
)

type fakeSpeechService struct {
	transcribeSession string
	transcribeFormat  string
	transcribeAudio   string
	synthReq          *speechmodel.TTSRequest
	err               error
}

func (f *fakeSpeechService) TranscribeAudio(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	f.transcribeSession = req.SessionID
	f.transcribeFormat = req.Format
	data, _ := io.ReadAll(req.AudioData)
	f.transcribeAudio = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &speechmodel.ASRResponse{SessionID: req.SessionID, Text: "ok"}, nil
}

func (f *fakeSpeechService) SynthesizeSpeech(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	f.synthReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &speechmodel.TTSResponse{SessionID: req.SessionID, AudioData: []byte("audio"), Format: "mp3"}, nil
}

type fakeSessions map[string]string

func (f fakeSessions) GetSession(_ context.Context, id string) (chat.Session, error) {
	personaID, ok := f[id]
	if !ok {
		return chat.Session{}, errors.New("session not found")
	}
	return chat.Session{ID: id, PersonaID: personaID}, nil
}

func newRouter(svc *fakeSpeechService, sessions SessionLookup) *chi.Mux {
	r := chi.NewRouter()
	New(svc, sessions, persona.NewMemoryStore(persona.Seed())).RegisterRoutes(r)
	return r
}

func multipartAudio(t *testing.T, filename string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		t.Fatalf("CreateFormFile err: %v", err)
	}
	if _, err := part.Write([]byte("audio")); err != nil {
		t.Fatalf("write audio err: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close err: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestTranscribeUsesPathSession(t *testing.T) {
	svc := &fakeSpeechService{}
	body, contentType := multipartAudio(t, "sample.webm")

	req := httptest.NewRequest(http.MethodPost, "/speech/transcribe/session-override", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if svc.transcribeSession != "session-override" {
		t.Fatalf("expected override session, got %s", svc.transcribeSession)
	}
	if svc.transcribeFormat != "webm" || svc.transcribeAudio != "audio" {
		t.Fatalf("unexpected upload format=%s audio=%s", svc.transcribeFormat, svc.transcribeAudio)
	}
}

func TestTranscribeRequiresAudio(t *testing.T) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("sessionId", "s1")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/speech/transcribe", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	newRouter(&fakeSpeechService{}, nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestTranscribeUpstreamFailure(t *testing.T) {
	body, contentType := multipartAudio(t, "sample.wav")
	req := httptest.NewRequest(http.MethodPost, "/speech/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	newRouter(&fakeSpeechService{err: errors.New("asr down")}, nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}

func TestSynthesizeResolvesPersonaVoice(t *testing.T) {
	svc := &fakeSpeechService{}
	sessions := fakeSessions{"s-zh": "shelter-guide-zh"}

	req := httptest.NewRequest(http.MethodPost, "/speech/synthesize/s-zh", bytes.NewBufferString(`{"text":"你好"}`))
	rr := httptest.NewRecorder()
	newRouter(svc, sessions).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if svc.synthReq.SessionID != "s-zh" {
		t.Fatalf("expected session s-zh, got %s", svc.synthReq.SessionID)
	}
	if svc.synthReq.Voice != "shelter-guide-zh" || svc.synthReq.Language != persona.LocaleChinese {
		t.Fatalf("unexpected voice/language %s/%s", svc.synthReq.Voice, svc.synthReq.Language)
	}
	if rr.Header().Get("Content-Type") != "audio/mp3" || rr.Body.String() != "audio" {
		t.Fatalf("unexpected audio response %q", rr.Body.String())
	}
}

func TestSynthesizeKeepsExplicitVoice(t *testing.T) {
	svc := &fakeSpeechService{}
	payload, _ := json.Marshal(map[string]string{"text": "hello", "voice": "nova", "sessionId": "s-en"})

	req := httptest.NewRequest(http.MethodPost, "/speech/synthesize", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	newRouter(svc, fakeSessions{"s-en": persona.DefaultID}).ServeHTTP(rr, req)

	if svc.synthReq.Voice != "nova" {
		t.Fatalf("expected explicit voice, got %s", svc.synthReq.Voice)
	}
}

func TestSynthesizeRequiresText(t *testing.T) {
	svc := &fakeSpeechService{}
	req := httptest.NewRequest(http.MethodPost, "/speech/synthesize", bytes.NewBufferString(`{"text":"  "}`))
	rr := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if svc.synthReq != nil {
		t.Fatalf("service should not be called")
	}
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter(&fakeSpeechService{}, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/speech/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

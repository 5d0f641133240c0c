package speech

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-shelter/backend/internal/model/speech"
)

var upgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readFrame(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := DecodeMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	return msg
}

func writeFrame(t *testing.T, conn *websocket.Conn, msg *Message) {
	t.Helper()
	frame, err := EncodeMessage(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))
}

func volcConfig(srv *httptest.Server) *speech.SpeechConfig {
	return &speech.SpeechConfig{AppID: "app", AccessToken: "token", BaseURL: wsURL(srv), TTSSpeed: 1, TTSVolume: 1}
}

func TestVolcengineTTSSynthesize(t *testing.T) {
	var gotSpeaker, gotResource string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ttsPath, r.URL.Path)
		gotResource = r.Header.Get("X-Api-Resource-Id")
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		request := readFrame(t, conn)
		var payload ttsRequestPayload
		require.NoError(t, sonic.Unmarshal(request.Payload, &payload))
		gotSpeaker = payload.ReqParams.Speaker

		first := []byte("ID3-")
		writeFrame(t, conn, &Message{
			Header:      NewHeader(AudioOnlyServerResponse, PositiveSequenceNumber, NoSerialization, NoCompression),
			Sequence:    1,
			PayloadSize: uint32(len(first)),
			Payload:     first,
		})
		last := []byte("frames")
		writeFrame(t, conn, &Message{
			Header:      NewHeader(AudioOnlyServerResponse, NegativeSequenceNumber, NoSerialization, NoCompression),
			Sequence:    -2,
			PayloadSize: uint32(len(last)),
			Payload:     last,
		})
	}))
	defer srv.Close()

	client := NewVolcengineTTSClient(volcConfig(srv))
	resp, err := client.Synthesize(context.Background(), &speech.TTSRequest{Text: "Hello there", Voice: "shelter-guide"})

	require.NoError(t, err)
	assert.Equal(t, "ID3-frames", string(resp.AudioData))
	assert.Equal(t, "mp3", resp.Format)
	assert.Equal(t, "en_female_amy_jupiter_bigtts", gotSpeaker)
	assert.Equal(t, "seed-tts-2.0", gotResource)
	assert.Equal(t, gotSpeaker, resp.Voice)
	assert.Equal(t, gotResource, resp.Engine)
	assert.Equal(t, speech.ProviderVolcengine, resp.Provider)
}

func TestVolcengineTTSServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		readFrame(t, conn)
		body := []byte(`{"error":"quota exceeded"}`)
		writeFrame(t, conn, &Message{
			Header:      NewHeader(ErrorMessage, NoSequenceNumber, JSONSerialization, NoCompression),
			ErrorCode:   45000000,
			PayloadSize: uint32(len(body)),
			Payload:     body,
		})
	}))
	defer srv.Close()

	_, err := NewVolcengineTTSClient(volcConfig(srv)).Synthesize(context.Background(), &speech.TTSRequest{Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestVolcengineTTSRequiresCredentials(t *testing.T) {
	_, err := NewVolcengineTTSClient(&speech.SpeechConfig{}).Synthesize(context.Background(), &speech.TTSRequest{Text: "hi"})
	assert.ErrorIs(t, err, ErrVolcengineNotConfigured)
}

func TestVolcengineASRRecognize(t *testing.T) {
	audio := bytes.Repeat([]byte{0x01}, asrChunkSize*2+10)
	var received int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, asrPath, r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		first := readFrame(t, conn)
		body, err := DecompressPayload(first.Payload, first.Header.CompressionMethod)
		require.NoError(t, err)
		var payload asrRequestPayload
		require.NoError(t, sonic.Unmarshal(body, &payload))
		assert.Equal(t, "en-US", payload.Audio.Language)

		for {
			frame := readFrame(t, conn)
			chunk, err := DecompressPayload(frame.Payload, frame.Header.CompressionMethod)
			require.NoError(t, err)
			received += len(chunk)
			if frame.IsLastPacket() {
				break
			}
		}

		result, _ := CompressPayload([]byte(`{"result":{"text":"load the data"},"audio_info":{"duration":1200}}`), GzipCompression)
		writeFrame(t, conn, &Message{
			Header:      NewHeader(FullServerResponse, NegativeSequenceNumber, JSONSerialization, GzipCompression),
			Sequence:    -3,
			PayloadSize: uint32(len(result)),
			Payload:     result,
		})
	}))
	defer srv.Close()

	client := NewVolcengineASRClient(volcConfig(srv))
	client.interval = time.Millisecond

	resp, err := client.Recognize(context.Background(), &speech.ASRRequest{
		SessionID: "s-1",
		AudioData: bytes.NewReader(audio),
		Format:    "wav",
		Language:  "en",
	})

	require.NoError(t, err)
	assert.Equal(t, "load the data", resp.Text)
	assert.Equal(t, int64(1200), resp.Duration)
	assert.Equal(t, "en-US", resp.Language)
	assert.Equal(t, len(audio), received)
}

func TestWhisperRecognizeRemovesTempFile(t *testing.T) {
	tempDir := t.TempDir()
	var sawFile bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		entries, _ := os.ReadDir(tempDir)
		sawFile = len(entries) == 1 && strings.HasSuffix(entries[0].Name(), ".webm")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"how old is Rex?"}`))
	}))
	defer srv.Close()

	client, err := NewWhisperClient(&speech.SpeechConfig{OpenAIAPIKey: "sk-test", OpenAIBaseURL: srv.URL, TempDir: tempDir})
	require.NoError(t, err)

	resp, err := client.Recognize(context.Background(), &speech.ASRRequest{
		AudioData: bytes.NewReader([]byte("fake-webm")),
		Format:    "webm",
		Language:  "en-US",
	})

	require.NoError(t, err)
	assert.Equal(t, "how old is Rex?", resp.Text)
	assert.Equal(t, "en", resp.Language)
	assert.Equal(t, speech.ProviderOpenAI, resp.Provider)
	assert.True(t, sawFile, "audio should be on disk during the upload")

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWhisperRecognizeRemovesTempFileOnFailure(t *testing.T) {
	tempDir := t.TempDir()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad audio"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewWhisperClient(&speech.SpeechConfig{OpenAIAPIKey: "sk-test", OpenAIBaseURL: srv.URL, TempDir: tempDir})
	require.NoError(t, err)

	_, err = client.Recognize(context.Background(), &speech.ASRRequest{AudioData: bytes.NewReader([]byte("x")), Format: "wav"})
	require.Error(t, err)

	entries, _ := os.ReadDir(tempDir)
	assert.Empty(t, entries)
}

func TestOpenAITTSSynthesize(t *testing.T) {
	var got struct {
		Model          string `json:"model"`
		Input          string `json:"input"`
		Voice          string `json:"voice"`
		ResponseFormat string `json:"response_format"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		require.NoError(t, sonic.ConfigDefault.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	client, err := NewOpenAITTSClient(&speech.SpeechConfig{OpenAIAPIKey: "sk-test", OpenAIBaseURL: srv.URL, OpenAITTSModel: "tts-1", OpenAITTSVoice: "nova"})
	require.NoError(t, err)

	resp, err := client.Synthesize(context.Background(), &speech.TTSRequest{Text: "Rex is three.", Voice: "shelter-guide"})

	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(resp.AudioData))
	assert.Equal(t, "tts-1", got.Model)
	assert.Equal(t, "nova", got.Voice)
	assert.Equal(t, "mp3", got.ResponseFormat)
	assert.Equal(t, "nova", resp.Voice)
	assert.Equal(t, "tts-1", resp.Engine)
}

func TestNewServiceSelectsProviders(t *testing.T) {
	svc, err := NewService(&speech.SpeechConfig{STTProvider: speech.ProviderOpenAI, TTSProvider: speech.ProviderVolcengine, OpenAIAPIKey: "sk"})
	require.NoError(t, err)
	assert.IsType(t, &WhisperClient{}, svc.asr)
	assert.IsType(t, &VolcengineTTSClient{}, svc.tts)

	_, err = NewService(&speech.SpeechConfig{TTSProvider: speech.ProviderOpenAI})
	assert.ErrorIs(t, err, ErrOpenAINotConfigured)

	_, err = NewService(&speech.SpeechConfig{STTProvider: "polly"})
	assert.Error(t, err)
}

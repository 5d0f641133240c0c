package chat

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-shelter/backend/internal/model/turn"
	turnservice "github.com/zhouzirui/z-shelter/backend/internal/service/turn"
)

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readOutgoing(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocketTextTurn(t *testing.T) {
	runner := &fakeRunner{result: replyResult()}
	r, _ := setupRouter(runner)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dial(t, srv, "default")
	if msg := readOutgoing(t, conn); msg["type"] != "connected" {
		t.Fatalf("expected connected, got %v", msg)
	}

	if err := conn.WriteJSON(map[string]any{"type": "text", "data": map[string]any{"text": "who is there?"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	msg := readOutgoing(t, conn)
	if msg["type"] != "turn" {
		t.Fatalf("expected turn, got %v", msg)
	}
	data := msg["data"].(map[string]any)
	if data["bot_text"] != "Rex and Milo." || data["outcome"] != string(turn.OutcomeReply) {
		t.Fatalf("unexpected turn payload %v", data)
	}
	if _, in := runner.last(); in.Text != "who is there?" {
		t.Fatalf("unexpected input %+v", in)
	}
}

func TestWebSocketBuffersAudioUntilFinal(t *testing.T) {
	runner := &fakeRunner{result: replyResult()}
	r, _ := setupRouter(runner)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dial(t, srv, "default")
	readOutgoing(t, conn)

	chunk := func(data string, final bool) map[string]any {
		return map[string]any{"type": "audio", "data": map[string]any{
			"audioData": base64.StdEncoding.EncodeToString([]byte(data)),
			"format":    "webm",
			"isFinal":   final,
		}}
	}
	conn.WriteJSON(chunk("ab", false))
	conn.WriteJSON(chunk("cd", true))

	if msg := readOutgoing(t, conn); msg["type"] != "turn" {
		t.Fatalf("expected turn, got %v", msg)
	}
	calls, in := runner.last()
	if calls != 1 {
		t.Fatalf("expected one turn, got %d", calls)
	}
	if string(in.Audio) != "abcd" || in.AudioFormat != "webm" {
		t.Fatalf("unexpected input %+v", in)
	}
}

func TestWebSocketReportsTurnErrors(t *testing.T) {
	r, _ := setupRouter(&fakeRunner{err: turnservice.ErrNoInput})
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dial(t, srv, "default")
	readOutgoing(t, conn)

	conn.WriteJSON(map[string]any{"type": "text", "data": map[string]any{"text": " "}})

	msg := readOutgoing(t, conn)
	if msg["type"] != "error" {
		t.Fatalf("expected error, got %v", msg)
	}
	data := msg["data"].(map[string]any)
	if data["status"] != float64(http.StatusBadRequest) {
		t.Fatalf("unexpected status %v", data["status"])
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	r, _ := setupRouter(nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %v", resp)
	}
}

func audioChunk(data string, final bool) map[string]any {
	return map[string]any{"type": "audio", "data": map[string]any{
		"audioData": base64.StdEncoding.EncodeToString([]byte(data)),
		"format":    "webm",
		"isFinal":   final,
	}}
}

func TestWebSocketRejectsOversizedAudio(t *testing.T) {
	old := wsMaxAudioBytes
	wsMaxAudioBytes = 8
	t.Cleanup(func() { wsMaxAudioBytes = old })

	runner := &fakeRunner{result: replyResult()}
	r, _ := setupRouter(runner)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dial(t, srv, "default")
	readOutgoing(t, conn)

	conn.WriteJSON(audioChunk("abcdef", false))
	conn.WriteJSON(audioChunk("ghij", false))

	msg := readOutgoing(t, conn)
	if msg["type"] != "error" {
		t.Fatalf("expected error, got %v", msg)
	}
	if data := msg["data"].(map[string]any); data["status"] != float64(http.StatusRequestEntityTooLarge) {
		t.Fatalf("unexpected status %v", data["status"])
	}

	// 超限那段的剩余分片被丢弃，下一段正常
	conn.WriteJSON(audioChunk("kl", true))
	conn.WriteJSON(audioChunk("ab", false))
	conn.WriteJSON(audioChunk("cd", true))

	if msg := readOutgoing(t, conn); msg["type"] != "turn" {
		t.Fatalf("expected turn, got %v", msg)
	}
	calls, in := runner.last()
	if calls != 1 || string(in.Audio) != "abcd" {
		t.Fatalf("expected only the second utterance, calls=%d audio=%q", calls, in.Audio)
	}
}

func TestWebSocketClosesOnOversizedFrame(t *testing.T) {
	old := wsMaxAudioBytes
	wsMaxAudioBytes = 8
	t.Cleanup(func() { wsMaxAudioBytes = old })

	runner := &fakeRunner{result: replyResult()}
	r, _ := setupRouter(runner)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dial(t, srv, "default")
	readOutgoing(t, conn)

	conn.WriteJSON(map[string]any{"type": "text", "data": map[string]any{"text": strings.Repeat("x", int(wsReadLimit(8))+1)}})

	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the connection to be closed")
	}
	if calls, _ := runner.last(); calls != 0 {
		t.Fatalf("expected no turn, got %d", calls)
	}
}

func TestWebSocketSurvivesTurnLongerThanReadTimeout(t *testing.T) {
	old := wsReadTimeout
	wsReadTimeout = 200 * time.Millisecond
	t.Cleanup(func() { wsReadTimeout = old })

	runner := &fakeRunner{result: replyResult(), delay: 400 * time.Millisecond}
	r, _ := setupRouter(runner)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dial(t, srv, "default")
	readOutgoing(t, conn)

	for i := 0; i < 2; i++ {
		if err := conn.WriteJSON(map[string]any{"type": "text", "data": map[string]any{"text": "tell me about Rex"}}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if msg := readOutgoing(t, conn); msg["type"] != "turn" {
			t.Fatalf("turn %d: expected turn, got %v", i, msg)
		}
	}
}

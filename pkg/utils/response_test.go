package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondError(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, http.StatusBadRequest, "no usable input provided")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "no usable input provided" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRespondAudio(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondAudio(rr, "mp3", []byte("abc"))

	if rr.Header().Get("Content-Type") != "audio/mp3" {
		t.Fatalf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
	if rr.Header().Get("Content-Length") != "3" {
		t.Fatalf("unexpected length %q", rr.Header().Get("Content-Length"))
	}
	if rr.Body.String() != "abc" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

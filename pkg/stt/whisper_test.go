package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestWhisper(t *testing.T, handler http.HandlerFunc) *Whisper {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.APIKey = "sk-test"
	cfg.BaseURL = srv.URL + "/v1/"
	cfg.MaxRetries = 0
	w, err := NewWhisper(cfg)
	if err != nil {
		t.Fatalf("NewWhisper: %v", err)
	}
	return w
}

func TestWhisperTranscribe(t *testing.T) {
	var model, language, filename string
	var size int

	w := newTestWhisper(t, func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		model = r.FormValue("model")
		language = r.FormValue("language")
		f, hdr, err := r.FormFile("file")
		if err == nil {
			filename = hdr.Filename
			b, _ := io.ReadAll(f)
			size = len(b)
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.Write([]byte(`{"text": " Merhaba nasılsın? "}`))
	})

	text, err := w.Transcribe(context.Background(), strings.NewReader("RIFF....WAVE"), "turn.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "Merhaba nasılsın?" {
		t.Errorf("text = %q", text)
	}
	if model != "whisper-1" || language != "tr" {
		t.Errorf("model = %q, language = %q", model, language)
	}
	if filename != "turn.wav" || size != 12 {
		t.Errorf("file = %q (%d bytes)", filename, size)
	}
}

func TestWhisperEmptyTranscript(t *testing.T) {
	w := newTestWhisper(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.Write([]byte(`{"text": "  "}`))
	})

	if _, err := w.Transcribe(context.Background(), strings.NewReader("x"), "a.wav"); !errors.Is(err, ErrNoTranscript) {
		t.Errorf("expected ErrNoTranscript, got %v", err)
	}
}

func TestWhisperAPIFailure(t *testing.T) {
	w := newTestWhisper(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusBadRequest)
		rw.Write([]byte(`{"error": {"message": "audio too short", "type": "invalid_request_error", "code": "audio_too_short", "param": null}}`))
	})

	if _, err := w.Transcribe(context.Background(), strings.NewReader("x"), "a.wav"); !errors.Is(err, ErrNoTranscript) {
		t.Errorf("expected ErrNoTranscript, got %v", err)
	}
}

func TestNewWhisperRequiresKey(t *testing.T) {
	if _, err := NewWhisper(DefaultConfig()); err == nil {
		t.Error("expected error without API key")
	}
}

func TestMockScript(t *testing.T) {
	m := NewMock(MockResult{Text: "bir"}, MockResult{Err: ErrNoTranscript}, MockResult{Text: "üç"})
	ctx := context.Background()

	for i, want := range []string{"bir", "", "üç", "üç"} {
		got, _ := m.Transcribe(ctx, strings.NewReader("abc"), "x.wav")
		if got != want {
			t.Errorf("call %d = %q, want %q", i, got, want)
		}
	}
	if m.Calls() != 4 {
		t.Errorf("Calls = %d", m.Calls())
	}
	if b := m.BytesRead(); b[0] != 3 {
		t.Errorf("BytesRead = %v", b)
	}
}

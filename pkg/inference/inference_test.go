package inference_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teslashibe/go-hologram/pkg/inference"
)

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("NewChain requires providers", func(t *testing.T) {
		if _, err := inference.NewChain(); err != inference.ErrProviderUnavailable {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("First provider succeeds", func(t *testing.T) {
		first := inference.NewMock("bir")
		second := inference.NewMock("iki")
		chain, _ := inference.NewChain(first, second)

		resp, err := chain.Chat(ctx, &inference.ChatRequest{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Message.Content != "bir" {
			t.Errorf("got %q, want bir", resp.Message.Content)
		}
		if second.CallCount("Chat") != 0 {
			t.Error("second provider should not be called")
		}
	})

	t.Run("Fallback on failure", func(t *testing.T) {
		chain, _ := inference.NewChain(inference.MockWithError(errors.New("down")), inference.NewMock("yedek"))
		resp, err := chain.Chat(ctx, &inference.ChatRequest{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Message.Content != "yedek" {
			t.Errorf("got %q, want yedek", resp.Message.Content)
		}
	})

	t.Run("All providers fail", func(t *testing.T) {
		chain, _ := inference.NewChain(
			inference.MockWithError(errors.New("fail 1")),
			inference.MockWithError(errors.New("fail 2")),
		)
		_, err := chain.Chat(ctx, &inference.ChatRequest{})
		if !errors.Is(err, inference.ErrAllProvidersFailed) || !errors.Is(err, inference.ErrGeneration) {
			t.Errorf("expected chain failure, got %v", err)
		}
	})

	t.Run("Cancelled context stops the chain", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		second := inference.NewMock("late")
		chain, _ := inference.NewChain(inference.MockWithError(context.Canceled), second)
		if _, err := chain.Chat(cctx, &inference.ChatRequest{}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if second.CallCount("Chat") != 0 {
			t.Error("fallback should not run after cancellation")
		}
	})
}

func TestPersonaGenerate(t *testing.T) {
	mock := inference.NewMock("  Gökyüzü maviyi saçtığı için mavi görünür.  ")
	persona := inference.NewPersona(mock, inference.DefaultPersonaConfig())

	reply, err := persona.Generate(context.Background(), "Gökyüzü neden mavi?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if reply != "Gökyüzü maviyi saçtığı için mavi görünür." {
		t.Errorf("reply = %q", reply)
	}

	req := mock.LastRequest()
	if req.System != inference.DefaultSystemPrompt {
		t.Error("system prompt not sent")
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != inference.RoleUser || req.Messages[0].Content != "Gökyüzü neden mavi?" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
	if req.MaxTokens != 150 {
		t.Errorf("MaxTokens = %d", req.MaxTokens)
	}
}

func TestPersonaWrapsFailures(t *testing.T) {
	persona := inference.NewPersona(inference.MockWithError(errors.New("boom")), inference.DefaultPersonaConfig())
	if _, err := persona.Generate(context.Background(), "merhaba"); !errors.Is(err, inference.ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}

	empty := inference.NewPersona(inference.NewMock("   "), inference.DefaultPersonaConfig())
	_, err := empty.Generate(context.Background(), "merhaba")
	if !errors.Is(err, inference.ErrGeneration) || !errors.Is(err, inference.ErrEmptyResponse) {
		t.Errorf("expected empty-response generation error, got %v", err)
	}
}

func TestGeminiChat(t *testing.T) {
	var got struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		SystemInstruction *struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"systemInstruction"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "models/gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Merhaba küçük dostum!"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 4, "totalTokenCount": 9}
		}`))
	}))
	defer srv.Close()

	g, err := inference.NewGemini(context.Background(),
		inference.WithAPIKey("test-key"),
		inference.WithBaseURL(srv.URL+"/"),
	)
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}

	resp, err := g.Chat(context.Background(), &inference.ChatRequest{
		System:   "kısa cevap ver",
		Messages: []inference.Message{inference.NewUserMessage("selam")},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "Merhaba küçük dostum!" {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 9 || resp.FinishReason != "stop" {
		t.Errorf("usage = %+v, finish = %q", resp.Usage, resp.FinishReason)
	}
	if len(got.Contents) != 1 || got.Contents[0].Parts[0].Text != "selam" {
		t.Errorf("unexpected contents: %+v", got.Contents)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "kısa cevap ver" {
		t.Error("system instruction not sent")
	}
}

func TestPersonaHistory(t *testing.T) {
	mock := inference.NewMock("tamam")
	cfg := inference.DefaultPersonaConfig()
	cfg.History = 1
	persona := inference.NewPersona(mock, cfg)
	ctx := context.Background()

	for _, prompt := range []string{"bir", "iki", "üç"} {
		if _, err := persona.Generate(ctx, prompt); err != nil {
			t.Fatalf("Generate(%q): %v", prompt, err)
		}
	}

	var got []string
	for _, m := range mock.LastRequest().Messages {
		got = append(got, string(m.Role)+":"+m.Content)
	}
	want := []string{"user:iki", "assistant:tamam", "user:üç"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("messages = %v, want %v", got, want)
	}

	persona.Forget()
	if _, err := persona.Generate(ctx, "dört"); err != nil {
		t.Fatal(err)
	}
	if n := len(mock.LastRequest().Messages); n != 1 {
		t.Errorf("after Forget got %d messages, want 1", n)
	}
}

func TestPersonaFailedTurnIsNotRemembered(t *testing.T) {
	fail := true
	mock := &inference.Mock{ChatFunc: func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		if fail {
			return nil, errors.New("down")
		}
		return &inference.ChatResponse{Message: inference.NewAssistantMessage("ok")}, nil
	}}
	persona := inference.NewPersona(mock, inference.DefaultPersonaConfig())

	if _, err := persona.Generate(context.Background(), "kayıp"); !errors.Is(err, inference.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	fail = false
	if _, err := persona.Generate(context.Background(), "selam"); err != nil {
		t.Fatal(err)
	}
	if n := len(mock.LastRequest().Messages); n != 1 {
		t.Errorf("got %d messages, want 1", n)
	}
}

func TestGeminiRetriesTemporaryErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": {"code": 503, "message": "overloaded", "status": "UNAVAILABLE"}}`))
			return
		}
		w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "Merhaba"}]}, "finishReason": "STOP"}]}`))
	}))
	defer srv.Close()

	g, err := inference.NewGemini(context.Background(),
		inference.WithAPIKey("k"),
		inference.WithBaseURL(srv.URL+"/"),
		inference.WithRetry(2),
	)
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	resp, err := g.Chat(context.Background(), &inference.ChatRequest{Messages: []inference.Message{inference.NewUserMessage("x")}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "Merhaba" || calls != 2 {
		t.Errorf("content = %q after %d calls", resp.Message.Content, calls)
	}
}

func TestAPIErrorTemporary(t *testing.T) {
	for code, want := range map[int]bool{400: false, 401: false, 429: true, 500: true, 503: true} {
		if got := (&inference.APIError{StatusCode: code}).Temporary(); got != want {
			t.Errorf("%d: Temporary() = %v, want %v", code, got, want)
		}
	}
}

func TestGeminiAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	g, _ := inference.NewGemini(context.Background(),
		inference.WithAPIKey("bad"),
		inference.WithBaseURL(srv.URL+"/"),
	)
	_, err := g.Chat(context.Background(), &inference.ChatRequest{Messages: []inference.Message{inference.NewUserMessage("x")}})

	var apiErr *inference.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Provider != "gemini" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestOpenAIChat(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Selam!"}}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 2, "total_tokens": 9}
		}`))
	}))
	defer srv.Close()

	o, err := inference.NewOpenAI(
		inference.WithAPIKey("sk-test"),
		inference.WithBaseURL(srv.URL+"/v1/"),
		inference.WithRetry(0),
	)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	resp, err := o.Chat(context.Background(), &inference.ChatRequest{
		System:   "persona",
		Messages: []inference.Message{inference.NewUserMessage("merhaba")},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "Selam!" || resp.Usage.TotalTokens != 9 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if got.Model != inference.DefaultOpenAIModel {
		t.Errorf("model = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "merhaba" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
}

func TestOpenAIChatAPIError(t *testing.T) {
	tests := []struct {
		status    int
		temporary bool
	}{
		{http.StatusUnauthorized, false},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error": {"message": "nope", "type": "invalid_request_error", "code": "invalid_api_key"}}`))
		}))

		o, err := inference.NewOpenAI(
			inference.WithAPIKey("sk-test"),
			inference.WithBaseURL(srv.URL+"/v1/"),
			inference.WithRetry(0),
		)
		if err != nil {
			srv.Close()
			t.Fatalf("NewOpenAI: %v", err)
		}

		_, err = o.Chat(context.Background(), &inference.ChatRequest{
			Messages: []inference.Message{inference.NewUserMessage("merhaba")},
		})
		srv.Close()

		var apiErr *inference.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: error = %v (%T), want *APIError", tt.status, err, err)
		}
		if apiErr.StatusCode != tt.status || apiErr.Provider != "openai" {
			t.Errorf("status %d: APIError = %+v", tt.status, apiErr)
		}
		if apiErr.Temporary() != tt.temporary {
			t.Errorf("status %d: Temporary() = %v, want %v", tt.status, apiErr.Temporary(), tt.temporary)
		}
	}
}

func TestProvidersRequireAPIKey(t *testing.T) {
	if _, err := inference.NewOpenAI(); !errors.Is(err, inference.ErrNoAPIKey) {
		t.Errorf("NewOpenAI error = %v", err)
	}
	if _, err := inference.NewGemini(context.Background()); !errors.Is(err, inference.ErrNoAPIKey) {
		t.Errorf("NewGemini error = %v", err)
	}
}

// Package inference generates the assistant's spoken replies.
//
// Providers wrap a hosted chat model (Gemini via google.golang.org/genai,
// OpenAI chat via openai-go) behind the Provider interface. Chain tries them
// in order, and Persona turns a Provider into a Generator that answers a
// transcript in character.
//
// Example usage:
//
//	gemini, _ := inference.NewGemini(ctx, inference.WithAPIKey(os.Getenv("GEMINI_API_KEY")))
//	openai, _ := inference.NewOpenAI(inference.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	chain, _ := inference.NewChain(gemini, openai)
//
//	persona := inference.NewPersona(chain, inference.DefaultPersonaConfig())
//	reply, _ := persona.Generate(ctx, "Gökyüzü neden mavi?")
package inference

import "context"

// Provider is a hosted chat model.
type Provider interface {
	// Chat generates a response from a sequence of messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name identifies the provider in logs and errors.
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}

// Generator produces a reply to a user utterance.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Forgetter is a Generator that remembers earlier turns and can drop them.
type Forgetter interface {
	Forget()
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// System is the system instruction. Empty means none.
	System string

	// Messages is the conversation history.
	Messages []Message

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0). Zero uses the provider default.
	Temperature float64
}

// ChatResponse from chat completion.
type ChatResponse struct {
	// Message is the assistant's response.
	Message Message

	// FinishReason indicates why generation stopped.
	FinishReason string

	// Usage tracks token consumption.
	Usage Usage

	// Model used for generation.
	Model string

	// Provider that produced the response.
	Provider string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// Usage tracks token consumption for billing and limits.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

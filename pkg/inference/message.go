package inference

import "sync"

// Role is who spoke a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one utterance in a chat request.
type Message struct {
	Role    Role
	Content string
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// history keeps the last max question/answer pairs, oldest first.
type history struct {
	mu    sync.Mutex
	max   int
	pairs [][2]string
}

// prompt returns the remembered exchanges followed by the new user turn.
func (h *history) prompt(text string) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := make([]Message, 0, 2*len(h.pairs)+1)
	for _, p := range h.pairs {
		msgs = append(msgs, NewUserMessage(p[0]), NewAssistantMessage(p[1]))
	}
	return append(msgs, NewUserMessage(text))
}

func (h *history) add(question, answer string) {
	if h.max <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pairs = append(h.pairs, [2]string{question, answer})
	if over := len(h.pairs) - h.max; over > 0 {
		h.pairs = append(h.pairs[:0], h.pairs[over:]...)
	}
}

func (h *history) reset() {
	h.mu.Lock()
	h.pairs = nil
	h.mu.Unlock()
}

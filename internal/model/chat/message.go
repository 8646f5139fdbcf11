package chat

import "time"

// Sender identifies who appended a transcript entry.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
	SenderSystem    = "system"
)

// Message is a single transcript entry.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Output renders the message the way the chat list displays it.
func (m Message) Output() string {
	switch m.Sender {
	case SenderUser:
		return "You: " + m.Content
	case SenderAssistant:
		return "Bot: " + m.Content
	default:
		return m.Content
	}
}

package request

const (
	Model        = "openai/gpt-oss-120b"
	SystemPrompt = "You are a helpful and concise assistant. Provide detailed and point-wise answers."

	MaxTokens   = 1024
	Temperature = 0.5
	TopP        = 0.95

	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatReqBody is the payload sent upstream.
type ChatReqBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
	Stream      bool      `json:"stream"`
}

// NewChatReqBody wraps a single user turn in the fixed system prompt and
// sampling parameters. The message is forwarded as given.
func NewChatReqBody(userMessage string) ChatReqBody {
	return ChatReqBody{
		Model: Model,
		Messages: []Message{
			{Role: RoleSystem, Content: SystemPrompt},
			{Role: RoleUser, Content: userMessage},
		},
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
		TopP:        TopP,
		Stream:      false,
	}
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ReplyMessage keeps an absent content apart from an empty one.
type ReplyMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type Choice struct {
	Index        int           `json:"index"`
	Message      *ReplyMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ChatRespBody is the subset of the upstream response the relay reads.
type ChatRespBody struct {
	Id      string     `json:"id"`
	Model   string     `json:"model"`
	Object  string     `json:"object"`
	Choices []Choice   `json:"choices"`
	Usage   TokenUsage `json:"usage"`
}

// Content returns choices[0].message.content and whether the upstream sent it.
func (r *ChatRespBody) Content() (string, bool) {
	if len(r.Choices) == 0 {
		return "", false
	}
	message := r.Choices[0].Message
	if message == nil || message.Content == nil {
		return "", false
	}
	return *message.Content, true
}

// Package wire holds the OpenAI-compatible request, response and stream
// chunk shapes, the UI history export shape, and the pure functions that map
// the conversation history onto them.
package wire

const (
	ObjectCompletion = "chat.completion"
	ObjectChunk      = "chat.completion.chunk"
	ObjectModel      = "model"
	ObjectList       = "list"

	FinishReasonStop = "stop"

	// DoneSentinel terminates every successful SSE stream.
	DoneSentinel = "[DONE]"
)

// RequestMessage is one entry of ChatCompletionRequest.Messages.
type RequestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the body of POST /chat/completions.
type ChatCompletionRequest struct {
	Model            string           `json:"model"`
	Messages         []RequestMessage `json:"messages"`
	Stream           bool             `json:"stream"`
	Temperature      *float32         `json:"temperature,omitempty"`
	MaxTokens        *int             `json:"max_tokens,omitempty"`
	TopP             *float32         `json:"top_p,omitempty"`
	FrequencyPenalty *float32         `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float32         `json:"presence_penalty,omitempty"`
	Stop             StopList         `json:"stop,omitempty"`
}

// ResponseMessage is the message wrapped by a completion choice.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice is a single completion choice.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// Usage contains token usage statistics. Counts may be zero.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is one finished, non-streamed completion.
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Delta carries one fragment of a streamed message.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// StreamChoice is a single choice inside a stream chunk.
type StreamChoice struct {
	Index int   `json:"index"`
	Delta Delta `json:"delta"`
	// FinishReason is null on every chunk but the last.
	FinishReason *string `json:"finish_reason"`
}

// ChatStreamChunk is one SSE data frame. All chunks of a stream share ID and Created.
type ChatStreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
}

// HistoryMessage is the GET /chat/history view of a stored message.
type HistoryMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
	Model     string `json:"model,omitempty"`
}

// HistoryResponse is the body of GET /chat/history.
type HistoryResponse struct {
	Messages  []HistoryMessage `json:"messages"`
	CreatedAt int64            `json:"created_at"`
}

// ExportMessage is the flattened record used by the UI export.
type ExportMessage struct {
	ID          string   `json:"id"`
	ParentID    *string  `json:"parentId"`
	ChildrenIDs []string `json:"childrenIds"`
	Role        string   `json:"role"`
	Content     string   `json:"content"`
	Timestamp   int64    `json:"timestamp"`
	Model       string   `json:"model,omitempty"`
	ModelName   string   `json:"modelName,omitempty"`
	ModelIdx    *int     `json:"modelIdx,omitempty"`
	Done        bool     `json:"done"`
}

// ExportHistory indexes export records by id.
type ExportHistory struct {
	Messages  map[string]ExportMessage `json:"messages"`
	CurrentID *string                  `json:"currentId"`
}

// HistoryExport is the body of GET /webui/history.
type HistoryExport struct {
	History  ExportHistory   `json:"history"`
	Messages []ExportMessage `json:"messages"`
}

// Model is one entry in the model listing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the body of GET /models.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// ErrorBody follows the OpenAI error envelope.
type ErrorBody struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    string  `json:"code,omitempty"`
}

// ErrorResponse wraps ErrorBody as {"error": {...}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/comigor/jarvis-gateway/internal/llm"
)

// ValidationError reports a malformed request body. It is raised before any
// provider call or history mutation.
type ValidationError struct {
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Param == "" {
		return "invalid request: " + e.Message
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Param, e.Message)
}

// StopList accepts either a single string or an array of strings.
type StopList []string

func (s *StopList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*s = nil
		} else {
			*s = StopList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return &ValidationError{Param: "stop", Message: "must be a string or an array of strings"}
	}
	*s = many
	return nil
}

// DecodeRequest parses and validates a completion request body.
func DecodeRequest(body []byte) (*ChatCompletionRequest, error) {
	var req ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, ve
		}
		return nil, &ValidationError{Message: "body is not valid JSON: " + err.Error()}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

func inRange(v *float32, lo, hi float32) bool {
	return v == nil || (*v >= lo && *v <= hi)
}

// Validate checks the request shape. The gateway owns the history, so only
// the final user message is consumed; it must be present and non-empty.
func (r *ChatCompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return &ValidationError{Param: "messages", Message: "must contain at least one message"}
	}
	for i, m := range r.Messages {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			return &ValidationError{Param: fmt.Sprintf("messages[%d].role", i), Message: fmt.Sprintf("unsupported role %q", m.Role)}
		}
	}
	last := r.Messages[len(r.Messages)-1]
	if last.Role != "user" {
		return &ValidationError{Param: "messages", Message: "last message must have role user"}
	}
	if strings.TrimSpace(last.Content) == "" {
		return &ValidationError{Param: "messages", Message: "last message content is empty"}
	}
	if !inRange(r.Temperature, 0, 2) {
		return &ValidationError{Param: "temperature", Message: "must be between 0 and 2"}
	}
	if !inRange(r.TopP, 0, 1) {
		return &ValidationError{Param: "top_p", Message: "must be between 0 and 1"}
	}
	if !inRange(r.FrequencyPenalty, -2, 2) {
		return &ValidationError{Param: "frequency_penalty", Message: "must be between -2 and 2"}
	}
	if !inRange(r.PresencePenalty, -2, 2) {
		return &ValidationError{Param: "presence_penalty", Message: "must be between -2 and 2"}
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return &ValidationError{Param: "max_tokens", Message: "must be positive"}
	}
	if len(r.Stop) > 4 {
		return &ValidationError{Param: "stop", Message: "at most 4 sequences"}
	}
	return nil
}

// UserText returns the content of the final user message.
func (r *ChatCompletionRequest) UserText() string {
	return r.Messages[len(r.Messages)-1].Content
}

// Params extracts the provider sampling parameters.
func (r *ChatCompletionRequest) Params() llm.Params {
	return llm.Params{
		Temperature:      r.Temperature,
		MaxTokens:        r.MaxTokens,
		TopP:             r.TopP,
		FrequencyPenalty: r.FrequencyPenalty,
		PresencePenalty:  r.PresencePenalty,
		Stop:             r.Stop,
	}
}

package wire

import (
	"time"

	"github.com/google/uuid"

	"github.com/comigor/jarvis-gateway/internal/history"
	"github.com/comigor/jarvis-gateway/internal/llm"
)

// NewResponseID returns a fresh completion id.
func NewResponseID() string {
	return "chatcmpl-" + uuid.NewString()
}

// ToProviderMessages builds the provider conversation: the system prompt,
// then every stored user and assistant turn in order, then newUserText.
// Stored system messages are skipped so the prompt appears exactly once.
func ToProviderMessages(systemPrompt string, turns []history.Message, newUserText string) []llm.Message {
	out := make([]llm.Message, 0, len(turns)+2)
	out = append(out, llm.Message{Role: string(history.RoleSystem), Content: systemPrompt})
	for _, m := range turns {
		switch m.Role {
		case history.RoleUser, history.RoleAssistant:
			out = append(out, llm.Message{Role: string(m.Role), Content: m.Content})
		}
	}
	return append(out, llm.Message{Role: string(history.RoleUser), Content: newUserText})
}

// EncodeResponse wraps a finished assistant message as a chat.completion.
func EncodeResponse(assistant history.Message, modelName string) *ChatResponse {
	return &ChatResponse{
		ID:      NewResponseID(),
		Object:  ObjectCompletion,
		Created: time.Now().Unix(),
		Model:   modelName,
		Choices: []Choice{{
			Index:        0,
			Message:      ResponseMessage{Role: string(history.RoleAssistant), Content: assistant.Content},
			FinishReason: FinishReasonStop,
		}},
		Usage: Usage{},
	}
}

// EncodeStreamChunk builds one chat.completion.chunk. Empty deltaRole,
// deltaContent or finishReason are omitted from the frame.
func EncodeStreamChunk(responseID string, createdAt int64, modelName, deltaRole, deltaContent, finishReason string) *ChatStreamChunk {
	choice := StreamChoice{
		Index: 0,
		Delta: Delta{Role: deltaRole, Content: deltaContent},
	}
	if finishReason != "" {
		choice.FinishReason = &finishReason
	}
	return &ChatStreamChunk{
		ID:      responseID,
		Object:  ObjectChunk,
		Created: createdAt,
		Model:   modelName,
		Choices: []StreamChoice{choice},
	}
}

func exportRecord(m history.Message) ExportMessage {
	rec := ExportMessage{
		ID:          m.ID,
		ChildrenIDs: append([]string{}, m.ChildrenIDs...),
		Role:        string(m.Role),
		Content:     m.Content,
		Timestamp:   m.Timestamp,
		Done:        m.Done,
	}
	if m.ParentID != "" {
		parent := m.ParentID
		rec.ParentID = &parent
	}
	if m.Role == history.RoleAssistant {
		idx := m.ModelIdx
		rec.Model = m.Model
		rec.ModelName = m.ModelName
		rec.ModelIdx = &idx
	}
	return rec
}

// EncodeHistoryExport builds the UI export: records keyed by id, the same
// records in order, and currentId pointing at the last message (null when
// the history is empty). The export cannot be read back into a store.
func EncodeHistoryExport(turns []history.Message) *HistoryExport {
	export := &HistoryExport{
		History: ExportHistory{
			Messages: make(map[string]ExportMessage, len(turns)),
		},
		Messages: make([]ExportMessage, 0, len(turns)),
	}
	for _, m := range turns {
		rec := exportRecord(m)
		export.History.Messages[rec.ID] = rec
		export.Messages = append(export.Messages, rec)
	}
	if len(turns) > 0 {
		current := turns[len(turns)-1].ID
		export.History.CurrentID = &current
	}
	return export
}

// EncodeHistory builds the GET /chat/history body.
func EncodeHistory(turns []history.Message, createdAt time.Time) *HistoryResponse {
	resp := &HistoryResponse{
		Messages:  make([]HistoryMessage, 0, len(turns)),
		CreatedAt: createdAt.Unix(),
	}
	for _, m := range turns {
		resp.Messages = append(resp.Messages, HistoryMessage{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.Timestamp,
			Model:     m.Model,
		})
	}
	return resp
}

// EncodeModels lists the single backend model.
func EncodeModels(modelID string, created time.Time) *ModelList {
	return &ModelList{
		Object: ObjectList,
		Data: []Model{{
			ID:      modelID,
			Object:  ObjectModel,
			Created: created.Unix(),
			OwnedBy: "jarvis-gateway",
		}},
	}
}

// NewError builds an OpenAI-style error envelope.
func NewError(message, errType, code string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorBody{Message: message, Type: errType, Code: code}}
}

// ValidationErrorResponse converts a ValidationError into an error envelope.
func ValidationErrorResponse(err *ValidationError) *ErrorResponse {
	resp := NewError(err.Error(), "invalid_request_error", "invalid_request")
	if err.Param != "" {
		param := err.Param
		resp.Error.Param = &param
	}
	return resp
}

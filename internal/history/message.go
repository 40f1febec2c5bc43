package history

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single conversational turn.
//
// ParentID is a weak reference to the preceding turn (empty when there is
// none). ChildrenIDs is kept up to date by the store as children are appended.
// Timestamp is in Unix seconds.
type Message struct {
	ID          string   `json:"id"`
	ParentID    string   `json:"parentId,omitempty"`
	ChildrenIDs []string `json:"childrenIds"`
	Role        Role     `json:"role"`
	Content     string   `json:"content"`
	Timestamp   int64    `json:"timestamp"`
	Model       string   `json:"model,omitempty"`
	ModelName   string   `json:"modelName,omitempty"`
	ModelIdx    int      `json:"modelIdx"`
	Done        bool     `json:"done"`
}

// NewMessage returns a materialized message with a fresh id and the current time.
func NewMessage(role Role, content, parentID string) Message {
	return Message{
		ID:          uuid.NewString(),
		ParentID:    parentID,
		ChildrenIDs: []string{},
		Role:        role,
		Content:     content,
		Timestamp:   time.Now().Unix(),
		Done:        true,
	}
}

// Attribute records which backend produced an assistant message.
func (m Message) Attribute(model string, idx int) Message {
	m.Model = model
	m.ModelName = model
	m.ModelIdx = idx
	return m
}

func (m Message) clone() Message {
	m.ChildrenIDs = slices.Clone(m.ChildrenIDs)
	if m.ChildrenIDs == nil {
		m.ChildrenIDs = []string{}
	}
	return m
}

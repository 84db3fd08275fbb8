package models

import "time"

// AIAgentID is the sentinel author ID for assistant-generated messages.
// It can never collide with a real user ID.
const AIAgentID = "AI_AGENT"

// Message is a single chat message scoped to a workspace.
type Message struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// FromAI reports whether the message was authored by the assistant.
func (m *Message) FromAI() bool { return m.AuthorID == AIAgentID }

// Fields converts the message to a document field map.
func (m *Message) Fields() map[string]any {
	return map[string]any{
		"workspaceId": m.WorkspaceID,
		"authorId":    m.AuthorID,
		"authorName":  m.AuthorName,
		"body":        m.Body,
		"createdAt":   timeField(m.CreatedAt),
	}
}

// MessageFromDoc builds a Message from a document snapshot.
func MessageFromDoc(id string, fields map[string]any) *Message {
	return &Message{
		ID:          id,
		WorkspaceID: fieldString(fields, "workspaceId"),
		AuthorID:    fieldString(fields, "authorId"),
		AuthorName:  fieldString(fields, "authorName"),
		Body:        fieldString(fields, "body"),
		CreatedAt:   fieldTime(fields, "createdAt"),
	}
}

package message

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type classifies the payload of a message.
type Type string

const (
	TypeText   Type = "text"
	TypeImage  Type = "image"
	TypeFile   Type = "file"
	TypeSystem Type = "system"
)

// MaxBodyLength is the longest accepted message body.
const MaxBodyLength = 1000

// EditWindow is how long after sending a message stays editable.
const EditWindow = 24 * time.Hour

// SystemSender is the synthetic sender id used for system messages.
const SystemSender = "system"

// Message is a direct, room or broadcast chat message. ToUser and Room are
// mutually exclusive; with neither set the message is a broadcast.
// JSON field names match the public wire format.
type Message struct {
	ID       string     `json:"id"`
	FromUser string     `json:"fromUser"`
	ToUser   string     `json:"toUser,omitempty"`
	Room     string     `json:"roomFromMessage,omitempty"`
	Body     string     `json:"message"`
	SentAt   time.Time  `json:"messageDate"`
	Type     Type       `json:"messageType"`
	IsEdited bool       `json:"isEdited"`
	EditedAt *time.Time `json:"editedAt,omitempty"`
	ReplyTo  string     `json:"replyTo,omitempty"`
}

func newMessage(from string, body string, typ Type) *Message {
	return &Message{
		ID:       uuid.NewString(),
		FromUser: from,
		Body:     body,
		SentAt:   time.Now().UTC(),
		Type:     typ,
	}
}

// NewDirect creates a text message addressed to a single user.
func NewDirect(from, to, body string) *Message {
	m := newMessage(from, body, TypeText)
	m.ToUser = to
	return m
}

// NewRoom creates a text message addressed to a room.
func NewRoom(from, room, body string) *Message {
	m := newMessage(from, body, TypeText)
	m.Room = room
	return m
}

// NewBroadcast creates a text message with global scope.
func NewBroadcast(from, body string) *Message {
	return newMessage(from, body, TypeText)
}

// NewSystem creates a system notice, optionally scoped to a room. System
// messages are never editable.
func NewSystem(body, room string) *Message {
	m := newMessage(SystemSender, body, TypeSystem)
	m.Room = room
	return m
}

// NewReply creates a text reply to another message. Addressing follows the
// same direct/room/broadcast rules as any other message.
func NewReply(from, replyTo, body, to, room string) *Message {
	m := newMessage(from, body, TypeText)
	m.ReplyTo = replyTo
	m.ToUser = to
	m.Room = room
	return m
}

// IsValidBody reports whether the body is non-empty after trimming and
// within the length limit.
func (m *Message) IsValidBody() bool {
	return strings.TrimSpace(m.Body) != "" && len(m.Body) <= MaxBodyLength
}

// IsValidType reports whether the type is one of the known kinds.
func (m *Message) IsValidType() bool {
	switch m.Type {
	case TypeText, TypeImage, TypeFile, TypeSystem:
		return true
	}
	return false
}

// IsValidForSending reports whether the message may be persisted: valid body
// and type, a sender, and unambiguous addressing.
func (m *Message) IsValidForSending() bool {
	return m.IsValidBody() && m.IsValidType() && m.FromUser != "" &&
		!(m.ToUser != "" && m.Room != "")
}

// IsDirect reports whether the message is addressed to a single user.
func (m *Message) IsDirect() bool { return m.ToUser != "" && m.Room == "" }

// IsRoomMessage reports whether the message is addressed to a room.
func (m *Message) IsRoomMessage() bool { return m.Room != "" && m.ToUser == "" }

// IsBroadcast reports whether the message has neither recipient nor room.
func (m *Message) IsBroadcast() bool { return m.ToUser == "" && m.Room == "" }

// IsSystem reports whether the message is a system notice.
func (m *Message) IsSystem() bool { return m.Type == TypeSystem }

// IsReply reports whether the message replies to another message.
func (m *Message) IsReply() bool { return m.ReplyTo != "" }

// CanEdit reports whether userID may edit this message: only the sender,
// only non-system messages, and only within the edit window.
func (m *Message) CanEdit(userID string) bool {
	return m.FromUser == userID && m.Type != TypeSystem && !m.OlderThan(EditWindow)
}

// CanDelete reports whether userID may delete this message. Deletion has no
// time limit.
func (m *Message) CanDelete(userID string) bool {
	return m.FromUser == userID
}

// OlderThan reports whether the message was sent more than d ago.
func (m *Message) OlderThan(d time.Duration) bool {
	return m.SentAt.Before(time.Now().Add(-d))
}

// Edit replaces the body and stamps the edit metadata. Editing with
// identical content is a no-op.
func (m *Message) Edit(newBody string) {
	if m.Body == newBody {
		return
	}
	m.Body = newBody
	m.IsEdited = true
	now := time.Now().UTC()
	m.EditedAt = &now
}

// Preview returns the body truncated to maxLen with an ellipsis marker.
func (m *Message) Preview(maxLen int) string {
	if len(m.Body) <= maxLen {
		return m.Body
	}
	return m.Body[:maxLen] + "..."
}

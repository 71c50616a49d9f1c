package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"relay/infrastructure"
)

// Page is a slice of messages plus the exact total matching the query,
// so callers can compute pagination metadata.
type Page struct {
	Messages []*Message
	Total    int
}

// HasMore reports whether rows remain past the given offset.
func (p *Page) HasMore(offset int) bool {
	return offset+len(p.Messages) < p.Total
}

// Stats summarizes a user's messaging activity.
type Stats struct {
	TotalSent     int `json:"totalSent"`
	TotalReceived int `json:"totalReceived"`
	TotalEdited   int `json:"totalEdited"`
}

// Repository is the persistence contract for messages. Absence is reported
// as infrastructure.ErrMessageNotFound; any other error is a storage failure.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	// Conversation returns direct messages between two users in ascending
	// date order (conversation reading order).
	Conversation(ctx context.Context, userA, userB string, limit, offset int) (*Page, error)
	// RoomMessages returns a room's messages, most recent first.
	RoomMessages(ctx context.Context, room string, limit, offset int) (*Page, error)
	// UserMessages returns messages the user sent or received, most recent first.
	UserMessages(ctx context.Context, userID string, limit, offset int) (*Page, error)
	// Update applies edit semantics on behalf of requesterID. A missing
	// message and a foreign message are indistinguishable to the caller;
	// an owned message outside the edit rules yields ErrEditNotAllowed.
	Update(ctx context.Context, id, requesterID, newBody string) (*Message, error)
	// Delete removes a message only when requesterID is its sender.
	Delete(ctx context.Context, id, requesterID string) error
	// RecentConversations returns, for each counterpart the user exchanged
	// direct messages with, that conversation's latest message, newest first.
	RecentConversations(ctx context.Context, userID string, limit int) ([]*Message, error)
	// Search performs a case-insensitive substring match on message bodies,
	// optionally restricted to messages the user sent or received.
	Search(ctx context.Context, text, userID string, limit int) ([]*Message, error)
	// Replies returns all messages replying to the given id, oldest first.
	Replies(ctx context.Context, id string) ([]*Message, error)
	CountConversation(ctx context.Context, userA, userB string) (int, error)
	CountRoom(ctx context.Context, room string) (int, error)
	UserStats(ctx context.Context, userID string) (*Stats, error)
}

type repository struct {
	db *sql.DB
}

// NewRepository creates a SQL-backed message repository.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const messageColumns = `id, from_user, to_user, room_id, message, message_date, message_type, is_edited, edited_at, reply_to`

func (r *repository) Create(ctx context.Context, m *Message) error {
	if !m.IsValidForSending() {
		return fmt.Errorf("%w: message not valid for sending", infrastructure.ErrInvalidInput)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, from_user, to_user, room_id, message, message_date, message_type, reply_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.FromUser, nullable(m.ToUser), nullable(m.Room),
		m.Body, m.SentAt, string(m.Type), nullable(m.ReplyTo))
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, infrastructure.ErrMessageNotFound
		}
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return m, nil
}

func (r *repository) Conversation(ctx context.Context, userA, userB string, limit, offset int) (*Page, error) {
	msgs, err := r.query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE (from_user = $1 AND to_user = $2) OR (from_user = $2 AND to_user = $1)
		ORDER BY message_date ASC
		LIMIT $3 OFFSET $4`,
		userA, userB, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("conversation %s/%s: %w", userA, userB, err)
	}

	total, err := r.CountConversation(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	return &Page{Messages: msgs, Total: total}, nil
}

func (r *repository) RoomMessages(ctx context.Context, room string, limit, offset int) (*Page, error) {
	msgs, err := r.query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE room_id = $1
		ORDER BY message_date DESC
		LIMIT $2 OFFSET $3`,
		room, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("room messages %s: %w", room, err)
	}

	total, err := r.CountRoom(ctx, room)
	if err != nil {
		return nil, err
	}
	return &Page{Messages: msgs, Total: total}, nil
}

func (r *repository) UserMessages(ctx context.Context, userID string, limit, offset int) (*Page, error) {
	msgs, err := r.query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE from_user = $1 OR to_user = $1
		ORDER BY message_date DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("user messages %s: %w", userID, err)
	}

	var total int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE from_user = $1 OR to_user = $1`,
		userID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count user messages %s: %w", userID, err)
	}
	return &Page{Messages: msgs, Total: total}, nil
}

func (r *repository) Update(ctx context.Context, id, requesterID, newBody string) (*Message, error) {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// A foreign message reads the same as a missing one.
	if m.FromUser != requesterID {
		return nil, infrastructure.ErrMessageNotFound
	}
	if !m.CanEdit(requesterID) {
		return nil, infrastructure.ErrEditNotAllowed
	}

	m.Edit(newBody)
	if !m.IsEdited {
		return m, nil
	}

	err = infrastructure.WithTransaction(r.db, ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE messages SET message = $1, is_edited = $2, edited_at = $3
			WHERE id = $4 AND from_user = $5`,
			m.Body, m.IsEdited, m.EditedAt, id, requesterID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update message %s: %w", id, err)
	}
	return m, nil
}

func (r *repository) Delete(ctx context.Context, id, requesterID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE id = $1 AND from_user = $2`, id, requesterID)
	if err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return infrastructure.ErrMessageNotFound
	}
	return nil
}

func (r *repository) RecentConversations(ctx context.Context, userID string, limit int) ([]*Message, error) {
	msgs, err := r.query(ctx, `
		SELECT m1.id, m1.from_user, m1.to_user, m1.room_id, m1.message,
		       m1.message_date, m1.message_type, m1.is_edited, m1.edited_at, m1.reply_to
		FROM messages m1
		INNER JOIN (
			SELECT CASE WHEN from_user = $1 THEN to_user ELSE from_user END AS other_user,
			       MAX(message_date) AS last_message_date
			FROM messages
			WHERE (from_user = $1 OR to_user = $1) AND to_user IS NOT NULL AND room_id IS NULL
			GROUP BY other_user
		) m2 ON (
			(m1.from_user = $1 AND m1.to_user = m2.other_user) OR
			(m1.from_user = m2.other_user AND m1.to_user = $1)
		) AND m1.message_date = m2.last_message_date
		ORDER BY m1.message_date DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent conversations %s: %w", userID, err)
	}
	return msgs, nil
}

func (r *repository) Search(ctx context.Context, text, userID string, limit int) ([]*Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM messages
		WHERE LOWER(message) LIKE '%' || LOWER($1) || '%'`
	args := []any{text}

	if userID != "" {
		query += ` AND (from_user = $2 OR to_user = $2)`
		args = append(args, userID)
		query += ` ORDER BY message_date DESC LIMIT $3`
	} else {
		query += ` ORDER BY message_date DESC LIMIT $2`
	}
	args = append(args, limit)

	msgs, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	return msgs, nil
}

func (r *repository) Replies(ctx context.Context, id string) ([]*Message, error) {
	msgs, err := r.query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE reply_to = $1
		ORDER BY message_date ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("replies %s: %w", id, err)
	}
	return msgs, nil
}

func (r *repository) CountConversation(ctx context.Context, userA, userB string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE (from_user = $1 AND to_user = $2) OR (from_user = $2 AND to_user = $1)`,
		userA, userB).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count conversation: %w", err)
	}
	return n, nil
}

func (r *repository) CountRoom(ctx context.Context, room string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE room_id = $1`, room).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count room: %w", err)
	}
	return n, nil
}

// UserStats computes sent, received and edited counts as three independent
// queries.
func (r *repository) UserStats(ctx context.Context, userID string) (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM messages WHERE from_user = $1`, &stats.TotalSent},
		{`SELECT COUNT(*) FROM messages WHERE to_user = $1`, &stats.TotalReceived},
		{`SELECT COUNT(*) FROM messages WHERE from_user = $1 AND is_edited = TRUE`, &stats.TotalEdited},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.query, userID).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("user stats %s: %w", userID, err)
		}
	}
	return stats, nil
}

func (r *repository) query(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	m := &Message{}
	var toUser, room, replyTo sql.NullString
	var editedAt sql.NullTime
	var typ string

	err := row.Scan(&m.ID, &m.FromUser, &toUser, &room, &m.Body,
		&m.SentAt, &typ, &m.IsEdited, &editedAt, &replyTo)
	if err != nil {
		return nil, err
	}

	m.ToUser = toUser.String
	m.Room = room.String
	m.ReplyTo = replyTo.String
	m.Type = Type(typ)
	if editedAt.Valid {
		t := editedAt.Time
		m.EditedAt = &t
	}
	return m, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

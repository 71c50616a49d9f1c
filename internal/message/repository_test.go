package message

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"relay/infrastructure"
	"relay/internal/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db, zerolog.Nop()))
	return db
}

// sendAt persists m with an explicit send time so ordering assertions are
// deterministic.
func sendAt(t *testing.T, repo Repository, m *Message, at time.Time) *Message {
	t.Helper()
	m.SentAt = at.UTC()
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

func TestCreateRejectsInvalidMessages(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	empty := NewDirect("alice", "bob", "   ")
	req.ErrorIs(repo.Create(ctx, empty), infrastructure.ErrInvalidInput)

	ambiguous := NewDirect("alice", "bob", "hi")
	ambiguous.Room = "general"
	req.ErrorIs(repo.Create(ctx, ambiguous), infrastructure.ErrInvalidInput)
}

func TestCreateAndGetByID(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	sent := sendAt(t, repo, NewDirect("alice", "bob", "hi bob"), time.Now())

	got, err := repo.GetByID(ctx, sent.ID)
	req.NoError(err)
	req.Equal(sent.ID, got.ID)
	req.Equal("alice", got.FromUser)
	req.Equal("bob", got.ToUser)
	req.Empty(got.Room)
	req.Equal("hi bob", got.Body)
	req.Equal(TypeText, got.Type)
	req.False(got.IsEdited)
	req.Nil(got.EditedAt)
	req.Empty(got.ReplyTo)
	req.WithinDuration(sent.SentAt, got.SentAt, time.Second)

	_, err = repo.GetByID(ctx, "no-such-id")
	req.ErrorIs(err, infrastructure.ErrMessageNotFound)
}

func TestConversationOldestFirstWithPagination(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	bodies := []string{"one", "two", "three", "four", "five"}
	for i, body := range bodies {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = "bob", "alice"
		}
		sendAt(t, repo, NewDirect(from, to, body), base.Add(time.Duration(i)*time.Minute))
	}
	// Noise that must never leak into the conversation.
	sendAt(t, repo, NewDirect("alice", "carol", "hi carol"), base)
	sendAt(t, repo, NewRoom("alice", "general", "hi room"), base)

	page, err := repo.Conversation(ctx, "alice", "bob", 2, 0)
	req.NoError(err)
	req.Equal(5, page.Total)
	req.Len(page.Messages, 2)
	req.Equal("one", page.Messages[0].Body)
	req.Equal("two", page.Messages[1].Body)
	req.True(page.HasMore(0))

	// Direction of the pair must not matter.
	mirrored, err := repo.Conversation(ctx, "bob", "alice", 2, 0)
	req.NoError(err)
	req.Equal(5, mirrored.Total)
	req.Equal("one", mirrored.Messages[0].Body)

	last, err := repo.Conversation(ctx, "alice", "bob", 2, 4)
	req.NoError(err)
	req.Len(last.Messages, 1)
	req.Equal("five", last.Messages[0].Body)
	req.False(last.HasMore(4))
}

func TestRoomMessagesNewestFirst(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, body := range []string{"one", "two", "three"} {
		sendAt(t, repo, NewRoom("alice", "general", body), base.Add(time.Duration(i)*time.Minute))
	}
	sendAt(t, repo, NewRoom("bob", "random", "elsewhere"), base)
	sendAt(t, repo, NewDirect("alice", "bob", "private"), base)

	page, err := repo.RoomMessages(ctx, "general", 10, 0)
	req.NoError(err)
	req.Equal(3, page.Total)
	req.Len(page.Messages, 3)
	req.Equal("three", page.Messages[0].Body)
	req.Equal("two", page.Messages[1].Body)
	req.Equal("one", page.Messages[2].Body)
	req.False(page.HasMore(0))
}

func TestUserMessagesNewestFirstWithTotal(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	sendAt(t, repo, NewDirect("alice", "bob", "sent"), base)
	sendAt(t, repo, NewDirect("bob", "alice", "received"), base.Add(time.Minute))
	sendAt(t, repo, NewRoom("alice", "general", "room"), base.Add(2*time.Minute))
	sendAt(t, repo, NewDirect("bob", "carol", "unrelated"), base.Add(3*time.Minute))

	page, err := repo.UserMessages(ctx, "alice", 10, 0)
	req.NoError(err)
	req.Equal(3, page.Total)
	req.Len(page.Messages, 3)
	req.Equal("room", page.Messages[0].Body)
	req.Equal("received", page.Messages[1].Body)
	req.Equal("sent", page.Messages[2].Body)

	limited, err := repo.UserMessages(ctx, "alice", 2, 0)
	req.NoError(err)
	req.Equal(3, limited.Total)
	req.Len(limited.Messages, 2)
	req.True(limited.HasMore(0))
}

func TestUpdateAppliesEdit(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	sent := sendAt(t, repo, NewDirect("alice", "bob", "hi"), time.Now())

	edited, err := repo.Update(ctx, sent.ID, "alice", "hi there")
	req.NoError(err)
	req.Equal("hi there", edited.Body)
	req.True(edited.IsEdited)
	req.NotNil(edited.EditedAt)

	stored, err := repo.GetByID(ctx, sent.ID)
	req.NoError(err)
	req.Equal("hi there", stored.Body)
	req.True(stored.IsEdited)
	req.NotNil(stored.EditedAt)

	// A second distinct edit within the window applies as well.
	again, err := repo.Update(ctx, sent.ID, "alice", "hi again")
	req.NoError(err)
	req.Equal("hi again", again.Body)
	req.True(again.IsEdited)

	// Re-submitting the same content leaves the edit stamp alone.
	prior := *again.EditedAt
	same, err := repo.Update(ctx, sent.ID, "alice", "hi again")
	req.NoError(err)
	req.Equal("hi again", same.Body)
	req.WithinDuration(prior, *same.EditedAt, time.Second)
}

func TestUpdateIdenticalContentLeavesEditStateUntouched(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	sent := sendAt(t, repo, NewDirect("alice", "bob", "hi"), time.Now())

	same, err := repo.Update(ctx, sent.ID, "alice", "hi")
	req.NoError(err)
	req.False(same.IsEdited)
	req.Nil(same.EditedAt)

	stored, err := repo.GetByID(ctx, sent.ID)
	req.NoError(err)
	req.False(stored.IsEdited)
	req.Nil(stored.EditedAt)
}

func TestUpdateForeignMessageReadsAsMissing(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	sent := sendAt(t, repo, NewDirect("alice", "bob", "hi"), time.Now())

	_, err := repo.Update(ctx, sent.ID, "bob", "hijacked")
	req.ErrorIs(err, infrastructure.ErrMessageNotFound)

	_, err = repo.Update(ctx, "no-such-id", "alice", "hi")
	req.ErrorIs(err, infrastructure.ErrMessageNotFound)

	stored, err := repo.GetByID(ctx, sent.ID)
	req.NoError(err)
	req.Equal("hi", stored.Body)
}

func TestUpdateOutsideEditWindow(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	stale := sendAt(t, repo, NewDirect("alice", "bob", "hi"), time.Now().Add(-EditWindow-time.Minute))

	_, err := repo.Update(ctx, stale.ID, "alice", "too late")
	req.ErrorIs(err, infrastructure.ErrEditNotAllowed)
}

func TestDeleteOwnerOnly(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	sent := sendAt(t, repo, NewDirect("alice", "bob", "hi"), time.Now())

	req.ErrorIs(repo.Delete(ctx, sent.ID, "bob"), infrastructure.ErrMessageNotFound)
	_, err := repo.GetByID(ctx, sent.ID)
	req.NoError(err)

	req.NoError(repo.Delete(ctx, sent.ID, "alice"))
	_, err = repo.GetByID(ctx, sent.ID)
	req.ErrorIs(err, infrastructure.ErrMessageNotFound)

	req.ErrorIs(repo.Delete(ctx, sent.ID, "alice"), infrastructure.ErrMessageNotFound)
}

func TestRecentConversations(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	sendAt(t, repo, NewDirect("alice", "bob", "old bob"), base)
	sendAt(t, repo, NewDirect("bob", "alice", "latest bob"), base.Add(10*time.Minute))
	sendAt(t, repo, NewDirect("alice", "carol", "latest carol"), base.Add(5*time.Minute))
	// Room and broadcast traffic never forms a conversation.
	sendAt(t, repo, NewRoom("alice", "general", "room"), base.Add(20*time.Minute))
	sendAt(t, repo, NewBroadcast("alice", "broadcast"), base.Add(20*time.Minute))

	recent, err := repo.RecentConversations(ctx, "alice", 10)
	req.NoError(err)
	req.Len(recent, 2)
	req.Equal("latest bob", recent[0].Body)
	req.Equal("latest carol", recent[1].Body)
}

func TestSearchCaseInsensitive(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	sendAt(t, repo, NewDirect("alice", "bob", "Deploy the Server"), base)
	sendAt(t, repo, NewDirect("bob", "alice", "server is down"), base.Add(time.Minute))
	sendAt(t, repo, NewDirect("carol", "dave", "server room keys"), base.Add(2*time.Minute))
	sendAt(t, repo, NewDirect("alice", "bob", "lunch?"), base.Add(3*time.Minute))

	all, err := repo.Search(ctx, "SERVER", "", 10)
	req.NoError(err)
	req.Len(all, 3)
	req.Equal("server room keys", all[0].Body)

	scoped, err := repo.Search(ctx, "server", "alice", 10)
	req.NoError(err)
	req.Len(scoped, 2)
	for _, m := range scoped {
		req.True(m.FromUser == "alice" || m.ToUser == "alice")
	}

	limited, err := repo.Search(ctx, "server", "", 1)
	req.NoError(err)
	req.Len(limited, 1)
}

func TestRepliesOldestFirst(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	parent := sendAt(t, repo, NewRoom("alice", "general", "question"), base)
	sendAt(t, repo, NewReply("bob", parent.ID, "second answer", "", "general"), base.Add(2*time.Minute))
	sendAt(t, repo, NewReply("carol", parent.ID, "first answer", "", "general"), base.Add(time.Minute))
	sendAt(t, repo, NewRoom("dave", "general", "unrelated"), base.Add(3*time.Minute))

	replies, err := repo.Replies(ctx, parent.ID)
	req.NoError(err)
	req.Len(replies, 2)
	req.Equal("first answer", replies[0].Body)
	req.Equal("second answer", replies[1].Body)
	req.Equal(parent.ID, replies[0].ReplyTo)
}

func TestCounts(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	sendAt(t, repo, NewDirect("alice", "bob", "one"), base)
	sendAt(t, repo, NewDirect("bob", "alice", "two"), base.Add(time.Minute))
	sendAt(t, repo, NewRoom("alice", "general", "three"), base.Add(2*time.Minute))

	n, err := repo.CountConversation(ctx, "alice", "bob")
	req.NoError(err)
	req.Equal(2, n)

	n, err = repo.CountRoom(ctx, "general")
	req.NoError(err)
	req.Equal(1, n)

	n, err = repo.CountRoom(ctx, "empty-room")
	req.NoError(err)
	req.Zero(n)
}

func TestUserStats(t *testing.T) {
	req := require.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	edited := sendAt(t, repo, NewDirect("alice", "bob", "one"), base)
	sendAt(t, repo, NewDirect("alice", "carol", "two"), base.Add(time.Minute))
	sendAt(t, repo, NewDirect("bob", "alice", "three"), base.Add(2*time.Minute))

	_, err := repo.Update(ctx, edited.ID, "alice", "one, edited")
	req.NoError(err)

	stats, err := repo.UserStats(ctx, "alice")
	req.NoError(err)
	req.Equal(2, stats.TotalSent)
	req.Equal(1, stats.TotalReceived)
	req.Equal(1, stats.TotalEdited)
}

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/atlas/internal/config"
	"github.com/moolen/atlas/internal/models"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, config.Default().Redis), mr
}

func testEvent(sessionID string, occurredAt time.Time) *models.Event {
	return &models.Event{
		EventID:    uuid.New(),
		EventType:  "tool.invoke",
		OccurredAt: occurredAt,
		SessionID:  sessionID,
		AgentID:    "agent-1",
		TraceID:    "trace-1",
		PayloadRef: "mem://payload/1",
	}
}

func TestAppend_AssignsGlobalPosition(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	position, err := store.Append(ctx, testEvent("sess-1", time.Now().UTC()))
	require.NoError(t, err)
	assert.NotEmpty(t, position)

	length, err := store.StreamLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestAppend_DuplicateReturnsOriginalPosition(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	event := testEvent("sess-1", time.Now().UTC())
	first, err := store.Append(ctx, event)
	require.NoError(t, err)

	second, err := store.Append(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// The duplicate must not grow the stream.
	length, err := store.StreamLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestAppend_MirrorsToSessionStream(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	event := testEvent("sess-mirror", time.Now().UTC())
	position, err := store.Append(ctx, event)
	require.NoError(t, err)

	entries, err := store.client.XRange(ctx, store.SessionStreamKey("sess-mirror"), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, position, entries[0].ID)
	assert.Equal(t, event.EventID.String(), entries[0].Values["event_id"])
}

func TestGetByID_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	hint := 7
	event := testEvent("sess-1", time.Now().UTC().Truncate(time.Millisecond))
	event.ToolName = "search"
	event.ImportanceHint = &hint

	position, err := store.Append(ctx, event)
	require.NoError(t, err)

	got, err := store.GetByID(ctx, event.EventID.String())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, event.EventID, got.EventID)
	assert.Equal(t, event.EventType, got.EventType)
	assert.Equal(t, "search", got.ToolName)
	assert.Equal(t, 7, *got.ImportanceHint)
	// The stored document carries the assigned position.
	assert.Equal(t, position, got.GlobalPosition)
}

func TestGetByID_Missing(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.GetByID(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAppendBatch_PreservesOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	events := []*models.Event{
		testEvent("sess-batch", base),
		testEvent("sess-batch", base.Add(time.Second)),
		testEvent("sess-batch", base.Add(2*time.Second)),
	}

	positions, err := store.AppendBatch(ctx, events)
	require.NoError(t, err)
	require.Len(t, positions, 3)
	assert.Less(t, positions[0], positions[1])
	assert.Less(t, positions[1], positions[2])
}

func TestGetBySession(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	first := testEvent("sess-read", base)
	second := testEvent("sess-read", base.Add(time.Second))
	other := testEvent("sess-other", base)

	for _, e := range []*models.Event{first, second, other} {
		_, err := store.Append(ctx, e)
		require.NoError(t, err)
	}

	events, next, err := store.GetBySession(ctx, "sess-read", 100, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.EventID, events[0].EventID)
	assert.Equal(t, second.EventID, events[1].EventID)
	assert.Zero(t, next)
}

func TestGetBySession_OrdersByOccurredAt(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	late := testEvent("sess-ooo", base.Add(time.Minute))
	early := testEvent("sess-ooo", base)

	// Submitted out of time order.
	for _, e := range []*models.Event{late, early} {
		_, err := store.Append(ctx, e)
		require.NoError(t, err)
	}

	events, _, err := store.GetBySession(ctx, "sess-ooo", 100, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, early.EventID, events[0].EventID)
	assert.Equal(t, late.EventID, events[1].EventID)
}

func TestGetBySession_CursorPaginates(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	var all []*models.Event
	for i := 0; i < 5; i++ {
		e := testEvent("sess-page", base.Add(time.Duration(i)*time.Second))
		all = append(all, e)
		_, err := store.Append(ctx, e)
		require.NoError(t, err)
	}

	page, next, err := store.GetBySession(ctx, "sess-page", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[0].EventID, page[0].EventID)
	assert.Equal(t, int64(2), next)

	page, next, err = store.GetBySession(ctx, "sess-page", 2, next)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[2].EventID, page[0].EventID)
	assert.Equal(t, int64(4), next)

	// The final page exhausts the session.
	page, next, err = store.GetBySession(ctx, "sess-page", 2, next)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[4].EventID, page[0].EventID)
	assert.Zero(t, next)

	// A cursor past the end returns an empty page.
	page, next, err = store.GetBySession(ctx, "sess-page", 2, 99)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Zero(t, next)
}

func TestDeleteExpiredDocs(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := testEvent("sess-exp", now.Add(-100*24*time.Hour))
	fresh := testEvent("sess-exp", now)
	for _, e := range []*models.Event{old, fresh} {
		_, err := store.Append(ctx, e)
		require.NoError(t, err)
	}

	deleted, err := store.DeleteExpiredDocs(ctx, 90*24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	gone, err := store.GetByID(ctx, old.EventID.String())
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := store.GetByID(ctx, fresh.EventID.String())
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestCleanupDedupSet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// The first event was ingested 100 days ago, the second just now.
	old := testEvent("sess-dedup", now.Add(-100*24*time.Hour))
	store.now = func() time.Time { return now.Add(-100 * 24 * time.Hour) }
	_, err := store.Append(ctx, old)
	require.NoError(t, err)

	store.now = func() time.Time { return now }
	fresh := testEvent("sess-dedup", now)
	_, err = store.Append(ctx, fresh)
	require.NoError(t, err)

	removed, err := store.CleanupDedupSet(ctx, 90*24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// The fresh entry still dedups.
	length, _ := store.StreamLength(ctx)
	_, err = store.Append(ctx, fresh)
	require.NoError(t, err)
	after, _ := store.StreamLength(ctx)
	assert.Equal(t, length, after)
}

func TestCleanupDedupSet_BackdatedEventKeepsEntry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// An event with an old occurred_at but ingested just now must keep
	// its dedup entry for the full retention window.
	backdated := testEvent("sess-backdate", now.Add(-100*24*time.Hour))
	first, err := store.Append(ctx, backdated)
	require.NoError(t, err)

	removed, err := store.CleanupDedupSet(ctx, 90*24*time.Hour, now)
	require.NoError(t, err)
	assert.Zero(t, removed)

	second, err := store.Append(ctx, backdated)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEscapeTagValue(t *testing.T) {
	assert.Equal(t, `sess\-1`, EscapeTagValue("sess-1"))
	assert.Equal(t, `tool\.invoke`, EscapeTagValue("tool.invoke"))
	assert.Equal(t, `a\ b`, EscapeTagValue("a b"))
	assert.Equal(t, "plain", EscapeTagValue("plain"))
}

func TestBuildSearchQuery(t *testing.T) {
	after := time.UnixMilli(1000).UTC()
	before := time.UnixMilli(2000).UTC()

	tests := []struct {
		name  string
		query models.EventQuery
		want  string
	}{
		{"empty", models.EventQuery{}, "*"},
		{"session only", models.EventQuery{SessionID: "sess-1"}, `@session_id:{sess\-1}`},
		{
			"composite",
			models.EventQuery{SessionID: "s1", EventType: "tool.invoke"},
			`@session_id:{s1} @event_type:{tool\.invoke}`,
		},
		{
			"time range",
			models.EventQuery{After: &after, Before: &before},
			"@occurred_at_epoch_ms:[1000 2000]",
		},
		{
			"open-ended range",
			models.EventQuery{After: &after},
			"@occurred_at_epoch_ms:[1000 +inf]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildSearchQuery(&tt.query))
		})
	}
}

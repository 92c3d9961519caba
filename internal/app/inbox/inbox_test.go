package inbox

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waxtrade/internal/app/dto"
	"waxtrade/internal/infra/api"
	"waxtrade/internal/infra/security"
	"waxtrade/internal/infra/stub"
)

type env struct {
	alice, bob     *api.Client
	aliceID, bobID string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	backend := stub.NewServer("test-secret", time.Hour, nil)
	srv := httptest.NewServer(backend.Router("test"))
	t.Cleanup(srv.Close)

	newClient := func() *api.Client {
		client, err := api.NewClient(api.Config{BaseURL: srv.URL + "/api/v1"}, nil)
		require.NoError(t, err)
		return client
	}
	alice, bob := newClient(), newClient()

	aliceProfile, err := alice.Register(ctx, dto.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "password1",
	})
	require.NoError(t, err)
	bobProfile, err := bob.Register(ctx, dto.RegisterRequest{
		Username: "bob", Email: "bob@example.com", Password: "password1",
	})
	require.NoError(t, err)

	return &env{alice: alice, bob: bob, aliceID: aliceProfile.ID, bobID: bobProfile.ID}
}

func (e *env) startConversation(t *testing.T, title string) dto.Conversation {
	t.Helper()
	ctx := context.Background()
	rec, err := e.alice.CreateRecord(ctx, dto.CreateRecordRequest{Title: title, Artist: "Various"})
	require.NoError(t, err)
	conv, err := e.bob.StartConversation(ctx, rec.ID)
	require.NoError(t, err)
	return conv
}

func TestSummariesDeriveBadges(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first := e.startConversation(t, "Blue Train")
	second := e.startConversation(t, "Horses")

	// two unread for bob in the first thread, a pending confirmation in the second
	require.NoError(t, e.alice.SendMessage(ctx, first.ID, "hey"))
	require.NoError(t, e.alice.SendMessage(ctx, first.ID, "still interested?"))
	_, err := e.alice.InitiateTrade(ctx, second.ID)
	require.NoError(t, err)

	view := NewListView(e.bob, nil)
	require.NoError(t, view.Load(ctx))

	rows := view.Summaries()
	require.Len(t, rows, 2)
	byID := make(map[string]Summary, len(rows))
	for _, row := range rows {
		byID[row.ConversationID] = row
	}

	assert.Equal(t, 2, byID[first.ID].UnreadCount)
	assert.False(t, byID[first.ID].PendingConfirmation)
	assert.Equal(t, 2, byID[first.ID].TotalNotifications)
	assert.Equal(t, e.aliceID, byID[first.ID].Other.ID)

	assert.Zero(t, byID[second.ID].UnreadCount)
	assert.True(t, byID[second.ID].PendingConfirmation)
	assert.Equal(t, 1, byID[second.ID].TotalNotifications)

	// the initiator sees no pending-confirmation badge
	aliceView := NewListView(e.alice, nil)
	require.NoError(t, aliceView.Load(ctx))
	for _, row := range aliceView.Summaries() {
		assert.False(t, row.PendingConfirmation)
	}
}

func TestLoadKeepsSnapshotOnFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.startConversation(t, "Kind of Blue")

	view := NewListView(e.bob, nil)
	require.NoError(t, view.Load(ctx))
	require.Len(t, view.Conversations(), 1)

	e.bob.UseCredential(security.Credential{Token: "forged", UserID: e.bobID})
	err := view.Load(ctx)
	require.Error(t, err)
	assert.True(t, api.IsAuth(err))
	assert.Len(t, view.Conversations(), 1, "failed loads keep the previous snapshot")
}

func TestWatcherCountsAndPoke(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	conv := e.startConversation(t, "Remain in Light")

	w := NewWatcher(e.bob, time.Hour, nil) // interval long enough that only pokes poll
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(runCtx) }()

	select {
	case count := <-w.Updates():
		t.Fatalf("no unread yet, got update %d", count)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, e.alice.SendMessage(ctx, conv.ID, "one"))
	require.NoError(t, e.alice.SendMessage(ctx, conv.ID, "two"))
	w.Poke()

	select {
	case count := <-w.Updates():
		assert.Equal(t, 2, count)
	case <-time.After(2 * time.Second):
		t.Fatal("poke must trigger an immediate re-poll")
	}
	assert.Equal(t, 2, w.Count())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watcher must stop on cancellation")
	}
}

func TestWatcherStopsOnAuthRejection(t *testing.T) {
	e := newEnv(t)
	e.bob.UseCredential(security.Credential{Token: "forged", UserID: e.bobID})

	w := NewWatcher(e.bob, time.Hour, nil)
	err := w.Run(context.Background())
	assert.ErrorIs(t, err, ErrWatcherAuth)
}

package session

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waxtrade/internal/app/dto"
	"waxtrade/internal/app/notify"
	"waxtrade/internal/infra/api"
	"waxtrade/internal/infra/security"
	"waxtrade/internal/infra/stub"
)

// env is one stub backend with two authenticated participants talking
// about one record.
type env struct {
	alice, bob     *api.Client
	aliceID, bobID string
	convID         string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	backend := stub.NewServer("test-secret", time.Hour, nil)
	srv := httptest.NewServer(backend.Router("test"))
	t.Cleanup(srv.Close)

	alice := newClient(t, srv.URL)
	bob := newClient(t, srv.URL)

	aliceProfile, err := alice.Register(ctx, dto.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "password1",
	})
	require.NoError(t, err)
	bobProfile, err := bob.Register(ctx, dto.RegisterRequest{
		Username: "bob", Email: "bob@example.com", Password: "password1",
	})
	require.NoError(t, err)

	rec, err := alice.CreateRecord(ctx, dto.CreateRecordRequest{
		Title: "Kind of Blue", Artist: "Miles Davis",
	})
	require.NoError(t, err)

	conv, err := bob.StartConversation(ctx, rec.ID)
	require.NoError(t, err)

	return &env{
		alice:   alice,
		bob:     bob,
		aliceID: aliceProfile.ID,
		bobID:   bobProfile.ID,
		convID:  conv.ID,
	}
}

func newClient(t *testing.T, baseURL string) *api.Client {
	t.Helper()
	client, err := api.NewClient(api.Config{BaseURL: baseURL + "/api/v1"}, nil)
	require.NoError(t, err)
	return client
}

func newSession(t *testing.T, client *api.Client, convID string) *Session {
	t.Helper()
	sess, err := New(client, Config{ConversationID: convID, PollInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

func TestSendMessageBlankIsNoOp(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sess := newSession(t, e.bob, e.convID)

	sess.SetComposing("   ")
	require.NoError(t, sess.SendMessage(ctx, ""))
	require.NoError(t, sess.SendMessage(ctx, "   "))

	conv, err := e.bob.Conversation(ctx, e.convID)
	require.NoError(t, err)
	assert.Empty(t, conv.Messages, "no backend call may be issued for blank text")
	assert.Equal(t, "   ", sess.Composing(), "draft stays untouched")
}

func TestSendMessageClearsDraftAndRefreshes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sess := newSession(t, e.bob, e.convID)

	sess.SetComposing("is it still available?")
	require.NoError(t, sess.SendMessage(ctx, "is it still available?"))

	assert.Empty(t, sess.Composing())
	conv, ok := sess.Conversation()
	require.True(t, ok, "send must be followed by a refresh")
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, e.bobID, conv.Messages[0].Sender.ID)
	assert.NotEmpty(t, conv.Messages[0].ID, "server assigns the id")
	assert.False(t, conv.Messages[0].Timestamp.IsZero(), "server assigns the timestamp")
}

func TestUnreadCountsAndMarkRead(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.alice.SendMessage(ctx, e.convID, "hi, saw your offer"))
	require.NoError(t, e.alice.SendMessage(ctx, e.convID, "still interested?"))
	require.NoError(t, e.bob.SendMessage(ctx, e.convID, "yes!"))

	conv, err := e.bob.Conversation(ctx, e.convID)
	require.NoError(t, err)
	assert.Equal(t, 2, notify.UnreadCount(conv, e.bobID), "bob's own message is never unread")
	assert.Equal(t, 1, notify.UnreadCount(conv, e.aliceID))

	// a session refresh marks the thread read for its user
	sess := newSession(t, e.bob, e.convID)
	require.NoError(t, sess.Refresh(ctx))

	conv, err = e.bob.Conversation(ctx, e.convID)
	require.NoError(t, err)
	assert.Zero(t, notify.UnreadCount(conv, e.bobID))
	count, err := e.bob.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTradeHandshake(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	aliceSess := newSession(t, e.alice, e.convID)
	bobSess := newSession(t, e.bob, e.convID)

	require.NoError(t, aliceSess.Refresh(ctx))
	require.NoError(t, bobSess.Refresh(ctx))

	require.NoError(t, aliceSess.InitiateTrade(ctx))
	conv, ok := aliceSess.Conversation()
	require.True(t, ok)
	assert.Equal(t, e.aliceID, conv.TradeStatus.InitiatedBy)
	assert.False(t, conv.TradeStatus.IsCompleted)

	// initiator cannot confirm their own proposal (client guard)
	assert.ErrorIs(t, aliceSess.ConfirmTrade(ctx), ErrCannotConfirm)

	// a second initiation is rejected client-side and server-side
	assert.ErrorIs(t, aliceSess.InitiateTrade(ctx), ErrAlreadyInitiated)
	_, err := e.bob.InitiateTrade(ctx, e.convID)
	assert.True(t, api.IsBusiness(err), "server rejects double initiation: %v", err)

	require.NoError(t, bobSess.Refresh(ctx))
	conv, _ = bobSess.Conversation()
	assert.True(t, notify.HasPendingConfirmation(conv.TradeStatus, e.bobID))
	assert.False(t, notify.HasPendingConfirmation(conv.TradeStatus, e.aliceID))

	require.NoError(t, bobSess.ConfirmTrade(ctx))
	select {
	case <-bobSess.TradeConfirmed():
	default:
		t.Fatal("confirmation must emit a badge nudge")
	}
	conv, _ = bobSess.Conversation()
	assert.True(t, conv.TradeStatus.IsCompleted)
	assert.True(t, bobSess.FeedbackPromptOpen(), "completed without feedback opens the prompt")

	require.NoError(t, aliceSess.Refresh(ctx))
	assert.True(t, aliceSess.FeedbackPromptOpen())
}

func TestCompletionIsMonotonic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sess := newSession(t, e.bob, e.convID)

	_, err := e.alice.InitiateTrade(ctx, e.convID)
	require.NoError(t, err)
	_, err = e.bob.ConfirmTrade(ctx, e.convID)
	require.NoError(t, err)

	// completed trades reject further transitions
	_, err = e.alice.InitiateTrade(ctx, e.convID)
	assert.True(t, api.IsBusiness(err))
	_, err = e.bob.ConfirmTrade(ctx, e.convID)
	assert.True(t, api.IsBusiness(err))

	require.NoError(t, sess.Refresh(ctx))
	conv, _ := sess.Conversation()
	assert.True(t, conv.TradeStatus.IsCompleted, "is_completed never reverts")
}

func TestSelfConfirmRejectedByServer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.alice.InitiateTrade(ctx, e.convID)
	require.NoError(t, err)

	_, err = e.alice.ConfirmTrade(ctx, e.convID)
	assert.True(t, api.IsBusiness(err), "server is the authoritative guard: %v", err)

	conv, err := e.alice.Conversation(ctx, e.convID)
	require.NoError(t, err)
	assert.False(t, conv.TradeStatus.IsCompleted)
	assert.Equal(t, e.aliceID, conv.TradeStatus.InitiatedBy)
}

func TestFeedbackFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bobSess := newSession(t, e.bob, e.convID)

	_, err := e.alice.InitiateTrade(ctx, e.convID)
	require.NoError(t, err)
	require.NoError(t, bobSess.Refresh(ctx))
	require.NoError(t, bobSess.ConfirmTrade(ctx))
	require.True(t, bobSess.FeedbackPromptOpen())

	// zero rating is a guarded no-op, the prompt stays open
	bobSess.SetPendingFeedback(0, "")
	assert.ErrorIs(t, bobSess.SubmitFeedback(ctx), ErrRatingRequired)
	assert.True(t, bobSess.FeedbackPromptOpen())

	bobSess.SetPendingFeedback(5, "smooth trade")
	require.NoError(t, bobSess.SubmitFeedback(ctx))
	assert.False(t, bobSess.FeedbackPromptOpen())
	rating, comment := bobSess.PendingFeedback()
	assert.Zero(t, rating)
	assert.Empty(t, comment)

	conv, _ := bobSess.Conversation()
	assert.True(t, conv.TradeStatus.FeedbackFrom(e.bobID))

	// one feedback per participant per trade
	err = e.bob.SubmitFeedback(ctx, e.convID, 4, "again")
	assert.True(t, api.IsBusiness(err))
}

func TestFeedbackDismissalIsSessionSticky(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bobSess := newSession(t, e.bob, e.convID)

	_, err := e.alice.InitiateTrade(ctx, e.convID)
	require.NoError(t, err)
	require.NoError(t, bobSess.Refresh(ctx))
	require.NoError(t, bobSess.ConfirmTrade(ctx))
	require.True(t, bobSess.FeedbackPromptOpen())

	bobSess.DismissFeedbackPrompt()
	require.NoError(t, bobSess.Refresh(ctx))
	assert.False(t, bobSess.FeedbackPromptOpen(), "dismissal holds for the session lifetime")

	// a fresh session prompts again while feedback is still missing
	fresh := newSession(t, e.bob, e.convID)
	require.NoError(t, fresh.Refresh(ctx))
	assert.True(t, fresh.FeedbackPromptOpen())
}

func TestAuthRejectionIsTerminal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.bob.UseCredential(security.Credential{Token: "forged", UserID: e.bobID})
	sess := newSession(t, e.bob, e.convID)

	err := sess.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, api.IsAuth(err))

	// the session latches: no further calls are attempted
	assert.ErrorIs(t, sess.Refresh(ctx), ErrAuthExpired)
	assert.ErrorIs(t, sess.SendMessage(ctx, "hello"), ErrAuthExpired)
}

func TestPollingObservesCounterpartAndStops(t *testing.T) {
	e := newEnv(t)
	sess := newSession(t, e.bob, e.convID)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sess.Run(ctx)
		close(done)
	}()

	require.NoError(t, e.alice.SendMessage(context.Background(), e.convID, "ping"))
	require.Eventually(t, func() bool {
		conv, ok := sess.Conversation()
		return ok && len(conv.Messages) == 1
	}, 2*time.Second, 5*time.Millisecond, "poll must surface the counterpart's message")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("polling loop must stop on cancellation")
	}
}

func TestClosedSessionDiscardsState(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sess := newSession(t, e.bob, e.convID)

	sess.Close()
	assert.ErrorIs(t, sess.Refresh(ctx), ErrClosed)
	_, ok := sess.Conversation()
	assert.False(t, ok, "no snapshot may be applied after teardown")
}

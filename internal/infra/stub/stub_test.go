package stub_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waxtrade/internal/app/dto"
	"waxtrade/internal/infra/api"
	"waxtrade/internal/infra/stream"
	"waxtrade/internal/infra/stub"
)

type env struct {
	srv            *httptest.Server
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

	rec, err := alice.CreateRecord(ctx, dto.CreateRecordRequest{
		Title: "Blue Train", Artist: "John Coltrane",
	})
	require.NoError(t, err)
	conv, err := bob.StartConversation(ctx, rec.ID)
	require.NoError(t, err)

	return &env{
		srv:     srv,
		alice:   alice,
		bob:     bob,
		aliceID: aliceProfile.ID,
		bobID:   bobProfile.ID,
		convID:  conv.ID,
	}
}

// post issues a raw request so the test controls the Idempotency-Key header;
// the typed client always mints a fresh key.
func post(t *testing.T, token, url, idemKey string, body any) (int, []byte) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestIdempotentSendReplaysRecordedResponse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	url := e.srv.URL + "/api/v1/messages/send"
	token := e.bob.Credential().Token
	body := dto.SendMessageRequest{ConversationID: e.convID, Text: "is it mint?"}

	status1, resp1 := post(t, token, url, "key-1", body)
	require.Equal(t, http.StatusCreated, status1)
	status2, resp2 := post(t, token, url, "key-1", body)
	assert.Equal(t, status1, status2)
	assert.Equal(t, string(resp1), string(resp2), "replay returns the recorded body")

	conv, err := e.bob.Conversation(ctx, e.convID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 1, "the repeated key must not append a second message")

	// a different key is a new action
	status3, _ := post(t, token, url, "key-2", body)
	require.Equal(t, http.StatusCreated, status3)
	conv, err = e.bob.Conversation(ctx, e.convID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	url := e.srv.URL + "/api/v1/messages/send"

	status, _ := post(t, e.bob.Credential().Token, url, "shared-key",
		dto.SendMessageRequest{ConversationID: e.convID, Text: "from bob"})
	require.Equal(t, http.StatusCreated, status)
	status, _ = post(t, e.alice.Credential().Token, url, "shared-key",
		dto.SendMessageRequest{ConversationID: e.convID, Text: "from alice"})
	require.Equal(t, http.StatusCreated, status)

	conv, err := e.bob.Conversation(ctx, e.convID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2, "another user's key never replays")
}

func TestFailuresAreNotRecorded(t *testing.T) {
	e := newEnv(t)
	url := e.srv.URL + "/api/v1/trades/confirm"
	token := e.bob.Credential().Token
	body := dto.TradeActionRequest{ConversationID: e.convID}

	// nothing initiated yet: confirm fails and must not be replayable
	status, _ := post(t, token, url, "confirm-key", body)
	require.Equal(t, http.StatusConflict, status)

	_, err := e.alice.InitiateTrade(context.Background(), e.convID)
	require.NoError(t, err)

	status, _ = post(t, token, url, "confirm-key", body)
	assert.Equal(t, http.StatusOK, status, "a failed attempt must not poison the key")
}

func TestStartConversationIsDeduplicated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	again, err := e.bob.StartConversation(ctx, mustRecordID(t, e))
	require.NoError(t, err)
	assert.Equal(t, e.convID, again.ID, "one thread per record and participant pair")

	conversations, err := e.bob.Conversations(ctx)
	require.NoError(t, err)
	assert.Len(t, conversations, 1)
}

func TestOwnerCannotOpenThreadOnOwnRecord(t *testing.T) {
	e := newEnv(t)
	_, err := e.alice.StartConversation(context.Background(), mustRecordID(t, e))
	assert.True(t, api.IsBusiness(err))
}

func TestNonParticipantIsRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	carol, err := api.NewClient(api.Config{BaseURL: e.srv.URL + "/api/v1"}, nil)
	require.NoError(t, err)
	_, err = carol.Register(ctx, dto.RegisterRequest{
		Username: "carol", Email: "carol@example.com", Password: "password1",
	})
	require.NoError(t, err)

	_, err = carol.Conversation(ctx, e.convID)
	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	err = carol.SendMessage(ctx, e.convID, "let me in")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestHubPushesHintsToBothParticipants(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/v1/ws"
	sub, err := stream.NewSubscriber(wsURL, e.bob.Credential().Token, nil)
	require.NoError(t, err)
	go sub.Run(ctx)

	// the subscriber connects asynchronously, so keep mutating until a hint
	// arrives
	deadline := time.Now().Add(3 * time.Second)
	var got string
	for got == "" && time.Now().Before(deadline) {
		require.NoError(t, e.alice.SendMessage(ctx, e.convID, "ping"))
		select {
		case id := <-sub.Hints():
			got = id
		case <-time.After(100 * time.Millisecond):
		}
	}
	require.Equal(t, e.convID, got, "participants must receive conversation-updated hints")
}

func mustRecordID(t *testing.T, e *env) string {
	t.Helper()
	records, err := e.alice.Records(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, records)
	return records[0].ID
}

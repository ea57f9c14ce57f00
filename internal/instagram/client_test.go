package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketdesk-go/internal/config"
)

func testClient(serverURL string) *Client {
	c := NewClient(config.InstagramConfig{
		AccessToken:       "token",
		BusinessAccountID: "biz-1",
	})
	c.baseURL = serverURL
	return c
}

func TestVerifyWebhookToken(t *testing.T) {
	assert.True(t, VerifyWebhookToken("subscribe", "secret", "secret"))
	assert.False(t, VerifyWebhookToken("subscribe", "wrong", "secret"))
	assert.False(t, VerifyWebhookToken("unsubscribe", "secret", "secret"))
	assert.False(t, VerifyWebhookToken("subscribe", "", ""))
}

func TestGetUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ig-42", r.URL.Path)
		assert.Equal(t, "token", r.URL.Query().Get("access_token"))
		json.NewEncoder(w).Encode(UserInfo{ID: "ig-42", Username: "jane.doe"})
	}))
	defer server.Close()

	info, err := testClient(server.URL).GetUserInfo(context.Background(), "ig-42")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", info.Username)
}

func TestSendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/me/messages", r.URL.Path)

		var payload struct {
			Recipient struct {
				ID string `json:"id"`
			} `json:"recipient"`
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "ig-42", payload.Recipient.ID)
		assert.Equal(t, "hello", payload.Message.Text)

		json.NewEncoder(w).Encode(map[string]string{"message_id": "mid-99"})
	}))
	defer server.Close()

	id, err := testClient(server.URL).SendMessage(context.Background(), "ig-42", "hello")
	require.NoError(t, err)
	assert.Equal(t, "mid-99", id)
}

func TestSendMessageAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid token"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := testClient(server.URL).SendMessage(context.Background(), "ig-42", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestGetConversations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/biz-1/conversations", r.URL.Path)
		assert.Equal(t, "token", r.URL.Query().Get("access_token"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []Conversation{
				{ID: "conv-1", UpdatedTime: "2026-08-28T10:00:00+0000"},
				{ID: "conv-2", UpdatedTime: "2026-08-27T09:00:00+0000"},
			},
		})
	}))
	defer server.Close()

	conversations, err := testClient(server.URL).GetConversations(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, "conv-1", conversations[0].ID)
}

func TestGetConversationsDefaultLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []Conversation{}})
	}))
	defer server.Close()

	conversations, err := testClient(server.URL).GetConversations(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, conversations)
}

func TestGetMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conv-1", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("fields"), "messages")
		w.Write([]byte(`{
			"messages": {
				"data": [
					{"id": "mid-1", "message": "my order is late", "created_time": "2026-08-28T10:00:00Z", "from": {"id": "ig-42", "username": "jane.doe"}},
					{"id": "mid-2", "message": "we are on it", "created_time": "2026-08-28T10:05:00Z", "from": {"id": "biz-1", "username": "support"}}
				]
			}
		}`))
	}))
	defer server.Close()

	messages, err := testClient(server.URL).GetMessages(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "mid-1", messages[0].ID)
	assert.Equal(t, "ig-42", messages[0].From.ID)
	assert.Equal(t, "my order is late", messages[0].Message)
	assert.Equal(t, "biz-1", messages[1].From.ID)
}

func TestGetMessagesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"unknown conversation"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetMessages(context.Background(), "conv-404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conv-404")
}

func TestWebhookPayloadDecoding(t *testing.T) {
	raw := `{
		"object": "instagram",
		"entry": [{
			"id": "biz-1",
			"time": 1700000000,
			"messaging": [{
				"sender": {"id": "ig-42"},
				"recipient": {"id": "biz-1"},
				"timestamp": 1700000000123,
				"message": {"mid": "mid-1", "text": "hi there"}
			}]
		}]
	}`

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	require.Len(t, payload.Entry, 1)
	require.Len(t, payload.Entry[0].Messaging, 1)

	event := payload.Entry[0].Messaging[0]
	assert.Equal(t, "ig-42", event.Sender.ID)
	require.NotNil(t, event.Message)
	assert.Equal(t, "mid-1", event.Message.MID)
	assert.Equal(t, "hi there", event.Message.Text)
}

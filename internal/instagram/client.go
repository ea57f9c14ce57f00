// Package instagram is a minimal Instagram Graph API client for direct
// messages, plus the webhook payload types and verification handshake.
package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ticketdesk-go/internal/config"
)

const defaultBaseURL = "https://graph.facebook.com/v18.0"

// Client talks to the Graph API on behalf of one business account.
type Client struct {
	httpClient        *http.Client
	accessToken       string
	businessAccountID string
	baseURL           string
}

// NewClient creates a Graph API client from configuration.
func NewClient(cfg config.InstagramConfig) *Client {
	return &Client{
		httpClient:        &http.Client{Timeout: 15 * time.Second},
		accessToken:       cfg.AccessToken,
		businessAccountID: cfg.BusinessAccountID,
		baseURL:           defaultBaseURL,
	}
}

// UserInfo is the Graph API profile of one Instagram user.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// GetUserInfo fetches profile fields for a user id.
func (c *Client) GetUserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	params := url.Values{}
	params.Set("access_token", c.accessToken)
	params.Set("fields", "id,username,name")

	var info UserInfo
	if err := c.get(ctx, fmt.Sprintf("%s/%s", c.baseURL, userID), params, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch user info for %s: %w", userID, err)
	}
	return &info, nil
}

// SendMessage sends a direct message and returns the provider message id.
func (c *Client) SendMessage(ctx context.Context, recipientID, text string) (string, error) {
	payload := map[string]interface{}{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode message payload: %w", err)
	}

	params := url.Values{}
	params.Set("access_token", c.accessToken)
	endpoint := fmt.Sprintf("%s/me/messages?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("graph api returned %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode send response: %w", err)
	}
	return result.MessageID, nil
}

// Conversation is one direct-message thread on the business account.
type Conversation struct {
	ID          string `json:"id"`
	UpdatedTime string `json:"updated_time"`
}

// GetConversations lists recent direct-message conversations.
func (c *Client) GetConversations(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 25
	}
	params := url.Values{}
	params.Set("access_token", c.accessToken)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("fields", "id,participants,updated_time")

	var result struct {
		Data []Conversation `json:"data"`
	}
	endpoint := fmt.Sprintf("%s/%s/conversations", c.baseURL, c.businessAccountID)
	if err := c.get(ctx, endpoint, params, &result); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return result.Data, nil
}

// ConversationMessage is one message inside a conversation thread.
type ConversationMessage struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	CreatedTime string `json:"created_time"`
	From        struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"from"`
}

// GetMessages fetches the messages of one conversation.
func (c *Client) GetMessages(ctx context.Context, conversationID string) ([]ConversationMessage, error) {
	params := url.Values{}
	params.Set("access_token", c.accessToken)
	params.Set("fields", "messages{id,from,created_time,message}")

	var result struct {
		Messages struct {
			Data []ConversationMessage `json:"data"`
		} `json:"messages"`
	}
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, conversationID)
	if err := c.get(ctx, endpoint, params, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch messages for conversation %s: %w", conversationID, err)
	}
	return result.Messages.Data, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph api returned %d: %s", resp.StatusCode, string(data))
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// VerifyWebhookToken checks the subscription handshake parameters.
func VerifyWebhookToken(mode, token, verifyToken string) bool {
	return mode == "subscribe" && verifyToken != "" && token == verifyToken
}

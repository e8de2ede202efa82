// Package elevenlabs wraps the ElevenLabs conversational-AI HTTP API. Only
// the read-side endpoints the reconciliation pipeline needs are covered;
// telephony itself is driven elsewhere.
package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"moshimoshi/models"
)

const defaultBaseURL = "https://api.elevenlabs.io"

// Conversation is the vendor's conversation-detail response.
type Conversation struct {
	AgentID        string                          `json:"agent_id"`
	ConversationID string                          `json:"conversation_id"`
	Status         string                          `json:"status"`
	Transcript     []models.WebhookTranscriptEntry `json:"transcript"`
	Metadata       models.WebhookMetadata          `json:"metadata"`
	Analysis       models.WebhookAnalysis          `json:"analysis"`
	HasAudio       bool                            `json:"has_audio"`
}

// Client is an ElevenLabs API client with an explicit lifetime; construct it
// once in main and inject it where needed.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// HasCredential reports whether an API key is configured. Callers treat a
// missing credential as a skip, not an error.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

func (c *Client) do(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("elevenlabs: unexpected status %d: %s", resp.StatusCode, body)
	}
	return resp, nil
}

// GetConversation fetches post-call details and analysis for a conversation.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	resp, err := c.do(ctx, "/v1/convai/conversations/"+conversationID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var conv Conversation
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to decode conversation %s: %w", conversationID, err)
	}
	return &conv, nil
}

// GetConversationAudio fetches the raw call recording.
func (c *Client) GetConversationAudio(ctx context.Context, conversationID string) ([]byte, error) {
	resp, err := c.do(ctx, "/v1/convai/conversations/"+conversationID+"/audio")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to read audio for %s: %w", conversationID, err)
	}
	return audio, nil
}

package reconcile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"moshimoshi/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func payloadFromJSON(t *testing.T, raw string) models.CallCompletedWebhook {
	t.Helper()
	var p models.CallCompletedWebhook
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func seedRecord(repo *memRepo, id string, status models.Status, createdAt time.Time, conversationID string) {
	repo.seed(&models.Reservation{
		ID:             id,
		Status:         status,
		ConversationID: conversationID,
		CreatedAt:      createdAt,
	})
}

func TestResolver_ExplicitCorrelationIDWins(t *testing.T) {
	repo := newMemRepo()
	now := time.Now()
	seedRecord(repo, "res-a", models.StatusCalling, now, "")
	seedRecord(repo, "res-b", models.StatusCalling, now.Add(time.Minute), "")
	seedRecord(repo, "res-c", models.StatusPending, now.Add(2*time.Minute), "")

	payload := payloadFromJSON(t, `{"data": {"conversation_initiation_client_data": {
		"dynamic_variables": {"reservation_id": "res-a"}
	}}}`)

	id, err := NewResolver(repo, zap.NewNop()).Resolve(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "res-a", id)
}

func TestResolver_ConversationIDLookup(t *testing.T) {
	repo := newMemRepo()
	now := time.Now()
	seedRecord(repo, "res-a", models.StatusCalling, now, "conv-123")
	seedRecord(repo, "res-b", models.StatusCalling, now.Add(time.Minute), "conv-456")

	payload := payloadFromJSON(t, `{"conversation_id": "conv-123"}`)

	id, err := NewResolver(repo, zap.NewNop()).Resolve(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "res-a", id)
}

func TestResolver_FallbackPicksMostRecentCalling(t *testing.T) {
	repo := newMemRepo()
	now := time.Now()
	seedRecord(repo, "res-old", models.StatusCalling, now.Add(-time.Hour), "")
	seedRecord(repo, "res-new", models.StatusCalling, now, "")
	seedRecord(repo, "res-done", models.StatusCompleted, now.Add(time.Hour), "")

	payload := payloadFromJSON(t, `{}`)

	id, err := NewResolver(repo, zap.NewNop()).Resolve(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "res-new", id)
}

func TestResolver_NoCallingRecordsSignalsNoTarget(t *testing.T) {
	repo := newMemRepo()
	seedRecord(repo, "res-done", models.StatusCompleted, time.Now(), "")
	seedRecord(repo, "res-pending", models.StatusPending, time.Now(), "")

	payload := payloadFromJSON(t, `{}`)

	_, err := NewResolver(repo, zap.NewNop()).Resolve(context.Background(), payload)
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestResolver_UnknownConversationIDFallsBack(t *testing.T) {
	repo := newMemRepo()
	seedRecord(repo, "res-a", models.StatusCalling, time.Now(), "conv-known")

	payload := payloadFromJSON(t, `{"conversation_id": "conv-unknown"}`)

	id, err := NewResolver(repo, zap.NewNop()).Resolve(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "res-a", id)
}

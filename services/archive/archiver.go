// Package archive fetches call recordings from the voice-AI vendor and
// stores them durably. The work runs on a Redis-backed task queue so it
// never blocks or fails the status reconciliation write.
package archive

import (
	"context"
	"encoding/json"
	"fmt"

	reservationRepo "moshimoshi/database/repository/reservation"
	"moshimoshi/services/elevenlabs"
	"moshimoshi/services/realtime"
	"moshimoshi/services/storage"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeArchiveRecording = "audio:archive"

// taskPayload correlates the queued job back to its reservation.
type taskPayload struct {
	ReservationID  string `json:"reservation_id"`
	ConversationID string `json:"conversation_id"`
}

// Enqueuer queues archive jobs. It implements reconcile.Archiver.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// Archive queues a best-effort fetch-and-store of the call recording.
func (e *Enqueuer) Archive(ctx context.Context, reservationID, conversationID string) error {
	b, err := json.Marshal(taskPayload{ReservationID: reservationID, ConversationID: conversationID})
	if err != nil {
		return fmt.Errorf("archive: failed to marshal task payload: %w", err)
	}
	task := asynq.NewTask(TypeArchiveRecording, b)
	// The upload is keyed by conversation id with overwrite, so retries
	// are idempotent.
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("archive: failed to enqueue task: %w", err)
	}
	return nil
}

// Archiver is the worker-side handler: fetch the recording from the vendor,
// upload it, and persist the resulting URL.
type Archiver struct {
	Vendor    *elevenlabs.Client
	Storage   storage.StorageService
	Repo      reservationRepo.Repository
	Publisher realtime.Publisher
	Logger    *zap.Logger
}

// ProcessTask handles one queued archive job. A missing vendor credential is
// a skip, not an error; only transient fetch/upload failures are returned so
// the queue retries them.
func (a *Archiver) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p taskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		a.Logger.Error("archive task had invalid payload", zap.Error(err))
		return nil
	}

	if !a.Vendor.HasCredential() {
		a.Logger.Info("skipping recording archive: no vendor API key configured",
			zap.String("reservation_id", p.ReservationID))
		return nil
	}

	audio, err := a.Vendor.GetConversationAudio(ctx, p.ConversationID)
	if err != nil {
		a.Logger.Warn("failed to fetch call recording",
			zap.String("conversation_id", p.ConversationID), zap.Error(err))
		return err
	}

	url, err := a.Storage.UploadRecording(ctx, p.ConversationID, audio)
	if err != nil {
		a.Logger.Warn("failed to upload call recording",
			zap.String("conversation_id", p.ConversationID), zap.Error(err))
		return err
	}

	rec, updated, err := a.Repo.SetAudioURL(ctx, p.ReservationID, url)
	if err != nil {
		a.Logger.Warn("failed to persist recording url",
			zap.String("reservation_id", p.ReservationID), zap.Error(err))
		return err
	}
	if !updated {
		// A URL was already archived for this record; keep the first.
		return nil
	}

	if err := a.Publisher.PublishUpdate(ctx, rec); err != nil {
		a.Logger.Error("failed to publish audio update",
			zap.String("reservation_id", p.ReservationID), zap.Error(err))
	}
	a.Logger.Info("archived call recording",
		zap.String("reservation_id", p.ReservationID),
		zap.String("conversation_id", p.ConversationID))
	return nil
}

package reservation

import (
	"context"
	"testing"
	"time"

	reservationRepo "moshimoshi/database/repository/reservation"
	"moshimoshi/models"
	"moshimoshi/services/elevenlabs"
	"moshimoshi/services/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type lifecycleRepo struct {
	recs map[string]*models.Reservation
}

var _ reservationRepo.Repository = (*lifecycleRepo)(nil)

func newLifecycleRepo() *lifecycleRepo {
	return &lifecycleRepo{recs: map[string]*models.Reservation{}}
}

func (r *lifecycleRepo) Create(ctx context.Context, rec *models.Reservation) error {
	cp := *rec
	r.recs[rec.ID] = &cp
	return nil
}

func (r *lifecycleRepo) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	rec, ok := r.recs[id]
	if !ok {
		return nil, reservationRepo.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *lifecycleRepo) GetByConversationID(ctx context.Context, conversationID string) (*models.Reservation, error) {
	for _, rec := range r.recs {
		if rec.ConversationID == conversationID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, reservationRepo.ErrNotFound
}

func (r *lifecycleRepo) List(ctx context.Context) ([]models.Reservation, error) {
	var out []models.Reservation
	for _, rec := range r.recs {
		out = append(out, *rec)
	}
	return out, nil
}

func (r *lifecycleRepo) LatestCalling(ctx context.Context) (*models.Reservation, error) {
	var latest *models.Reservation
	for _, rec := range r.recs {
		if rec.Status != models.StatusCalling {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, reservationRepo.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *lifecycleRepo) MarkCalling(ctx context.Context, id, conversationID string) (*models.Reservation, error) {
	rec, ok := r.recs[id]
	if !ok {
		return nil, reservationRepo.ErrNotFound
	}
	if rec.Status != models.StatusPending {
		return nil, reservationRepo.ErrInvalidState
	}
	rec.Status = models.StatusCalling
	rec.ConversationID = conversationID
	now := time.Now().UTC()
	rec.CallStartedAt = &now
	cp := *rec
	return &cp, nil
}

func (r *lifecycleRepo) ApplyCallOutcome(ctx context.Context, id string, out models.CallOutcome, details *models.ConfirmationDetails) (*models.Reservation, bool, error) {
	rec, ok := r.recs[id]
	if !ok {
		return nil, false, reservationRepo.ErrNotFound
	}
	if rec.Status.IsTerminal() {
		cp := *rec
		return &cp, false, nil
	}
	rec.Status = out.Status
	rec.BookingConfirmed = out.BookingConfirmed
	rec.FailureReason = out.FailureReason
	rec.ConfirmationDetails = details
	cp := *rec
	return &cp, true, nil
}

func (r *lifecycleRepo) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	rec, ok := r.recs[id]
	if !ok {
		return nil, reservationRepo.ErrNotFound
	}
	if rec.Status.IsTerminal() {
		return nil, reservationRepo.ErrInvalidState
	}
	rec.Status = models.StatusCancelled
	cp := *rec
	return &cp, nil
}

func (r *lifecycleRepo) SetAudioURL(ctx context.Context, id, url string) (*models.Reservation, bool, error) {
	rec, ok := r.recs[id]
	if !ok {
		return nil, false, reservationRepo.ErrNotFound
	}
	if rec.AudioURL != "" {
		cp := *rec
		return &cp, false, nil
	}
	rec.AudioURL = url
	cp := *rec
	return &cp, true, nil
}

type capturePublisher struct {
	published []*models.Reservation
}

func (p *capturePublisher) PublishUpdate(ctx context.Context, rec *models.Reservation) error {
	p.published = append(p.published, rec)
	return nil
}

type noopArchiver struct{}

func (noopArchiver) Archive(ctx context.Context, reservationID, conversationID string) error {
	return nil
}

type stubFetcher struct {
	conv *elevenlabs.Conversation
	err  error
}

func (f *stubFetcher) GetConversation(ctx context.Context, conversationID string) (*elevenlabs.Conversation, error) {
	return f.conv, f.err
}

func newService(repo *lifecycleRepo, pub *capturePublisher, fetcher ConversationFetcher) *DefaultReservationService {
	logger := zap.NewNop()
	return &DefaultReservationService{
		Repo:      repo,
		Publisher: pub,
		Reconcile: reconcile.NewService(repo, pub, noopArchiver{}, logger),
		Vendor:    fetcher,
		Logger:    logger,
	}
}

func TestCreate_AssignsIDAndPendingStatus(t *testing.T) {
	repo := newLifecycleRepo()
	svc := newService(repo, &capturePublisher{}, nil)

	rec, err := svc.Create(context.Background(), models.CreateReservationRequest{
		RestaurantName:  "Sushi Saito",
		RestaurantPhone: "+81-3-1234",
		ReservationDate: "2026-03-01",
		ReservationTime: "19:00",
		PartySize:       2,
		CustomerName:    "John",
		CustomerPhone:   "+1-555-0100",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())

	stored, err := repo.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sushi Saito", stored.RestaurantName)
}

func TestStartCall_MovesToCallingAndPublishes(t *testing.T) {
	repo := newLifecycleRepo()
	pub := &capturePublisher{}
	svc := newService(repo, pub, nil)
	repo.recs["res-1"] = &models.Reservation{ID: "res-1", Status: models.StatusPending}

	rec, err := svc.StartCall(context.Background(), "res-1", "conv-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCalling, rec.Status)
	assert.Equal(t, "conv-1", rec.ConversationID)
	require.Len(t, pub.published, 1)
	assert.Equal(t, models.StatusCalling, pub.published[0].Status)
}

func TestStartCall_RefusedOutsidePending(t *testing.T) {
	repo := newLifecycleRepo()
	svc := newService(repo, &capturePublisher{}, nil)
	repo.recs["res-1"] = &models.Reservation{ID: "res-1", Status: models.StatusCompleted}

	_, err := svc.StartCall(context.Background(), "res-1", "conv-1")
	assert.ErrorIs(t, err, reservationRepo.ErrInvalidState)
}

func TestCancel_Publishes(t *testing.T) {
	repo := newLifecycleRepo()
	pub := &capturePublisher{}
	svc := newService(repo, pub, nil)
	repo.recs["res-1"] = &models.Reservation{ID: "res-1", Status: models.StatusActionRequired}

	rec, err := svc.Cancel(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, rec.Status)
	require.Len(t, pub.published, 1)
}

func TestSyncConversation_ReconcilesVendorAnalysis(t *testing.T) {
	repo := newLifecycleRepo()
	pub := &capturePublisher{}
	fetcher := &stubFetcher{conv: &elevenlabs.Conversation{
		ConversationID: "conv-1",
		Status:         "done",
		Analysis: models.WebhookAnalysis{
			TranscriptSummary: models.FlexString{Value: "Booked for two.", Present: true},
			DataCollectionResults: map[string]models.FlexString{
				"reservation_status": {Value: "confirmed", Present: true},
			},
		},
	}}
	svc := newService(repo, pub, fetcher)
	repo.recs["res-1"] = &models.Reservation{ID: "res-1", ConversationID: "conv-1", Status: models.StatusCalling}

	rec, err := svc.SyncConversation(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, rec.Status)
	assert.True(t, rec.BookingConfirmed)
	require.NotNil(t, rec.ConfirmationDetails)
	assert.Equal(t, "Booked for two.", rec.ConfirmationDetails.Summary)
}

func TestSyncConversation_RequiresConversationID(t *testing.T) {
	repo := newLifecycleRepo()
	svc := newService(repo, &capturePublisher{}, &stubFetcher{})
	repo.recs["res-1"] = &models.Reservation{ID: "res-1", Status: models.StatusPending}

	_, err := svc.SyncConversation(context.Background(), "res-1")
	assert.ErrorIs(t, err, ErrNoConversation)
}

func TestSyncConversation_TerminalRecordIsUntouched(t *testing.T) {
	repo := newLifecycleRepo()
	fetcher := &stubFetcher{conv: &elevenlabs.Conversation{
		ConversationID: "conv-1",
		Analysis: models.WebhookAnalysis{
			DataCollectionResults: map[string]models.FlexString{
				"reservation_status": {Value: "failed", Present: true},
			},
		},
	}}
	svc := newService(repo, &capturePublisher{}, fetcher)
	repo.recs["res-1"] = &models.Reservation{
		ID: "res-1", ConversationID: "conv-1",
		Status: models.StatusCompleted, BookingConfirmed: true,
	}

	rec, err := svc.SyncConversation(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, rec.Status)
	assert.True(t, rec.BookingConfirmed)
}

package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	reservationRepo "moshimoshi/database/repository/reservation"
	"moshimoshi/models"
)

// memRepo is an in-memory Repository mirroring the conditional-write
// semantics of the Mongo implementation.
type memRepo struct {
	mu         sync.Mutex
	recs       map[string]*models.Reservation
	failWrites bool
}

func newMemRepo() *memRepo {
	return &memRepo{recs: map[string]*models.Reservation{}}
}

func (r *memRepo) seed(rec *models.Reservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.recs[rec.ID] = &cp
}

func (r *memRepo) snapshot(id string) models.Reservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.recs[id]
}

func (r *memRepo) Create(ctx context.Context, rec *models.Reservation) error {
	if r.failWrites {
		return errors.New("write refused")
	}
	r.seed(rec)
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return nil, reservationRepo.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *memRepo) GetByConversationID(ctx context.Context, conversationID string) (*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.Reservation
	for _, rec := range r.recs {
		if rec.ConversationID != conversationID {
			continue
		}
		if best == nil || rec.CreatedAt.After(best.CreatedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, reservationRepo.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *memRepo) List(ctx context.Context) ([]models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Reservation
	for _, rec := range r.recs {
		out = append(out, *rec)
	}
	return out, nil
}

func (r *memRepo) LatestCalling(ctx context.Context) (*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.Reservation
	for _, rec := range r.recs {
		if rec.Status != models.StatusCalling {
			continue
		}
		if best == nil || rec.CreatedAt.After(best.CreatedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, reservationRepo.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *memRepo) MarkCalling(ctx context.Context, id, conversationID string) (*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return nil, reservationRepo.ErrNotFound
	}
	if rec.Status != models.StatusPending {
		return nil, reservationRepo.ErrInvalidState
	}
	now := time.Now().UTC()
	rec.Status = models.StatusCalling
	rec.ConversationID = conversationID
	rec.CallStartedAt = &now
	rec.UpdatedAt = now
	cp := *rec
	return &cp, nil
}

func (r *memRepo) ApplyCallOutcome(ctx context.Context, id string, out models.CallOutcome, details *models.ConfirmationDetails) (*models.Reservation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return nil, false, errors.New("write refused")
	}
	rec, ok := r.recs[id]
	if !ok {
		return nil, false, reservationRepo.ErrNotFound
	}
	if rec.Status.IsTerminal() {
		cp := *rec
		return &cp, false, nil
	}
	now := time.Now().UTC()
	rec.Status = out.Status
	rec.BookingConfirmed = out.BookingConfirmed
	rec.FailureReason = out.FailureReason
	if details != nil {
		rec.ConfirmationDetails = details
	}
	rec.UpdatedAt = now
	rec.CallEndedAt = &now
	cp := *rec
	return &cp, true, nil
}

func (r *memRepo) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return nil, reservationRepo.ErrNotFound
	}
	if rec.Status.IsTerminal() {
		return nil, reservationRepo.ErrInvalidState
	}
	rec.Status = models.StatusCancelled
	rec.UpdatedAt = time.Now().UTC()
	cp := *rec
	return &cp, nil
}

func (r *memRepo) SetAudioURL(ctx context.Context, id, url string) (*models.Reservation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return nil, false, reservationRepo.ErrNotFound
	}
	if rec.AudioURL != "" {
		cp := *rec
		return &cp, false, nil
	}
	rec.AudioURL = url
	rec.UpdatedAt = time.Now().UTC()
	cp := *rec
	return &cp, true, nil
}

var _ reservationRepo.Repository = (*memRepo)(nil)

// capturePublisher records every published update.
type capturePublisher struct {
	mu      sync.Mutex
	updates []models.Reservation
}

func (p *capturePublisher) PublishUpdate(ctx context.Context, rec *models.Reservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, *rec)
	return nil
}

func (p *capturePublisher) published() []models.Reservation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Reservation(nil), p.updates...)
}

// captureArchiver records archive requests.
type captureArchiver struct {
	mu       sync.Mutex
	requests [][2]string // reservationID, conversationID
}

func (a *captureArchiver) Archive(ctx context.Context, reservationID, conversationID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, [2]string{reservationID, conversationID})
	return nil
}

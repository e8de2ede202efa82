package reservationRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moshimoshi/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "reservations"

// terminalStatuses are the statuses the pipeline never writes over.
var terminalStatuses = []models.Status{models.StatusCompleted, models.StatusCancelled}

// MongoReservationRepo is the MongoDB-backed Repository.
type MongoReservationRepo struct {
	coll *mongo.Collection
}

// NewMongoReservationRepo builds a repository on an explicitly provided
// client.
func NewMongoReservationRepo(client *mongo.Client, dbName string) *MongoReservationRepo {
	return &MongoReservationRepo{coll: client.Database(dbName).Collection(collectionName)}
}

// EnsureIndexes creates the indexes the pipeline queries rely on.
func (repo *MongoReservationRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "conversation_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("error creating reservation indexes: %w", err)
	}
	return nil
}

// Create inserts a new reservation document.
func (repo *MongoReservationRepo) Create(ctx context.Context, rec *models.Reservation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := repo.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("error creating reservation: %w", err)
	}
	return nil
}

// GetByID retrieves a reservation by its record id.
func (repo *MongoReservationRepo) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rec models.Reservation
	err := repo.coll.FindOne(ctx, bson.M{"id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching reservation %s: %w", id, err)
	}
	return &rec, nil
}

// GetByConversationID retrieves the newest reservation carrying the given
// vendor conversation id.
func (repo *MongoReservationRepo) GetByConversationID(ctx context.Context, conversationID string) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var rec models.Reservation
	err := repo.coll.FindOne(ctx, bson.M{"conversation_id": conversationID}, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching reservation by conversation %s: %w", conversationID, err)
	}
	return &rec, nil
}

// List returns all reservations, newest first.
func (repo *MongoReservationRepo) List(ctx context.Context) ([]models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := repo.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []models.Reservation
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("error decoding reservations: %w", err)
	}
	return recs, nil
}

// LatestCalling returns the most recently created record in the "calling"
// status.
func (repo *MongoReservationRepo) LatestCalling(ctx context.Context) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var rec models.Reservation
	err := repo.coll.FindOne(ctx, bson.M{"status": models.StatusCalling}, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching latest calling reservation: %w", err)
	}
	return &rec, nil
}

// MarkCalling transitions pending -> calling atomically, storing the vendor
// conversation id and the call start time.
func (repo *MongoReservationRepo) MarkCalling(ctx context.Context, id, conversationID string) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{"id": id, "status": models.StatusPending}
	update := bson.M{"$set": bson.M{
		"status":          models.StatusCalling,
		"conversation_id": conversationID,
		"call_started_at": now,
		"updated_at":      now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec models.Reservation
	err := repo.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Distinguish "missing" from "not pending".
		if _, getErr := repo.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("error marking reservation %s calling: %w", id, err)
	}
	return &rec, nil
}

// ApplyCallOutcome persists one normalized webhook outcome. The filter
// excludes terminal statuses, so a late or duplicate delivery can never flip
// a confirmed or cancelled record backward; the write and its guard are one
// atomic operation.
func (repo *MongoReservationRepo) ApplyCallOutcome(ctx context.Context, id string, out models.CallOutcome, details *models.ConfirmationDetails) (*models.Reservation, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	set := bson.M{
		"status":            out.Status,
		"booking_confirmed": out.BookingConfirmed,
		"updated_at":        now,
		"call_ended_at":     now,
	}
	if details != nil {
		set["confirmation_details"] = details
	}
	update := bson.M{"$set": set}
	if out.FailureReason != "" {
		set["failure_reason"] = out.FailureReason
	} else {
		update["$unset"] = bson.M{"failure_reason": ""}
	}

	filter := bson.M{"id": id, "status": bson.M{"$nin": terminalStatuses}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec models.Reservation
	err := repo.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		existing, getErr := repo.GetByID(ctx, id)
		if getErr != nil {
			return nil, false, getErr
		}
		// Already terminal: idempotent no-op.
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error applying call outcome to reservation %s: %w", id, err)
	}
	return &rec, true, nil
}

// Cancel performs the user-initiated transition to cancelled.
func (repo *MongoReservationRepo) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{"id": id, "status": bson.M{"$nin": terminalStatuses}}
	update := bson.M{"$set": bson.M{
		"status":     models.StatusCancelled,
		"updated_at": now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec models.Reservation
	err := repo.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := repo.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("error cancelling reservation %s: %w", id, err)
	}
	return &rec, nil
}

// SetAudioURL stores the archived recording URL if none is present yet.
func (repo *MongoReservationRepo) SetAudioURL(ctx context.Context, id, url string) (*models.Reservation, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": id, "$or": bson.A{
		bson.M{"audio_url": bson.M{"$exists": false}},
		bson.M{"audio_url": ""},
	}}
	update := bson.M{"$set": bson.M{
		"audio_url":  url,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec models.Reservation
	err := repo.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		existing, getErr := repo.GetByID(ctx, id)
		if getErr != nil {
			return nil, false, getErr
		}
		// A URL was already archived; keep the first one.
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error setting audio url on reservation %s: %w", id, err)
	}
	return &rec, true, nil
}

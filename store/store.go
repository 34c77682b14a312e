// Package store backs the dialogue engine's interfaces with MongoDB.
package store

import (
	"context"
	"errors"
	"time"

	"verda/db"
	"verda/models"
	"verda/phase"
	"verda/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sessions reads and writes conversation sessions.
type Sessions struct{}

func (Sessions) Get(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	var sess models.ConversationSession
	err := db.SessionsCollection.FindOne(ctx, bson.M{"sessionid": sessionID}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (Sessions) UpdateMetadata(ctx context.Context, sessionID string, metadata bson.M) error {
	_, err := db.SessionsCollection.UpdateOne(ctx,
		bson.M{"sessionid": sessionID},
		bson.M{"$set": bson.M{"metadata": metadata, "updated_at": time.Now()}})
	return err
}

// GetOrCreate reuses an existing initial_chat session for the (user, role)
// pair, or lazily creates one. Anonymous callers always get a fresh session
// since there is no identity to key on.
func (s Sessions) GetOrCreate(ctx context.Context, userID string, role phase.Role) (*models.ConversationSession, error) {
	if userID != "" {
		var existing models.ConversationSession
		err := db.SessionsCollection.FindOne(ctx, bson.M{
			"user_id": userID,
			"role":    string(role),
			"phase":   string(phase.InitialChat),
		}).Decode(&existing)
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
	}

	now := time.Now()
	sess := models.ConversationSession{
		SessionID: utils.GetUUID(),
		UserID:    userID,
		Role:      string(role),
		Phase:     string(phase.InitialChat),
		Title:     "New conversation",
		Metadata:  bson.M{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := db.SessionsCollection.InsertOne(ctx, sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ApplyTransition writes a phase transition result onto the session row.
// The same row transitions in place; no new session is created.
func (Sessions) ApplyTransition(ctx context.Context, sessionID string, res phase.TransitionResult, excursionID string) error {
	set := bson.M{
		"phase":      string(res.Phase),
		"role":       string(res.Role),
		"metadata":   res.Meta.Doc(),
		"updated_at": time.Now(),
	}
	update := bson.M{"$set": set}
	if res.ClearExcursion {
		update["$unset"] = bson.M{"linked_excursion_id": ""}
	} else if excursionID != "" {
		set["linked_excursion_id"] = excursionID
	}
	_, err := db.SessionsCollection.UpdateOne(ctx, bson.M{"sessionid": sessionID}, update)
	return err
}

// Clear implements the user's "clear chat": messages bulk-deleted, title
// and metadata reset, session id retained.
func (Sessions) Clear(ctx context.Context, sessionID string) error {
	if _, err := db.SessionMessagesCollection.DeleteMany(ctx, bson.M{"sessionid": sessionID}); err != nil {
		return err
	}
	_, err := db.SessionsCollection.UpdateOne(ctx,
		bson.M{"sessionid": sessionID},
		bson.M{"$set": bson.M{"title": "New conversation", "metadata": bson.M{}, "updated_at": time.Now()}})
	return err
}

// Messages is the append-only conversation log.
type Messages struct{}

func (Messages) Append(ctx context.Context, msg *models.SessionMessage) error {
	_, err := db.SessionMessagesCollection.InsertOne(ctx, msg)
	return err
}

func (Messages) History(ctx context.Context, sessionID string) ([]models.SessionMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := db.SessionMessagesCollection.Find(ctx, bson.M{"sessionid": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []models.SessionMessage
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.SessionMessage{}
	}
	return msgs, nil
}

// Profiles reads stored wellness preferences.
type Profiles struct{}

func (Profiles) Prefs(ctx context.Context, userID string) (*models.UserPrefs, error) {
	var prefs models.UserPrefs
	err := db.UserDataCollection.FindOne(ctx, bson.M{"userid": userID}).Decode(&prefs)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

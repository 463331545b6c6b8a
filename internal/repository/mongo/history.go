package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"jukebox/internal/domain"
)

const defaultHistoryLimit = 20

type historyDoc struct {
	ID         string `bson:"_id"`
	SongID     string `bson:"songId,omitempty"`
	SongTitle  string `bson:"songTitle"`
	User       string `bson:"user"`
	PlayerName string `bson:"playerName"`
	PlayedAt   int64  `bson:"playedAt"`
}

type HistoryRepository struct {
	collection *mongo.Collection
}

func NewHistoryRepository(client *mongo.Client, dbName string) *HistoryRepository {
	return &HistoryRepository{collection: client.Database(dbName).Collection("play_history")}
}

func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "playerName", Value: 1}, {Key: "playedAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *HistoryRepository) AppendHistory(ctx context.Context, e domain.PlayHistoryEntry) error {
	_, err := r.collection.InsertOne(ctx, toHistoryDoc(e))
	return err
}

// ListHistory returns the most recent plays first. A non-positive limit
// falls back to the default page size.
func (r *HistoryRepository) ListHistory(ctx context.Context, player string, limit int) ([]domain.PlayHistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "playedAt", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, bson.M{"playerName": player}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []historyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	entries := make([]domain.PlayHistoryEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, fromHistoryDoc(doc))
	}
	return entries, nil
}

func toHistoryDoc(e domain.PlayHistoryEntry) historyDoc {
	return historyDoc{
		ID:         e.ID,
		SongID:     e.SongID,
		SongTitle:  e.SongTitle,
		User:       e.User,
		PlayerName: e.PlayerName,
		PlayedAt:   e.PlayedAt.Unix(),
	}
}

func fromHistoryDoc(doc historyDoc) domain.PlayHistoryEntry {
	return domain.PlayHistoryEntry{
		ID:         doc.ID,
		SongID:     doc.SongID,
		SongTitle:  doc.SongTitle,
		User:       doc.User,
		PlayerName: doc.PlayerName,
		PlayedAt:   time.Unix(doc.PlayedAt, 0).UTC(),
	}
}

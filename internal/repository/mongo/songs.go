package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"jukebox/internal/domain"
)

type songDoc struct {
	ID      string  `bson:"_id"`
	Path    string  `bson:"path"`
	Title   string  `bson:"title"`
	Artist  string  `bson:"artist,omitempty"`
	Length  float64 `bson:"length"`
	AddedAt int64   `bson:"addedAt"`
}

type SongRepository struct {
	collection *mongo.Collection
}

func NewSongRepository(client *mongo.Client, dbName string) *SongRepository {
	return &SongRepository{collection: client.Database(dbName).Collection("songs")}
}

func (r *SongRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "path", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "title", Value: "text"}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *SongRepository) SongByID(ctx context.Context, id string) (domain.Song, error) {
	var doc songDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Song{}, domain.ErrNotFound
		}
		return domain.Song{}, err
	}
	return fromSongDoc(doc), nil
}

func (r *SongRepository) SongByPath(ctx context.Context, path string) (domain.Song, error) {
	var doc songDoc
	err := r.collection.FindOne(ctx, bson.M{"path": path}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Song{}, domain.ErrNotFound
		}
		return domain.Song{}, err
	}
	return fromSongDoc(doc), nil
}

func (r *SongRepository) ListSongs(ctx context.Context) ([]domain.Song, error) {
	opts := options.Find().SetSort(bson.D{{Key: "path", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []songDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	songs := make([]domain.Song, 0, len(docs))
	for _, doc := range docs {
		songs = append(songs, fromSongDoc(doc))
	}
	return songs, nil
}

func (r *SongRepository) SongPaths(ctx context.Context) ([]string, error) {
	raw, err := r.collection.Distinct(ctx, "path", bson.M{})
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			paths = append(paths, s)
		}
	}
	return paths, nil
}

func (r *SongRepository) CountSongs(ctx context.Context) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{})
	return int(n), err
}

// RandomSong samples one document uniformly, excluding the given paths.
func (r *SongRepository) RandomSong(ctx context.Context, excludePaths []string) (domain.Song, bool, error) {
	match := bson.M{}
	if len(excludePaths) > 0 {
		match = bson.M{"path": bson.M{"$nin": excludePaths}}
	}
	pipeline := []bson.M{
		{"$match": match},
		{"$sample": bson.M{"size": 1}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.Song{}, false, err
	}
	defer cursor.Close(ctx)

	var docs []songDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return domain.Song{}, false, err
	}
	if len(docs) == 0 {
		return domain.Song{}, false, nil
	}
	return fromSongDoc(docs[0]), true, nil
}

// UpsertSong inserts or refreshes a song keyed by its path, so a rescan
// never duplicates tracks whose metadata changed.
func (r *SongRepository) UpsertSong(ctx context.Context, s domain.Song) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"path": s.Path},
		bson.M{
			"$set": bson.M{
				"title":  s.Title,
				"artist": s.Artist,
				"length": s.Length,
			},
			"$setOnInsert": bson.M{
				"_id":     s.ID,
				"path":    s.Path,
				"addedAt": s.AddedAt.Unix(),
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *SongRepository) DeleteSongByPath(ctx context.Context, path string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"path": path})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func fromSongDoc(doc songDoc) domain.Song {
	return domain.Song{
		ID:      doc.ID,
		Path:    doc.Path,
		Title:   doc.Title,
		Artist:  doc.Artist,
		Length:  doc.Length,
		AddedAt: time.Unix(doc.AddedAt, 0).UTC(),
	}
}

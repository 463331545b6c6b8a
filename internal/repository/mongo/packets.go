package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"jukebox/internal/domain"
	"jukebox/internal/domain/ports"
)

type voteDoc struct {
	User   string `bson:"user"`
	CastAt int64  `bson:"castAt"`
}

type packetDoc struct {
	ID          string    `bson:"_id"`
	Seq         int64     `bson:"seq"`
	PlayerName  string    `bson:"playerName"`
	Kind        string    `bson:"kind"`
	SongID      string    `bson:"songId,omitempty"`
	VideoURL    string    `bson:"videoUrl,omitempty"`
	VideoTitle  string    `bson:"videoTitle,omitempty"`
	VideoLength float64   `bson:"videoLength,omitempty"`
	User        string    `bson:"user"`
	ArrivalTime float64   `bson:"arrivalTime"`
	FinishTime  float64   `bson:"finishTime"`
	Votes       []voteDoc `bson:"votes,omitempty"`
}

type PacketRepository struct {
	collection *mongo.Collection
}

func NewPacketRepository(client *mongo.Client, dbName string) *PacketRepository {
	return &PacketRepository{collection: client.Database(dbName).Collection("packets")}
}

// EnsureIndexes creates the uniqueness and ordering indexes. The partial
// filters scope each unique key to its packet kind so a song id and a video
// URL never collide on empty fields.
func (r *PacketRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "playerName", Value: 1}, {Key: "songId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"kind": string(domain.KindLocal)}),
		},
		{
			Keys: bson.D{{Key: "playerName", Value: 1}, {Key: "videoUrl", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"kind": string(domain.KindRemote)}),
		},
		{Keys: bson.D{{Key: "playerName", Value: 1}, {Key: "finishTime", Value: 1}}},
		{Keys: bson.D{{Key: "playerName", Value: 1}, {Key: "arrivalTime", Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func refFilter(player string, ref domain.ItemRef) bson.M {
	if ref.VideoURL != "" {
		return bson.M{"playerName": player, "kind": string(domain.KindRemote), "videoUrl": ref.VideoURL}
	}
	return bson.M{"playerName": player, "kind": string(domain.KindLocal), "songId": ref.SongID}
}

func (r *PacketRepository) FindPacket(ctx context.Context, player string, ref domain.ItemRef) (domain.Packet, error) {
	var doc packetDoc
	err := r.collection.FindOne(ctx, refFilter(player, ref)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Packet{}, domain.ErrNotFound
		}
		return domain.Packet{}, err
	}
	return fromPacketDoc(doc), nil
}

func (r *PacketRepository) InsertPacket(ctx context.Context, p domain.Packet) error {
	_, err := r.collection.InsertOne(ctx, toPacketDoc(p))
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return domain.ErrAlreadyVoted
	}
	return err
}

func (r *PacketRepository) DeletePacket(ctx context.Context, id domain.PacketID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PacketRepository) DeleteAll(ctx context.Context, player string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"playerName": player})
	return err
}

func (r *PacketRepository) ListPackets(ctx context.Context, player string, order ports.PacketOrder) ([]domain.Packet, error) {
	return r.list(ctx, bson.M{"playerName": player}, order)
}

func (r *PacketRepository) ListUserPackets(ctx context.Context, player, user string, order ports.PacketOrder) ([]domain.Packet, error) {
	return r.list(ctx, bson.M{"playerName": player, "user": user}, order)
}

func (r *PacketRepository) list(ctx context.Context, filter bson.M, order ports.PacketOrder) ([]domain.Packet, error) {
	key := "arrivalTime"
	if order == ports.OrderByFinishTime {
		key = "finishTime"
	}
	opts := options.Find().SetSort(bson.D{
		{Key: key, Value: 1},
		{Key: "arrivalTime", Value: 1},
		{Key: "seq", Value: 1},
	})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []packetDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	packets := make([]domain.Packet, 0, len(docs))
	for _, doc := range docs {
		packets = append(packets, fromPacketDoc(doc))
	}
	return packets, nil
}

func (r *PacketRepository) SetFinishTime(ctx context.Context, id domain.PacketID, t float64) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$set": bson.M{"finishTime": t}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AppendVote pushes a vote only when the user holds none, owner included.
// The guarded update makes the uniqueness check and the push atomic.
func (r *PacketRepository) AppendVote(ctx context.Context, id domain.PacketID, user string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":        string(id),
			"user":       bson.M{"$ne": user},
			"votes.user": bson.M{"$ne": user},
		},
		bson.M{"$push": bson.M{"votes": voteDoc{User: user, CastAt: time.Now().UTC().Unix()}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Either the packet is gone or the user already voted.
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": string(id)})
		if err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrAlreadyVoted
	}
	return nil
}

func (r *PacketRepository) CountPackets(ctx context.Context, player string) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"playerName": player})
	return int(n), err
}

func (r *PacketRepository) CountDistinctUsers(ctx context.Context, player string) (int, error) {
	users, err := r.collection.Distinct(ctx, "user", bson.M{"playerName": player})
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

func (r *PacketRepository) MaxArrivalTime(ctx context.Context, player string) (float64, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "arrivalTime", Value: -1}})
	var doc packetDoc
	err := r.collection.FindOne(ctx, bson.M{"playerName": player}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return doc.ArrivalTime, true, nil
}

func toPacketDoc(p domain.Packet) packetDoc {
	doc := packetDoc{
		ID:          string(p.ID),
		Seq:         p.Seq,
		PlayerName:  p.PlayerName,
		Kind:        string(p.Kind),
		SongID:      p.SongID,
		VideoURL:    p.VideoURL,
		VideoTitle:  p.VideoTitle,
		VideoLength: p.VideoLength,
		User:        p.User,
		ArrivalTime: p.ArrivalTime,
		FinishTime:  p.FinishTime,
	}
	for _, v := range p.Votes {
		doc.Votes = append(doc.Votes, voteDoc{User: v.User, CastAt: v.CastAt.Unix()})
	}
	return doc
}

func fromPacketDoc(doc packetDoc) domain.Packet {
	p := domain.Packet{
		ID:          domain.PacketID(doc.ID),
		Seq:         doc.Seq,
		PlayerName:  doc.PlayerName,
		Kind:        domain.Kind(doc.Kind),
		SongID:      doc.SongID,
		VideoURL:    doc.VideoURL,
		VideoTitle:  doc.VideoTitle,
		VideoLength: doc.VideoLength,
		User:        doc.User,
		ArrivalTime: doc.ArrivalTime,
		FinishTime:  doc.FinishTime,
	}
	for _, v := range doc.Votes {
		p.Votes = append(p.Votes, domain.Vote{User: v.User, CastAt: time.Unix(v.CastAt, 0).UTC()})
	}
	return p
}

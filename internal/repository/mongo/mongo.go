// Package mongo persists packets, songs and play history. Uniqueness of
// (playerName, songId), (playerName, videoUrl) and (packet, user) votes is
// enforced by indexes and guarded updates, so racing writers cannot create
// duplicates regardless of scheduler locking.
package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

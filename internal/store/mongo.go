package store

import (
	"context"
	"time"

	"emperror.dev/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"guild_stats_site/internal/config"
	"guild_stats_site/internal/domain"
)

// CollectionSnapshots mirrors TableSnapshots for the Mongo backend.
const CollectionSnapshots = TableSnapshots

// mongoClient captures the subset of mongo.Client behavior we rely on to allow
// lightweight stubbing in tests without a live Mongo deployment.
type mongoClient interface {
	Ping(context.Context, *readpref.ReadPref) error
	Database(string, ...*options.DatabaseOptions) *mongo.Database
	Disconnect(context.Context) error
}

type findOneCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

// connectMongo is overridable for tests.
var connectMongo = func(ctx context.Context, opts *options.ClientOptions) (mongoClient, error) {
	return mongo.Connect(ctx, opts)
}

type snapshotDocument struct {
	GuildID         string    `bson:"guild_id"`
	TotalMembers    int64     `bson:"total_members"`
	OnlineMembers   int64     `bson:"online_members"`
	JoinsToday      int64     `bson:"joins_today"`
	JoinsLast30Days int64     `bson:"joins_last_30_days"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func (d snapshotDocument) toSnapshot() (domain.Snapshot, error) {
	snap := domain.Snapshot{
		GuildID:   d.GuildID,
		UpdatedAt: d.UpdatedAt.UTC(),
	}

	var err error
	if snap.TotalMembers, err = domain.CountFromInt64("total_members", d.TotalMembers); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.OnlineMembers, err = domain.CountFromInt64("online_members", d.OnlineMembers); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.JoinsToday, err = domain.CountFromInt64("joins_today", d.JoinsToday); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.JoinsLast30Days, err = domain.CountFromInt64("joins_last_30_days", d.JoinsLast30Days); err != nil {
		return domain.Snapshot{}, err
	}

	return snap, nil
}

// MongoSource serves snapshots from a MongoDB collection.
type MongoSource struct {
	client    mongoClient
	snapshots findOneCollection
}

// OpenMongo initializes the Mongo client using the supplied configuration.
// The driver connects lazily; use Ping to probe connectivity.
func OpenMongo(ctx context.Context, cfg config.Config) (*MongoSource, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	client, err := connectMongo(ctx, options.Client().ApplyURI(cfg.MongoURI).SetMaxPoolSize(PoolSize))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}

	return &MongoSource{
		client:    client,
		snapshots: client.Database(cfg.MongoDB).Collection(CollectionSnapshots),
	}, nil
}

// Ping checks connectivity against the primary.
func (s *MongoSource) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if s == nil || s.client == nil {
		return errors.New("mongo source is not initialized")
	}

	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return errors.Wrap(err, "ping mongo")
	}

	return nil
}

// LatestSnapshot returns the snapshot document for guildID, or
// domain.ErrSnapshotNotFound.
func (s *MongoSource) LatestSnapshot(ctx context.Context, guildID string) (domain.Snapshot, error) {
	if ctx == nil {
		return domain.Snapshot{}, errors.New("context is required")
	}
	if s == nil || s.snapshots == nil {
		return domain.Snapshot{}, errors.New("mongo source is not initialized")
	}

	result := s.snapshots.FindOne(ctx, bson.M{"guild_id": guildID})
	if result == nil {
		return domain.Snapshot{}, errors.New("find snapshot returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Snapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.Snapshot{}, errors.Wrap(err, "find snapshot")
	}

	var doc snapshotDocument
	if err := result.Decode(&doc); err != nil {
		return domain.Snapshot{}, errors.Wrap(err, "decode snapshot")
	}

	snap, err := doc.toSnapshot()
	if err != nil {
		return domain.Snapshot{}, errors.Wrap(err, "decode snapshot")
	}

	return snap, nil
}

// Close disconnects the Mongo client.
func (s *MongoSource) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return s.client.Disconnect(ctx)
}

package store

import (
	"context"

	"emperror.dev/errors"

	"guild_stats_site/internal/config"
	"guild_stats_site/internal/domain"
)

// Source is a read-only view over the latest guild snapshots.
type Source interface {
	LatestSnapshot(ctx context.Context, guildID string) (domain.Snapshot, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

var (
	_ Source = (*MySQLSource)(nil)
	_ Source = (*MongoSource)(nil)
)

// Open builds the Source selected by STATS_BACKEND.
func Open(ctx context.Context, cfg config.Config) (Source, error) {
	switch cfg.StatsBackend {
	case config.BackendMySQL, "":
		src, err := OpenMySQL(cfg)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.BackendMongo:
		src, err := OpenMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, errors.Errorf("unsupported stats backend %q", cfg.StatsBackend)
	}
}

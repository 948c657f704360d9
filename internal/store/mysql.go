// Package store reads guild statistics snapshots from MySQL (the default) or
// MongoDB.
package store

import (
	"context"
	"database/sql"
	"time"

	"emperror.dev/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"guild_stats_site/internal/config"
	"guild_stats_site/internal/domain"
)

// PoolSize is the ceiling of concurrently checked-out connections. Callers
// beyond it wait inside database/sql until a connection frees up or their
// context ends.
const PoolSize = 5

// TableSnapshots is the table the collector keeps one row per guild in.
const TableSnapshots = "guild_stats_latest"

const (
	qLatestSnapshot = `SELECT
	guild_id,
	total_members,
	online_members,
	joins_today,
	joins_last_30_days,
	updated_at
FROM ` + TableSnapshots + `
WHERE guild_id = ?
LIMIT 1`

	qPing = `SELECT 1`
)

// openDB is overridable for tests.
var openDB = func(driverName, dsn string) (*sqlx.DB, error) {
	return sqlx.Open(driverName, dsn)
}

// snapshotRow mirrors the driver's view of a row. Counts stay strings until
// toSnapshot parses them.
type snapshotRow struct {
	GuildID         string    `db:"guild_id"`
	TotalMembers    string    `db:"total_members"`
	OnlineMembers   string    `db:"online_members"`
	JoinsToday      string    `db:"joins_today"`
	JoinsLast30Days string    `db:"joins_last_30_days"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r snapshotRow) toSnapshot() (domain.Snapshot, error) {
	snap := domain.Snapshot{
		GuildID:   r.GuildID,
		UpdatedAt: r.UpdatedAt.UTC(),
	}

	counts := []struct {
		field string
		raw   string
		dst   *uint64
	}{
		{"total_members", r.TotalMembers, &snap.TotalMembers},
		{"online_members", r.OnlineMembers, &snap.OnlineMembers},
		{"joins_today", r.JoinsToday, &snap.JoinsToday},
		{"joins_last_30_days", r.JoinsLast30Days, &snap.JoinsLast30Days},
	}

	for _, c := range counts {
		value, err := domain.ParseCount(c.field, c.raw)
		if err != nil {
			return domain.Snapshot{}, err
		}
		*c.dst = value
	}

	return snap, nil
}

// MySQLSource serves snapshots from a bounded MySQL pool.
type MySQLSource struct {
	db *sqlx.DB
}

// MySQLConfig builds the driver configuration: TCP to DB_HOST:DB_PORT with
// the session and decoded timestamps pinned to UTC.
func MySQLConfig(cfg config.Config) *mysql.Config {
	dsn := mysql.NewConfig()
	dsn.Net = "tcp"
	dsn.Addr = cfg.DBAddr()
	dsn.User = cfg.DBUser
	dsn.Passwd = cfg.DBPassword
	dsn.DBName = cfg.DBName
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.Params = map[string]string{
		"time_zone": "'+00:00'",
	}

	return dsn
}

// OpenMySQL constructs the connection pool. No connection is made until the
// first query; use Ping to probe connectivity.
func OpenMySQL(cfg config.Config) (*MySQLSource, error) {
	db, err := openDB("mysql", MySQLConfig(cfg).FormatDSN())
	if err != nil {
		return nil, errors.Wrap(err, "open mysql pool")
	}

	db.SetMaxOpenConns(PoolSize)
	db.SetMaxIdleConns(PoolSize)

	return NewMySQLSource(db), nil
}

// NewMySQLSource wraps an existing handle.
func NewMySQLSource(db *sqlx.DB) *MySQLSource {
	return &MySQLSource{db: db}
}

// DB exposes the pool handle.
func (s *MySQLSource) DB() *sqlx.DB {
	return s.db
}

// Ping runs the liveness probe against the pool.
func (s *MySQLSource) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if s == nil || s.db == nil {
		return errors.New("mysql source is not initialized")
	}

	var one int
	if err := s.db.GetContext(ctx, &one, qPing); err != nil {
		return errors.Wrap(err, "ping mysql")
	}

	return nil
}

// LatestSnapshot returns the snapshot for guildID, or
// domain.ErrSnapshotNotFound when the collector has not written one.
func (s *MySQLSource) LatestSnapshot(ctx context.Context, guildID string) (domain.Snapshot, error) {
	if ctx == nil {
		return domain.Snapshot{}, errors.New("context is required")
	}
	if s == nil || s.db == nil {
		return domain.Snapshot{}, errors.New("mysql source is not initialized")
	}

	var row snapshotRow
	if err := s.db.GetContext(ctx, &row, qLatestSnapshot, guildID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Snapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.Snapshot{}, errors.Wrap(err, "query latest snapshot")
	}

	snap, err := row.toSnapshot()
	if err != nil {
		return domain.Snapshot{}, errors.Wrap(err, "decode latest snapshot")
	}

	return snap, nil
}

// Close releases the pool.
func (s *MySQLSource) Close(context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild_stats_site/internal/config"
	"guild_stats_site/internal/domain"
)

var snapshotColumns = []string{
	"guild_id",
	"total_members",
	"online_members",
	"joins_today",
	"joins_last_30_days",
	"updated_at",
}

var qLatestSnapshotPattern = regexp.QuoteMeta(qLatestSnapshot)

func newMockSource(t *testing.T) (*MySQLSource, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewMySQLSource(sqlx.NewDb(db, "mysql")), mock
}

func TestMySQLConfigPinsUTCAndAddress(t *testing.T) {
	dsn := MySQLConfig(config.Config{
		DBHost:     "db.internal",
		DBPort:     3307,
		DBUser:     "reader",
		DBPassword: "secret",
		DBName:     "guild_stats",
	})

	assert.Equal(t, "tcp", dsn.Net)
	assert.Equal(t, "db.internal:3307", dsn.Addr)
	assert.Equal(t, "reader", dsn.User)
	assert.Equal(t, "secret", dsn.Passwd)
	assert.Equal(t, "guild_stats", dsn.DBName)
	assert.True(t, dsn.ParseTime)
	assert.Equal(t, time.UTC, dsn.Loc)
	assert.Equal(t, "'+00:00'", dsn.Params["time_zone"])

	formatted := dsn.FormatDSN()
	assert.Contains(t, formatted, "reader:secret@tcp(db.internal:3307)/guild_stats")
	assert.Contains(t, formatted, "parseTime=true")
}

func TestOpenMySQLBoundsPool(t *testing.T) {
	src, err := OpenMySQL(config.Config{
		DBHost: "127.0.0.1",
		DBPort: 3306,
		DBUser: "reader",
		DBName: "guild_stats",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close(context.Background()) })

	assert.Equal(t, PoolSize, src.DB().Stats().MaxOpenConnections)
	assert.Equal(t, "mysql", src.DB().DriverName())
}

func TestOpenMySQLPropagatesOpenError(t *testing.T) {
	prev := openDB
	openDB = func(string, string) (*sqlx.DB, error) {
		return nil, errors.New("bad dsn")
	}
	t.Cleanup(func() { openDB = prev })

	_, err := OpenMySQL(config.Config{DBHost: "h", DBPort: 1, DBUser: "u", DBName: "d"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open mysql pool")
}

func TestLatestSnapshotParsesStringCounts(t *testing.T) {
	src, mock := newMockSource(t)

	updatedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(qLatestSnapshotPattern).
		WithArgs("123").
		WillReturnRows(sqlmock.NewRows(snapshotColumns).
			AddRow("123", "500", "50", "3", "40", updatedAt))

	snap, err := src.LatestSnapshot(context.Background(), "123")
	require.NoError(t, err)

	assert.Equal(t, domain.Snapshot{
		GuildID:         "123",
		TotalMembers:    500,
		OnlineMembers:   50,
		JoinsToday:      3,
		JoinsLast30Days: 40,
		UpdatedAt:       updatedAt,
	}, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestSnapshotKeepsBigIntPrecision(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectQuery(qLatestSnapshotPattern).
		WithArgs("123").
		WillReturnRows(sqlmock.NewRows(snapshotColumns).
			AddRow("123", "9007199254740993", int64(1), int64(0), int64(2), time.Now()))

	snap, err := src.LatestSnapshot(context.Background(), "123")
	require.NoError(t, err)

	assert.Equal(t, uint64(9007199254740993), snap.TotalMembers)
	assert.Equal(t, uint64(1), snap.OnlineMembers)
	assert.Equal(t, time.UTC, snap.UpdatedAt.Location())
}

func TestLatestSnapshotNotFound(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectQuery(qLatestSnapshotPattern).
		WithArgs("404").
		WillReturnRows(sqlmock.NewRows(snapshotColumns))

	_, err := src.LatestSnapshot(context.Background(), "404")
	assert.True(t, errors.Is(err, domain.ErrSnapshotNotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestSnapshotWrapsQueryErrors(t *testing.T) {
	src, mock := newMockSource(t)

	boom := errors.New("too many connections")
	mock.ExpectQuery(qLatestSnapshotPattern).
		WithArgs("123").
		WillReturnError(boom)

	_, err := src.LatestSnapshot(context.Background(), "123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.False(t, errors.Is(err, domain.ErrSnapshotNotFound))
}

func TestLatestSnapshotRejectsMalformedCounts(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectQuery(qLatestSnapshotPattern).
		WithArgs("123").
		WillReturnRows(sqlmock.NewRows(snapshotColumns).
			AddRow("123", "500", "-5", "3", "40", time.Now()))

	_, err := src.LatestSnapshot(context.Background(), "123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "online_members")
	assert.False(t, errors.Is(err, domain.ErrSnapshotNotFound))
}

func TestLatestSnapshotBindsGuildIDAsParameter(t *testing.T) {
	src, mock := newMockSource(t)

	hostile := "1' OR '1'='1"
	mock.ExpectQuery(qLatestSnapshotPattern).
		WithArgs(hostile).
		WillReturnRows(sqlmock.NewRows(snapshotColumns))

	_, err := src.LatestSnapshot(context.Background(), hostile)
	assert.True(t, errors.Is(err, domain.ErrSnapshotNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLPing(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectQuery(regexp.QuoteMeta(qPing)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	require.NoError(t, src.Ping(context.Background()))

	mock.ExpectQuery(regexp.QuoteMeta(qPing)).
		WillReturnError(errors.New("connection refused"))
	err := src.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping mysql")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLSourceValidatesInputs(t *testing.T) {
	var nilSource *MySQLSource

	_, err := nilSource.LatestSnapshot(context.Background(), "1")
	assert.Error(t, err)
	assert.Error(t, nilSource.Ping(context.Background()))
	assert.NoError(t, nilSource.Close(context.Background()))

	src, _ := newMockSource(t)
	//nolint:staticcheck
	_, err = src.LatestSnapshot(nil, "1")
	assert.Error(t, err)
}

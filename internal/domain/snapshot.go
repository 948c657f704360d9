package domain

import (
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
)

// TimestampLayout renders UTC instants with millisecond precision and a Z
// suffix, e.g. 2024-01-01T00:00:00.000Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// ErrSnapshotNotFound reports that the lookup succeeded but no snapshot has
// been written for the guild yet.
var ErrSnapshotNotFound = errors.Sentinel("guild stats snapshot not found")

// Snapshot is the latest statistics row the external collector wrote for a
// guild.
type Snapshot struct {
	GuildID         string
	TotalMembers    uint64
	OnlineMembers   uint64
	JoinsToday      uint64
	JoinsLast30Days uint64
	UpdatedAt       time.Time
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseCount converts a driver-transported decimal string into a count.
// Counts are carried as strings so 64-bit values never pass through a float.
func ParseCount(field, raw string) (uint64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, errors.Errorf("%s: empty count", field)
	}

	count, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: invalid count %q", field, raw)
	}

	return count, nil
}

// CountFromInt64 accepts a natively typed count, rejecting negatives.
func CountFromInt64(field string, value int64) (uint64, error) {
	if value < 0 {
		return 0, errors.Errorf("%s: negative count %d", field, value)
	}

	return uint64(value), nil
}

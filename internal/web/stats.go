package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"emperror.dev/errors"

	"guild_stats_site/internal/domain"
	"guild_stats_site/internal/logging"
)

const (
	msgNoSnapshot    = "no statistics yet for this guild (has the collector run updateStats?)"
	msgInternalError = "internal error reading the database"
)

type statsResponse struct {
	GuildID         string `json:"guildId"`
	TotalMembers    uint64 `json:"totalMembers"`
	OnlineMembers   uint64 `json:"onlineMembers"`
	JoinsToday      uint64 `json:"joinsToday"`
	JoinsLast30Days uint64 `json:"joinsLast30Days"`
	UpdatedAt       string `json:"updatedAt"`
}

type notFoundResponse struct {
	Error   string `json:"error"`
	GuildID string `json:"guildId"`
}

func newStatsResponse(snap domain.Snapshot) statsResponse {
	return statsResponse{
		GuildID:         snap.GuildID,
		TotalMembers:    snap.TotalMembers,
		OnlineMembers:   snap.OnlineMembers,
		JoinsToday:      snap.JoinsToday,
		JoinsLast30Days: snap.JoinsLast30Days,
		UpdatedAt:       domain.FormatTimestamp(snap.UpdatedAt),
	}
}

// handleStats serves GET /api/stats?guildId=<id>.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	guildID := strings.TrimSpace(r.URL.Query().Get("guildId"))
	if guildID == "" {
		guildID = s.defaultGuildID
	}

	logger := logging.ContextFields(s.logger, logging.Context{
		GuildID:   guildID,
		RequestID: RequestID(r.Context()),
		Event:     "stats_lookup",
	})

	if s.source == nil {
		logger.Error("snapshot source is not configured")
		s.metrics.lookups.WithLabelValues(outcomeError).Inc()
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	ctx := r.Context()
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	started := time.Now()
	snap, err := s.source.LatestSnapshot(ctx, guildID)
	s.metrics.lookupDuration.Observe(time.Since(started).Seconds())

	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		s.metrics.lookups.WithLabelValues(outcomeNotFound).Inc()
		writeJSON(w, http.StatusNotFound, notFoundResponse{Error: msgNoSnapshot, GuildID: guildID})
	case err != nil:
		s.metrics.lookups.WithLabelValues(outcomeError).Inc()
		logger.WithError(err).
			WithField("timed_out", errors.Is(err, context.DeadlineExceeded)).
			Error("failed to read guild stats snapshot")
		writeError(w, http.StatusInternalServerError, msgInternalError)
	default:
		s.metrics.lookups.WithLabelValues(outcomeFound).Inc()
		writeJSON(w, http.StatusOK, newStatsResponse(snap))
	}
}

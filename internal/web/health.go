package web

import (
	"context"
	"net/http"
	"time"

	"guild_stats_site/internal/logging"
)

const databasePingTimeout = 2 * time.Second

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// handleHealth always answers 200 so probes can distinguish a degraded
// database from a dead process.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	databaseStatus := "ok"

	if s.source == nil {
		databaseStatus = "error"
		s.logger.WithField("event", "health_source_missing").Warn("snapshot source is not configured for health endpoint")
	} else {
		pingCtx, cancel := context.WithTimeout(r.Context(), databasePingTimeout)
		err := s.source.Ping(pingCtx)
		cancel()

		if err != nil {
			databaseStatus = "error"
			s.logger.WithFields(logging.Fields{
				"event":      "health_database_error",
				"request_id": RequestID(r.Context()),
			}).WithError(err).Warn("database ping failed during health check")
		}
	}

	if databaseStatus != "ok" {
		resp.Status = "degraded"
		resp.Database = "error"
	}

	writeJSON(w, http.StatusOK, resp)
}

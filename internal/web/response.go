package web

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"guild_stats_site/internal/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errorResponse is the body of every non-404 error.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v before touching headers so an encoding failure can
// still become a clean 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logging.Logger().WithField("event", "http_encode_error").WithError(err).Error("failed to encode response")
		writeErrorFallback(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		logging.Logger().WithField("event", "http_write_error").WithError(err).Warn("failed to write response")
	}
}

// writeError writes the public message only; callers log the cause.
func writeError(w http.ResponseWriter, status int, public string) {
	if public == "" {
		public = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: public})
}

func writeErrorFallback(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

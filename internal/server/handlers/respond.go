package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// respondWithJSON writes a JSON response
func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// respondWithError writes an error response
func respondWithError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		slog.Warn(message, slog.Any("error", err))
	}
	respondWithJSON(w, status, map[string]string{"error": message})
}

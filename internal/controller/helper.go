package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

func (c controller) generateTimeBasedId() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}

type envelope map[string]any

func (c controller) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Warn("failed to write json", "error", err)
	}
}

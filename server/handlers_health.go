package server

import (
	"encoding/json"
	"net/http"
	"os"
)

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with per-dependency checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() bool
	}{
		{"settings", func() bool {
			_, err := os.Stat(h.store.Path())
			return err == nil || os.IsNotExist(err)
		}},
		{"discord_gateway", func() bool {
			if h.botReady == nil {
				return true
			}
			return h.botReady()
		}},
	}

	for _, check := range checks {
		if !check.fn() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports a small operational snapshot for the dashboard.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	configured := 0
	managed := 0
	for _, gc := range h.store.AllGuildConfigs() {
		if gc.TriggerChannelID != "" {
			configured++
		}
		managed += len(gc.ManagedChannelIDs)
	}
	writeJSON(w, map[string]any{
		"configured_guilds": configured,
		"managed_rooms":     managed,
		"tracked_owners":    h.registry.Len(),
	})
}

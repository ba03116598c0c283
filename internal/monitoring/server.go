package monitoring

import (
	"encoding/json"
	"net/http"
)

// Status is the JSON body served on /status.
type Status struct {
	State   string `json:"state"`
	Cycles  uint64 `json:"cycles"`
	Session string `json:"session"`
	Version string `json:"version"`
}

// NewServeMux mounts /metrics and, when status is non-nil, /status.
func NewServeMux(m *Metrics, status func() Status) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if status != nil {
		mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
				return
			}
			writeJSON(w, http.StatusOK, status())
		})
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		Logf("failed to encode json response: %v", err)
	}
}

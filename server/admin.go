package server

import (
	"encoding/json"
	"net/http"
)

// HandleRooms 输出大厅列表
// GET /admin/rooms
func (s *Server) HandleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.registry.Summarize())
}

// HandleMetrics 输出运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	payload := map[string]any{
		"metrics": s.metrics.Snapshot(),
	}
	if s.saver != nil {
		payload["persistence"] = map[string]any{
			"saves":    s.saver.Saves(),
			"failures": s.saver.Failures(),
			"dirty":    s.saver.Dirty(),
		}
	}
	writeJSON(w, payload)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

package api

import "net/http"

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !s.daemon.Running() {
		status = "stopped"
	}
	s.writeJSON(w, http.StatusOK, healthResponse{Status: status})
}

type statusResponse struct {
	Backend      string `json:"backend"`
	Capabilities string `json:"capabilities"`
	Running      bool   `json:"running"`
	Paused       bool   `json:"paused"`
	OutputCount  int    `json:"output_count"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	b := s.daemon.Backend()
	s.writeJSON(w, http.StatusOK, statusResponse{
		Backend:      b.Name(),
		Capabilities: b.Capabilities().String(),
		Running:      s.daemon.Running(),
		Paused:       s.daemon.Paused(),
		OutputCount:  s.daemon.Directory().Len(),
	})
}

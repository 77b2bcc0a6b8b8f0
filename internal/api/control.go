package api

import "net/http"

type ackResponse struct {
	Status string `json:"status"`
}

// handleNext advances every cycling output on the next loop iteration.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.daemon.Skip()
	s.writeJSON(w, http.StatusAccepted, ackResponse{Status: "next"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.daemon.Pause()
	s.writeJSON(w, http.StatusOK, ackResponse{Status: "paused"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.daemon.Resume()
	s.writeJSON(w, http.StatusOK, ackResponse{Status: "resumed"})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		s.writeError(w, http.StatusServiceUnavailable, "reload disabled")
		return
	}
	s.reloader.Request()
	s.writeJSON(w, http.StatusAccepted, ackResponse{Status: "reloading"})
}

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/1ay1/neowall-sub002/internal/display"
	"github.com/1ay1/neowall-sub002/internal/store"
)

// outputResponse is one output in the JSON listing.
type outputResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	PixelWidth  int    `json:"pixel_width"`
	PixelHeight int    `json:"pixel_height"`
	Scale       int    `json:"scale"`
	Wallpaper   string `json:"wallpaper,omitempty"`
	Cycling     bool   `json:"cycling"`
	Playlist    int    `json:"playlist"`
	Pending     bool   `json:"pending"`
	LastCycle   string `json:"last_cycle,omitempty"`
}

func outputToResponse(o *display.Output) outputResponse {
	resp := outputResponse{
		Name:        o.Info.Name,
		Description: o.Info.Description,
		Width:       o.Info.Width,
		Height:      o.Info.Height,
		PixelWidth:  o.Info.PixelWidth,
		PixelHeight: o.Info.PixelHeight,
		Scale:       o.Info.Scale,
		Wallpaper:   o.CurrentPath,
		Cycling:     o.CycleEnabled(),
		Playlist:    len(o.Playlist),
		Pending:     o.Pending,
	}
	if !o.LastCycle.IsZero() {
		resp.LastCycle = o.LastCycle.Format(time.RFC3339)
	}
	return resp
}

func (s *Server) handleListOutputs(w http.ResponseWriter, r *http.Request) {
	var resp []outputResponse
	s.daemon.Directory().View(func(outputs []*display.Output) {
		for _, o := range outputs {
			resp = append(resp, outputToResponse(o))
		}
	})
	if resp == nil {
		resp = []outputResponse{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetOutput(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var resp *outputResponse
	s.daemon.Directory().View(func(outputs []*display.Output) {
		for _, o := range outputs {
			if o.Info.Name == name {
				v := outputToResponse(o)
				resp = &v
			}
		}
	})
	if resp == nil {
		s.writeError(w, http.StatusNotFound, "output not found")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// historyEntry is a single wallpaper in the history response.
type historyEntry struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	SetAt string `json:"set_at"`
}

// historyResponse is the JSON response for GET /v1/outputs/:name/history.
type historyResponse struct {
	Output  string         `json:"output"`
	Entries []historyEntry `json:"entries"`
}

func (s *Server) handleOutputHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}
	name := chi.URLParam(r, "name")
	limit := parseIntQuery(r, "limit", 20)

	recs, err := s.store.History(r.Context(), name, limit)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("wallpaper history", "output", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	entries := make([]historyEntry, len(recs))
	for i, rec := range recs {
		entries[i] = historyEntry{
			ID:    rec.ID,
			Path:  rec.Path,
			SetAt: rec.SetAt.Format(time.RFC3339),
		}
	}
	s.writeJSON(w, http.StatusOK, historyResponse{Output: name, Entries: entries})
}

// handleStreamChanges streams wallpaper changes for one output as SSE.
func (s *Server) handleStreamChanges(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if s.daemon.Directory().Get(name) == nil {
		s.writeError(w, http.StatusNotFound, "output not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Safe even if the output is unplugged between the check above and this
	// call: Subscribe on a closed topic returns a closed channel, so the
	// loop below exits immediately.
	ch, unsub := s.daemon.Broker().Subscribe(name)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case path, ok := <-ch:
			if !ok {
				// Output unplugged; send explicit done event before closing.
				_ = writeSSEEvent(w, "done", "output removed")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSEData(w, path); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSEData writes a wallpaper path as an SSE data event. Multi-line
// strings are split so that each segment gets its own "data:" prefix, per
// the SSE spec.
func writeSSEData(w http.ResponseWriter, line string) error {
	for _, seg := range strings.Split(line, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	// Blank line terminates the event.
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}

package plot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/raykavin/nsechart/pkg/core"
	"github.com/raykavin/nsechart/pkg/feed"
)

// handleHealth reports liveness and the connected sessions
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sessions := s.Sessions()

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": len(sessions),
		"ids":      sessions,
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
	if err != nil {
		s.log.Error("Failed to write health status: ", err)
	}
}

// handleIndex handles the main page request
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query()
	ticker := query.Get("ticker")
	if ticker != "" {
		clean, err := feed.NormalizeTicker(ticker)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ticker = clean
	}

	period, interval := s.window(query.Get("period"), query.Get("interval"))

	w.Header().Set("Content-Type", "text/html")
	err := s.indexHTML.Execute(w, map[string]any{
		"ticker":   ticker,
		"period":   period,
		"interval": interval,
		"toggles":  query.Get("toggles"),
		"compare":  query.Get("compare"),
		"theme":    string(s.theme),
	})
	if err != nil {
		s.log.Error("Template execution failed: ", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleScript serves the transpiled browser client
func (s *Server) handleScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	fmt.Fprint(w, s.scriptContent)
}

// handleWebSocket upgrades the request and serves one chart session on it
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Failed to upgrade connection to WebSocket: ", err)
		return
	}

	id := s.register()
	defer s.unregister(id)

	s.log.WithField("session", id).Info("websocket client connected")
	newSession(id, conn, s).run(r.Context())
	s.log.WithField("session", id).Info("websocket client disconnected")
}

// handlePNG renders a chart image for ?ticker=&toggles=&theme=&width=&viewport=&compare=.
// width and viewport are capped at MaxWidth.
func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	toggles, err := s.parseToggles(query.Get("toggles"), query.Get("theme"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	width, err := intParam(query.Get("width"), min(s.width, MaxWidth), MaxWidth)
	if err != nil {
		http.Error(w, "invalid width: "+err.Error(), http.StatusBadRequest)
		return
	}
	viewport, err := intParam(query.Get("viewport"), width, MaxWidth)
	if err != nil {
		http.Error(w, "invalid viewport: "+err.Error(), http.StatusBadRequest)
		return
	}

	bars, ticker, ok := s.history(w, r)
	if !ok {
		return
	}
	period, interval := s.window(query.Get("period"), query.Get("interval"))

	if compare := query.Get("compare"); compare != "" {
		toggles.Comparison, err = feed.Comparison(r.Context(), s.source, compare, period, interval)
		if err != nil {
			s.writeSourceError(w, err)
			return
		}
	}

	buffer := bytes.NewBuffer(nil)
	err = RenderBars(buffer, bars, toggles, width, viewport, WithLogger(s.log), WithEMASeed(s.seed))
	if errors.Is(err, ErrInvalidSize) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if errors.Is(err, ErrNothingToRender) {
		http.Error(w, fmt.Sprintf("not enough history for %s", ticker), http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.WithField("ticker", ticker).WithError(err).Error("render failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(buffer.Bytes()); err != nil {
		s.log.Error("Failed writing PNG response: ", err)
	}
}

// handleHistoryCSV exports the loaded history of ?ticker= as CSV
func (s *Server) handleHistoryCSV(w http.ResponseWriter, r *http.Request) {
	bars, ticker, ok := s.history(w, r)
	if !ok {
		return
	}

	buffer := bytes.NewBuffer(nil)
	if err := feed.WriteCSV(buffer, bars); err != nil {
		s.log.Error("Failed writing CSV data: ", err)
		http.Error(w, "Failed to generate CSV", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment;filename=history_"+ticker+".csv")
	if _, err := w.Write(buffer.Bytes()); err != nil {
		s.log.Error("Failed writing CSV response: ", err)
	}
}

// history loads the bars named by the request, writing the error response on failure
func (s *Server) history(w http.ResponseWriter, r *http.Request) ([]core.Bar, string, bool) {
	query := r.URL.Query()

	ticker, err := feed.NormalizeTicker(query.Get("ticker"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, "", false
	}

	period, interval := s.window(query.Get("period"), query.Get("interval"))
	bars, err := s.source.History(r.Context(), ticker, period, interval)
	if err != nil {
		s.writeSourceError(w, err)
		return nil, "", false
	}
	if len(bars) == 0 {
		http.Error(w, fmt.Sprintf("no history for %s", ticker), http.StatusNotFound)
		return nil, "", false
	}

	return bars, ticker, true
}

func (s *Server) writeSourceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feed.ErrInvalidTicker):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, feed.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.log.WithError(err).Error("history source failed")
		http.Error(w, "history source unavailable", http.StatusBadGateway)
	}
}

// intParam parses a positive integer no greater than limit
func intParam(raw string, fallback, limit int) (int, error) {
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid value %q", raw)
	}
	if value > limit {
		return 0, fmt.Errorf("%d exceeds %d", value, limit)
	}
	return value, nil
}

// Package api exposes the lane map and live prediction loop over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/laneflow/internal/lanedb"
	"github.com/banshee-data/laneflow/internal/lanes"
	"github.com/banshee-data/laneflow/internal/monitor"
	"github.com/banshee-data/laneflow/internal/monitoring"
	"github.com/banshee-data/laneflow/internal/predict"
)

// Config carries the wiring for a WebServer.
type Config struct {
	Address           string
	Lanes             []lanes.Lane
	Monitor           *predict.Monitor
	DB                *lanedb.DB // optional; nil disables persistence
	SimplifyTolerance float64
}

// WebServer serves frame ingest, the lane map, and prediction
// snapshots.
type WebServer struct {
	address           string
	lanes             []lanes.Lane
	monitor           *predict.Monitor
	db                *lanedb.DB
	simplifyTolerance float64

	server *http.Server
}

// NewWebServer creates a web server for the given lane map and monitor.
func NewWebServer(config Config) *WebServer {
	ws := &WebServer{
		address:           config.Address,
		lanes:             config.Lanes,
		monitor:           config.Monitor,
		db:                config.DB,
		simplifyTolerance: config.SimplifyTolerance,
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/api/frames", ws.handleFrames)
	mux.HandleFunc("/api/lanes", ws.handleLanes)
	mux.HandleFunc("/api/predictions", ws.handlePredictions)
	mux.HandleFunc("/monitor/lanes", monitor.LaneChartHandler(ws.lanes, ws.monitor))

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		ws.writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"lanes":   len(ws.lanes),
		"frame":   ws.monitor.Frame(),
		"tracked": ws.monitor.TrackedCount(),
	})
}

// frameRequest is one ingested frame of detections from the external
// detector/tracker.
type frameRequest struct {
	Detections []predict.Detection `json:"detections"`
}

// handleFrames ingests one frame of vehicle detections and advances the
// prediction loop. When a database is wired, raw observations and any
// predictions freshly computed on this frame are persisted.
func (ws *WebServer) handleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode frame: %v", err))
		return
	}

	ws.monitor.ObserveFrame(req.Detections)
	frame := ws.monitor.Frame()

	if ws.db != nil {
		obs := make([]lanedb.Observation, 0, len(req.Detections))
		for _, det := range req.Detections {
			obs = append(obs, lanedb.Observation{
				TrackID: det.TrackID,
				Frame:   frame,
				X:       det.Position.X,
				Y:       det.Position.Y,
			})
		}
		if err := ws.db.InsertObservations(obs); err != nil {
			ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("persist observations: %v", err))
			return
		}
		if err := ws.persistFreshPredictions(frame); err != nil {
			ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("persist predictions: %v", err))
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"frame":   frame,
		"tracked": ws.monitor.TrackedCount(),
	})
}

// persistFreshPredictions stores predictions computed on the current
// frame. Older snapshot entries were already stored on their own frame.
func (ws *WebServer) persistFreshPredictions(frame int64) error {
	var recs []lanedb.PredictionRecord
	for _, tp := range ws.monitor.Snapshot() {
		if tp.Frame != frame {
			continue
		}
		for _, pred := range tp.Predictions {
			recs = append(recs, lanedb.PredictionRecord{
				TrackID:     tp.TrackID,
				Frame:       tp.Frame,
				LaneID:      pred.LaneID,
				Probability: pred.Probability,
				Path:        pred.Path,
			})
		}
	}
	return ws.db.InsertPredictions(recs)
}

// handleLanes serves the lane map as GeoJSON.
func (ws *WebServer) handleLanes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if len(ws.lanes) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no lanes loaded")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := lanes.WriteGeoJSON(w, ws.lanes, ws.simplifyTolerance); err != nil {
		monitoring.Logf("write lanes geojson: %v", err)
	}
}

// handlePredictions serves the latest prediction snapshot as JSON.
func (ws *WebServer) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snapshot := ws.monitor.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"frame":       ws.monitor.Frame(),
		"predictions": snapshot,
	})
}

// Close shuts the server down immediately.
func (ws *WebServer) Close() error {
	return ws.server.Close()
}

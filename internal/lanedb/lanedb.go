// Package lanedb persists raw track observations, consolidation runs,
// lane polylines, and prediction records in SQLite. The core
// algorithms never touch this package; the server and batch tools use
// it to exchange data across runs.
package lanedb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/laneflow/internal/geom"
	"github.com/banshee-data/laneflow/internal/lanes"
)

// DB wraps the SQLite handle with lane-domain operations.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path and applies any
// pending migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer; the frame ingest path is effectively
	// serial so a single connection avoids SQLITE_BUSY churn.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Observation is one raw per-frame vehicle position as delivered by the
// external detector/tracker.
type Observation struct {
	TrackID int64
	Frame   int64
	X, Y    float64
}

// InsertObservations stores a batch of per-frame observations in one
// transaction.
func (db *DB) InsertObservations(obs []Observation) error {
	if len(obs) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin observations tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO track_observations (track_id, frame, x, y) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare observation insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.Exec(o.TrackID, o.Frame, o.X, o.Y); err != nil {
			return fmt.Errorf("insert observation track %d frame %d: %w", o.TrackID, o.Frame, err)
		}
	}
	return tx.Commit()
}

// LoadRawTracks groups all stored observations into per-vehicle raw
// tracks ordered by frame, ready for consolidation. FrameCount is the
// number of frames in which the vehicle was observed.
func (db *DB) LoadRawTracks() ([]lanes.RawTrack, error) {
	rows, err := db.Query(`SELECT track_id, x, y FROM track_observations ORDER BY track_id, frame, id`)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []lanes.RawTrack
	for rows.Next() {
		var trackID int64
		var x, y float64
		if err := rows.Scan(&trackID, &x, &y); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].TrackID != trackID {
			out = append(out, lanes.RawTrack{TrackID: trackID})
		}
		tr := &out[len(out)-1]
		tr.Points = append(tr.Points, geom.Point{X: x, Y: y})
		tr.FrameCount++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return out, nil
}

// Run records one consolidation pass and the parameters that produced
// it.
type Run struct {
	RunID           string
	CreatedAt       time.Time
	FPS             float64
	MergeThreshold  float64
	SnapTolerance   float64
	ClusterStrategy string
	TrackCount      int
	LaneCount       int
}

// NewRun creates a run record with a fresh UUID for the given
// consolidation parameters.
func NewRun(cfg lanes.ConsolidatorConfig, fps float64, trackCount, laneCount int) Run {
	return Run{
		RunID:           uuid.New().String(),
		CreatedAt:       time.Now().UTC(),
		FPS:             fps,
		MergeThreshold:  cfg.MergeThreshold,
		SnapTolerance:   cfg.SnapTolerance,
		ClusterStrategy: cfg.ClusterStrategy,
		TrackCount:      trackCount,
		LaneCount:       laneCount,
	}
}

// InsertRun stores a consolidation run and its lanes atomically.
func (db *DB) InsertRun(run Run, ls []lanes.Lane) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO consolidation_runs (
			run_id, created_at, fps, merge_threshold, snap_tolerance,
			cluster_strategy, track_count, lane_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CreatedAt.UnixNano(), run.FPS, run.MergeThreshold,
		run.SnapTolerance, run.ClusterStrategy, run.TrackCount, run.LaneCount,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO lanes (run_id, lane_id, points) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare lane insert: %w", err)
	}
	defer stmt.Close()

	for _, lane := range ls {
		pts, err := json.Marshal(lane.Points)
		if err != nil {
			return fmt.Errorf("encode lane %d: %w", lane.ID, err)
		}
		if _, err := stmt.Exec(run.RunID, lane.ID, string(pts)); err != nil {
			return fmt.Errorf("insert lane %d: %w", lane.ID, err)
		}
	}
	return tx.Commit()
}

// LoadLanes returns the lanes of the given consolidation run in lane-ID
// order.
func (db *DB) LoadLanes(runID string) ([]lanes.Lane, error) {
	rows, err := db.Query(`SELECT lane_id, points FROM lanes WHERE run_id = ? ORDER BY lane_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query lanes for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []lanes.Lane
	for rows.Next() {
		var laneID int
		var pts string
		if err := rows.Scan(&laneID, &pts); err != nil {
			return nil, fmt.Errorf("scan lane: %w", err)
		}
		lane := lanes.Lane{ID: laneID}
		if err := json.Unmarshal([]byte(pts), &lane.Points); err != nil {
			return nil, fmt.Errorf("decode lane %d: %w", laneID, err)
		}
		out = append(out, lane)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lanes: %w", err)
	}
	if len(out) == 0 {
		return nil, lanes.ErrNoLanes
	}
	return out, nil
}

// LatestLanes returns the lanes of the most recent consolidation run.
// Returns lanes.ErrNoLanes when no run exists.
func (db *DB) LatestLanes() (string, []lanes.Lane, error) {
	var runID string
	err := db.QueryRow(`SELECT run_id FROM consolidation_runs ORDER BY created_at DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil, lanes.ErrNoLanes
	}
	if err != nil {
		return "", nil, fmt.Errorf("query latest run: %w", err)
	}
	ls, err := db.LoadLanes(runID)
	if err != nil {
		return "", nil, err
	}
	return runID, ls, nil
}

// PredictionRecord is one persisted lane prediction for a vehicle at a
// prediction tick.
type PredictionRecord struct {
	TrackID     int64
	Frame       int64
	LaneID      int
	Probability float64
	Path        []geom.Point
}

// InsertPredictions stores a batch of prediction records in one
// transaction.
func (db *DB) InsertPredictions(recs []PredictionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin predictions tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO predictions (track_id, frame, lane_id, probability, path)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare prediction insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		path, err := json.Marshal(r.Path)
		if err != nil {
			return fmt.Errorf("encode prediction path: %w", err)
		}
		if _, err := stmt.Exec(r.TrackID, r.Frame, r.LaneID, r.Probability, string(path)); err != nil {
			return fmt.Errorf("insert prediction track %d frame %d: %w", r.TrackID, r.Frame, err)
		}
	}
	return tx.Commit()
}

// ObservationCount returns the number of stored raw observations.
func (db *DB) ObservationCount() (int64, error) {
	var n int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM track_observations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return n, nil
}

// Command laneflow serves a mined lane map and runs the live lane
// prediction loop over ingested vehicle detections.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/laneflow/internal/api"
	"github.com/banshee-data/laneflow/internal/config"
	"github.com/banshee-data/laneflow/internal/lanedb"
	"github.com/banshee-data/laneflow/internal/lanes"
	"github.com/banshee-data/laneflow/internal/predict"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", "lanes.db", "SQLite database file (empty disables persistence)")
	lanesFile  = flag.String("lanes", "", "Lane map GeoJSON file (defaults to the latest run in the database)")
	configFile = flag.String("config", "", "Tuning config JSON file")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyTuningConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	var db *lanedb.DB
	if *dbFile != "" {
		var err error
		db, err = lanedb.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
	}

	laneSet, err := loadLanes(db, *lanesFile)
	if errors.Is(err, lanes.ErrNoLanes) {
		// No lane map yet: serve anyway so frames can be ingested and
		// mined later. Predictions stay empty until lanes exist.
		log.Print("No lane map found; starting with zero lanes")
		laneSet = nil
	} else if err != nil {
		log.Fatalf("Failed to load lanes: %v", err)
	} else {
		log.Printf("Loaded %d lanes", len(laneSet))
	}

	index, err := lanes.BuildIndex(laneSet)
	if err != nil {
		log.Fatalf("Failed to index lanes: %v", err)
	}

	predictor := predict.NewPredictor(index, cfg.PredictorConfig())
	monitor := predict.NewMonitor(predictor, cfg.MonitorConfig())
	monitor.SetMatchByLane(cfg.GetMatchByLane())

	ws := api.NewWebServer(api.Config{
		Address:           *listen,
		Lanes:             laneSet,
		Monitor:           monitor,
		DB:                db,
		SimplifyTolerance: cfg.GetSimplifyTolerance(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("server error: %v", err)
		}
	}()
	wg.Wait()
}

// loadLanes reads the lane map from the GeoJSON file when given,
// otherwise from the latest consolidation run in the database.
func loadLanes(db *lanedb.DB, path string) ([]lanes.Lane, error) {
	if path != "" {
		return lanes.LoadGeoJSON(path)
	}
	if db == nil {
		return nil, errors.New("no lane source: pass -lanes or -db")
	}
	_, laneSet, err := db.LatestLanes()
	return laneSet, err
}

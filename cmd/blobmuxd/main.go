// Command blobmuxd wires a multiplexer, a sync queue and a small
// operator-facing HTTP surface together from a Jsonnet configuration file,
// the way the teacher's cmd/bb_storage/main.go bootstraps its own
// services: read configuration, build collaborators, serve until killed.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"

	gorillamux "github.com/gorilla/mux"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/backend/gcsbackend"
	"github.com/zerkella/blobmux/pkg/backend/s3backend"
	"github.com/zerkella/blobmux/pkg/clock"
	"github.com/zerkella/blobmux/pkg/config"
	"github.com/zerkella/blobmux/pkg/mux"
	"github.com/zerkella/blobmux/pkg/muxid"
	"github.com/zerkella/blobmux/pkg/puthandler"
	"github.com/zerkella/blobmux/pkg/syncqueue"
	"github.com/zerkella/blobmux/pkg/telemetry"
	"github.com/zerkella/blobmux/pkg/util"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatal("Usage: blobmuxd blobmuxd.jsonnet")
	}
	cfg, err := config.LoadFromFile(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to read configuration from %s: %s", os.Args[1], err)
	}

	queue, closeQueue, err := buildQueue(*cfg)
	if err != nil {
		log.Fatal("Failed to build sync queue: ", err)
	}
	defer closeQueue()

	entries := make([]mux.BackendEntry, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		be, err := buildBackend(b)
		if err != nil {
			log.Fatalf("Failed to build backend %d: %s", b.ID, err)
		}
		entries = append(entries, mux.BackendEntry{ID: backend.ID(b.ID), Backend: be})
	}

	multiplexer := mux.NewMultiplexer(mux.Configuration{
		MultiplexID:   muxid.MultiplexID(cfg.MultiplexID),
		Backends:      entries,
		PutHandler:    puthandler.NewSyncQueueHandler(queue, clock.SystemClock),
		TelemetrySink: telemetry.NopSink,
		Sampler:       telemetry.ConstantRateSampler{Rate: cfg.SampleRate},
		Clock:         clock.SystemClock,
		Deadline:      cfg.Deadline(mux.BackendDeadline),
	})

	router := gorillamux.NewRouter()
	util.RegisterAdministrativeHTTPEndpoints(router)
	registerQueueEndpoint(router, queue)
	registerScrubEndpoint(router, multiplexer)

	listenAddress := cfg.ListenAddress
	if listenAddress == "" {
		listenAddress = ":8980"
	}
	log.Printf("blobmuxd listening on %s", listenAddress)
	log.Fatal(http.ListenAndServe(listenAddress, router))
}

func buildQueue(cfg config.FileConfiguration) (syncqueue.Queue, func(), error) {
	var store syncqueue.Store
	if cfg.SyncQueue.DataSourceName == "" {
		store = syncqueue.NewMemoryStore()
	} else {
		db, err := sql.Open("postgres", cfg.SyncQueue.DataSourceName)
		if err != nil {
			return nil, nil, util.StatusWrap(err, "open sync queue database")
		}
		store = syncqueue.NewSQLStore(db)
	}
	queue := syncqueue.NewBatchingQueue(store)
	return queue, queue.Close, nil
}

func buildBackend(b config.BackendConfiguration) (backend.Backend, error) {
	switch b.Kind {
	case config.BackendKindMemory:
		return backend.NewMemory(clock.SystemClock), nil
	case config.BackendKindS3:
		sess, err := s3backend.NewSession(b.S3Region, b.S3EndpointURL)
		if err != nil {
			return nil, err
		}
		return s3backend.New(sess, b.S3Bucket, b.S3KeyPrefix), nil
	case config.BackendKindGCS:
		return gcsbackend.New(context.Background(), b.GCSBucket, b.GCSKeyPrefix, b.GCSAuthFile)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", b.Kind)
	}
}

func registerQueueEndpoint(router *gorillamux.Router, queue syncqueue.Queue) {
	router.HandleFunc("/queue", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		multiplexID, _ := strconv.Atoi(q.Get("multiplex_id"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			limit = 100
		}
		olderThan := time.Now()
		if s := q.Get("older_than"); s != "" {
			if parsed, err := time.Parse(time.RFC3339, s); err == nil {
				olderThan = parsed
			}
		}
		entries, err := queue.Iter(r.Context(), syncqueue.IterQuery{
			MultiplexID: muxid.MultiplexID(multiplexID),
			OlderThan:   olderThan,
			Limit:       limit,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, entries)
	})
}

func registerScrubEndpoint(router *gorillamux.Router, multiplexer *mux.Multiplexer) {
	router.HandleFunc("/scrub", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if key == "" {
			http.Error(w, "missing key parameter", http.StatusBadRequest)
			return
		}
		data, err := multiplexer.ScrubGet(r.Context(), key)
		if err != nil {
			writeJSON(w, map[string]string{"error": err.Error()})
			return
		}
		if data == nil {
			writeJSON(w, map[string]string{"status": "absent from every backend"})
			return
		}
		writeJSON(w, map[string]any{"status": "ok", "sizeBytes": data.Size()})
	}).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Print(err)
	}
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/codeyousef/voxelstream/internal/persistence/indexdb"
	"github.com/codeyousef/voxelstream/internal/persistence/snapshot"
	"github.com/codeyousef/voxelstream/internal/sim/tuning"
	"github.com/codeyousef/voxelstream/internal/sim/world"
	"github.com/codeyousef/voxelstream/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the snapshot index db")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}

	// Optional: read-model index of snapshot saves (does not affect sim state).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		if err := idx.SetMeta("world_id", *worldID); err != nil {
			logger.Printf("index db: set meta: %v", err)
		}
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir, idx)
	}

	var snapToImport *snapshot.SnapshotV1
	worldSeed := *seed
	if snapshotToLoad != "" {
		snap, err := snapshot.Read(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		snapToImport = &snap
		worldSeed = snap.Seed
	}

	obsSrv := observer.NewServer(logger)

	w := world.New(world.Config{
		ID:                 *worldID,
		Seed:               worldSeed,
		TickRateHz:         tune.TickRateHz,
		InitialRadius:      tune.InitialRadius,
		StreamRadius:       tune.StreamRadius,
		GenPerFrame:        tune.GenPerFrame,
		MeshPerFrame:       tune.MeshPerFrame,
		MaxConcurrentGen:   tune.MaxConcurrentGen,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
	}, newHeadlessMesh(), newHeadlessScene(), obsSrv, logger)
	defer w.Close()
	obsSrv.SetWorld(w)

	if snapToImport != nil {
		if err := w.ImportSnapshot(*snapToImport); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		obsSrv.SetPose(w.LastPose())
		logger.Printf("resumed from snapshot=%s tick=%d modified_chunks=%d",
			filepath.Base(snapshotToLoad), snapToImport.Header.Tick, len(snapToImport.ModifiedChunks))
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Seed the streaming window around the observer before the loop starts so
	// nearby terrain is queued on the first frames.
	w.PreloadAround(w.LastPose(), tune.InitialRadius)

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				writeSnapshot(worldDir, snap, idx, logger)
			}
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/observer/v1/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/observer/v1/ws", obsSrv.WSHandler())

	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		loadDone, loadTotal := w.Progress()
		regenDone, regenTarget := w.RegenProgress()
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			WorldID      string `json:"world_id"`
			Tick         uint64 `json:"tick"`
			LoadedChunks int    `json:"loaded_chunks"`
			QueuedGen    int    `json:"queued_gen"`
			LoadDone     int64  `json:"load_done"`
			LoadTotal    int64  `json:"load_total"`
			RegenDone    int64  `json:"regen_done"`
			RegenTarget  int64  `json:"regen_target"`
		}{
			WorldID:      *worldID,
			Tick:         w.CurrentTick(),
			LoadedChunks: w.LoadedChunkCount(),
			QueuedGen:    w.QueuedGeneration(),
			LoadDone:     loadDone,
			LoadTotal:    loadTotal,
			RegenDone:    regenDone,
			RegenTarget:  regenTarget,
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/regenerate", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		n := w.RegenerateAll()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "queued": n})
	})

	if envBool("VS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (VS_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world=%s seed=%d listening on %s", *worldID, worldSeed, *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Save on shutdown so edits since the last periodic export survive.
	w.Stop()
	writeSnapshot(worldDir, w.ExportSnapshot(), idx, logger)
}

func writeSnapshot(worldDir string, snap snapshot.SnapshotV1, idx *indexdb.SQLiteIndex, logger *log.Logger) {
	path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
	if err := snapshot.Write(path, snap); err != nil {
		logger.Printf("snapshot write: %v", err)
		return
	}
	logger.Printf("snapshot saved tick=%d modified_chunks=%d", snap.Header.Tick, len(snap.ModifiedChunks))
	if idx != nil {
		idx.RecordSnapshot(indexdb.SnapshotRow{
			Tick:           snap.Header.Tick,
			Path:           path,
			Seed:           snap.Seed,
			ModifiedChunks: len(snap.ModifiedChunks),
			SavedAt:        snap.Header.SavedAt,
		})
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// latestSnapshot prefers the index db; falls back to scanning the snapshots
// directory so -disable_db still resumes.
func latestSnapshot(worldDir string, idx *indexdb.SQLiteIndex) string {
	if idx != nil {
		if row, ok, err := idx.LatestSnapshot(); err == nil && ok {
			if _, statErr := os.Stat(row.Path); statErr == nil {
				return row.Path
			}
		}
	}

	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

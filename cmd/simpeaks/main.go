package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/simpeaks/internal/acquire"
	"github.com/banshee-data/simpeaks/internal/api"
	"github.com/banshee-data/simpeaks/internal/config"
	"github.com/banshee-data/simpeaks/internal/monitoring"
	"github.com/banshee-data/simpeaks/internal/ndarray"
	"github.com/banshee-data/simpeaks/internal/publish"
	"github.com/banshee-data/simpeaks/internal/render"
	"github.com/banshee-data/simpeaks/internal/store"
	"github.com/banshee-data/simpeaks/internal/stream"
	"github.com/banshee-data/simpeaks/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON simulation config (e.g. "+config.DefaultConfigPath+")")
	listen      = flag.String("listen", ":8081", "HTTP listen address")
	grpcListen  = flag.String("grpc-listen", "", "gRPC frame stream listen address (disabled when empty)")
	dbPath      = flag.String("db", "", "SQLite run history path (disabled when empty)")
	maxSizeX    = flag.Int("max-size-x", acquire.DefaultMaxSize, "Maximum frame width")
	maxSizeY    = flag.Int("max-size-y", acquire.DefaultMaxSize, "Maximum frame height")
	maxPeaks    = flag.Int("max-peaks", acquire.DefaultMaxPeaks, "Number of peak slots")
	maxBuffers  = flag.Int("max-buffers", 4, "Maximum frame buffers held by the pool (0 = unlimited)")
	maxMemory   = flag.Int64("max-memory", 0, "Maximum frame buffer bytes (0 = unlimited)")
	seed        = flag.Uint64("seed", 0, "Noise seed (0 = derive from the clock)")
	autostart   = flag.Bool("autostart", false, "Start acquiring immediately")
	snapshot    = flag.String("snapshot", "", "Acquire one frame, write it as PNG to this path and exit")
	debugLog    = flag.Bool("debug", false, "Log per-frame traces")
	assetsHost  = flag.String("assets-host", render.DefaultAssetsHost, "Base URL for echarts assets")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetDebug(*debugLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *snapshot != "" {
		if err := runSnapshot(ctx, *snapshot); err != nil {
			log.Fatalf("snapshot failed: %v", err)
		}
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	hub := publish.NewHub(publish.DefaultConfig())
	hub.Start()
	defer hub.Stop()

	var runs *store.DB
	opts := engineOptions(hub)
	if *dbPath != "" {
		var err error
		runs, err = store.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open run database: %v", err)
		}
		defer runs.Close()
		opts.Recorder = runs
	}

	eng := acquire.New(opts)
	if err := loadConfig(eng); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("acquisition loop failed: %v", err)
		}
		log.Print("acquisition routine terminated")
	}()
	if *autostart {
		eng.Start()
	}

	if *grpcListen != "" {
		srv := stream.NewServer(hub, stream.Config{ListenAddr: *grpcListen})
		if err := srv.Start(); err != nil {
			log.Fatalf("Failed to start gRPC server: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			// Close subscriptions first so open streams return.
			hub.Stop()
			srv.Stop()
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		var lister api.RunLister
		if runs != nil {
			lister = runs
		}
		apiServer := api.NewServer(api.Options{Engine: eng, Frames: hub, Runs: lister, AssetsHost: *assetsHost})
		mux := apiServer.ServeMux()
		apiServer.AttachAdminRoutes(mux)
		if runs != nil {
			if err := runs.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach database admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}
		go func() {
			log.Printf("HTTP server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")
		// SSE clients end once the hub closes their channel.
		hub.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func engineOptions(pub acquire.Publisher) acquire.Options {
	s := *seed
	if s == 0 {
		s = uint64(time.Now().UnixNano())
	}
	return acquire.Options{
		MaxSizeX:  *maxSizeX,
		MaxSizeY:  *maxSizeY,
		MaxPeaks:  *maxPeaks,
		Pool:      ndarray.NewPool(*maxBuffers, *maxMemory),
		Publisher: pub,
		Seed:      s,
	}
}

func loadConfig(eng *acquire.Engine) error {
	if *configPath == "" {
		return nil
	}
	cfg, err := config.LoadSimConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyTo(eng); err != nil {
		return err
	}
	log.Printf("loaded simulation config from %s", *configPath)
	return nil
}

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"blockterrain.ai/internal/runner"
	"blockterrain.ai/internal/sim/tuning"
	"blockterrain.ai/internal/transport/observer"
	"blockterrain.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory (empty disables recording)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite run index")
		archive    = flag.Bool("archive", false, "copy every snapshot into <data>/archives")
		maxPasses  = flag.Int("max_passes", 2, "passes allowed to run at once across all connections")
		warm       = flag.Bool("warm", true, "generate one pass with the default seed at startup")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	r, err := runner.New(tune, log.New(os.Stdout, "[terrain] ", log.LstdFlags|log.Lmicroseconds), runner.Options{
		DataDir:   strings.TrimSpace(*dataDir),
		DisableDB: *disableDB,
		Archive:   *archive,
	})
	if err != nil {
		logger.Fatalf("runner: %v", err)
	}
	defer r.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if *warm {
		if _, err := r.Generate(ctx, nil, ""); err != nil {
			logger.Printf("warm pass: %v", err)
		}
	}

	wsSrv := ws.NewServer(ctx, r, logger, *maxPasses)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, wsSrv.Stats(), r.Index().Stats(), r.Last())
	})

	if envBool("BT_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		var runs observer.Runs
		if idx := r.Index(); idx != nil {
			runs = idx
		}
		observer.NewServer(r, runs, logger).Register(mux)
	} else {
		logger.Printf("observer endpoints disabled (BT_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("BT_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (BT_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

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

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
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

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

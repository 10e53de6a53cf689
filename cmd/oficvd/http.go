package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sawpanic/oficvd/internal/config"
)

// startOperatorServer starts the read-only operator HTTP surface (spec
// section 6): /healthz, /metrics (Prometheus exposition), and /manifest
// (the most recent run_manifest.json). It is gated entirely by
// cfg.Metrics.Enabled and never exposes a control-plane action, grounded
// on monitor_main.go's health/metrics server shape but routed through
// gorilla/mux instead of a bare http.ServeMux.
func startOperatorServer(ctx context.Context, cfg config.MetricsConfig, manifestDir string, log zerolog.Logger) *http.Server {
	if !cfg.Enabled {
		return nil
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/manifest", manifestHandler(manifestDir)).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("operator HTTP surface listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("operator HTTP surface stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return srv
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// manifestHandler serves the last-written run_manifest.json verbatim; it
// never computes a fresh one, since the manifest is only ever written
// once at the end of a run (spec section 6).
func manifestHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, "run_manifest.json")
		data, err := os.ReadFile(path)
		if err != nil {
			http.Error(w, fmt.Sprintf("manifest not available: %v", err), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

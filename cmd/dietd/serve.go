package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/dietdaily/internal/connectivity"
	"github.com/kimhsiao/dietdaily/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background sync daemon",
	Long: `serve runs the sync engine as a daemon: it probes
connectivity, drains pending records while online and serves sync
status over HTTP and WebSocket on a local port.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	probe := connectivity.NewProbe(connectivity.ProbeConfig{
		Endpoint: cfg.Sync.ProbeEndpoint,
		Interval: cfg.Sync.ProbeInterval,
	})

	svc, cleanup, err := buildService(cfg, probe)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	probe.Start(ctx)
	defer probe.Stop()
	svc.Start(ctx)
	defer svc.Close()

	hub := newWSHub()
	probe.Subscribe(func(online bool) {
		hub.BroadcastStatus(svc.Status())
	})

	// Push a status snapshot on a slow heartbeat so clients see
	// pending counts move without polling.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hub.BroadcastStatus(svc.Status())
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(svc.Status())
	})
	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		result, err := svc.ForceSyncNow(r.Context())
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		hub.Broadcast(eventSyncCompleted, result)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	})
	mux.HandleFunc("/ws", handleWebSocket(hub))

	server := &http.Server{
		Addr:         cfg.Serve.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket connections stay open
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("status server listening", map[string]interface{}{"addr": cfg.Serve.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logging.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/mops"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:     "serve-metrics",
	Aliases: []string{"serve"},
	Short:   "Serve Prometheus metrics and health checks",
	Long: `Serve Prometheus metrics and health checks over HTTP.

Endpoints:
  /metrics  - Prometheus metrics (mops_saves_total, mops_pending_saves, ...)
  /health   - liveness, {"status":"ok","timestamp":...}
  /status   - save pipeline status and client count

The address defaults to :2112, or :$PORT when PORT is set. The server runs
in the foreground until interrupted.

Examples:
  mops serve-metrics
  mops serve-metrics --addr 127.0.0.1:9090`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if !cmd.Flags().Changed("addr") {
			if port := os.Getenv("PORT"); port != "" {
				addr = ":" + port
			}
		}
		return withClient(cmd, func(ctx context.Context, c *mops.Client) error {
			srv := &http.Server{
				Addr:         addr,
				Handler:      newRouter(c),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()
			fmt.Printf("Serving metrics on %s\n", color.Highlight("http://"+addr+"/metrics"))
			c.Logger().Info("metrics server listening", "addr", addr)

			select {
			case err := <-errCh:
				return fmt.Errorf("metrics server: %w", err)
			case <-ctx.Done():
			}

			c.Logger().Info("shutting down metrics server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	},
}

// newRouter builds the HTTP handler for the metrics server.
func newRouter(c *mops.Client) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	}))

	mux.Handle("/metrics", c.Metrics().Handler())
	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	mux.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		clients, err := c.Clients(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"store_id": c.StoreID(),
			"clients":  len(clients),
			"status":   c.Status(),
		})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":2112", "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

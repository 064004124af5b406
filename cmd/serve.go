package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"filetriage/internal/clix"
)

var (
	serveAddr string // Listen address
	servePort string // Listen port
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the LLM relay",
	Long: `Starts the HTTP relay that forwards classification calls to Qwen
(POST <base>/qwen) and DeepSeek (POST <base>/deepseek). Callers put their
API key in the JSON body as "apiKey"; the relay sends it upstream as a
bearer token and returns the upstream status and body unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cfg := appInstance.Config

		if log.GetLevel() < log.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}
		router := appInstance.Relay.Router(appInstance.RelayOptions())

		listenAddr := net.JoinHostPort(
			clix.StringOr(cmd.Flags(), "addr", cfg.Relay.Addr),
			clix.StringOr(cmd.Flags(), "port", cfg.Relay.Port),
		)
		srv := &http.Server{
			Addr:              listenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Infof("Starting relay on http://%s%s", listenAddr, cfg.Relay.BasePath)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Failed to run relay: %v", err)
				return fmt.Errorf("failed to run relay: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("Shutting down relay...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("relay shutdown: %w", err)
		}
		log.Info("Relay stopped.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost", "Address to listen on (e.g., '0.0.0.0' for all interfaces); defaults to relay.addr")
	serveCmd.Flags().StringVar(&servePort, "port", "9000", "Port to listen on; defaults to relay.port")
}
